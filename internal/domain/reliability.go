package domain

import "time"

// ReliabilityCounters are the raw lifetime behavioral counters per contractor.
// Updates arrive as deltas merged into the prior values; the counters are never
// rebuilt from scratch outside the explicit recompute sweep.
type ReliabilityCounters struct {
	AppointmentsTotal     int     `json:"appointments_total"`
	AppointmentsAttended  int     `json:"appointments_attended"`
	DisputesTotal         int     `json:"disputes_total"`
	CompletionsTotal      int     `json:"completions_total"`
	CompletionsOnTime     int     `json:"completions_on_time"`
	ProofsTotal           int     `json:"proofs_total"`
	ProofsComplete        int     `json:"proofs_complete"`
	ResponseSamples       int     `json:"response_samples"`
	MedianResponseMinutes float64 `json:"median_response_minutes"`
}

// ReliabilityMetrics are the five derived 0-100 sub-scores.
type ReliabilityMetrics struct {
	ShowUpRate        float64 `json:"show_up_rate"`
	ResponseTimeScore float64 `json:"response_time_score"`
	DisputeScore      float64 `json:"dispute_score"`
	ProofCompleteness float64 `json:"proof_completeness"`
	OnTimeRate        float64 `json:"on_time_rate"`
}

// ReliabilityWeights weight the five sub-scores. They need not sum to 1; the
// score computation normalizes by the actual sum.
type ReliabilityWeights struct {
	ShowUp       float64 `json:"show_up" yaml:"show_up"`
	ResponseTime float64 `json:"response_time" yaml:"response_time"`
	Dispute      float64 `json:"dispute" yaml:"dispute"`
	Proof        float64 `json:"proof" yaml:"proof"`
	OnTime       float64 `json:"on_time" yaml:"on_time"`
}

// ReliabilityThresholds gate the three independent eligibility flags.
type ReliabilityThresholds struct {
	AutoRelease float64 `json:"auto_release" yaml:"auto_release"`
	LargeJobs   float64 `json:"large_jobs" yaml:"large_jobs"`
	HighTicket  float64 `json:"high_ticket" yaml:"high_ticket"`
}

// ReliabilityEligibility holds the three threshold-gated flags.
type ReliabilityEligibility struct {
	AutoRelease bool `json:"auto_release"`
	LargeJobs   bool `json:"large_jobs"`
	HighTicket  bool `json:"high_ticket"`
}

// ReliabilityScore is the persisted per-contractor scoring record.
type ReliabilityScore struct {
	ContractorID string                 `json:"contractor_id"`
	Counters     ReliabilityCounters    `json:"counters"`
	Metrics      ReliabilityMetrics     `json:"metrics"`
	Score        float64                `json:"score"`
	Eligibility  ReliabilityEligibility `json:"eligibility"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// ReliabilityHistoryEntry is one append-only snapshot of a contractor's score.
type ReliabilityHistoryEntry struct {
	EntryID      string             `json:"entry_id"`
	ContractorID string             `json:"contractor_id"`
	Score        float64            `json:"score"`
	Metrics      ReliabilityMetrics `json:"metrics"`
	Cause        string             `json:"cause"`
	RecordedAt   time.Time          `json:"recorded_at"`
}

// neutralScore is used whenever a ratio has no history to judge by. 50 avoids
// unfairly penalizing or rewarding contractors with no track record.
const neutralScore = 50.0

func ratioScore(numerator, denominator int) float64 {
	if denominator == 0 {
		return neutralScore
	}
	return clamp01Hundred(float64(numerator) / float64(denominator) * 100)
}

func clamp01Hundred(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ComputeReliabilityMetrics derives the five sub-scores from raw counters.
func ComputeReliabilityMetrics(c ReliabilityCounters) ReliabilityMetrics {
	m := ReliabilityMetrics{
		ShowUpRate:        ratioScore(c.AppointmentsAttended, c.AppointmentsTotal),
		ProofCompleteness: ratioScore(c.ProofsComplete, c.ProofsTotal),
		OnTimeRate:        ratioScore(c.CompletionsOnTime, c.CompletionsTotal),
	}

	if c.ResponseSamples == 0 {
		m.ResponseTimeScore = neutralScore
	} else {
		m.ResponseTimeScore = clamp01Hundred(100 - c.MedianResponseMinutes/6)
	}

	if c.CompletionsTotal == 0 {
		m.DisputeScore = neutralScore
	} else {
		score := 100 - float64(c.DisputesTotal)/float64(c.CompletionsTotal)*100
		if score < 0 {
			score = 0
		}
		m.DisputeScore = score
	}
	return m
}

// ComputeReliabilityScore is the weight-normalized sum of the five sub-scores.
// A non-positive weight sum falls back to 1 to keep the result defined.
func ComputeReliabilityScore(m ReliabilityMetrics, w ReliabilityWeights) float64 {
	sum := w.ShowUp + w.ResponseTime + w.Dispute + w.Proof + w.OnTime
	if sum <= 0 {
		sum = 1
	}
	weighted := m.ShowUpRate*w.ShowUp +
		m.ResponseTimeScore*w.ResponseTime +
		m.DisputeScore*w.Dispute +
		m.ProofCompleteness*w.Proof +
		m.OnTimeRate*w.OnTime
	return weighted / sum
}

// ComputeReliabilityEligibility gates the three flags independently against
// their thresholds.
func ComputeReliabilityEligibility(score float64, t ReliabilityThresholds) ReliabilityEligibility {
	return ReliabilityEligibility{
		AutoRelease: score >= t.AutoRelease,
		LargeJobs:   score >= t.LargeJobs,
		HighTicket:  score >= t.HighTicket,
	}
}

// MergeReliabilityCounters folds a delta into prior counters. The running
// median is merged as a sample-count weighted average, which keeps single-pass
// incremental updates cheap at the cost of exactness.
func MergeReliabilityCounters(prior, delta ReliabilityCounters) ReliabilityCounters {
	merged := ReliabilityCounters{
		AppointmentsTotal:    prior.AppointmentsTotal + delta.AppointmentsTotal,
		AppointmentsAttended: prior.AppointmentsAttended + delta.AppointmentsAttended,
		DisputesTotal:        prior.DisputesTotal + delta.DisputesTotal,
		CompletionsTotal:     prior.CompletionsTotal + delta.CompletionsTotal,
		CompletionsOnTime:    prior.CompletionsOnTime + delta.CompletionsOnTime,
		ProofsTotal:          prior.ProofsTotal + delta.ProofsTotal,
		ProofsComplete:       prior.ProofsComplete + delta.ProofsComplete,
		ResponseSamples:      prior.ResponseSamples + delta.ResponseSamples,
	}
	switch {
	case merged.ResponseSamples == 0:
		merged.MedianResponseMinutes = 0
	case prior.ResponseSamples == 0:
		merged.MedianResponseMinutes = delta.MedianResponseMinutes
	case delta.ResponseSamples == 0:
		merged.MedianResponseMinutes = prior.MedianResponseMinutes
	default:
		merged.MedianResponseMinutes = (prior.MedianResponseMinutes*float64(prior.ResponseSamples) +
			delta.MedianResponseMinutes*float64(delta.ResponseSamples)) /
			float64(merged.ResponseSamples)
	}
	return merged
}
