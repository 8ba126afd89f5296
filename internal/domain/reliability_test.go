package domain

import (
	"math"
	"testing"
)

func TestComputeReliabilityMetricsNoHistory(t *testing.T) {
	t.Parallel()

	m := ComputeReliabilityMetrics(ReliabilityCounters{})
	for name, got := range map[string]float64{
		"show_up_rate":        m.ShowUpRate,
		"response_time_score": m.ResponseTimeScore,
		"dispute_score":       m.DisputeScore,
		"proof_completeness":  m.ProofCompleteness,
		"on_time_rate":        m.OnTimeRate,
	} {
		if got != 50 {
			t.Errorf("%s = %v, want neutral 50", name, got)
		}
	}
}

func TestComputeReliabilityMetrics(t *testing.T) {
	t.Parallel()

	m := ComputeReliabilityMetrics(ReliabilityCounters{
		AppointmentsTotal:     10,
		AppointmentsAttended:  9,
		DisputesTotal:         1,
		CompletionsTotal:      8,
		CompletionsOnTime:     6,
		ProofsTotal:           4,
		ProofsComplete:        4,
		ResponseSamples:       5,
		MedianResponseMinutes: 120,
	})

	if m.ShowUpRate != 90 {
		t.Errorf("show up rate = %v, want 90", m.ShowUpRate)
	}
	if m.ProofCompleteness != 100 {
		t.Errorf("proof completeness = %v, want 100", m.ProofCompleteness)
	}
	if m.OnTimeRate != 75 {
		t.Errorf("on time rate = %v, want 75", m.OnTimeRate)
	}
	if m.ResponseTimeScore != 80 {
		t.Errorf("response time score = %v, want 80", m.ResponseTimeScore)
	}
	if m.DisputeScore != 87.5 {
		t.Errorf("dispute score = %v, want 87.5", m.DisputeScore)
	}
}

func TestReliabilityMetricClamping(t *testing.T) {
	t.Parallel()

	m := ComputeReliabilityMetrics(ReliabilityCounters{
		ResponseSamples:       1,
		MedianResponseMinutes: 1000,
		CompletionsTotal:      2,
		DisputesTotal:         5,
	})
	if m.ResponseTimeScore != 0 {
		t.Errorf("response time score = %v, want clamped 0", m.ResponseTimeScore)
	}
	if m.DisputeScore != 0 {
		t.Errorf("dispute score = %v, want floored 0", m.DisputeScore)
	}

	fast := ComputeReliabilityMetrics(ReliabilityCounters{
		ResponseSamples:       1,
		MedianResponseMinutes: 0,
	})
	if fast.ResponseTimeScore != 100 {
		t.Errorf("response time score = %v, want 100", fast.ResponseTimeScore)
	}
}

func TestComputeReliabilityScoreNormalizesWeights(t *testing.T) {
	t.Parallel()

	m := ReliabilityMetrics{
		ShowUpRate:        100,
		ResponseTimeScore: 50,
		DisputeScore:      100,
		ProofCompleteness: 50,
		OnTimeRate:        100,
	}

	even := ComputeReliabilityScore(m, ReliabilityWeights{ShowUp: 1, ResponseTime: 1, Dispute: 1, Proof: 1, OnTime: 1})
	if even != 80 {
		t.Errorf("evenly weighted score = %v, want 80", even)
	}

	doubled := ComputeReliabilityScore(m, ReliabilityWeights{ShowUp: 2, ResponseTime: 2, Dispute: 2, Proof: 2, OnTime: 2})
	if math.Abs(doubled-even) > 1e-9 {
		t.Errorf("scaling all weights changed the score: %v vs %v", doubled, even)
	}

	// Non-positive weight sum falls back rather than dividing by zero.
	zero := ComputeReliabilityScore(m, ReliabilityWeights{})
	if math.IsNaN(zero) || math.IsInf(zero, 0) {
		t.Errorf("zero weights produced %v", zero)
	}
}

func TestComputeReliabilityEligibilityThresholds(t *testing.T) {
	t.Parallel()

	thresholds := DefaultPlatformConfig().ReliabilityThresholds

	tests := []struct {
		score       float64
		autoRelease bool
		largeJobs   bool
		highTicket  bool
	}{
		{74.9, false, false, false},
		{75, false, true, false},
		{80, true, true, false},
		{85, true, true, true},
		{100, true, true, true},
	}
	for _, tc := range tests {
		got := ComputeReliabilityEligibility(tc.score, thresholds)
		if got.AutoRelease != tc.autoRelease || got.LargeJobs != tc.largeJobs || got.HighTicket != tc.highTicket {
			t.Errorf("score %v: got %+v", tc.score, got)
		}
	}
}

func TestMergeReliabilityCounters(t *testing.T) {
	t.Parallel()

	prior := ReliabilityCounters{
		AppointmentsTotal:     4,
		AppointmentsAttended:  3,
		ResponseSamples:       2,
		MedianResponseMinutes: 60,
	}
	delta := ReliabilityCounters{
		AppointmentsTotal:     1,
		AppointmentsAttended:  1,
		ResponseSamples:       2,
		MedianResponseMinutes: 120,
	}

	merged := MergeReliabilityCounters(prior, delta)
	if merged.AppointmentsTotal != 5 || merged.AppointmentsAttended != 4 {
		t.Errorf("appointment counters = %d/%d, want 5/4", merged.AppointmentsAttended, merged.AppointmentsTotal)
	}
	if merged.ResponseSamples != 4 {
		t.Errorf("response samples = %d, want 4", merged.ResponseSamples)
	}
	if merged.MedianResponseMinutes != 90 {
		t.Errorf("merged median = %v, want sample-weighted 90", merged.MedianResponseMinutes)
	}

	// A one-sided merge keeps the side that has samples.
	onlyPrior := MergeReliabilityCounters(prior, ReliabilityCounters{})
	if onlyPrior.MedianResponseMinutes != 60 {
		t.Errorf("merged median = %v, want prior 60", onlyPrior.MedianResponseMinutes)
	}
	onlyDelta := MergeReliabilityCounters(ReliabilityCounters{}, delta)
	if onlyDelta.MedianResponseMinutes != 120 {
		t.Errorf("merged median = %v, want delta 120", onlyDelta.MedianResponseMinutes)
	}
	neither := MergeReliabilityCounters(ReliabilityCounters{}, ReliabilityCounters{})
	if neither.MedianResponseMinutes != 0 {
		t.Errorf("merged median = %v, want 0", neither.MedianResponseMinutes)
	}
}
