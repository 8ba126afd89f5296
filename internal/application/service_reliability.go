package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trustvibe/escrow-service/internal/contracts"
	"github.com/trustvibe/escrow-service/internal/domain"
)

// RecordReliabilitySignals merges a counter delta into the contractor's
// lifetime counters and recomputes the score and eligibility flags.
func (s *Service) RecordReliabilitySignals(ctx context.Context, actor Actor, in ReliabilitySignalsInput) (domain.ReliabilityScore, error) {
	if err := s.authorize(actor, "record_reliability_signals"); err != nil {
		return domain.ReliabilityScore{}, err
	}
	if in.ContractorID == "" {
		return domain.ReliabilityScore{}, fmt.Errorf("%w: contractor is required", domain.ErrInvalidInput)
	}

	cfg, err := s.snapshot(ctx)
	if err != nil {
		return domain.ReliabilityScore{}, err
	}

	prior, err := s.reliability.Get(ctx, in.ContractorID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.ReliabilityScore{}, err
	}

	merged := domain.MergeReliabilityCounters(prior.Counters, in.Delta)
	return s.persistScore(ctx, actor, cfg, in.ContractorID, merged, in.Cause)
}

// GetReliability returns the contractor's current score record. Unknown
// contractors resolve to a fresh all-neutral record rather than an error.
func (s *Service) GetReliability(ctx context.Context, actor Actor, contractorID string) (domain.ReliabilityScore, error) {
	if actor.SubjectID == "" {
		return domain.ReliabilityScore{}, domain.ErrUnauthenticated
	}
	score, err := s.reliability.Get(ctx, contractorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			cfg, cfgErr := s.snapshot(ctx)
			if cfgErr != nil {
				return domain.ReliabilityScore{}, cfgErr
			}
			return freshScore(contractorID, cfg, s.nowFn()), nil
		}
		return domain.ReliabilityScore{}, err
	}
	return score, nil
}

// RecomputeReliabilityScores sweeps all contractors and recomputes scores
// from their stored counters under the current weights and thresholds. Used
// after a config change to weights or thresholds.
func (s *Service) RecomputeReliabilityScores(ctx context.Context, actor Actor) (SweepResult, error) {
	if err := s.authorize(actor, "recompute_reliability"); err != nil {
		return SweepResult{}, err
	}
	cfg, err := s.snapshot(ctx)
	if err != nil {
		return SweepResult{}, err
	}

	var out SweepResult
	const pageSize = 200
	for offset := 0; ; offset += pageSize {
		ids, err := s.reliability.ListContractorIDs(ctx, pageSize, offset)
		if err != nil {
			return out, err
		}
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			out.Scanned++
			prior, err := s.reliability.Get(ctx, id)
			if err != nil {
				out.Failed++
				continue
			}
			if _, err := s.persistScore(ctx, actor, cfg, id, prior.Counters, "recompute_sweep"); err != nil {
				out.Failed++
				continue
			}
			out.Executed++
		}
		if len(ids) < pageSize {
			break
		}
	}
	return out, nil
}

// persistScore computes metrics, score and eligibility from counters, stores
// the record, appends history, and publishes the update.
func (s *Service) persistScore(ctx context.Context, actor Actor, cfg domain.PlatformConfig, contractorID string, counters domain.ReliabilityCounters, cause string) (domain.ReliabilityScore, error) {
	metrics := domain.ComputeReliabilityMetrics(counters)
	value := domain.ComputeReliabilityScore(metrics, cfg.ReliabilityWeights)
	eligibility := domain.ComputeReliabilityEligibility(value, cfg.ReliabilityThresholds)

	now := s.nowFn()
	score := domain.ReliabilityScore{
		ContractorID: contractorID,
		Counters:     counters,
		Metrics:      metrics,
		Score:        value,
		Eligibility:  eligibility,
		UpdatedAt:    now,
	}
	if err := s.reliability.Upsert(ctx, score); err != nil {
		return domain.ReliabilityScore{}, fmt.Errorf("upsert reliability score: %w", err)
	}
	if err := s.reliability.AppendHistory(ctx, domain.ReliabilityHistoryEntry{
		EntryID:      uuid.NewString(),
		ContractorID: contractorID,
		Score:        value,
		Metrics:      metrics,
		Cause:        cause,
		RecordedAt:   now,
	}); err != nil {
		return domain.ReliabilityScore{}, fmt.Errorf("append reliability history: %w", err)
	}

	s.enqueueEvent(ctx, actor, domain.EventReliabilityUpdated, contractorID, contracts.ReliabilityUpdatedPayload{
		ContractorID: contractorID,
		Score:        value,
		AutoRelease:  eligibility.AutoRelease,
		LargeJobs:    eligibility.LargeJobs,
		HighTicket:   eligibility.HighTicket,
		UpdatedAt:    now.Format(time.RFC3339),
	})
	return score, nil
}

func freshScore(contractorID string, cfg domain.PlatformConfig, at time.Time) domain.ReliabilityScore {
	metrics := domain.ComputeReliabilityMetrics(domain.ReliabilityCounters{})
	value := domain.ComputeReliabilityScore(metrics, cfg.ReliabilityWeights)
	return domain.ReliabilityScore{
		ContractorID: contractorID,
		Metrics:      metrics,
		Score:        value,
		Eligibility:  domain.ComputeReliabilityEligibility(value, cfg.ReliabilityThresholds),
		UpdatedAt:    at,
	}
}
