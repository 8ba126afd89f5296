package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trustvibe/escrow-service/internal/domain"
)

type reliabilityRepository struct {
	db *gorm.DB
}

func (r *reliabilityRepository) Get(ctx context.Context, contractorID string) (domain.ReliabilityScore, error) {
	var rec reliabilityScoreModel
	if err := r.db.WithContext(ctx).Where("contractor_id = ?", contractorID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ReliabilityScore{}, domain.ErrNotFound
		}
		return domain.ReliabilityScore{}, err
	}
	return toDomainReliability(rec), nil
}

func (r *reliabilityRepository) Upsert(ctx context.Context, score domain.ReliabilityScore) error {
	rec := reliabilityScoreModel{
		ContractorID:          score.ContractorID,
		AppointmentsTotal:     score.Counters.AppointmentsTotal,
		AppointmentsAttended:  score.Counters.AppointmentsAttended,
		DisputesTotal:         score.Counters.DisputesTotal,
		CompletionsTotal:      score.Counters.CompletionsTotal,
		CompletionsOnTime:     score.Counters.CompletionsOnTime,
		ProofsTotal:           score.Counters.ProofsTotal,
		ProofsComplete:        score.Counters.ProofsComplete,
		ResponseSamples:       score.Counters.ResponseSamples,
		MedianResponseMinutes: score.Counters.MedianResponseMinutes,
		ShowUpRate:            score.Metrics.ShowUpRate,
		ResponseTimeScore:     score.Metrics.ResponseTimeScore,
		DisputeScore:          score.Metrics.DisputeScore,
		ProofCompleteness:     score.Metrics.ProofCompleteness,
		OnTimeRate:            score.Metrics.OnTimeRate,
		Score:                 score.Score,
		AutoReleaseEligible:   score.Eligibility.AutoRelease,
		LargeJobsEligible:     score.Eligibility.LargeJobs,
		HighTicketEligible:    score.Eligibility.HighTicket,
		UpdatedAt:             score.UpdatedAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "contractor_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"appointments_total":      rec.AppointmentsTotal,
			"appointments_attended":   rec.AppointmentsAttended,
			"disputes_total":          rec.DisputesTotal,
			"completions_total":       rec.CompletionsTotal,
			"completions_on_time":     rec.CompletionsOnTime,
			"proofs_total":            rec.ProofsTotal,
			"proofs_complete":         rec.ProofsComplete,
			"response_samples":        rec.ResponseSamples,
			"median_response_minutes": rec.MedianResponseMinutes,
			"show_up_rate":            rec.ShowUpRate,
			"response_time_score":     rec.ResponseTimeScore,
			"dispute_score":           rec.DisputeScore,
			"proof_completeness":      rec.ProofCompleteness,
			"on_time_rate":            rec.OnTimeRate,
			"score":                   rec.Score,
			"auto_release_eligible":   rec.AutoReleaseEligible,
			"large_jobs_eligible":     rec.LargeJobsEligible,
			"high_ticket_eligible":    rec.HighTicketEligible,
			"updated_at":              rec.UpdatedAt,
		}),
	}).Create(&rec).Error
}

func (r *reliabilityRepository) AppendHistory(ctx context.Context, entry domain.ReliabilityHistoryEntry) error {
	rec := reliabilityHistoryModel{
		EntryID:           entry.EntryID,
		ContractorID:      entry.ContractorID,
		Score:             entry.Score,
		ShowUpRate:        entry.Metrics.ShowUpRate,
		ResponseTimeScore: entry.Metrics.ResponseTimeScore,
		DisputeScore:      entry.Metrics.DisputeScore,
		ProofCompleteness: entry.Metrics.ProofCompleteness,
		OnTimeRate:        entry.Metrics.OnTimeRate,
		Cause:             entry.Cause,
		RecordedAt:        entry.RecordedAt,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *reliabilityRepository) ListContractorIDs(ctx context.Context, limit, offset int) ([]string, error) {
	var ids []string
	query := r.db.WithContext(ctx).
		Model(&reliabilityScoreModel{}).
		Order("contractor_id ASC").
		Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("contractor_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func toDomainReliability(row reliabilityScoreModel) domain.ReliabilityScore {
	return domain.ReliabilityScore{
		ContractorID: row.ContractorID,
		Counters: domain.ReliabilityCounters{
			AppointmentsTotal:     row.AppointmentsTotal,
			AppointmentsAttended:  row.AppointmentsAttended,
			DisputesTotal:         row.DisputesTotal,
			CompletionsTotal:      row.CompletionsTotal,
			CompletionsOnTime:     row.CompletionsOnTime,
			ProofsTotal:           row.ProofsTotal,
			ProofsComplete:        row.ProofsComplete,
			ResponseSamples:       row.ResponseSamples,
			MedianResponseMinutes: row.MedianResponseMinutes,
		},
		Metrics: domain.ReliabilityMetrics{
			ShowUpRate:        row.ShowUpRate,
			ResponseTimeScore: row.ResponseTimeScore,
			DisputeScore:      row.DisputeScore,
			ProofCompleteness: row.ProofCompleteness,
			OnTimeRate:        row.OnTimeRate,
		},
		Score: row.Score,
		Eligibility: domain.ReliabilityEligibility{
			AutoRelease: row.AutoReleaseEligible,
			LargeJobs:   row.LargeJobsEligible,
			HighTicket:  row.HighTicketEligible,
		},
		UpdatedAt: row.UpdatedAt,
	}
}

type subscriptionRepository struct {
	db *gorm.DB
}

func (r *subscriptionRepository) Create(ctx context.Context, sub domain.Subscription) error {
	rec := subscriptionModel{
		SubscriptionID: sub.SubscriptionID,
		ContractorID:   sub.ContractorID,
		PlanID:         sub.PlanID,
		ProviderRef:    sub.ProviderRef,
		Status:         sub.Status,
		CreatedAt:      sub.CreatedAt,
		UpdatedAt:      sub.UpdatedAt,
		CancelledAt:    sub.CancelledAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *subscriptionRepository) GetActiveByContractor(ctx context.Context, contractorID string) (domain.Subscription, error) {
	var rec subscriptionModel
	if err := r.db.WithContext(ctx).
		Where("contractor_id = ?", contractorID).
		Where("status = ?", domain.SubscriptionStatusActive).
		Order("created_at DESC").
		Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Subscription{}, domain.ErrNotFound
		}
		return domain.Subscription{}, err
	}
	return domain.Subscription{
		SubscriptionID: rec.SubscriptionID,
		ContractorID:   rec.ContractorID,
		PlanID:         rec.PlanID,
		ProviderRef:    rec.ProviderRef,
		Status:         rec.Status,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
		CancelledAt:    rec.CancelledAt,
	}, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, sub domain.Subscription) error {
	res := r.db.WithContext(ctx).
		Model(&subscriptionModel{}).
		Where("subscription_id = ?", sub.SubscriptionID).
		Updates(map[string]any{
			"plan_id":      sub.PlanID,
			"provider_ref": sub.ProviderRef,
			"status":       sub.Status,
			"cancelled_at": sub.CancelledAt,
			"updated_at":   sub.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
