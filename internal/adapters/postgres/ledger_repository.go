package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trustvibe/escrow-service/internal/domain"
)

type ledgerRepository struct {
	db *gorm.DB
}

// appendAttempts bounds the sequence race retries before surfacing CONFLICT.
const appendAttempts = 3

// Append assigns the next per-stream sequence and inserts the row. Sequencing
// cannot take a row lock (FOR UPDATE is illegal on an aggregate), so the
// (project_id, seq) primary key arbitrates concurrent writers: the loser gets
// a duplicate-key error and retries with a fresh tail. Rows are insert-only;
// there is no update path.
func (r *ledgerRepository) Append(ctx context.Context, event domain.LedgerEvent) (domain.LedgerEvent, error) {
	for attempt := 0; attempt < appendAttempts; attempt++ {
		var maxSeq int64
		if err := r.db.WithContext(ctx).Model(&ledgerEventModel{}).
			Where("project_id = ?", event.ProjectID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&maxSeq).Error; err != nil {
			return domain.LedgerEvent{}, fmt.Errorf("ledger tail: %w", err)
		}
		event.Seq = maxSeq + 1
		rec := ledgerEventModel{
			ProjectID:   event.ProjectID,
			Seq:         event.Seq,
			EventType:   event.EventType,
			AmountCents: event.AmountCents,
			FeeCents:    event.FeeCents,
			ActorID:     event.ActorID,
			ActorRole:   event.ActorRole,
			ProviderRef: event.ProviderRef,
			Details:     jsonOrEmpty(event.Details),
			CreatedAt:   event.CreatedAt,
		}
		err := r.db.WithContext(ctx).Create(&rec).Error
		if err == nil {
			return event, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.LedgerEvent{}, fmt.Errorf("append ledger event: %w", err)
		}
	}
	return domain.LedgerEvent{}, fmt.Errorf("%w: ledger sequence contention on stream %s",
		domain.ErrConflict, event.ProjectID)
}

func (r *ledgerRepository) ListByProject(ctx context.Context, projectID string) ([]domain.LedgerEvent, error) {
	var rows []ledgerEventModel
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("seq ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.LedgerEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.LedgerEvent{
			ProjectID:   row.ProjectID,
			Seq:         row.Seq,
			EventType:   row.EventType,
			AmountCents: row.AmountCents,
			FeeCents:    row.FeeCents,
			ActorID:     row.ActorID,
			ActorRole:   row.ActorRole,
			ProviderRef: row.ProviderRef,
			Details:     row.Details,
			CreatedAt:   row.CreatedAt,
		})
	}
	return out, nil
}

type auditRepository struct {
	db *gorm.DB
}

func (r *auditRepository) Append(ctx context.Context, action domain.AuditAction) error {
	if action.AuditID == "" {
		action.AuditID = uuid.NewString()
	}
	rec := auditActionModel{
		AuditID:    action.AuditID,
		ActorID:    action.ActorID,
		ActorRole:  action.ActorRole,
		Action:     action.Action,
		TargetType: action.TargetType,
		TargetID:   action.TargetID,
		Details:    jsonOrEmpty(action.Details),
		CreatedAt:  action.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *auditRepository) ListByTarget(ctx context.Context, targetType, targetID string, limit int) ([]domain.AuditAction, error) {
	var rows []auditActionModel
	query := r.db.WithContext(ctx).
		Where("target_type = ?", targetType).
		Where("target_id = ?", targetID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AuditAction, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.AuditAction{
			AuditID:    row.AuditID,
			ActorID:    row.ActorID,
			ActorRole:  row.ActorRole,
			Action:     row.Action,
			TargetType: row.TargetType,
			TargetID:   row.TargetID,
			Details:    row.Details,
			CreatedAt:  row.CreatedAt,
		})
	}
	return out, nil
}

// jsonOrEmpty keeps jsonb columns valid when the caller supplied no details.
func jsonOrEmpty(v string) string {
	if v == "" {
		return "{}"
	}
	return v
}
