package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/trustvibe/escrow-service/internal/domain"
)

type projectRepository struct {
	db *gorm.DB
}

func (r *projectRepository) Create(ctx context.Context, project domain.Project) error {
	rec := toProjectModel(project)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *projectRepository) GetByID(ctx context.Context, projectID string) (domain.Project, error) {
	var rec projectModel
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Project{}, domain.ErrNotFound
		}
		return domain.Project{}, err
	}
	return toDomainProject(rec), nil
}

// Update compare-and-swaps on version. A zero-row update against an existing
// project means a concurrent writer won; the caller must re-read and retry.
func (r *projectRepository) Update(ctx context.Context, project domain.Project) (domain.Project, error) {
	next := toProjectModel(project)
	next.Version = project.Version + 1
	res := r.db.WithContext(ctx).
		Model(&projectModel{}).
		Where("project_id = ?", project.ProjectID).
		Where("version = ?", project.Version).
		Updates(map[string]any{
			"contractor_id":           next.ContractorID,
			"state":                   next.State,
			"selected_quote_id":       next.SelectedQuoteID,
			"held_amount_cents":       next.HeldAmountCents,
			"provider_hold_ref":       next.ProviderHoldRef,
			"completion_requested_at": next.CompletionRequestedAt,
			"issue_raised_at":         next.IssueRaisedAt,
			"closed_at":               next.ClosedAt,
			"version":                 next.Version,
			"updated_at":              next.UpdatedAt,
		})
	if res.Error != nil {
		return domain.Project{}, res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := r.db.WithContext(ctx).Model(&projectModel{}).
			Where("project_id = ?", project.ProjectID).
			Count(&exists).Error; err != nil {
			return domain.Project{}, err
		}
		if exists == 0 {
			return domain.Project{}, domain.ErrNotFound
		}
		return domain.Project{}, domain.ErrConflict
	}
	project.Version = next.Version
	return project, nil
}

func (r *projectRepository) ListByState(ctx context.Context, state domain.ProjectState, limit int) ([]domain.Project, error) {
	var rows []projectModel
	query := r.db.WithContext(ctx).
		Where("state = ?", string(state)).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Project, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainProject(row))
	}
	return out, nil
}

type quoteRepository struct {
	db *gorm.DB
}

func (r *quoteRepository) Create(ctx context.Context, quote domain.Quote) error {
	rec := quoteModel{
		QuoteID:      quote.QuoteID,
		ProjectID:    quote.ProjectID,
		ContractorID: quote.ContractorID,
		PriceCents:   quote.PriceCents,
		TimelineDays: quote.TimelineDays,
		ScopeNotes:   quote.ScopeNotes,
		Status:       quote.Status,
		CreatedAt:    quote.CreatedAt,
		UpdatedAt:    quote.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *quoteRepository) GetByID(ctx context.Context, quoteID string) (domain.Quote, error) {
	var rec quoteModel
	if err := r.db.WithContext(ctx).Where("quote_id = ?", quoteID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Quote{}, domain.ErrNotFound
		}
		return domain.Quote{}, err
	}
	return toDomainQuote(rec), nil
}

func (r *quoteRepository) ListByProject(ctx context.Context, projectID string) ([]domain.Quote, error) {
	var rows []quoteModel
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Quote, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainQuote(row))
	}
	return out, nil
}

// MarkSelected flips the winner and demotes all submitted siblings in one
// transaction.
func (r *quoteRepository) MarkSelected(ctx context.Context, projectID, quoteID string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&quoteModel{}).
			Where("quote_id = ?", quoteID).
			Where("project_id = ?", projectID).
			Where("status = ?", domain.QuoteStatusSubmitted).
			Updates(map[string]any{
				"status":     domain.QuoteStatusSelected,
				"updated_at": at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return tx.Model(&quoteModel{}).
			Where("project_id = ?", projectID).
			Where("quote_id <> ?", quoteID).
			Where("status = ?", domain.QuoteStatusSubmitted).
			Updates(map[string]any{
				"status":     domain.QuoteStatusDeclined,
				"updated_at": at,
			}).Error
	})
}

type agreementRepository struct {
	db *gorm.DB
}

func (r *agreementRepository) Create(ctx context.Context, agreement domain.Agreement) error {
	rec := toAgreementModel(agreement)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *agreementRepository) GetByProject(ctx context.Context, projectID string) (domain.Agreement, error) {
	var rec agreementModel
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Agreement{}, domain.ErrNotFound
		}
		return domain.Agreement{}, err
	}
	return toDomainAgreement(rec), nil
}

func (r *agreementRepository) Update(ctx context.Context, agreement domain.Agreement) error {
	rec := toAgreementModel(agreement)
	res := r.db.WithContext(ctx).
		Model(&agreementModel{}).
		Where("agreement_id = ?", agreement.AgreementID).
		Updates(map[string]any{
			"price_cents":            rec.PriceCents,
			"timeline_days":          rec.TimelineDays,
			"scope_notes":            rec.ScopeNotes,
			"customer_accepted_at":   rec.CustomerAcceptedAt,
			"contractor_accepted_at": rec.ContractorAcceptedAt,
			"version":                rec.Version,
			"updated_at":             rec.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *agreementRepository) AppendChangeOrder(ctx context.Context, order domain.ChangeOrder) error {
	rec := changeOrderModel{
		ChangeOrderID:     order.ChangeOrderID,
		AgreementID:       order.AgreementID,
		ProjectID:         order.ProjectID,
		DeltaPriceCents:   order.DeltaPriceCents,
		DeltaTimelineDays: order.DeltaTimelineDays,
		Note:              order.Note,
		CreatedBy:         order.CreatedBy,
		CreatedAt:         order.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *agreementRepository) ListChangeOrders(ctx context.Context, agreementID string) ([]domain.ChangeOrder, error) {
	var rows []changeOrderModel
	if err := r.db.WithContext(ctx).
		Where("agreement_id = ?", agreementID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ChangeOrder, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.ChangeOrder{
			ChangeOrderID:     row.ChangeOrderID,
			AgreementID:       row.AgreementID,
			ProjectID:         row.ProjectID,
			DeltaPriceCents:   row.DeltaPriceCents,
			DeltaTimelineDays: row.DeltaTimelineDays,
			Note:              row.Note,
			CreatedBy:         row.CreatedBy,
			CreatedAt:         row.CreatedAt,
		})
	}
	return out, nil
}

type milestoneRepository struct {
	db *gorm.DB
}

func (r *milestoneRepository) CreateBatch(ctx context.Context, milestones []domain.Milestone) error {
	if len(milestones) == 0 {
		return nil
	}
	records := make([]milestoneModel, 0, len(milestones))
	for _, m := range milestones {
		records = append(records, toMilestoneModel(m))
	}
	return r.db.WithContext(ctx).Create(&records).Error
}

func (r *milestoneRepository) GetByID(ctx context.Context, milestoneID string) (domain.Milestone, error) {
	var rec milestoneModel
	if err := r.db.WithContext(ctx).Where("milestone_id = ?", milestoneID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Milestone{}, domain.ErrNotFound
		}
		return domain.Milestone{}, err
	}
	return toDomainMilestone(rec), nil
}

func (r *milestoneRepository) ListByProject(ctx context.Context, projectID string) ([]domain.Milestone, error) {
	var rows []milestoneModel
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Milestone, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainMilestone(row))
	}
	return out, nil
}

func (r *milestoneRepository) Update(ctx context.Context, milestone domain.Milestone) error {
	rec := toMilestoneModel(milestone)
	res := r.db.WithContext(ctx).
		Model(&milestoneModel{}).
		Where("milestone_id = ?", milestone.MilestoneID).
		Updates(map[string]any{
			"status":      rec.Status,
			"released_at": rec.ReleasedAt,
			"updated_at":  rec.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func toProjectModel(p domain.Project) projectModel {
	return projectModel{
		ProjectID:             p.ProjectID,
		CustomerID:            p.CustomerID,
		ContractorID:          nullableString(p.ContractorID),
		Category:              p.Category,
		Scope:                 p.Scope,
		Municipality:          p.Municipality,
		State:                 string(p.State),
		SelectedQuoteID:       nullableString(p.SelectedQuoteID),
		HeldAmountCents:       p.HeldAmountCents,
		ProviderHoldRef:       p.ProviderHoldRef,
		CompletionRequestedAt: p.CompletionRequestedAt,
		IssueRaisedAt:         p.IssueRaisedAt,
		ClosedAt:              p.ClosedAt,
		Version:               p.Version,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}

func toDomainProject(row projectModel) domain.Project {
	return domain.Project{
		ProjectID:             row.ProjectID,
		CustomerID:            row.CustomerID,
		ContractorID:          stringValue(row.ContractorID),
		Category:              row.Category,
		Scope:                 row.Scope,
		Municipality:          row.Municipality,
		State:                 domain.ProjectState(row.State),
		SelectedQuoteID:       stringValue(row.SelectedQuoteID),
		HeldAmountCents:       row.HeldAmountCents,
		ProviderHoldRef:       row.ProviderHoldRef,
		CompletionRequestedAt: row.CompletionRequestedAt,
		IssueRaisedAt:         row.IssueRaisedAt,
		ClosedAt:              row.ClosedAt,
		Version:               row.Version,
		CreatedAt:             row.CreatedAt,
		UpdatedAt:             row.UpdatedAt,
	}
}

func toDomainQuote(row quoteModel) domain.Quote {
	return domain.Quote{
		QuoteID:      row.QuoteID,
		ProjectID:    row.ProjectID,
		ContractorID: row.ContractorID,
		PriceCents:   row.PriceCents,
		TimelineDays: row.TimelineDays,
		ScopeNotes:   row.ScopeNotes,
		Status:       row.Status,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func toAgreementModel(a domain.Agreement) agreementModel {
	return agreementModel{
		AgreementID:          a.AgreementID,
		ProjectID:            a.ProjectID,
		QuoteID:              a.QuoteID,
		PriceCents:           a.PriceCents,
		TimelineDays:         a.TimelineDays,
		ScopeNotes:           a.ScopeNotes,
		CustomerAcceptedAt:   a.CustomerAcceptedAt,
		ContractorAcceptedAt: a.ContractorAcceptedAt,
		Version:              a.Version,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
	}
}

func toDomainAgreement(row agreementModel) domain.Agreement {
	return domain.Agreement{
		AgreementID:          row.AgreementID,
		ProjectID:            row.ProjectID,
		QuoteID:              row.QuoteID,
		PriceCents:           row.PriceCents,
		TimelineDays:         row.TimelineDays,
		ScopeNotes:           row.ScopeNotes,
		CustomerAcceptedAt:   row.CustomerAcceptedAt,
		ContractorAcceptedAt: row.ContractorAcceptedAt,
		Version:              row.Version,
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
	}
}

func toMilestoneModel(m domain.Milestone) milestoneModel {
	return milestoneModel{
		MilestoneID: m.MilestoneID,
		ProjectID:   m.ProjectID,
		Title:       m.Title,
		AmountCents: m.AmountCents,
		Status:      m.Status,
		ReleasedAt:  m.ReleasedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toDomainMilestone(row milestoneModel) domain.Milestone {
	return domain.Milestone{
		MilestoneID: row.MilestoneID,
		ProjectID:   row.ProjectID,
		Title:       row.Title,
		AmountCents: row.AmountCents,
		Status:      row.Status,
		ReleasedAt:  row.ReleasedAt,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}
