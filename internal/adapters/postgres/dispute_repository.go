package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/trustvibe/escrow-service/internal/domain"
)

type caseRepository struct {
	db *gorm.DB
}

func (r *caseRepository) Create(ctx context.Context, c domain.Case) error {
	rec := toCaseModel(c)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *caseRepository) GetByID(ctx context.Context, caseID string) (domain.Case, error) {
	var rec caseModel
	if err := r.db.WithContext(ctx).Where("case_id = ?", caseID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Case{}, domain.ErrNotFound
		}
		return domain.Case{}, err
	}
	return toDomainCase(rec), nil
}

func (r *caseRepository) GetOpenByProject(ctx context.Context, projectID string) (domain.Case, error) {
	var rec caseModel
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Where("status <> ?", domain.CaseStatusClosed).
		Order("created_at DESC").
		Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Case{}, domain.ErrNotFound
		}
		return domain.Case{}, err
	}
	return toDomainCase(rec), nil
}

func (r *caseRepository) Update(ctx context.Context, c domain.Case) error {
	rec := toCaseModel(c)
	res := r.db.WithContext(ctx).
		Model(&caseModel{}).
		Where("case_id = ?", c.CaseID).
		Updates(map[string]any{
			"status":              rec.Status,
			"resolution_doc_ref":  rec.ResolutionDocRef,
			"resolution_doc_kind": rec.ResolutionDocKind,
			"submitted_by":        rec.SubmittedBy,
			"closed_at":           rec.ClosedAt,
			"updated_at":          rec.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *caseRepository) ListByStatus(ctx context.Context, status string, limit int) ([]domain.Case, error) {
	var rows []caseModel
	query := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Case, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainCase(row))
	}
	return out, nil
}

type proposalRepository struct {
	db *gorm.DB
}

func (r *proposalRepository) Create(ctx context.Context, proposal domain.JointReleaseProposal) error {
	rec := toProposalModel(proposal)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *proposalRepository) GetByID(ctx context.Context, proposalID string) (domain.JointReleaseProposal, error) {
	var rec proposalModel
	if err := r.db.WithContext(ctx).Where("proposal_id = ?", proposalID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.JointReleaseProposal{}, domain.ErrNotFound
		}
		return domain.JointReleaseProposal{}, err
	}
	return toDomainProposal(rec), nil
}

func (r *proposalRepository) ListByCase(ctx context.Context, caseID string) ([]domain.JointReleaseProposal, error) {
	var rows []proposalModel
	if err := r.db.WithContext(ctx).
		Where("case_id = ?", caseID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.JointReleaseProposal, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainProposal(row))
	}
	return out, nil
}

func (r *proposalRepository) Update(ctx context.Context, proposal domain.JointReleaseProposal) error {
	rec := toProposalModel(proposal)
	res := r.db.WithContext(ctx).
		Model(&proposalModel{}).
		Where("proposal_id = ?", proposal.ProposalID).
		Updates(map[string]any{
			"customer_signed_at":   rec.CustomerSignedAt,
			"contractor_signed_at": rec.ContractorSignedAt,
			"executed_at":          rec.ExecutedAt,
			"updated_at":           rec.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type depositRepository struct {
	db *gorm.DB
}

func (r *depositRepository) Create(ctx context.Context, deposit domain.EstimateDeposit) error {
	rec := toDepositModel(deposit)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *depositRepository) GetByID(ctx context.Context, depositID string) (domain.EstimateDeposit, error) {
	var rec depositModel
	if err := r.db.WithContext(ctx).Where("deposit_id = ?", depositID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.EstimateDeposit{}, domain.ErrNotFound
		}
		return domain.EstimateDeposit{}, err
	}
	return toDomainDeposit(rec), nil
}

func (r *depositRepository) ListByProject(ctx context.Context, projectID string) ([]domain.EstimateDeposit, error) {
	var rows []depositModel
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.EstimateDeposit, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainDeposit(row))
	}
	return out, nil
}

func (r *depositRepository) Update(ctx context.Context, deposit domain.EstimateDeposit) error {
	rec := toDepositModel(deposit)
	res := r.db.WithContext(ctx).
		Model(&depositModel{}).
		Where("deposit_id = ?", deposit.DepositID).
		Updates(map[string]any{
			"provider_ref": rec.ProviderRef,
			"status":       rec.Status,
			"credited_at":  rec.CreditedAt,
			"refunded_at":  rec.RefundedAt,
			"updated_at":   rec.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func toCaseModel(c domain.Case) caseModel {
	return caseModel{
		CaseID:            c.CaseID,
		ProjectID:         c.ProjectID,
		OpenedBy:          c.OpenedBy,
		OpenedByRole:      c.OpenedByRole,
		Reason:            c.Reason,
		Status:            c.Status,
		IssueRaisedAt:     c.IssueRaisedAt,
		ResolutionDocRef:  c.ResolutionDocRef,
		ResolutionDocKind: c.ResolutionDocKind,
		SubmittedBy:       c.SubmittedBy,
		ClosedAt:          c.ClosedAt,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func toDomainCase(row caseModel) domain.Case {
	return domain.Case{
		CaseID:            row.CaseID,
		ProjectID:         row.ProjectID,
		OpenedBy:          row.OpenedBy,
		OpenedByRole:      row.OpenedByRole,
		Reason:            row.Reason,
		Status:            row.Status,
		IssueRaisedAt:     row.IssueRaisedAt,
		ResolutionDocRef:  row.ResolutionDocRef,
		ResolutionDocKind: row.ResolutionDocKind,
		SubmittedBy:       row.SubmittedBy,
		ClosedAt:          row.ClosedAt,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

func toProposalModel(p domain.JointReleaseProposal) proposalModel {
	return proposalModel{
		ProposalID:         p.ProposalID,
		CaseID:             p.CaseID,
		ProjectID:          p.ProjectID,
		ProposedBy:         p.ProposedBy,
		ReleaseCents:       p.ReleaseCents,
		RefundCents:        p.RefundCents,
		CustomerSignedAt:   p.CustomerSignedAt,
		ContractorSignedAt: p.ContractorSignedAt,
		ExecutedAt:         p.ExecutedAt,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func toDomainProposal(row proposalModel) domain.JointReleaseProposal {
	return domain.JointReleaseProposal{
		ProposalID:         row.ProposalID,
		CaseID:             row.CaseID,
		ProjectID:          row.ProjectID,
		ProposedBy:         row.ProposedBy,
		ReleaseCents:       row.ReleaseCents,
		RefundCents:        row.RefundCents,
		CustomerSignedAt:   row.CustomerSignedAt,
		ContractorSignedAt: row.ContractorSignedAt,
		ExecutedAt:         row.ExecutedAt,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
}

func toDepositModel(d domain.EstimateDeposit) depositModel {
	return depositModel{
		DepositID:     d.DepositID,
		ProjectID:     d.ProjectID,
		CustomerID:    d.CustomerID,
		ContractorID:  d.ContractorID,
		AppointmentAt: d.AppointmentAt,
		AmountCents:   d.AmountCents,
		ProviderRef:   d.ProviderRef,
		Status:        d.Status,
		CreditedAt:    d.CreditedAt,
		RefundedAt:    d.RefundedAt,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func toDomainDeposit(row depositModel) domain.EstimateDeposit {
	return domain.EstimateDeposit{
		DepositID:     row.DepositID,
		ProjectID:     row.ProjectID,
		CustomerID:    row.CustomerID,
		ContractorID:  row.ContractorID,
		AppointmentAt: row.AppointmentAt,
		AmountCents:   row.AmountCents,
		ProviderRef:   row.ProviderRef,
		Status:        row.Status,
		CreditedAt:    row.CreditedAt,
		RefundedAt:    row.RefundedAt,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}
