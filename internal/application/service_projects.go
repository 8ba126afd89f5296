package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/trustvibe/escrow-service/internal/domain"
)

// CreateProject opens a new project in DRAFT for the calling customer.
func (s *Service) CreateProject(ctx context.Context, actor Actor, in CreateProjectInput) (domain.Project, error) {
	if err := s.authorize(actor, "create_project"); err != nil {
		return domain.Project{}, err
	}
	if strings.TrimSpace(in.Category) == "" || strings.TrimSpace(in.Scope) == "" {
		return domain.Project{}, fmt.Errorf("%w: category and scope are required", domain.ErrInvalidInput)
	}

	now := s.nowFn()
	project := domain.Project{
		ProjectID:    uuid.NewString(),
		CustomerID:   actor.SubjectID,
		Category:     strings.TrimSpace(in.Category),
		Scope:        strings.TrimSpace(in.Scope),
		Municipality: strings.TrimSpace(in.Municipality),
		State:        domain.StateDraft,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return domain.Project{}, fmt.Errorf("create project: %w", err)
	}
	return project, nil
}

// PublishProject opens a draft project for contractor quotes.
func (s *Service) PublishProject(ctx context.Context, actor Actor, in PublishProjectInput) (domain.Project, error) {
	if err := s.authorize(actor, "publish_project"); err != nil {
		return domain.Project{}, err
	}
	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return domain.Project{}, err
	}
	if project.CustomerID != actor.SubjectID {
		return domain.Project{}, fmt.Errorf("%w: only the project owner may publish", domain.ErrPermissionDenied)
	}
	if err := s.checkState("publish_project", project); err != nil {
		return domain.Project{}, err
	}
	return s.transitionProject(ctx, project, domain.StateOpenForQuotes)
}

// CancelProject cancels a project that has not yet been funded. Funded
// projects must go through the dispute path; the transition table enforces
// that by having no FUNDED_HELD -> CANCELLED edge.
func (s *Service) CancelProject(ctx context.Context, actor Actor, in CancelProjectInput) (domain.Project, error) {
	if err := s.authorize(actor, "cancel_project"); err != nil {
		return domain.Project{}, err
	}
	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return domain.Project{}, err
	}
	role := domain.NormalizeRole(actor.Role)
	if role != domain.RoleAdmin && project.CustomerID != actor.SubjectID {
		return domain.Project{}, fmt.Errorf("%w: only the project owner or an admin may cancel", domain.ErrPermissionDenied)
	}

	updated, err := s.transitionProject(ctx, project, domain.StateCancelled)
	if err != nil {
		return domain.Project{}, err
	}
	s.recordAudit(ctx, actor, "cancel_project", "project", project.ProjectID, map[string]any{"reason": in.Reason})
	return updated, nil
}

// SubmitQuote records a contractor bid against an open project.
func (s *Service) SubmitQuote(ctx context.Context, actor Actor, in SubmitQuoteInput) (domain.Quote, error) {
	if err := s.authorize(actor, "submit_quote"); err != nil {
		return domain.Quote{}, err
	}
	if in.PriceCents <= 0 {
		return domain.Quote{}, fmt.Errorf("%w: quote price must be positive", domain.ErrInvalidInput)
	}
	if in.TimelineDays <= 0 {
		return domain.Quote{}, fmt.Errorf("%w: quote timeline must be positive", domain.ErrInvalidInput)
	}

	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return domain.Quote{}, err
	}
	if err := s.checkState("submit_quote", project); err != nil {
		return domain.Quote{}, err
	}
	if project.CustomerID == actor.SubjectID {
		return domain.Quote{}, fmt.Errorf("%w: cannot quote your own project", domain.ErrFailedPrecondition)
	}

	now := s.nowFn()
	quote := domain.Quote{
		QuoteID:      uuid.NewString(),
		ProjectID:    project.ProjectID,
		ContractorID: actor.SubjectID,
		PriceCents:   in.PriceCents,
		TimelineDays: in.TimelineDays,
		ScopeNotes:   in.ScopeNotes,
		Status:       domain.QuoteStatusSubmitted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.quotes.Create(ctx, quote); err != nil {
		return domain.Quote{}, fmt.Errorf("create quote: %w", err)
	}
	return quote, nil
}

// SelectContractor picks the winning quote, declines all siblings, snapshots
// the agreement terms from the quote, and moves the project to
// CONTRACTOR_SELECTED.
func (s *Service) SelectContractor(ctx context.Context, actor Actor, in SelectContractorInput) (SelectContractorResult, error) {
	if err := s.authorize(actor, "select_contractor"); err != nil {
		return SelectContractorResult{}, err
	}
	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return SelectContractorResult{}, err
	}
	if project.CustomerID != actor.SubjectID {
		return SelectContractorResult{}, fmt.Errorf("%w: only the project owner may select a contractor", domain.ErrPermissionDenied)
	}
	if err := s.checkState("select_contractor", project); err != nil {
		return SelectContractorResult{}, err
	}

	quote, err := s.quotes.GetByID(ctx, in.QuoteID)
	if err != nil {
		return SelectContractorResult{}, err
	}
	if quote.ProjectID != project.ProjectID {
		return SelectContractorResult{}, fmt.Errorf("%w: quote does not belong to project", domain.ErrInvalidInput)
	}
	if quote.Status != domain.QuoteStatusSubmitted {
		return SelectContractorResult{}, fmt.Errorf("%w: quote is %s", domain.ErrFailedPrecondition, quote.Status)
	}

	now := s.nowFn()
	if err := s.quotes.MarkSelected(ctx, project.ProjectID, quote.QuoteID, now); err != nil {
		return SelectContractorResult{}, fmt.Errorf("select quote: %w", err)
	}

	agreement := domain.Agreement{
		AgreementID:  uuid.NewString(),
		ProjectID:    project.ProjectID,
		QuoteID:      quote.QuoteID,
		PriceCents:   quote.PriceCents,
		TimelineDays: quote.TimelineDays,
		ScopeNotes:   quote.ScopeNotes,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.agreements.Create(ctx, agreement); err != nil {
		return SelectContractorResult{}, fmt.Errorf("create agreement: %w", err)
	}

	project.ContractorID = quote.ContractorID
	project.SelectedQuoteID = quote.QuoteID
	updated, err := s.transitionProject(ctx, project, domain.StateContractorSelected)
	if err != nil {
		return SelectContractorResult{}, err
	}

	quote.Status = domain.QuoteStatusSelected
	quote.UpdatedAt = now
	return SelectContractorResult{Project: updated, Quote: quote, Agreement: agreement}, nil
}

// AcceptAgreement records one party's acceptance. When both parties have
// accepted, the project advances to AGREEMENT_ACCEPTED and becomes fundable.
func (s *Service) AcceptAgreement(ctx context.Context, actor Actor, in AcceptAgreementInput) (domain.Agreement, error) {
	if err := s.authorize(actor, "accept_agreement"); err != nil {
		return domain.Agreement{}, err
	}
	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return domain.Agreement{}, err
	}
	if project.State != domain.StateContractorSelected {
		return domain.Agreement{}, fmt.Errorf("%w: project %s is %s, acceptance requires %s",
			domain.ErrFailedPrecondition, project.ProjectID, project.State, domain.StateContractorSelected)
	}
	if !project.IsParty(actor.SubjectID) {
		return domain.Agreement{}, fmt.Errorf("%w: only project parties may accept", domain.ErrPermissionDenied)
	}

	agreement, err := s.agreements.GetByProject(ctx, project.ProjectID)
	if err != nil {
		return domain.Agreement{}, err
	}

	now := s.nowFn()
	switch actor.SubjectID {
	case project.CustomerID:
		if agreement.CustomerAcceptedAt != nil {
			return agreement, nil
		}
		agreement.CustomerAcceptedAt = &now
	case project.ContractorID:
		if agreement.ContractorAcceptedAt != nil {
			return agreement, nil
		}
		agreement.ContractorAcceptedAt = &now
	}
	agreement.UpdatedAt = now
	if err := s.agreements.Update(ctx, agreement); err != nil {
		return domain.Agreement{}, fmt.Errorf("update agreement: %w", err)
	}

	if agreement.FullyAccepted() {
		if _, err := s.transitionProject(ctx, project, domain.StateAgreementAccepted); err != nil {
			return domain.Agreement{}, err
		}
	}
	return agreement, nil
}

// AppendChangeOrder adds a price/timeline delta to the agreement before
// funding. Change orders bump the agreement version; acceptances reset so both
// parties re-confirm the new terms.
func (s *Service) AppendChangeOrder(ctx context.Context, actor Actor, in AppendChangeOrderInput) (domain.Agreement, error) {
	if err := s.authorize(actor, "append_change_order"); err != nil {
		return domain.Agreement{}, err
	}
	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return domain.Agreement{}, err
	}
	if err := s.checkState("append_change_order", project); err != nil {
		return domain.Agreement{}, err
	}
	if !project.IsParty(actor.SubjectID) {
		return domain.Agreement{}, fmt.Errorf("%w: only project parties may amend the agreement", domain.ErrPermissionDenied)
	}

	agreement, err := s.agreements.GetByProject(ctx, project.ProjectID)
	if err != nil {
		return domain.Agreement{}, err
	}
	if agreement.PriceCents+in.DeltaPriceCents <= 0 {
		return domain.Agreement{}, fmt.Errorf("%w: change order would make agreement price non-positive", domain.ErrInvalidInput)
	}

	now := s.nowFn()
	order := domain.ChangeOrder{
		ChangeOrderID:     uuid.NewString(),
		AgreementID:       agreement.AgreementID,
		ProjectID:         project.ProjectID,
		DeltaPriceCents:   in.DeltaPriceCents,
		DeltaTimelineDays: in.DeltaTimelineDays,
		Note:              in.Note,
		CreatedBy:         actor.SubjectID,
		CreatedAt:         now,
	}
	if err := s.agreements.AppendChangeOrder(ctx, order); err != nil {
		return domain.Agreement{}, fmt.Errorf("append change order: %w", err)
	}

	agreement.PriceCents += in.DeltaPriceCents
	agreement.TimelineDays += in.DeltaTimelineDays
	agreement.Version++
	agreement.CustomerAcceptedAt = nil
	agreement.ContractorAcceptedAt = nil
	agreement.UpdatedAt = now
	if err := s.agreements.Update(ctx, agreement); err != nil {
		return domain.Agreement{}, fmt.Errorf("update agreement: %w", err)
	}

	// A change order on an already-accepted agreement drops the project back
	// to CONTRACTOR_SELECTED until both parties re-accept.
	if project.State == domain.StateAgreementAccepted {
		project.State = domain.StateContractorSelected
		project.UpdatedAt = now
		if _, err := s.projects.Update(ctx, project); err != nil {
			return domain.Agreement{}, fmt.Errorf("update project: %w", err)
		}
	}
	return agreement, nil
}

// GetProject returns the project to its parties or an admin.
func (s *Service) GetProject(ctx context.Context, actor Actor, projectID string) (domain.Project, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if err := s.requirePartyOrAdmin(actor, project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// ListQuotes lists a project's quotes for its owner or an admin.
func (s *Service) ListQuotes(ctx context.Context, actor Actor, projectID string) ([]domain.Quote, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	role := domain.NormalizeRole(actor.Role)
	if role != domain.RoleAdmin && actor.SubjectID != project.CustomerID {
		return nil, fmt.Errorf("%w: only the project owner may list quotes", domain.ErrPermissionDenied)
	}
	return s.quotes.ListByProject(ctx, projectID)
}

// GetAgreement returns the agreement plus its change orders.
func (s *Service) GetAgreement(ctx context.Context, actor Actor, projectID string) (domain.Agreement, []domain.ChangeOrder, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return domain.Agreement{}, nil, err
	}
	if err := s.requirePartyOrAdmin(actor, project); err != nil {
		return domain.Agreement{}, nil, err
	}
	agreement, err := s.agreements.GetByProject(ctx, projectID)
	if err != nil {
		return domain.Agreement{}, nil, err
	}
	orders, err := s.agreements.ListChangeOrders(ctx, agreement.AgreementID)
	if err != nil {
		return domain.Agreement{}, nil, err
	}
	return agreement, orders, nil
}

func (s *Service) requirePartyOrAdmin(actor Actor, project domain.Project) error {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.ErrUnauthenticated
	}
	role := domain.NormalizeRole(actor.Role)
	if role == domain.RoleAdmin || role == domain.RoleSystem || project.IsParty(actor.SubjectID) {
		return nil
	}
	return fmt.Errorf("%w: not a party to project %s", domain.ErrPermissionDenied, project.ProjectID)
}

// transitionProject asserts the state edge and persists it under the
// optimistic version check.
func (s *Service) transitionProject(ctx context.Context, project domain.Project, to domain.ProjectState) (domain.Project, error) {
	if err := domain.AssertTransition(project.State, to); err != nil {
		return domain.Project{}, err
	}
	now := s.nowFn()
	project.State = to
	project.UpdatedAt = now
	if to == domain.StateClosed || to == domain.StateCancelled {
		closedAt := now
		project.ClosedAt = &closedAt
	}
	updated, err := s.projects.Update(ctx, project)
	if err != nil {
		return domain.Project{}, fmt.Errorf("update project: %w", err)
	}
	return updated, nil
}
