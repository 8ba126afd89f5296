package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trustvibe/escrow-service/internal/application"
)

func (h *Handler) fundHold(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	project, err := h.service.FundHold(r.Context(), actor, application.FundHoldInput{
		ProjectID: chi.URLParam(r, "project_id"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, project)
}

func (h *Handler) startWork(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	project, err := h.service.StartWork(r.Context(), actor, chi.URLParam(r, "project_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, project)
}

func (h *Handler) requestCompletion(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	project, err := h.service.RequestCompletion(r.Context(), actor, application.RequestCompletionInput{
		ProjectID: chi.URLParam(r, "project_id"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, project)
}

func (h *Handler) approveRelease(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	res, err := h.service.ApproveRelease(r.Context(), actor, application.ApproveReleaseInput{
		ProjectID: chi.URLParam(r, "project_id"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) getLedger(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	events, err := h.service.GetLedger(r.Context(), actor, chi.URLParam(r, "project_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"events": events})
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	balance, err := h.service.GetBalance(r.Context(), actor, chi.URLParam(r, "project_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, balance)
}

func (h *Handler) createMilestones(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req struct {
		Milestones []application.MilestoneInput `json:"milestones"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	milestones, err := h.service.CreateMilestones(r.Context(), actor, application.CreateMilestonesInput{
		ProjectID:  chi.URLParam(r, "project_id"),
		Milestones: req.Milestones,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]any{"milestones": milestones})
}

func (h *Handler) approveMilestone(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	res, err := h.service.ApproveMilestone(r.Context(), actor, application.ApproveMilestoneInput{
		ProjectID:   chi.URLParam(r, "project_id"),
		MilestoneID: chi.URLParam(r, "milestone_id"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}
