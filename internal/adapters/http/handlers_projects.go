package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trustvibe/escrow-service/internal/application"
)

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req application.CreateProjectInput
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	project, err := h.service.CreateProject(r.Context(), actor, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, project)
}

func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	project, err := h.service.GetProject(r.Context(), actor, chi.URLParam(r, "project_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, project)
}

func (h *Handler) publishProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	project, err := h.service.PublishProject(r.Context(), actor, application.PublishProjectInput{
		ProjectID: chi.URLParam(r, "project_id"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, project)
}

func (h *Handler) cancelProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	project, err := h.service.CancelProject(r.Context(), actor, application.CancelProjectInput{
		ProjectID: chi.URLParam(r, "project_id"),
		Reason:    req.Reason,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, project)
}

func (h *Handler) submitQuote(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req application.SubmitQuoteInput
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	req.ProjectID = chi.URLParam(r, "project_id")

	quote, err := h.service.SubmitQuote(r.Context(), actor, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, quote)
}

func (h *Handler) listQuotes(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	quotes, err := h.service.ListQuotes(r.Context(), actor, chi.URLParam(r, "project_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"quotes": quotes})
}

func (h *Handler) selectContractor(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req struct {
		QuoteID string `json:"quote_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	res, err := h.service.SelectContractor(r.Context(), actor, application.SelectContractorInput{
		ProjectID: chi.URLParam(r, "project_id"),
		QuoteID:   req.QuoteID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) getAgreement(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	agreement, changeOrders, err := h.service.GetAgreement(r.Context(), actor, chi.URLParam(r, "project_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"agreement":     agreement,
		"change_orders": changeOrders,
	})
}

func (h *Handler) acceptAgreement(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	agreement, err := h.service.AcceptAgreement(r.Context(), actor, application.AcceptAgreementInput{
		ProjectID: chi.URLParam(r, "project_id"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, agreement)
}

func (h *Handler) appendChangeOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req application.AppendChangeOrderInput
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	req.ProjectID = chi.URLParam(r, "project_id")

	agreement, err := h.service.AppendChangeOrder(r.Context(), actor, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, agreement)
}
