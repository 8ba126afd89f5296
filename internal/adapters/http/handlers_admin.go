package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trustvibe/escrow-service/internal/application"
	"github.com/trustvibe/escrow-service/internal/domain"
)

func (h *Handler) adminExecuteOutcome(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req struct {
		ResolutionRef string `json:"resolution_ref"`
		ReleaseCents  int64  `json:"release_cents"`
		RefundCents   int64  `json:"refund_cents"`
		Note          string `json:"note"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	res, err := h.service.AdminExecuteOutcome(r.Context(), actor, application.AdminExecuteOutcomeInput{
		ProjectID:     chi.URLParam(r, "project_id"),
		ResolutionRef: req.ResolutionRef,
		ReleaseCents:  req.ReleaseCents,
		RefundCents:   req.RefundCents,
		Note:          req.Note,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) postConciergeIntakeFee(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req struct {
		Note string `json:"note"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	event, err := h.service.PostConciergeIntakeFee(r.Context(), actor, application.ConciergeIntakeFeeInput{
		ProjectID: chi.URLParam(r, "project_id"),
		Note:      req.Note,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, event)
}

func (h *Handler) listMandatoryReviewCases(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), 100)
	cases, err := h.service.ListMandatoryReviewCases(r.Context(), actor, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"cases": cases})
}

func (h *Handler) recomputeReliability(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	res, err := h.service.RecomputeReliabilityScores(r.Context(), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) getPlatformConfig(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	cfg, err := h.service.GetPlatformConfig(r.Context(), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, cfg)
}

func (h *Handler) updatePlatformConfig(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var cfg domain.PlatformConfig
	if err := decodeBody(r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	updated, err := h.service.UpdatePlatformConfig(r.Context(), actor, cfg)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, updated)
}
