package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trustvibe/escrow-service/internal/application"
)

func (h *Handler) raiseIssueHold(w http.ResponseWriter, r *http.Request) {
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

	res, err := h.service.RaiseIssueHold(r.Context(), actor, application.RaiseIssueHoldInput{
		ProjectID: chi.URLParam(r, "project_id"),
		Reason:    req.Reason,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) getCase(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	disputeCase, err := h.service.GetCase(r.Context(), actor, chi.URLParam(r, "project_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, disputeCase)
}

func (h *Handler) markExternalResolution(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	project, err := h.service.MarkExternalResolution(r.Context(), actor, chi.URLParam(r, "project_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, project)
}

func (h *Handler) proposeJointRelease(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req struct {
		ReleaseCents int64 `json:"release_cents"`
		RefundCents  int64 `json:"refund_cents"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	proposal, err := h.service.ProposeJointRelease(r.Context(), actor, application.ProposeJointReleaseInput{
		ProjectID:    chi.URLParam(r, "project_id"),
		ReleaseCents: req.ReleaseCents,
		RefundCents:  req.RefundCents,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, proposal)
}

func (h *Handler) signJointRelease(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	res, err := h.service.SignJointRelease(r.Context(), actor, application.SignJointReleaseInput{
		ProjectID:  chi.URLParam(r, "project_id"),
		ProposalID: chi.URLParam(r, "proposal_id"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) uploadResolutionDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req struct {
		DocRef  string `json:"doc_ref"`
		DocKind string `json:"doc_kind"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	disputeCase, err := h.service.UploadResolutionDocument(r.Context(), actor, application.UploadResolutionDocumentInput{
		ProjectID: chi.URLParam(r, "project_id"),
		DocRef:    req.DocRef,
		DocKind:   req.DocKind,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, disputeCase)
}
