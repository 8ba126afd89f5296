package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trustvibe/escrow-service/internal/application"
)

func (h *Handler) createEstimateDeposit(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req application.CreateEstimateDepositInput
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	deposit, err := h.service.CreateEstimateDeposit(r.Context(), actor, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, deposit)
}

func (h *Handler) captureEstimateDeposit(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	deposit, err := h.service.CaptureEstimateDeposit(r.Context(), actor, application.CaptureEstimateDepositInput{
		DepositID: chi.URLParam(r, "deposit_id"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, deposit)
}

func (h *Handler) markEstimateAttendance(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req struct {
		Attendance string `json:"attendance"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	deposit, err := h.service.MarkEstimateAttendance(r.Context(), actor, application.MarkEstimateAttendanceInput{
		DepositID:  chi.URLParam(r, "deposit_id"),
		Attendance: req.Attendance,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, deposit)
}

func (h *Handler) refundEstimateDeposit(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	deposit, err := h.service.RefundEstimateDeposit(r.Context(), actor, chi.URLParam(r, "deposit_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, deposit)
}

func (h *Handler) creditEstimateDeposit(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	deposit, err := h.service.CreditEstimateDeposit(r.Context(), actor, chi.URLParam(r, "deposit_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, deposit)
}
