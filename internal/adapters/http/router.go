package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trustvibe/escrow-service/internal/application"
	"github.com/trustvibe/escrow-service/internal/ports"
)

// Handler is the HTTP adapter entrypoint for escrow use-cases.
// Keeping only application dependency here preserves clean adapter boundaries.
type Handler struct {
	service  *application.Service
	verifier ports.TokenVerifier
}

// NewHandler constructs an HTTP handler bound to the application service.
func NewHandler(service *application.Service, verifier ports.TokenVerifier) *Handler {
	return &Handler{service: service, verifier: verifier}
}

// NewRouter registers escrow HTTP routes and middleware stack.
// Centralizing routes here ensures consistent auth and error behavior across endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/escrow/v1", func(r chi.Router) {
		r.Use(handler.authMiddleware)

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", handler.createProject)
			r.Route("/{project_id}", func(r chi.Router) {
				r.Get("/", handler.getProject)
				r.Post("/publish", handler.publishProject)
				r.Post("/cancel", handler.cancelProject)

				r.Post("/quotes", handler.submitQuote)
				r.Get("/quotes", handler.listQuotes)
				r.Post("/select", handler.selectContractor)
				r.Get("/agreement", handler.getAgreement)
				r.Post("/agreement/accept", handler.acceptAgreement)
				r.Post("/agreement/change-orders", handler.appendChangeOrder)

				r.Post("/fund", handler.fundHold)
				r.Post("/start", handler.startWork)
				r.Post("/completion-request", handler.requestCompletion)
				r.Post("/approve-release", handler.approveRelease)
				r.Get("/ledger", handler.getLedger)
				r.Get("/balance", handler.getBalance)

				r.Post("/milestones", handler.createMilestones)
				r.Post("/milestones/{milestone_id}/approve", handler.approveMilestone)

				r.Post("/issues", handler.raiseIssueHold)
				r.Get("/case", handler.getCase)
				r.Post("/external-resolution", handler.markExternalResolution)
				r.Post("/joint-release", handler.proposeJointRelease)
				r.Post("/joint-release/{proposal_id}/sign", handler.signJointRelease)
				r.Post("/resolution-documents", handler.uploadResolutionDocument)
			})
		})

		r.Route("/deposits", func(r chi.Router) {
			r.Post("/", handler.createEstimateDeposit)
			r.Post("/{deposit_id}/capture", handler.captureEstimateDeposit)
			r.Post("/{deposit_id}/attendance", handler.markEstimateAttendance)
			r.Post("/{deposit_id}/refund", handler.refundEstimateDeposit)
			r.Post("/{deposit_id}/credit", handler.creditEstimateDeposit)
		})

		r.Route("/reliability", func(r chi.Router) {
			r.Post("/signals", handler.recordReliabilitySignals)
			r.Get("/{contractor_id}", handler.getReliability)
		})

		r.Route("/billing", func(r chi.Router) {
			r.Post("/onboarding", handler.onboardContractor)
			r.Post("/subscriptions", handler.createSubscription)
			r.Delete("/subscriptions", handler.cancelSubscription)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/projects/{project_id}/outcome", handler.adminExecuteOutcome)
			r.Post("/projects/{project_id}/concierge-fee", handler.postConciergeIntakeFee)
			r.Get("/review-cases", handler.listMandatoryReviewCases)
			r.Post("/reliability/recompute", handler.recomputeReliability)
			r.Get("/config", handler.getPlatformConfig)
			r.Put("/config", handler.updatePlatformConfig)
		})
	})

	return r
}
