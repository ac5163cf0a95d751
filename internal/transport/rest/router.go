package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the public API, the internal operator surface and the
// metrics endpoint.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) *chi.Mux {
	r := chi.NewRouter()

	r.Use(Recovery)
	r.Use(RequestLogger)

	r.Get("/healthz", h.Health)
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/submissions", h.CreateSubmission)
		r.Get("/submissions/{submissionId}", h.GetSubmission)
		r.Get("/submissions/{submissionId}/certificate", h.GetCertificate)
		r.Get("/submissions/{submissionId}/audit", h.GetAuditTrail)
		r.Get("/certificates/{certificateId}", h.GetCertificateByID)
		r.Get("/rewards", h.ListRewards)
		r.Get("/rewards/summary", h.RewardTotals)
	})

	r.Route("/internal", func(r chi.Router) {
		r.Post("/submissions/{submissionId}/advance", h.Advance)
		r.Post("/ai/match/{submissionId}", h.RecordMatchResult)
		r.Post("/ai/score/{submissionId}", h.RecordScoreResult)
		r.Post("/ai/council/{submissionId}", h.RecordCouncilResult)
		r.Post("/expert/decision/{submissionId}", h.ExpertDecision)
		r.Post("/admin/override/{submissionId}", h.AdminOverride)
		r.Post("/certify/{submissionId}", h.Certify)
		r.Post("/reward/{submissionId}", h.Reward)
		r.Get("/queues/{stage}/stats", h.QueueStats)
	})

	return r
}
