package rest

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	domain "mindvault/internal/domain/review"
	"mindvault/internal/ports"
	"mindvault/internal/usecase/review"
)

// Handler exposes the review pipeline over HTTP.
type Handler struct {
	svc *review.Service
}

func NewHandler(svc *review.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID string             `json:"owner_id"`
		Type    string             `json:"type"`
		Files   []review.FileInput `json:"files"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", domain.ErrValidation))
		return
	}

	sub, err := h.svc.CreateSubmission(r.Context(), review.CreateSubmissionInput{
		OwnerID: req.OwnerID,
		Type:    req.Type,
		Files:   req.Files,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.GetSubmission(r.Context(), chi.URLParam(r, "submissionId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) GetCertificate(w http.ResponseWriter, r *http.Request) {
	att, err := h.svc.GetCertificate(r.Context(), chi.URLParam(r, "submissionId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, att)
}

func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.ListAuditTrail(r.Context(), chi.URLParam(r, "submissionId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.svc.ListRewards(r.Context(), r.URL.Query().Get("owner_id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rewards": records})
}

func (h *Handler) RewardTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.svc.RewardTotals(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (h *Handler) GetCertificateByID(w http.ResponseWriter, r *http.Request) {
	att, err := h.svc.GetCertificateByID(r.Context(), chi.URLParam(r, "certificateId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, att)
}

func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Advance(r.Context(), chi.URLParam(r, "submissionId")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "advanced"})
}

func (h *Handler) RecordMatchResult(w http.ResponseWriter, r *http.Request) {
	var result ports.MatchResult
	if err := readJSON(r, &result); err != nil {
		writeError(w, fmt.Errorf("%w: invalid match result", domain.ErrValidation))
		return
	}
	if err := h.svc.RecordMatchResult(r.Context(), chi.URLParam(r, "submissionId"), result); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (h *Handler) RecordScoreResult(w http.ResponseWriter, r *http.Request) {
	var result ports.ScoreResult
	if err := readJSON(r, &result); err != nil {
		writeError(w, fmt.Errorf("%w: invalid score result", domain.ErrValidation))
		return
	}
	if err := h.svc.RecordScoreResult(r.Context(), chi.URLParam(r, "submissionId"), result); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (h *Handler) RecordCouncilResult(w http.ResponseWriter, r *http.Request) {
	var result domain.EnsembleResult
	if err := readJSON(r, &result); err != nil {
		writeError(w, fmt.Errorf("%w: invalid council result", domain.ErrValidation))
		return
	}
	if err := h.svc.RecordCouncilResult(r.Context(), chi.URLParam(r, "submissionId"), result); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (h *Handler) ExpertDecision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExpertID string `json:"expert_id"`
		Approved bool   `json:"approved"`
		Feedback string `json:"feedback"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid expert decision", domain.ErrValidation))
		return
	}
	err := h.svc.ProcessExpertDecision(r.Context(), review.ExpertDecisionInput{
		SubmissionID: chi.URLParam(r, "submissionId"),
		ExpertID:     req.ExpertID,
		Approved:     req.Approved,
		Feedback:     req.Feedback,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "decided"})
}

func (h *Handler) AdminOverride(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewStatus string `json:"new_status"`
		Reason    string `json:"reason"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid override request", domain.ErrValidation))
		return
	}
	err := h.svc.AdminOverride(r.Context(), review.AdminOverrideInput{
		SubmissionID: chi.URLParam(r, "submissionId"),
		NewStatus:    req.NewStatus,
		Reason:       req.Reason,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "overridden"})
}

func (h *Handler) Certify(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.IssueCertificate(r.Context(), chi.URLParam(r, "submissionId")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "certified"})
}

func (h *Handler) Reward(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DistributeReward(r.Context(), chi.URLParam(r, "submissionId")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "rewarded"})
}

func (h *Handler) QueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.QueueStats(r.Context(), chi.URLParam(r, "stage"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
