package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domain "mindvault/internal/domain/review"
	"mindvault/internal/errs"
	"mindvault/internal/ports"
)

// GetSubmission returns the stored submission.
func (s *Service) GetSubmission(ctx context.Context, submissionID string) (ports.Submission, error) {
	if err := s.checkDeps(ctx); err != nil {
		return ports.Submission{}, err
	}
	sub, err := s.repo.GetSubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, ports.ErrSubmissionNotFound) {
			return ports.Submission{}, fmt.Errorf("%w: submission %s", domain.ErrNotFound, submissionID)
		}
		return ports.Submission{}, errs.Wrap(err, "load submission")
	}
	return sub, nil
}

// ListAuditTrail returns the submission's audit entries oldest first.
func (s *Service) ListAuditTrail(ctx context.Context, submissionID string) ([]ports.AuditEntry, error) {
	if err := s.checkDeps(ctx); err != nil {
		return nil, err
	}
	if _, err := s.GetSubmission(ctx, submissionID); err != nil {
		return nil, err
	}
	entries, err := s.audit.ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, errs.Wrap(err, "list audit trail")
	}
	return entries, nil
}

// GetCertificate replays the minted attestation from the audit log.
func (s *Service) GetCertificate(ctx context.Context, submissionID string) (Attestation, error) {
	if err := s.checkDeps(ctx); err != nil {
		return Attestation{}, err
	}
	sub, err := s.GetSubmission(ctx, submissionID)
	if err != nil {
		return Attestation{}, err
	}

	entries, err := s.audit.ListBySubmission(ctx, submissionID)
	if err != nil {
		return Attestation{}, errs.Wrap(err, "list audit trail")
	}
	for _, e := range entries {
		if e.Action != domain.ActionCertificateGenerated {
			continue
		}
		var att Attestation
		if err := json.Unmarshal([]byte(e.PayloadJSON), &att); err != nil {
			return Attestation{}, errs.Wrap(err, "decode attestation")
		}
		// Notarization may have settled after the attestation was minted.
		if att.ChainTx == "" && sub.ChainTx != nil {
			att.ChainTx = *sub.ChainTx
		}
		return att, nil
	}
	return Attestation{}, fmt.Errorf("%w: no certificate for submission %s", domain.ErrNotFound, submissionID)
}

// GetCertificateByID resolves a certificate id back to its attestation,
// the verification read for third parties holding only the certificate.
func (s *Service) GetCertificateByID(ctx context.Context, certificateID string) (Attestation, error) {
	if err := s.checkDeps(ctx); err != nil {
		return Attestation{}, err
	}
	sub, err := s.repo.GetSubmissionByCertificateID(ctx, certificateID)
	if err != nil {
		if errors.Is(err, ports.ErrSubmissionNotFound) {
			return Attestation{}, fmt.Errorf("%w: certificate %s", domain.ErrNotFound, certificateID)
		}
		return Attestation{}, errs.Wrap(err, "resolve certificate")
	}
	return s.GetCertificate(ctx, sub.ID)
}

// RewardRecord is one payout as recorded in the audit trail.
type RewardRecord struct {
	SubmissionID string `json:"submission_id"`
	Recipient    string `json:"recipient"`
	Amount       int64  `json:"amount"`
	TxHash       string `json:"tx_hash"`
	CreatedAt    string `json:"created_at"`
}

// ListRewards returns payouts newest first, optionally limited to one
// owner's submissions.
func (s *Service) ListRewards(ctx context.Context, ownerID string, limit int) ([]RewardRecord, error) {
	if err := s.checkDeps(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	entries, err := s.audit.ListByAction(ctx, domain.ActionRewardDistributed, ownerID, limit)
	if err != nil {
		return nil, errs.Wrap(err, "list reward entries")
	}

	records := make([]RewardRecord, 0, len(entries))
	for _, e := range entries {
		var payload struct {
			Recipient string `json:"recipient"`
			Amount    int64  `json:"amount"`
			TxHash    string `json:"tx_hash"`
		}
		if err := json.Unmarshal([]byte(e.PayloadJSON), &payload); err != nil {
			return nil, errs.Wrap(err, "decode reward payload")
		}
		records = append(records, RewardRecord{
			SubmissionID: e.SubmissionID,
			Recipient:    payload.Recipient,
			Amount:       payload.Amount,
			TxHash:       payload.TxHash,
			CreatedAt:    e.CreatedAt,
		})
	}
	return records, nil
}

// RewardTotals reports the settled payout aggregate for reconciliation
// against the treasury ledger.
func (s *Service) RewardTotals(ctx context.Context) (ports.RewardTotals, error) {
	if err := s.checkDeps(ctx); err != nil {
		return ports.RewardTotals{}, err
	}
	totals, err := s.repo.RewardTotals(ctx)
	if err != nil {
		return ports.RewardTotals{}, errs.Wrap(err, "aggregate rewards")
	}
	return totals, nil
}

// QueueStats reports one stage queue's gauges.
func (s *Service) QueueStats(ctx context.Context, stage string) (ports.StageStats, error) {
	if ctx == nil {
		return ports.StageStats{}, errors.New("context is required")
	}
	if s.queue == nil {
		return ports.StageStats{}, errors.New("queue is not wired")
	}
	stats, err := s.queue.Stats(stage)
	if err != nil {
		if errors.Is(err, ports.ErrUnknownStage) {
			return ports.StageStats{}, fmt.Errorf("%w: stage %q", domain.ErrNotFound, stage)
		}
		return ports.StageStats{}, errs.Wrap(err, "read queue stats")
	}
	return stats, nil
}
