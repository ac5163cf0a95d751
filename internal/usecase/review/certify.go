package review

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mindvault/internal/bootstrap/logging"
	domain "mindvault/internal/domain/review"
	"mindvault/internal/errs"
	"mindvault/internal/ports"
)

const (
	attestationIssuer    = "MindVaultIP"
	attestationAlgorithm = "SHA256"
)

// Attestation is the certificate document anchored on the ledger and
// replayable from the audit log.
type Attestation struct {
	CertificateID   string   `json:"certificate_id"`
	SubmissionID    string   `json:"submission_id"`
	OwnerID         string   `json:"owner_id"`
	Type            string   `json:"type"`
	Issuer          string   `json:"issuer"`
	Algorithm       string   `json:"algorithm"`
	ContentHash     string   `json:"content_hash"`
	QualityScore    *int     `json:"quality_score,omitempty"`
	DuplicateRisk   *float64 `json:"duplicate_risk,omitempty"`
	IssuedAt        string   `json:"issued_at"`
	AISignature     string   `json:"ai_signature"`
	ExpertSignature string   `json:"expert_signature,omitempty"`
	ChainTx         string   `json:"chain_tx,omitempty"`
}

// IssueCertificate mints the certificate for an approved submission.
// Issuance is idempotent: the audit log is the oracle, so a replayed job
// returns the already-minted certificate.
func (s *Service) IssueCertificate(ctx context.Context, submissionID string) error {
	if err := s.checkDeps(ctx); err != nil {
		return err
	}

	sub, err := s.repo.GetSubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, ports.ErrSubmissionNotFound) {
			return fmt.Errorf("%w: submission %s", domain.ErrNotFound, submissionID)
		}
		return errs.Wrap(err, "load submission")
	}
	if sub.Status != string(domain.StatusFinalizedApproved) && sub.Status != string(domain.StatusRewarded) {
		return fmt.Errorf("%w: certificate for %s in status %s", domain.ErrStateConflict, sub.ID, sub.Status)
	}

	issued, err := s.audit.HasAction(ctx, sub.ID, domain.ActionCertificateGenerated)
	if err != nil {
		return errs.Wrap(err, "check prior issuance")
	}
	if issued || sub.CertificateID != nil {
		return s.settleDeferredNotarization(ctx, sub)
	}

	att := Attestation{
		CertificateID: certificateID(sub.ID, sub.ContentHash),
		SubmissionID:  sub.ID,
		OwnerID:       sub.OwnerID,
		Type:          sub.Type,
		Issuer:        attestationIssuer,
		Algorithm:     attestationAlgorithm,
		ContentHash:   sub.ContentHash,
		QualityScore:  sub.QualityScore,
		DuplicateRisk: sub.DuplicateRisk,
		IssuedAt:      time.Now().UTC().Format(time.RFC3339Nano),
	}
	att.AISignature = signAttestation(att)
	if sub.ExpertFeedbackJSON != "" {
		att.ExpertSignature = hexDigest(sub.ExpertFeedbackJSON)
	}

	var deferredNotarization error
	if s.ledger != nil {
		txHash, err := s.ledger.Notarize(ctx, sub.ContentHash, att.CertificateID)
		if err != nil {
			deferredNotarization = err
		} else {
			att.ChainTx = txHash
		}
	}

	changes := ports.SubmissionChanges{CertificateID: &att.CertificateID}
	if att.ChainTx != "" {
		chainTx := att.ChainTx
		changes.ChainTx = &chainTx
	}
	attJSON, _ := json.Marshal(att)

	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.UpdateSubmission(txCtx, sub.ID, sub.Version, changes); err != nil {
			return errs.Wrap(err, "persist certificate")
		}
		if _, err := s.audit.Append(txCtx, ports.AuditEntryCreate{
			SubmissionID: sub.ID,
			Action:       domain.ActionCertificateGenerated,
			PayloadJSON:  string(attJSON),
			Actor:        domain.ActorCertification,
		}); err != nil {
			return errs.Wrap(err, "audit certificate")
		}
		if deferredNotarization != nil {
			payload, _ := json.Marshal(map[string]any{
				"certificate_id": att.CertificateID,
				"error":          deferredNotarization.Error(),
			})
			if _, err := s.audit.Append(txCtx, ports.AuditEntryCreate{
				SubmissionID: sub.ID,
				Action:       domain.ActionNotarizationDeferred,
				PayloadJSON:  string(payload),
				Actor:        domain.ActorCertification,
			}); err != nil {
				return errs.Wrap(err, "audit deferred notarization")
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ports.ErrWriteOnceViolation) {
			// A concurrent replay won the race; its certificate stands.
			return nil
		}
		return err
	}

	logging.Info(ctx, "certificate issued",
		slog.String("submission_id", sub.ID),
		slog.String("certificate_id", att.CertificateID),
		slog.Bool("notarized", att.ChainTx != ""),
	)
	return nil
}

// settleDeferredNotarization re-anchors a certificate whose first
// notarization failed. A replayed certify job lands here; the chain_tx
// write-once guard makes a concurrent retry lose harmlessly.
func (s *Service) settleDeferredNotarization(ctx context.Context, sub ports.Submission) error {
	if sub.ChainTx != nil || sub.CertificateID == nil || s.ledger == nil {
		logging.Info(ctx, "certificate already issued",
			slog.String("submission_id", sub.ID),
		)
		return nil
	}

	txHash, err := s.ledger.Notarize(ctx, sub.ContentHash, *sub.CertificateID)
	if err != nil {
		return errs.Wrap(err, "retry notarization")
	}

	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.UpdateSubmission(txCtx, sub.ID, sub.Version, ports.SubmissionChanges{
			ChainTx: &txHash,
		}); err != nil {
			return errs.Wrap(err, "persist chain tx")
		}

		payload, _ := json.Marshal(map[string]any{
			"certificate_id": *sub.CertificateID,
			"chain_tx":       txHash,
		})
		_, err := s.audit.Append(txCtx, ports.AuditEntryCreate{
			SubmissionID: sub.ID,
			Action:       domain.ActionNotarizationCompleted,
			PayloadJSON:  string(payload),
			Actor:        domain.ActorCertification,
		})
		return errs.Wrap(err, "audit notarization")
	})
	if err != nil {
		if errors.Is(err, ports.ErrWriteOnceViolation) {
			return nil
		}
		return err
	}

	logging.Info(ctx, "deferred notarization settled",
		slog.String("submission_id", sub.ID),
		slog.String("chain_tx", txHash),
	)
	return nil
}

// certificateID derives a stable identifier from the submission identity
// so replays mint the same certificate.
func certificateID(submissionID string, contentHash string) string {
	sum := sha256.Sum256([]byte(submissionID + "|" + contentHash))
	short := submissionID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("MVI-%s-%s", short, hex.EncodeToString(sum[:])[:12])
}

func signAttestation(att Attestation) string {
	core := fmt.Sprintf("%s|%s|%s|%s", att.CertificateID, att.SubmissionID, att.ContentHash, att.IssuedAt)
	return hexDigest(core)
}

func hexDigest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
