package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"mindvault/internal/bootstrap/logging"
	domain "mindvault/internal/domain/review"
	"mindvault/internal/errs"
	"mindvault/internal/ports"
)

// DistributeReward pays the owner of an approved submission. The REWARDED
// status is authorization, not settlement: the orchestrator marks it before
// this runs, and this settles the transfer. Distribution is idempotent
// against replays: a prior payout recorded in the audit log, or an
// already-set reward amount, short-circuits to success.
func (s *Service) DistributeReward(ctx context.Context, submissionID string) error {
	if err := s.checkDeps(ctx); err != nil {
		return err
	}
	if s.ledger == nil {
		return fmt.Errorf("%w: ledger is not wired", domain.ErrTransientDependency)
	}

	sub, err := s.repo.GetSubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, ports.ErrSubmissionNotFound) {
			return fmt.Errorf("%w: submission %s", domain.ErrNotFound, submissionID)
		}
		return errs.Wrap(err, "load submission")
	}

	if sub.Status != string(domain.StatusFinalizedApproved) && sub.Status != string(domain.StatusRewarded) {
		return fmt.Errorf("%w: reward for %s in status %s", domain.ErrStateConflict, sub.ID, sub.Status)
	}

	paid, err := s.audit.HasAction(ctx, sub.ID, domain.ActionRewardDistributed)
	if err != nil {
		return errs.Wrap(err, "check prior payout")
	}
	if paid || sub.RewardAmount != nil {
		return nil
	}

	if sub.QualityScore == nil {
		return fmt.Errorf("%w: reward without quality score for %s", domain.ErrFatalWorkflow, sub.ID)
	}
	amount := s.policy.Amount(*sub.QualityScore)

	balanceBefore, err := s.ledger.TreasuryBalance(ctx)
	if err != nil {
		return errs.Wrap(err, "read treasury balance")
	}
	if balanceBefore < amount {
		s.auditBestEffort(ctx, sub.ID, domain.ActionRewardError, domain.ActorRewards, map[string]any{
			"reason":  "treasury underfunded",
			"needed":  amount,
			"balance": balanceBefore,
		})
		logging.Error(ctx, "treasury underfunded",
			slog.String("submission_id", sub.ID),
			slog.Int64("needed", amount),
			slog.Int64("balance", balanceBefore),
		)
		return fmt.Errorf("%w: treasury balance %d below reward %d", domain.ErrTransientDependency, balanceBefore, amount)
	}

	txHash, err := s.ledger.Transfer(ctx, sub.OwnerID, amount)
	if err != nil {
		s.auditBestEffort(ctx, sub.ID, domain.ActionRewardError, domain.ActorRewards, map[string]any{
			"reason": "transfer failed",
			"error":  err.Error(),
		})
		return errs.Wrap(err, "transfer reward")
	}

	balanceAfter, balanceErr := s.ledger.TreasuryBalance(ctx)

	payload, _ := json.Marshal(map[string]any{
		"recipient":      sub.OwnerID,
		"amount":         amount,
		"tx_hash":        txHash,
		"balance_before": balanceBefore,
		"balance_after":  balanceAfter,
	})

	changes := ports.SubmissionChanges{RewardAmount: &amount}
	rewarded := string(domain.StatusRewarded)
	if sub.Status != rewarded {
		changes.Status = &rewarded
	}

	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.UpdateSubmission(txCtx, sub.ID, sub.Version, changes); err != nil {
			return errs.Wrap(err, "persist reward")
		}

		if changes.Status != nil {
			statusPayload, _ := json.Marshal(map[string]any{"from": sub.Status, "to": rewarded})
			if _, err := s.audit.Append(txCtx, ports.AuditEntryCreate{
				SubmissionID: sub.ID,
				Action:       domain.ActionStatusChange,
				PayloadJSON:  string(statusPayload),
				Actor:        domain.ActorRewards,
			}); err != nil {
				return errs.Wrap(err, "audit status change")
			}
		}

		_, err := s.audit.Append(txCtx, ports.AuditEntryCreate{
			SubmissionID: sub.ID,
			Action:       domain.ActionRewardDistributed,
			PayloadJSON:  string(payload),
			Actor:        domain.ActorRewards,
		})
		return errs.Wrap(err, "audit reward")
	})
	if err != nil {
		if errors.Is(err, ports.ErrWriteOnceViolation) {
			return nil
		}
		return err
	}

	logging.Info(ctx, "reward distributed",
		slog.String("submission_id", sub.ID),
		slog.Int64("amount", amount),
		slog.String("tx_hash", txHash),
	)
	if balanceErr != nil {
		logging.Warn(ctx, "post-payout balance read failed",
			slog.String("submission_id", sub.ID),
			slog.Any("err", errs.Loggable(balanceErr)),
		)
	}
	return nil
}
