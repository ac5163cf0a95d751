package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"mindvault/internal/bootstrap/logging"
	domain "mindvault/internal/domain/review"
	"mindvault/internal/errs"
	"mindvault/internal/ports"
)

// enqueueAction is a stage enqueue deferred until after the surrounding
// transaction commits, so a rollback never leaves a phantom job behind.
type enqueueAction struct {
	stage        string
	submissionID string
}

// Advance moves a submission one step along the pipeline based on its
// current status and the results already persisted for it. Calling it on
// a stage whose result has not landed yet is a state conflict, never a
// skip.
func (s *Service) Advance(ctx context.Context, submissionID string) error {
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

	status, err := domain.ParseStatus(sub.Status)
	if err != nil {
		return err
	}

	s.auditBestEffort(ctx, submissionID, domain.ActionAdvanceAttempt, domain.ActorSystem, map[string]any{
		"status": sub.Status,
	})

	if err := s.advanceFrom(ctx, sub, status); err != nil {
		s.auditBestEffort(ctx, submissionID, domain.ActionAdvanceError, domain.ActorSystem, map[string]any{
			"status": sub.Status,
			"error":  err.Error(),
		})
		return err
	}
	return nil
}

func (s *Service) advanceFrom(ctx context.Context, sub ports.Submission, status domain.Status) error {
	subType, err := domain.ParseType(sub.Type)
	if err != nil {
		return err
	}

	switch status {
	case domain.StatusUploaded:
		return s.transition(ctx, sub, domain.StatusAIDuplicateCheck, nil,
			[]enqueueAction{{stage: domain.StageDuplicateCheck, submissionID: sub.ID}})

	case domain.StatusAIDuplicateCheck:
		if sub.DuplicateRisk == nil {
			return fmt.Errorf("%w: duplicate check result not recorded for %s", domain.ErrStateConflict, sub.ID)
		}
		return s.transition(ctx, sub, domain.StatusAIPatentabilityRev, nil,
			[]enqueueAction{{stage: domain.StagePatentability, submissionID: sub.ID}})

	case domain.StatusAIPatentabilityRev:
		if sub.QualityScore == nil {
			return fmt.Errorf("%w: patentability score not recorded for %s", domain.ErrStateConflict, sub.ID)
		}
		return s.transition(ctx, sub, domain.StatusAICouncilDeliberate, nil,
			[]enqueueAction{{stage: domain.StageCouncil, submissionID: sub.ID}})

	case domain.StatusAICouncilDeliberate:
		return s.finishDeliberation(ctx, sub, subType)

	case domain.StatusPendingExpertReview:
		return fmt.Errorf("%w: submission %s is waiting on an expert decision", domain.ErrStateConflict, sub.ID)

	case domain.StatusExpertApproved:
		return s.finalizeApprove(ctx, sub, map[string]any{"via": "expert"})

	case domain.StatusExpertRejected:
		return s.finalizeReject(ctx, sub, map[string]any{"via": "expert"})

	case domain.StatusFinalizedApproved:
		// REWARDED is marked up front as "payment authorized"; the certify
		// and reward jobs settle asynchronously and deduplicate themselves
		// against the audit log.
		return s.transition(ctx, sub, domain.StatusRewarded, nil,
			[]enqueueAction{
				{stage: domain.StageCertify, submissionID: sub.ID},
				{stage: domain.StageReward, submissionID: sub.ID},
			})

	default:
		return fmt.Errorf("%w: submission %s is terminal in status %s", domain.ErrStateConflict, sub.ID, sub.Status)
	}
}

// finishDeliberation applies the council rule table to the persisted
// scores and routes the submission out of deliberation.
func (s *Service) finishDeliberation(ctx context.Context, sub ports.Submission, subType domain.Type) error {
	decided, err := s.audit.HasAction(ctx, sub.ID, domain.ActionCouncilDecision)
	if err != nil {
		return errs.Wrap(err, "check council decision")
	}
	if !decided {
		return fmt.Errorf("%w: council has not deliberated on %s", domain.ErrStateConflict, sub.ID)
	}
	if sub.QualityScore == nil || sub.DuplicateRisk == nil {
		return fmt.Errorf("%w: deliberation inputs missing for %s", domain.ErrFatalWorkflow, sub.ID)
	}

	decision := domain.Deliberate(subType, *sub.QualityScore, *sub.DuplicateRisk)
	next := domain.RouteAfterCouncil(subType, decision.Gate)

	logging.Info(ctx, "council routing decided",
		slog.String("submission_id", sub.ID),
		slog.String("gate", string(decision.Gate)),
		slog.String("next_status", next.String()),
	)

	switch next {
	case domain.StatusPendingExpertReview:
		return s.transition(ctx, sub, next, nil,
			[]enqueueAction{{stage: domain.StageExpertDispatch, submissionID: sub.ID}})
	case domain.StatusFinalizedApproved:
		return s.finalizeApprove(ctx, sub, map[string]any{
			"via":        "council",
			"gate":       decision.Gate,
			"confidence": decision.Confidence,
		})
	default:
		return s.finalizeReject(ctx, sub, map[string]any{
			"via":        "council",
			"gate":       decision.Gate,
			"confidence": decision.Confidence,
			"reasons":    decision.Reasons,
		})
	}
}

func (s *Service) finalizeApprove(ctx context.Context, sub ports.Submission, payload map[string]any) error {
	if err := s.transition(ctx, sub, domain.StatusFinalizedApproved,
		[]auditSpec{{action: domain.ActionFinalizeApprove, actor: domain.ActorSystem, payload: payload}},
		nil); err != nil {
		return err
	}
	return s.Advance(ctx, sub.ID)
}

func (s *Service) finalizeReject(ctx context.Context, sub ports.Submission, payload map[string]any) error {
	return s.transition(ctx, sub, domain.StatusFinalizedRejected,
		[]auditSpec{{action: domain.ActionFinalizeReject, actor: domain.ActorSystem, payload: payload}},
		nil)
}

type auditSpec struct {
	action  string
	actor   string
	payload map[string]any
}

// transition applies a status change under version CAS together with its
// audit entries, then enqueues follow-up stage work after commit.
func (s *Service) transition(ctx context.Context, sub ports.Submission, next domain.Status, extra []auditSpec, enqueues []enqueueAction) error {
	from, err := domain.ParseStatus(sub.Status)
	if err != nil {
		return err
	}
	if !domain.CanTransition(from, next) {
		return fmt.Errorf("%w: %s -> %s is not a legal transition for %s",
			domain.ErrStateConflict, from, next, sub.ID)
	}

	nextStr := next.String()
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.UpdateSubmission(txCtx, sub.ID, sub.Version, ports.SubmissionChanges{
			Status: &nextStr,
		}); err != nil {
			return errs.Wrap(err, "update submission status")
		}

		payload, _ := json.Marshal(map[string]any{"from": sub.Status, "to": nextStr})
		if _, err := s.audit.Append(txCtx, ports.AuditEntryCreate{
			SubmissionID: sub.ID,
			Action:       domain.ActionStatusChange,
			PayloadJSON:  string(payload),
			Actor:        domain.ActorSystem,
		}); err != nil {
			return errs.Wrap(err, "audit status change")
		}

		for _, a := range extra {
			body, _ := json.Marshal(a.payload)
			if _, err := s.audit.Append(txCtx, ports.AuditEntryCreate{
				SubmissionID: sub.ID,
				Action:       a.action,
				PayloadJSON:  string(body),
				Actor:        a.actor,
			}); err != nil {
				return errs.Wrapf(err, "audit %s", a.action)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logging.Info(ctx, "submission status changed",
		slog.String("submission_id", sub.ID),
		slog.String("from", sub.Status),
		slog.String("to", nextStr),
	)

	return s.enqueueStages(ctx, enqueues)
}

func (s *Service) enqueueStages(ctx context.Context, enqueues []enqueueAction) error {
	if s.queue == nil {
		return nil
	}
	for _, e := range enqueues {
		if err := s.queue.Enqueue(ctx, e.stage, e.submissionID, "", ports.EnqueueOptions{}); err != nil {
			return errs.Wrapf(err, "enqueue %s", e.stage)
		}
	}
	return nil
}

// ProcessExpertDecision records a human expert's verdict. It is only
// valid while the submission is pending expert review.
func (s *Service) ProcessExpertDecision(ctx context.Context, input ExpertDecisionInput) error {
	if err := s.checkDeps(ctx); err != nil {
		return err
	}

	expertID := strings.TrimSpace(input.ExpertID)
	if expertID == "" {
		return fmt.Errorf("%w: expert id is required", domain.ErrValidation)
	}

	sub, err := s.repo.GetSubmission(ctx, input.SubmissionID)
	if err != nil {
		if errors.Is(err, ports.ErrSubmissionNotFound) {
			return fmt.Errorf("%w: submission %s", domain.ErrNotFound, input.SubmissionID)
		}
		return errs.Wrap(err, "load submission")
	}
	if sub.Status != string(domain.StatusPendingExpertReview) {
		return fmt.Errorf("%w: expert decision on %s in status %s", domain.ErrStateConflict, sub.ID, sub.Status)
	}

	next := domain.StatusExpertRejected
	if input.Approved {
		next = domain.StatusExpertApproved
	}

	feedback, _ := json.Marshal(map[string]any{
		"expert_id": expertID,
		"approved":  input.Approved,
		"feedback":  input.Feedback,
	})
	feedbackStr := string(feedback)
	nextStr := next.String()

	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.UpdateSubmission(txCtx, sub.ID, sub.Version, ports.SubmissionChanges{
			Status:             &nextStr,
			ExpertFeedbackJSON: &feedbackStr,
		}); err != nil {
			return errs.Wrap(err, "record expert decision")
		}

		statusPayload, _ := json.Marshal(map[string]any{"from": sub.Status, "to": nextStr})
		if _, err := s.audit.Append(txCtx, ports.AuditEntryCreate{
			SubmissionID: sub.ID,
			Action:       domain.ActionStatusChange,
			PayloadJSON:  string(statusPayload),
			Actor:        domain.ActorExpert(expertID),
		}); err != nil {
			return errs.Wrap(err, "audit status change")
		}

		if _, err := s.audit.Append(txCtx, ports.AuditEntryCreate{
			SubmissionID: sub.ID,
			Action:       domain.ActionExpertDecision,
			PayloadJSON:  feedbackStr,
			Actor:        domain.ActorExpert(expertID),
		}); err != nil {
			return errs.Wrap(err, "audit expert decision")
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.Advance(ctx, sub.ID)
}

// AdminOverride forces a submission into an arbitrary known status,
// bypassing the transition graph. The override itself is audited; the
// bypass is the point, so no edge check applies.
func (s *Service) AdminOverride(ctx context.Context, input AdminOverrideInput) error {
	if err := s.checkDeps(ctx); err != nil {
		return err
	}

	if _, err := domain.ParseStatus(input.NewStatus); err != nil {
		return fmt.Errorf("%w: unknown status %q", domain.ErrValidation, input.NewStatus)
	}
	if strings.TrimSpace(input.Reason) == "" {
		return fmt.Errorf("%w: an override reason is required", domain.ErrValidation)
	}

	sub, err := s.repo.GetSubmission(ctx, input.SubmissionID)
	if err != nil {
		if errors.Is(err, ports.ErrSubmissionNotFound) {
			return fmt.Errorf("%w: submission %s", domain.ErrNotFound, input.SubmissionID)
		}
		return errs.Wrap(err, "load submission")
	}

	return s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.UpdateSubmission(txCtx, sub.ID, sub.Version, ports.SubmissionChanges{
			Status: &input.NewStatus,
		}); err != nil {
			return errs.Wrap(err, "override submission status")
		}

		payload, _ := json.Marshal(map[string]any{
			"from":   sub.Status,
			"to":     input.NewStatus,
			"reason": input.Reason,
		})
		_, err := s.audit.Append(txCtx, ports.AuditEntryCreate{
			SubmissionID: sub.ID,
			Action:       domain.ActionAdminOverride,
			PayloadJSON:  string(payload),
			Actor:        domain.ActorAdmin,
		})
		return errs.Wrap(err, "audit admin override")
	})
}

// auditBestEffort appends a forensic entry outside any transaction; a
// failed append must never block pipeline progress.
func (s *Service) auditBestEffort(ctx context.Context, submissionID string, action string, actor string, payload map[string]any) {
	body, _ := json.Marshal(payload)
	if _, err := s.audit.Append(ctx, ports.AuditEntryCreate{
		SubmissionID: submissionID,
		Action:       action,
		PayloadJSON:  string(body),
		Actor:        actor,
	}); err != nil {
		logging.Warn(ctx, "audit append failed",
			slog.String("submission_id", submissionID),
			slog.String("action", action),
			slog.Any("err", errs.Loggable(err)),
		)
	}
}
