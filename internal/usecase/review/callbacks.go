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

// RecordMatchResult persists a duplicate-check verdict and advances the
// submission. A second delivery for the same stage is a state conflict.
func (s *Service) RecordMatchResult(ctx context.Context, submissionID string, result ports.MatchResult) error {
	if err := s.checkDeps(ctx); err != nil {
		return err
	}
	if result.DuplicateRisk < 0 || result.DuplicateRisk > 1 {
		return fmt.Errorf("%w: duplicate risk %.3f out of range", domain.ErrValidation, result.DuplicateRisk)
	}

	sub, err := s.loadForStage(ctx, submissionID, domain.StatusAIDuplicateCheck)
	if err != nil {
		return err
	}
	if sub.DuplicateRisk != nil {
		return fmt.Errorf("%w: duplicate check already recorded for %s", domain.ErrStateConflict, sub.ID)
	}
	if err := s.claimCallback(ctx, sub.ID, domain.StageDuplicateCheck); err != nil {
		return err
	}

	feedback, err := mergeFeedback(sub.AIFeedbackJSON, "duplicate_check", result)
	if err != nil {
		return err
	}
	risk := result.DuplicateRisk
	payload, _ := json.Marshal(result)

	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.UpdateSubmission(txCtx, sub.ID, sub.Version, ports.SubmissionChanges{
			DuplicateRisk:  &risk,
			AIFeedbackJSON: &feedback,
		}); err != nil {
			return errs.Wrap(err, "record duplicate risk")
		}
		_, err := s.audit.Append(txCtx, ports.AuditEntryCreate{
			SubmissionID: sub.ID,
			Action:       domain.ActionDuplicateCheck,
			PayloadJSON:  string(payload),
			Actor:        domain.ActorMatcher,
		})
		return errs.Wrap(err, "audit duplicate check")
	})
	if err != nil {
		s.releaseCallback(ctx, sub.ID, domain.StageDuplicateCheck)
		return err
	}

	return s.Advance(ctx, sub.ID)
}

// RecordScoreResult persists the patentability score and advances.
func (s *Service) RecordScoreResult(ctx context.Context, submissionID string, result ports.ScoreResult) error {
	if err := s.checkDeps(ctx); err != nil {
		return err
	}
	if result.QualityScore < 0 || result.QualityScore > 100 {
		return fmt.Errorf("%w: quality score %d out of range", domain.ErrValidation, result.QualityScore)
	}

	sub, err := s.loadForStage(ctx, submissionID, domain.StatusAIPatentabilityRev)
	if err != nil {
		return err
	}
	if sub.QualityScore != nil {
		return fmt.Errorf("%w: patentability score already recorded for %s", domain.ErrStateConflict, sub.ID)
	}
	if err := s.claimCallback(ctx, sub.ID, domain.StagePatentability); err != nil {
		return err
	}

	feedback, err := mergeFeedback(sub.AIFeedbackJSON, "patentability", result)
	if err != nil {
		return err
	}
	score := result.QualityScore
	payload, _ := json.Marshal(result)

	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.UpdateSubmission(txCtx, sub.ID, sub.Version, ports.SubmissionChanges{
			QualityScore:   &score,
			AIFeedbackJSON: &feedback,
		}); err != nil {
			return errs.Wrap(err, "record quality score")
		}
		_, err := s.audit.Append(txCtx, ports.AuditEntryCreate{
			SubmissionID: sub.ID,
			Action:       domain.ActionPatentabilityScore,
			PayloadJSON:  string(payload),
			Actor:        domain.ActorScorer,
		})
		return errs.Wrap(err, "audit patentability score")
	})
	if err != nil {
		s.releaseCallback(ctx, sub.ID, domain.StagePatentability)
		return err
	}

	return s.Advance(ctx, sub.ID)
}

// RecordCouncilResult persists the folded ensemble and advances. The
// audit entry doubles as the deliberation marker the orchestrator checks.
func (s *Service) RecordCouncilResult(ctx context.Context, submissionID string, result domain.EnsembleResult) error {
	if err := s.checkDeps(ctx); err != nil {
		return err
	}

	sub, err := s.loadForStage(ctx, submissionID, domain.StatusAICouncilDeliberate)
	if err != nil {
		return err
	}

	decided, err := s.audit.HasAction(ctx, sub.ID, domain.ActionCouncilDecision)
	if err != nil {
		return errs.Wrap(err, "check council decision")
	}
	if decided {
		return fmt.Errorf("%w: council already deliberated on %s", domain.ErrStateConflict, sub.ID)
	}
	if err := s.claimCallback(ctx, sub.ID, domain.StageCouncil); err != nil {
		return err
	}

	feedback, err := mergeFeedback(sub.AIFeedbackJSON, "council", result)
	if err != nil {
		return err
	}
	payload, _ := json.Marshal(result)

	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.UpdateSubmission(txCtx, sub.ID, sub.Version, ports.SubmissionChanges{
			AIFeedbackJSON: &feedback,
		}); err != nil {
			return errs.Wrap(err, "record council feedback")
		}
		_, err := s.audit.Append(txCtx, ports.AuditEntryCreate{
			SubmissionID: sub.ID,
			Action:       domain.ActionCouncilDecision,
			PayloadJSON:  string(payload),
			Actor:        domain.ActorCouncil,
		})
		return errs.Wrap(err, "audit council decision")
	})
	if err != nil {
		s.releaseCallback(ctx, sub.ID, domain.StageCouncil)
		return err
	}

	return s.Advance(ctx, sub.ID)
}

func (s *Service) loadForStage(ctx context.Context, submissionID string, want domain.Status) (ports.Submission, error) {
	sub, err := s.repo.GetSubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, ports.ErrSubmissionNotFound) {
			return ports.Submission{}, fmt.Errorf("%w: submission %s", domain.ErrNotFound, submissionID)
		}
		return ports.Submission{}, errs.Wrap(err, "load submission")
	}
	if sub.Status != string(want) {
		return ports.Submission{}, fmt.Errorf("%w: %s is in status %s, expected %s",
			domain.ErrStateConflict, sub.ID, sub.Status, want)
	}
	return sub, nil
}

// claimCallback takes the per-stage dedupe slot. Concurrent duplicate
// deliveries race on the cache first; ones that slip through still hit
// the persisted-field and version checks.
func (s *Service) claimCallback(ctx context.Context, submissionID string, stage string) error {
	if s.cache == nil {
		return nil
	}
	key := callbackKey(submissionID, stage)
	if _, found, err := s.cache.Get(ctx, key); err == nil && found {
		return fmt.Errorf("%w: %s result already being processed for %s", domain.ErrStateConflict, stage, submissionID)
	}
	return s.cache.Set(ctx, key, "claimed", 0)
}

func (s *Service) releaseCallback(ctx context.Context, submissionID string, stage string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, callbackKey(submissionID, stage))
}

func callbackKey(submissionID string, stage string) string {
	return "callback:" + submissionID + ":" + stage
}

// mergeFeedback folds one stage's result into the submission's AI
// feedback document, keyed by stage.
func mergeFeedback(existing string, key string, value any) (string, error) {
	doc := map[string]json.RawMessage{}
	if existing != "" {
		if err := json.Unmarshal([]byte(existing), &doc); err != nil {
			return "", errs.Wrap(err, "decode ai feedback")
		}
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return "", errs.Wrap(err, "encode stage feedback")
	}
	doc[key] = raw

	merged, err := json.Marshal(doc)
	if err != nil {
		return "", errs.Wrap(err, "encode ai feedback")
	}
	return string(merged), nil
}
