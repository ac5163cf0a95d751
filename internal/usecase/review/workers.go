package review

import (
	"context"
	"fmt"
	"log/slog"

	"mindvault/internal/bootstrap/logging"
	domain "mindvault/internal/domain/review"
	"mindvault/internal/errs"
	"mindvault/internal/ports"
)

// RegisterWorkers attaches a stage handler to every pipeline queue.
func (s *Service) RegisterWorkers() error {
	if s.queue == nil {
		return fmt.Errorf("queue is required to register workers")
	}

	handlers := map[string]ports.Handler{
		domain.StageDuplicateCheck: s.handleDuplicateCheck,
		domain.StagePatentability:  s.handlePatentability,
		domain.StageCouncil:        s.handleCouncil,
		domain.StageExpertDispatch: s.handleExpertDispatch,
		domain.StageCertify:        s.handleCertify,
		domain.StageReward:         s.handleReward,
	}
	for stage, handler := range handlers {
		if err := s.queue.Consume(stage, s.concurrency, handler); err != nil {
			return errs.Wrapf(err, "consume %s", stage)
		}
	}
	return nil
}

func (s *Service) handleDuplicateCheck(ctx context.Context, job ports.Job) error {
	if s.matcher == nil {
		return fmt.Errorf("%w: duplicate matcher is not wired", domain.ErrTransientDependency)
	}
	sub, err := s.loadForStage(ctx, job.SubmissionID, domain.StatusAIDuplicateCheck)
	if err != nil {
		return err
	}

	result, err := s.matcher.Check(ctx, ports.SubmissionBrief{
		ID:          sub.ID,
		Type:        sub.Type,
		ContentHash: sub.ContentHash,
		FilesJSON:   sub.FilesJSON,
	})
	if err != nil {
		return errs.Wrap(err, "duplicate check")
	}
	return s.RecordMatchResult(ctx, sub.ID, result)
}

func (s *Service) handlePatentability(ctx context.Context, job ports.Job) error {
	if s.scorer == nil {
		return fmt.Errorf("%w: patentability scorer is not wired", domain.ErrTransientDependency)
	}
	sub, err := s.loadForStage(ctx, job.SubmissionID, domain.StatusAIPatentabilityRev)
	if err != nil {
		return err
	}

	result, err := s.scorer.Score(ctx, ports.SubmissionBrief{
		ID:          sub.ID,
		Type:        sub.Type,
		ContentHash: sub.ContentHash,
		FilesJSON:   sub.FilesJSON,
	})
	if err != nil {
		return errs.Wrap(err, "patentability score")
	}
	return s.RecordScoreResult(ctx, sub.ID, result)
}

func (s *Service) handleCouncil(ctx context.Context, job ports.Job) error {
	return s.RunCouncil(ctx, job.SubmissionID)
}

// handleExpertDispatch records that human reviewers were notified. The
// submission stays pending until an expert decision arrives.
func (s *Service) handleExpertDispatch(ctx context.Context, job ports.Job) error {
	sub, err := s.loadForStage(ctx, job.SubmissionID, domain.StatusPendingExpertReview)
	if err != nil {
		return err
	}
	dispatched, err := s.audit.HasAction(ctx, sub.ID, domain.ActionExpertDispatched)
	if err != nil {
		return errs.Wrap(err, "check prior dispatch")
	}
	if dispatched {
		return nil
	}

	s.auditBestEffort(ctx, sub.ID, domain.ActionExpertDispatched, domain.ActorSystem, map[string]any{
		"type":          sub.Type,
		"quality_score": sub.QualityScore,
	})
	return nil
}

func (s *Service) handleCertify(ctx context.Context, job ports.Job) error {
	return s.IssueCertificate(ctx, job.SubmissionID)
}

func (s *Service) handleReward(ctx context.Context, job ports.Job) error {
	return s.DistributeReward(ctx, job.SubmissionID)
}

// OnJobExhausted is the queue's dead-letter hook: the exhausted job is
// recorded against the submission so operators can find stalled work in
// the audit trail.
func (s *Service) OnJobExhausted(ctx context.Context, job ports.Job, cause error) {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	s.auditBestEffort(ctx, job.SubmissionID, domain.ActionJobExhausted, domain.ActorSystem, map[string]any{
		"stage":   job.Stage,
		"attempt": job.Attempt,
		"error":   reason,
	})
	logging.Error(ctx, "stage job exhausted",
		slog.String("submission_id", job.SubmissionID),
		slog.String("stage", job.Stage),
		slog.Int("attempt", job.Attempt),
	)
}
