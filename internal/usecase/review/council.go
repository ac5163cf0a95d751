package review

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"mindvault/internal/bootstrap/logging"
	domain "mindvault/internal/domain/review"
	"mindvault/internal/errs"
	"mindvault/internal/ports"
)

// RunCouncil convenes the three-seat AI council on a submission. The
// seats deliberate concurrently under a shared deadline; a seat that
// errors or times out is folded in as failed with a needs-more-evidence
// verdict rather than sinking the whole deliberation.
func (s *Service) RunCouncil(ctx context.Context, submissionID string) error {
	if err := s.checkDeps(ctx); err != nil {
		return err
	}
	if len(s.personas) != 3 {
		return fmt.Errorf("%w: council needs exactly three seats, have %d", domain.ErrFatalWorkflow, len(s.personas))
	}

	sub, err := s.loadForStage(ctx, submissionID, domain.StatusAICouncilDeliberate)
	if err != nil {
		return err
	}

	brief := ports.SubmissionBrief{
		ID:          sub.ID,
		Type:        sub.Type,
		ContentHash: sub.ContentHash,
		FilesJSON:   sub.FilesJSON,
	}

	deliberateCtx, cancel := context.WithTimeout(ctx, s.councilTimeout)
	defer cancel()

	reviews := make([]domain.PersonaReview, len(s.personas))
	var wg sync.WaitGroup
	for i, persona := range s.personas {
		wg.Add(1)
		go func(i int, persona ports.CouncilPersona) {
			defer wg.Done()
			review, err := persona.Evaluate(deliberateCtx, brief)
			if err != nil {
				logging.Warn(ctx, "council seat failed",
					slog.String("submission_id", sub.ID),
					slog.String("seat", string(persona.Seat())),
					slog.Any("err", errs.Loggable(err)),
				)
				review = domain.PersonaReview{
					Persona: persona.Seat(),
					Verdict: domain.VerdictNeedsMoreEvidence,
					Notes:   []string{"seat unavailable"},
					Failed:  true,
				}
			}
			reviews[i] = review
		}(i, persona)
	}
	wg.Wait()

	result := domain.Fold(
		seatReview(reviews, domain.PersonaExaminer),
		seatReview(reviews, domain.PersonaCritic),
		seatReview(reviews, domain.PersonaVisionary),
	)

	logging.Info(ctx, "council deliberated",
		slog.String("submission_id", sub.ID),
		slog.String("verdict", string(result.Verdict)),
		slog.Float64("blended_score", result.BlendedScore),
	)

	return s.RecordCouncilResult(ctx, sub.ID, result)
}

func seatReview(reviews []domain.PersonaReview, seat domain.Persona) domain.PersonaReview {
	for _, r := range reviews {
		if r.Persona == seat {
			return r
		}
	}
	return domain.PersonaReview{
		Persona: seat,
		Verdict: domain.VerdictNeedsMoreEvidence,
		Notes:   []string{"seat missing"},
		Failed:  true,
	}
}
