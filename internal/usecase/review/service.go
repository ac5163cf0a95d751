package review

import (
	"context"
	"errors"
	"time"

	domain "mindvault/internal/domain/review"
	"mindvault/internal/ports"
)

// Service orchestrates the review pipeline: intake, stage advancement,
// the AI council, expert decisions, certification and rewards.
type Service struct {
	repo     ports.SubmissionRepository
	audit    ports.AuditLog
	uow      ports.UnitOfWork
	queue    ports.Queue
	matcher  ports.DuplicateMatcher
	scorer   ports.PatentabilityScorer
	personas []ports.CouncilPersona
	ledger   ports.Ledger
	cache    ports.Cache
	policy   domain.RewardPolicy

	councilTimeout time.Duration
	concurrency    int
}

type Options struct {
	Repo       ports.SubmissionRepository
	Audit      ports.AuditLog
	UnitOfWork ports.UnitOfWork
	Queue      ports.Queue
	Matcher    ports.DuplicateMatcher
	Scorer     ports.PatentabilityScorer
	Personas   []ports.CouncilPersona
	Ledger     ports.Ledger
	Cache      ports.Cache
	Policy     domain.RewardPolicy

	// CouncilTimeout bounds a single persona evaluation; a seat that runs
	// over is folded in as failed rather than stalling deliberation.
	CouncilTimeout time.Duration
	// Concurrency is the worker count per stage queue.
	Concurrency int
}

func NewService(opts Options) *Service {
	timeout := opts.CouncilTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	return &Service{
		repo:           opts.Repo,
		audit:          opts.Audit,
		uow:            opts.UnitOfWork,
		queue:          opts.Queue,
		matcher:        opts.Matcher,
		scorer:         opts.Scorer,
		personas:       opts.Personas,
		ledger:         opts.Ledger,
		cache:          opts.Cache,
		policy:         opts.Policy,
		councilTimeout: timeout,
		concurrency:    concurrency,
	}
}

type CreateSubmissionInput struct {
	OwnerID string
	Type    string
	Files   []FileInput
}

type FileInput struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

type ExpertDecisionInput struct {
	SubmissionID string
	ExpertID     string
	Approved     bool
	Feedback     string
}

type AdminOverrideInput struct {
	SubmissionID string
	NewStatus    string
	Reason       string
}

func (s *Service) checkDeps(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.repo == nil {
		return errors.New("submission repository is required")
	}
	if s.audit == nil {
		return errors.New("audit log is required")
	}
	if s.uow == nil {
		return errors.New("unit of work is required")
	}
	return nil
}

// Retryable classifies errors for the stage queues: only transient
// dependency failures and lost optimistic-concurrency races earn a retry.
func Retryable(err error) bool {
	return domain.Retryable(err) || errors.Is(err, ports.ErrVersionConflict)
}
