package ports

import (
	"context"
	"errors"
	"time"
)

var ErrUnknownStage = errors.New("unknown stage queue")

// Job is one unit of stage work. Jobs are keyed by submission id; the
// queue guarantees at most one active job per submission id per stage.
type Job struct {
	ID           string
	Stage        string
	SubmissionID string
	PayloadJSON  string
	Attempt      int
}

// EnqueueOptions tunes a single enqueue. Zero values fall back to the
// queue's configured defaults.
type EnqueueOptions struct {
	Delay    time.Duration
	Attempts int
}

// StageStats mirrors the classic waiting/active/completed/failed gauge set.
type StageStats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Handler processes one job. A returned error classified as retryable is
// re-enqueued with exponential backoff up to the attempt limit; anything
// else, and exhaustion, moves the job to the stage's dead letters.
type Handler func(ctx context.Context, job Job) error

// Queue is a named, durable, per-stage job queue with bounded worker
// concurrency.
type Queue interface {
	Enqueue(ctx context.Context, stage string, submissionID string, payloadJSON string, opts EnqueueOptions) error
	Consume(stage string, concurrency int, handler Handler) error
	Stats(stage string) (StageStats, error)
	Pause(stage string) error
	Resume(stage string) error
	// Drain stops intake and blocks until in-flight jobs finish.
	Drain(ctx context.Context) error
}
