package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"mindvault/internal/bootstrap/logging"
	"mindvault/internal/ports"
)

// MemoryQueue is the in-process Queue driver: named per-stage queues,
// bounded worker pools, exponential backoff retry, and dead letters.
//
// Ordering guarantee: at most one job per submission id is active across
// all stages at any moment, so a duplicate enqueue from a retried callback
// cannot run two transitions for the same submission concurrently.
type MemoryQueue struct {
	mu   sync.Mutex
	cond *sync.Cond

	stages     map[string]*stageState
	activeByID map[string]struct{}

	attempts    int
	baseBackoff time.Duration
	retryable   func(error) bool
	deadLetter  func(ctx context.Context, job ports.Job, cause error)

	baseCtx context.Context
	metrics *queueMetrics

	draining bool
	workers  sync.WaitGroup
}

type stageState struct {
	waiting   []*memoryJob
	active    int
	completed int
	failed    int
	paused    bool
	consuming bool
	dead      []deadJob
}

type memoryJob struct {
	job     ports.Job
	readyAt time.Time
	maxTry  int
}

type deadJob struct {
	job   ports.Job
	cause string
}

type Options struct {
	Stages      []string
	Attempts    int
	BaseBackoff time.Duration
	// Retryable classifies handler errors; a false verdict dead-letters
	// the job immediately regardless of remaining attempts.
	Retryable  func(error) bool
	DeadLetter func(ctx context.Context, job ports.Job, cause error)
	Registerer prometheus.Registerer
	BaseCtx    context.Context
}

var _ ports.Queue = (*MemoryQueue)(nil)

func NewMemoryQueue(opts Options) *MemoryQueue {
	if opts.Attempts < 1 {
		opts.Attempts = 3
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 2 * time.Second
	}
	if opts.Retryable == nil {
		opts.Retryable = func(error) bool { return true }
	}
	if opts.BaseCtx == nil {
		opts.BaseCtx = context.Background()
	}

	q := &MemoryQueue{
		stages:      make(map[string]*stageState, len(opts.Stages)),
		activeByID:  make(map[string]struct{}),
		attempts:    opts.Attempts,
		baseBackoff: opts.BaseBackoff,
		retryable:   opts.Retryable,
		deadLetter:  opts.DeadLetter,
		baseCtx:     opts.BaseCtx,
		metrics:     newQueueMetrics(opts.Registerer),
	}
	q.cond = sync.NewCond(&q.mu)

	for _, stage := range opts.Stages {
		q.stages[stage] = &stageState{}
	}
	return q
}

func (q *MemoryQueue) Enqueue(_ context.Context, stage string, submissionID string, payloadJSON string, opts ports.EnqueueOptions) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	st, ok := q.stages[stage]
	if !ok {
		return fmt.Errorf("%w: %q", ports.ErrUnknownStage, stage)
	}
	if q.draining {
		return fmt.Errorf("queue is draining, rejected job for stage %q", stage)
	}

	maxTry := q.attempts
	if opts.Attempts > 0 {
		maxTry = opts.Attempts
	}

	item := &memoryJob{
		job: ports.Job{
			ID:           uuid.NewString(),
			Stage:        stage,
			SubmissionID: submissionID,
			PayloadJSON:  payloadJSON,
			Attempt:      1,
		},
		readyAt: time.Now().Add(opts.Delay),
		maxTry:  maxTry,
	}
	st.waiting = append(st.waiting, item)
	q.metrics.enqueued.WithLabelValues(stage).Inc()

	if opts.Delay > 0 {
		time.AfterFunc(opts.Delay, q.cond.Broadcast)
	} else {
		q.cond.Broadcast()
	}
	return nil
}

func (q *MemoryQueue) Consume(stage string, concurrency int, handler ports.Handler) error {
	q.mu.Lock()
	st, ok := q.stages[stage]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("%w: %q", ports.ErrUnknownStage, stage)
	}
	if st.consuming {
		q.mu.Unlock()
		return fmt.Errorf("stage %q already has a consumer", stage)
	}
	st.consuming = true
	q.mu.Unlock()

	if concurrency < 1 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		q.workers.Add(1)
		go q.workLoop(stage, handler)
	}
	return nil
}

func (q *MemoryQueue) workLoop(stage string, handler ports.Handler) {
	defer q.workers.Done()

	for {
		item, ok := q.next(stage)
		if !ok {
			return
		}
		q.run(stage, item, handler)
	}
}

// next blocks until an eligible job exists or the queue drains.
func (q *MemoryQueue) next(stage string) (*memoryJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	st := q.stages[stage]
	for {
		if q.draining {
			return nil, false
		}

		if !st.paused {
			if idx := q.eligibleIndex(st); idx >= 0 {
				item := st.waiting[idx]
				st.waiting = append(st.waiting[:idx], st.waiting[idx+1:]...)
				st.active++
				q.activeByID[item.job.SubmissionID] = struct{}{}
				q.metrics.active.WithLabelValues(stage).Inc()
				return item, true
			}

			// A delayed job may become eligible without a broadcast.
			if wake, ok := q.earliestReady(st); ok {
				time.AfterFunc(time.Until(wake), q.cond.Broadcast)
			}
		}

		q.cond.Wait()
	}
}

func (q *MemoryQueue) eligibleIndex(st *stageState) int {
	now := time.Now()
	for i, item := range st.waiting {
		if item.readyAt.After(now) {
			continue
		}
		if _, busy := q.activeByID[item.job.SubmissionID]; busy {
			continue
		}
		return i
	}
	return -1
}

func (q *MemoryQueue) earliestReady(st *stageState) (time.Time, bool) {
	var earliest time.Time
	found := false
	now := time.Now()
	for _, item := range st.waiting {
		if !item.readyAt.After(now) {
			continue
		}
		if !found || item.readyAt.Before(earliest) {
			earliest = item.readyAt
			found = true
		}
	}
	return earliest, found
}

func (q *MemoryQueue) run(stage string, item *memoryJob, handler ports.Handler) {
	ctx := logging.WithAttrs(q.baseCtx,
		slog.String("component", "queue"),
		slog.String("stage", stage),
		slog.String("submission_id", item.job.SubmissionID),
		slog.Int("attempt", item.job.Attempt),
	)

	err := handler(ctx, item.job)

	q.mu.Lock()
	st := q.stages[stage]
	st.active--
	delete(q.activeByID, item.job.SubmissionID)
	q.metrics.active.WithLabelValues(stage).Dec()

	switch {
	case err == nil:
		st.completed++
		q.metrics.completed.WithLabelValues(stage).Inc()

	case q.retryable(err) && item.job.Attempt < item.maxTry:
		backoff := q.baseBackoff << (item.job.Attempt - 1)
		item.job.Attempt++
		item.readyAt = time.Now().Add(backoff)
		st.waiting = append(st.waiting, item)
		q.metrics.retried.WithLabelValues(stage).Inc()
		time.AfterFunc(backoff, q.cond.Broadcast)
		logging.Warn(ctx, "job failed, scheduling retry",
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

	default:
		st.failed++
		st.dead = append(st.dead, deadJob{job: item.job, cause: err.Error()})
		q.metrics.failed.WithLabelValues(stage).Inc()
		logging.Error(ctx, "job exhausted, moved to dead letters", slog.String("error", err.Error()))
		if q.deadLetter != nil {
			// Invoked outside the lock below; capture here.
			defer func(job ports.Job, cause error) {
				q.deadLetter(ctx, job, cause)
			}(item.job, err)
		}
	}
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *MemoryQueue) Stats(stage string) (ports.StageStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	st, ok := q.stages[stage]
	if !ok {
		return ports.StageStats{}, fmt.Errorf("%w: %q", ports.ErrUnknownStage, stage)
	}
	return ports.StageStats{
		Waiting:   len(st.waiting),
		Active:    st.active,
		Completed: st.completed,
		Failed:    st.failed,
	}, nil
}

// DeadLetters returns the exhausted jobs of a stage, oldest first.
func (q *MemoryQueue) DeadLetters(stage string) ([]ports.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	st, ok := q.stages[stage]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ports.ErrUnknownStage, stage)
	}
	jobs := make([]ports.Job, 0, len(st.dead))
	for _, d := range st.dead {
		jobs = append(jobs, d.job)
	}
	return jobs, nil
}

func (q *MemoryQueue) Pause(stage string) error {
	return q.setPaused(stage, true)
}

func (q *MemoryQueue) Resume(stage string) error {
	return q.setPaused(stage, false)
}

func (q *MemoryQueue) setPaused(stage string, paused bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	st, ok := q.stages[stage]
	if !ok {
		return fmt.Errorf("%w: %q", ports.ErrUnknownStage, stage)
	}
	st.paused = paused
	if !paused {
		q.cond.Broadcast()
	}
	return nil
}

func (q *MemoryQueue) Drain(ctx context.Context) error {
	q.mu.Lock()
	q.draining = true
	q.mu.Unlock()
	q.cond.Broadcast()

	done := make(chan struct{})
	go func() {
		q.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
