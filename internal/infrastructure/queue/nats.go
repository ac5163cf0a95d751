package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"mindvault/internal/bootstrap/logging"
	"mindvault/internal/errs"
	"mindvault/internal/ports"
)

const (
	natsStreamPrefix  = "MINDVAULT_"
	natsSubjectPrefix = "mindvault.stage."

	headerSubmissionID = "MV-Submission-Id"
	headerAttempt      = "MV-Attempt"
	headerMaxAttempts  = "MV-Max-Attempts"
)

// NATSQueue is the JetStream-backed Queue driver for multi-process
// deployments. Retry scheduling and attempt accounting follow the same
// policy as the memory driver: the consumer acks every delivery and
// republishes retries itself after backoff, so the server's redelivery
// logic never competes with ours.
//
// The per-submission serialization guard here is process-local; across
// processes the repository's version CAS provides the ordering guarantee.
type NATSQueue struct {
	nc *nats.Conn
	js nats.JetStreamContext

	mu         sync.Mutex
	stages     map[string]*natsStage
	activeByID map[string]struct{}

	attempts    int
	baseBackoff time.Duration
	retryable   func(error) bool
	deadLetter  func(ctx context.Context, job ports.Job, cause error)

	baseCtx context.Context
	metrics *queueMetrics

	draining bool
	workers  sync.WaitGroup
	stop     chan struct{}
}

type natsStage struct {
	sub       *nats.Subscription
	paused    bool
	consuming bool
	active    int
	completed int
	failed    int
}

var _ ports.Queue = (*NATSQueue)(nil)

type NATSOptions struct {
	URL         string
	Stages      []string
	Attempts    int
	BaseBackoff time.Duration
	Retryable   func(error) bool
	DeadLetter  func(ctx context.Context, job ports.Job, cause error)
	Registerer  prometheus.Registerer
	BaseCtx     context.Context
}

func NewNATSQueue(opts NATSOptions) (*NATSQueue, error) {
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

	nc, err := nats.Connect(opts.URL, nats.Name("mindvault-engine"))
	if err != nil {
		return nil, errs.Wrap(err, "connect nats")
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, errs.Wrap(err, "open jetstream context")
	}

	q := &NATSQueue{
		nc:          nc,
		js:          js,
		stages:      make(map[string]*natsStage, len(opts.Stages)),
		activeByID:  make(map[string]struct{}),
		attempts:    opts.Attempts,
		baseBackoff: opts.BaseBackoff,
		retryable:   opts.Retryable,
		deadLetter:  opts.DeadLetter,
		baseCtx:     opts.BaseCtx,
		metrics:     newQueueMetrics(opts.Registerer),
		stop:        make(chan struct{}),
	}

	for _, stage := range opts.Stages {
		if _, err := js.AddStream(&nats.StreamConfig{
			Name:      natsStreamPrefix + stage,
			Subjects:  []string{natsSubjectPrefix + stage},
			Retention: nats.WorkQueuePolicy,
			Storage:   nats.FileStorage,
		}); err != nil {
			nc.Close()
			return nil, errs.Wrapf(err, "add stream for stage %q", stage)
		}
		q.stages[stage] = &natsStage{}
	}
	return q, nil
}

func (q *NATSQueue) Enqueue(_ context.Context, stage string, submissionID string, payloadJSON string, opts ports.EnqueueOptions) error {
	q.mu.Lock()
	_, ok := q.stages[stage]
	draining := q.draining
	q.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ports.ErrUnknownStage, stage)
	}
	if draining {
		return fmt.Errorf("queue is draining, rejected job for stage %q", stage)
	}

	maxTry := q.attempts
	if opts.Attempts > 0 {
		maxTry = opts.Attempts
	}

	msg := &nats.Msg{
		Subject: natsSubjectPrefix + stage,
		Data:    []byte(payloadJSON),
		Header: nats.Header{
			headerSubmissionID: []string{submissionID},
			headerAttempt:      []string{"1"},
			headerMaxAttempts:  []string{strconv.Itoa(maxTry)},
		},
	}

	publish := func() {
		if _, err := q.js.PublishMsg(msg); err != nil {
			logging.Error(q.baseCtx, "publish stage job failed",
				slog.String("stage", stage),
				slog.String("submission_id", submissionID),
				slog.Any("err", errs.Loggable(err)),
			)
			return
		}
		q.metrics.enqueued.WithLabelValues(stage).Inc()
	}

	if opts.Delay > 0 {
		// JetStream has no deferred publish; schedule it.
		time.AfterFunc(opts.Delay, publish)
		return nil
	}

	if _, err := q.js.PublishMsg(msg); err != nil {
		return errs.Wrapf(err, "publish job for stage %q", stage)
	}
	q.metrics.enqueued.WithLabelValues(stage).Inc()
	return nil
}

func (q *NATSQueue) Consume(stage string, concurrency int, handler ports.Handler) error {
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

	sub, err := q.js.PullSubscribe(
		natsSubjectPrefix+stage,
		"engine-"+stage,
		nats.ManualAck(),
		nats.AckExplicit(),
	)
	if err != nil {
		return errs.Wrapf(err, "pull subscribe stage %q", stage)
	}

	q.mu.Lock()
	st.sub = sub
	q.mu.Unlock()

	if concurrency < 1 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		q.workers.Add(1)
		go q.fetchLoop(stage, sub, handler)
	}
	return nil
}

func (q *NATSQueue) fetchLoop(stage string, sub *nats.Subscription, handler ports.Handler) {
	defer q.workers.Done()

	for {
		select {
		case <-q.stop:
			return
		default:
		}

		q.mu.Lock()
		paused := q.stages[stage].paused
		q.mu.Unlock()
		if paused {
			time.Sleep(200 * time.Millisecond)
			continue
		}

		msgs, err := sub.Fetch(1, nats.MaxWait(time.Second))
		if err != nil {
			// Timeouts are the idle path.
			continue
		}
		for _, msg := range msgs {
			q.handleMsg(stage, msg, handler)
		}
	}
}

func (q *NATSQueue) handleMsg(stage string, msg *nats.Msg, handler ports.Handler) {
	submissionID := msg.Header.Get(headerSubmissionID)
	attempt, _ := strconv.Atoi(msg.Header.Get(headerAttempt))
	if attempt < 1 {
		attempt = 1
	}
	maxTry, _ := strconv.Atoi(msg.Header.Get(headerMaxAttempts))
	if maxTry < 1 {
		maxTry = q.attempts
	}

	// Process-local serialization guard; wait for the in-flight job of the
	// same submission to clear before running another.
	for {
		q.mu.Lock()
		if _, busy := q.activeByID[submissionID]; !busy {
			q.activeByID[submissionID] = struct{}{}
			q.stages[stage].active++
			q.metrics.active.WithLabelValues(stage).Inc()
			q.mu.Unlock()
			break
		}
		q.mu.Unlock()
		time.Sleep(50 * time.Millisecond)
	}

	job := ports.Job{
		ID:           msg.Header.Get(nats.MsgIdHdr),
		Stage:        stage,
		SubmissionID: submissionID,
		PayloadJSON:  string(msg.Data),
		Attempt:      attempt,
	}

	ctx := logging.WithAttrs(q.baseCtx,
		slog.String("component", "queue.nats"),
		slog.String("stage", stage),
		slog.String("submission_id", submissionID),
		slog.Int("attempt", attempt),
	)

	err := handler(ctx, job)

	q.mu.Lock()
	q.stages[stage].active--
	delete(q.activeByID, submissionID)
	q.metrics.active.WithLabelValues(stage).Dec()
	q.mu.Unlock()

	_ = msg.Ack()

	switch {
	case err == nil:
		q.mu.Lock()
		q.stages[stage].completed++
		q.mu.Unlock()
		q.metrics.completed.WithLabelValues(stage).Inc()

	case q.retryable(err) && attempt < maxTry:
		backoff := q.baseBackoff << (attempt - 1)
		q.metrics.retried.WithLabelValues(stage).Inc()
		logging.Warn(ctx, "job failed, scheduling retry",
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

		retry := &nats.Msg{
			Subject: msg.Subject,
			Data:    msg.Data,
			Header: nats.Header{
				headerSubmissionID: []string{submissionID},
				headerAttempt:      []string{strconv.Itoa(attempt + 1)},
				headerMaxAttempts:  []string{strconv.Itoa(maxTry)},
			},
		}
		time.AfterFunc(backoff, func() {
			if _, pubErr := q.js.PublishMsg(retry); pubErr != nil {
				logging.Error(ctx, "retry publish failed", slog.Any("err", errs.Loggable(pubErr)))
			}
		})

	default:
		q.mu.Lock()
		q.stages[stage].failed++
		q.mu.Unlock()
		q.metrics.failed.WithLabelValues(stage).Inc()
		logging.Error(ctx, "job exhausted, moved to dead letters", slog.String("error", err.Error()))
		if q.deadLetter != nil {
			q.deadLetter(ctx, job, err)
		}
	}
}

func (q *NATSQueue) Stats(stage string) (ports.StageStats, error) {
	q.mu.Lock()
	st, ok := q.stages[stage]
	if !ok {
		q.mu.Unlock()
		return ports.StageStats{}, fmt.Errorf("%w: %q", ports.ErrUnknownStage, stage)
	}
	stats := ports.StageStats{
		Active:    st.active,
		Completed: st.completed,
		Failed:    st.failed,
	}
	q.mu.Unlock()

	if info, err := q.js.StreamInfo(natsStreamPrefix + stage); err == nil {
		stats.Waiting = int(info.State.Msgs)
	}
	return stats, nil
}

func (q *NATSQueue) Pause(stage string) error {
	return q.setPaused(stage, true)
}

func (q *NATSQueue) Resume(stage string) error {
	return q.setPaused(stage, false)
}

func (q *NATSQueue) setPaused(stage string, paused bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	st, ok := q.stages[stage]
	if !ok {
		return fmt.Errorf("%w: %q", ports.ErrUnknownStage, stage)
	}
	st.paused = paused
	return nil
}

func (q *NATSQueue) Drain(ctx context.Context) error {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return nil
	}
	q.draining = true
	q.mu.Unlock()
	close(q.stop)

	done := make(chan struct{})
	go func() {
		q.workers.Wait()
		q.nc.Close()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
