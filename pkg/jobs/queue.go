package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrQueueFull is returned when the buffer has no room for another job.
var ErrQueueFull = errors.New("queue buffer full")

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	// DrainTimeout bounds how long Stop keeps processing buffered jobs.
	DrainTimeout time.Duration
	Logger       zerolog.Logger
}

// Queue is a lightweight in-memory job dispatcher backed by goroutines.
type Queue struct {
	name    string
	handler Handler

	workers      int
	maxRetries   int
	retryDelay   time.Duration
	drainTimeout time.Duration
	logger       zerolog.Logger

	jobs     chan Job
	ctx      context.Context
	cancel   context.CancelFunc
	stopping chan struct{}
	wg       sync.WaitGroup
	retries  sync.WaitGroup
	mu       sync.Mutex
	started  bool
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}

	return &Queue{
		name:         name,
		handler:      handler,
		workers:      cfg.Workers,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		drainTimeout: cfg.DrainTimeout,
		logger:       cfg.Logger.With().Str("component", "jobs").Str("queue", name).Logger(),
		jobs:         make(chan Job, cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.stopping = make(chan struct{})
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(q.stopping)
	}
	q.started = true
	q.logger.Info().Int("workers", q.workers).Msg("queue started")
}

// Stop rejects new jobs, lets the workers finish what is buffered and waits for them.
// Jobs still buffered after the drain timeout are dropped and counted in the returned total.
func (q *Queue) Stop() int {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return 0
	}
	q.started = false
	close(q.stopping)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		q.retries.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(q.drainTimeout):
		q.logger.Warn().Dur("timeout", q.drainTimeout).Msg("queue drain timed out")
	}
	q.cancel()
	<-done

	dropped := 0
	for {
		select {
		case job := <-q.jobs:
			dropped++
			q.logger.Warn().Str("job_id", job.ID).Str("type", job.Type).Msg("job dropped on shutdown")
			continue
		default:
		}
		break
	}
	q.logger.Info().Int("dropped", dropped).Msg("queue stopped")
	return dropped
}

// Enqueue pushes a job onto the queue without blocking the caller.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	ctx := q.ctx
	started := q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.jobs <- job:
		return nil
	default:
		return fmt.Errorf("queue %s: %w", q.name, ErrQueueFull)
	}
}

func (q *Queue) worker(stopping <-chan struct{}) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case <-stopping:
			q.drain()
			return
		case job := <-q.jobs:
			q.process(job)
		}
	}
}

// drain handles whatever is buffered without waiting for more.
func (q *Queue) drain() {
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.process(job)
		default:
			return
		}
	}
}

func (q *Queue) process(job Job) {
	if err := q.handler(q.ctx, job); err != nil {
		q.handleFailure(job, err)
	}
}

func (q *Queue) handleFailure(job Job, err error) {
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.logger.Error().Err(err).Str("job_id", job.ID).Str("type", job.Type).Msg("job exceeded retries")
		return
	}
	q.logger.Warn().Err(err).Str("job_id", job.ID).Str("type", job.Type).Int("attempt", job.Attempt).Msg("job failed, retrying")

	q.mu.Lock()
	stopping := q.stopping
	q.mu.Unlock()

	q.retries.Add(1)
	go func(j Job) {
		defer q.retries.Done()
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-stopping:
			q.logger.Warn().Str("job_id", j.ID).Str("type", j.Type).Msg("retry abandoned on shutdown")
		case <-timer.C:
			if err := q.Enqueue(j); err != nil {
				q.logger.Error().Err(err).Str("job_id", j.ID).Msg("failed to requeue job")
			}
		}
	}(job)
}
