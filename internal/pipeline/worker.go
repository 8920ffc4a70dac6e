package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

const (
	dequeueBlock   = 2 * time.Second
	dequeueBackoff = time.Second
	maxRetryDelay  = 5 * time.Minute
)

// JobProcessor handles one job.
type JobProcessor interface {
	Process(ctx context.Context, job domain.Job) (domain.JobOutcome, error)
}

// WorkerPoolConfig sizes a WorkerPool.
type WorkerPoolConfig struct {
	Workers      int
	Concurrency  int
	MaxAttempts  int
	RetryBackoff time.Duration
}

// WorkerPool pulls jobs from the queue with Workers×Concurrency consumers.
// Any terminal outcome acks the job; only errors and panics are retried.
type WorkerPool struct {
	queue  domain.JobQueue
	proc   JobProcessor
	cfg    WorkerPoolConfig
	id     string
	logger *slog.Logger
}

// NewWorkerPool creates a WorkerPool. Non-positive sizes default to 1.
func NewWorkerPool(queue domain.JobQueue, proc JobProcessor, cfg WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	cfg.Workers = max(cfg.Workers, 1)
	cfg.Concurrency = max(cfg.Concurrency, 1)
	cfg.MaxAttempts = max(cfg.MaxAttempts, 1)
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 2 * time.Second
	}
	return &WorkerPool{
		queue:  queue,
		proc:   proc,
		cfg:    cfg,
		id:     uuid.NewString()[:8],
		logger: logger.With(slog.String("component", "worker_pool")),
	}
}

// Size is the number of concurrent consumers.
func (w *WorkerPool) Size() int { return w.cfg.Workers * w.cfg.Concurrency }

// Run consumes until ctx is cancelled.
func (w *WorkerPool) Run(ctx context.Context) error {
	w.logger.Info("worker pool starting",
		slog.Int("workers", w.cfg.Workers),
		slog.Int("concurrency", w.cfg.Concurrency),
	)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Workers; i++ {
		for j := 0; j < w.cfg.Concurrency; j++ {
			consumer := fmt.Sprintf("%s-%d-%d", w.id, i, j)
			g.Go(func() error {
				w.consume(ctx, consumer)
				return nil
			})
		}
	}
	err := g.Wait()
	w.logger.Info("worker pool stopped")
	return err
}

func (w *WorkerPool) consume(ctx context.Context, consumer string) {
	for ctx.Err() == nil {
		d, err := w.queue.Dequeue(ctx, consumer, dequeueBlock)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("dequeue failed",
				slog.String("consumer", consumer),
				slog.String("error", err.Error()),
			)
			sleep(ctx, dequeueBackoff)
			continue
		}
		if d == nil {
			continue
		}
		w.Handle(ctx, *d)
	}
}

// Handle processes one delivery and settles it on the queue.
func (w *WorkerPool) Handle(ctx context.Context, d domain.Delivery) {
	log := w.logger.With(
		slog.String("job_id", d.Job.ID),
		slog.Int("attempt", d.Job.Attempts+1),
	)

	if d.Job.Type != domain.JobTypeGenerateSignal {
		log.Error("unknown job type", slog.String("type", d.Job.Type))
		if err := w.queue.Fail(ctx, d, "unknown job type "+d.Job.Type); err != nil {
			log.Error("fail job failed", slog.String("error", err.Error()))
		}
		return
	}

	if d.Job.Attempts >= w.cfg.MaxAttempts {
		log.Error("job abandoned too many times", slog.Int("max_attempts", w.cfg.MaxAttempts))
		if err := w.queue.Fail(ctx, d, fmt.Sprintf("abandoned after %d attempts", d.Job.Attempts)); err != nil {
			log.Error("fail job failed", slog.String("error", err.Error()))
		}
		return
	}

	start := time.Now()
	outcome, err := w.safeProcess(ctx, d.Job)
	if err == nil {
		log.Info("job done",
			slog.String("outcome", string(outcome)),
			slog.Duration("took", time.Since(start)),
		)
		if err := w.queue.Ack(ctx, d); err != nil {
			log.Error("ack failed", slog.String("error", err.Error()))
		}
		return
	}

	if d.Job.Attempts+1 >= w.cfg.MaxAttempts {
		log.Error("job failed permanently", slog.String("error", err.Error()))
		if ferr := w.queue.Fail(ctx, d, err.Error()); ferr != nil {
			log.Error("fail job failed", slog.String("error", ferr.Error()))
		}
		return
	}

	delay := w.RetryDelay(d.Job.Attempts)
	log.Warn("job failed, retrying",
		slog.String("error", err.Error()),
		slog.Duration("delay", delay),
	)
	if rerr := w.queue.Retry(ctx, d, delay); rerr != nil {
		log.Error("retry job failed", slog.String("error", rerr.Error()))
	}
}

// RetryDelay is the exponential backoff before retry number attempts+1.
func (w *WorkerPool) RetryDelay(attempts int) time.Duration {
	d := time.Duration(float64(w.cfg.RetryBackoff) * math.Pow(2, float64(attempts)))
	if d <= 0 || d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

// safeProcess turns a panic into an error so the job is retried.
func (w *WorkerPool) safeProcess(ctx context.Context, job domain.Job) (outcome domain.JobOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("job panicked",
				slog.String("job_id", job.ID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.proc.Process(ctx, job)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
