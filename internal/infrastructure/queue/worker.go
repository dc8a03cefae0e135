package queue

import (
	"context"
	"sync"
	"time"

	"github.com/nexus/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// DeadLetterSink receives jobs that exhausted all retry attempts
type DeadLetterSink interface {
	Record(ctx context.Context, job *Job, errMsg string) error
}

// Metrics receives worker counters. Implementations must be safe for
// concurrent use.
type Metrics interface {
	JobProcessed(ctx context.Context, name string, outcome integration.OutcomeCode)
	JobRetried(ctx context.Context, name string)
	JobDead(ctx context.Context, name string)
}

// NopMetrics discards all counters
type NopMetrics struct{}

func (NopMetrics) JobProcessed(context.Context, string, integration.OutcomeCode) {}
func (NopMetrics) JobRetried(context.Context, string)                            {}
func (NopMetrics) JobDead(context.Context, string)                               {}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	// WorkerCount is the number of concurrent job executors
	WorkerCount int

	// PollInterval is how often the queue is polled for due jobs
	PollInterval time.Duration

	// BatchSize is the maximum number of jobs claimed per poll
	BatchSize int

	// DefaultTimeout bounds a single job execution when the handler spec
	// does not set its own
	DefaultTimeout time.Duration
}

// DefaultWorkerConfig returns sensible worker defaults
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		WorkerCount:    4,
		PollInterval:   2 * time.Second,
		BatchSize:      20,
		DefaultTimeout: 10 * time.Second,
	}
}

// Worker polls the durable job table and executes due jobs concurrently.
// Jobs are claimed with row locks, so multiple process instances can run
// workers against the same table.
type Worker struct {
	config   WorkerConfig
	repo     JobRepository
	registry *Registry
	sink     DeadLetterSink
	metrics  Metrics
	logger   *zap.Logger

	jobs   chan *Job
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewWorker creates a new worker pool
func NewWorker(
	config WorkerConfig,
	repo JobRepository,
	registry *Registry,
	sink DeadLetterSink,
	metrics Metrics,
	logger *zap.Logger,
) *Worker {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Worker{
		config:   config,
		repo:     repo,
		registry: registry,
		sink:     sink,
		metrics:  metrics,
		logger:   logger,
		jobs:     make(chan *Job, config.BatchSize*2),
	}
}

// Start launches the poll loop and worker goroutines
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	w.running = true

	runCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	for i := 0; i < w.config.WorkerCount; i++ {
		w.wg.Add(1)
		go w.runWorker(runCtx)
	}

	w.wg.Add(1)
	go w.pollLoop(runCtx)

	w.logger.Info("Sync job worker started",
		zap.Int("workers", w.config.WorkerCount),
		zap.Duration("poll_interval", w.config.PollInterval),
	)
	return nil
}

// Stop drains the pool and waits for in-flight jobs to finish
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Sync job worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) pollLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(w.jobs)
			return
		case <-ticker.C:
			w.claimBatch(ctx)
		}
	}
}

func (w *Worker) claimBatch(ctx context.Context) {
	jobs, err := w.repo.ClaimDue(ctx, w.config.BatchSize)
	if err != nil {
		w.logger.Error("Failed to claim due jobs", zap.Error(err))
		return
	}

	for _, job := range jobs {
		select {
		case w.jobs <- job:
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) runWorker(ctx context.Context) {
	defer w.wg.Done()

	for job := range w.jobs {
		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job *Job) {
	spec, err := w.registry.Lookup(job.Name)
	if err != nil {
		// A job nobody handles cannot make progress; park it as dead
		w.logger.Error("No handler for job, moving to dead",
			zap.String("job", job.Name),
			zap.String("job_id", job.ID.String()),
		)
		job.Attempt = job.MaxAttempts
		job.ScheduleRetry(0, err.Error())
		w.update(ctx, job)
		return
	}

	timeout := spec.Timeout
	if timeout == 0 {
		timeout = w.config.DefaultTimeout
	}
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	outcome := w.execute(jobCtx, spec, job)
	cancel()

	w.metrics.JobProcessed(ctx, job.Name, outcome.Code)

	switch outcome.Code {
	case integration.OutcomeSuccess:
		job.MarkSucceeded()

	case integration.OutcomeSkipped:
		w.logger.Debug("Job skipped",
			zap.String("job", job.Name),
			zap.String("reason", outcome.Reason),
		)
		job.MarkSucceeded()

	case integration.OutcomeTerminal:
		// Nothing a retry can fix; drop with a trace
		w.logger.Warn("Job failed terminally",
			zap.String("job", job.Name),
			zap.String("job_id", job.ID.String()),
			zap.Error(outcome.Err),
		)
		job.MarkSucceeded()

	case integration.OutcomeRetryable:
		errMsg := ""
		if outcome.Err != nil {
			errMsg = outcome.Err.Error()
		}
		if dead := job.ScheduleRetry(spec.BackoffBase, errMsg); dead {
			w.metrics.JobDead(ctx, job.Name)
			w.logger.Error("Job exhausted retries, moving to dead letter",
				zap.String("job", job.Name),
				zap.String("job_id", job.ID.String()),
				zap.Int("attempts", job.Attempt),
				zap.Error(outcome.Err),
			)
			if err := w.sink.Record(ctx, job, errMsg); err != nil {
				w.logger.Error("Failed to record dead letter",
					zap.String("job_id", job.ID.String()),
					zap.Error(err),
				)
			}
		} else {
			w.metrics.JobRetried(ctx, job.Name)
			w.logger.Warn("Job failed, retry scheduled",
				zap.String("job", job.Name),
				zap.String("job_id", job.ID.String()),
				zap.Int("attempt", job.Attempt),
				zap.Time("run_at", job.RunAt),
				zap.Error(outcome.Err),
			)
		}
	}

	w.update(ctx, job)
}

// execute runs the handler with panic recovery so one bad job cannot take
// down the worker
func (w *Worker) execute(ctx context.Context, spec HandlerSpec, job *Job) (outcome integration.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Job handler panicked",
				zap.String("job", job.Name),
				zap.String("job_id", job.ID.String()),
				zap.Any("panic", r),
			)
			outcome = integration.Retry(integration.ErrPlatformRequestFailed)
		}
	}()
	return spec.Handler.Execute(ctx, job)
}

func (w *Worker) update(ctx context.Context, job *Job) {
	if err := w.repo.Update(ctx, job); err != nil {
		w.logger.Error("Failed to update job",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}
}
