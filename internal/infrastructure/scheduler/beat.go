package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one periodic maintenance action. Run is invoked on every tick;
// a returned error is logged and the task keeps its schedule.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Beat drives the periodic maintenance tasks: the dead letter sweep and
// the access token refresh. Each task ticks on its own goroutine so a
// slow sweep cannot delay a token refresh.
type Beat struct {
	tasks  []Task
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewBeat creates a beat over the given tasks. Tasks with a non-positive
// interval are dropped.
func NewBeat(logger *zap.Logger, tasks ...Task) *Beat {
	kept := make([]Task, 0, len(tasks))
	for _, task := range tasks {
		if task.Interval > 0 && task.Run != nil {
			kept = append(kept, task)
		}
	}
	return &Beat{
		tasks:  kept,
		logger: logger,
	}
}

// Start launches the task loops. Calling Start on a running beat is a no-op.
func (b *Beat) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.isRunning {
		b.mu.Unlock()
		return nil
	}
	b.isRunning = true
	b.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	for _, task := range b.tasks {
		b.wg.Add(1)
		go b.runLoop(ctx, task)
	}

	b.logger.Info("Maintenance beat started", zap.Int("tasks", len(b.tasks)))
	return nil
}

// Stop cancels the task loops and waits for them to drain, bounded by ctx
func (b *Beat) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.isRunning {
		b.mu.Unlock()
		return nil
	}
	b.isRunning = false
	b.mu.Unlock()

	if b.cancel != nil {
		b.cancel()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("Maintenance beat stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Beat) runLoop(ctx context.Context, task Task) {
	defer b.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.runTask(ctx, task)
		}
	}
}

func (b *Beat) runTask(ctx context.Context, task Task) {
	// A task never gets longer than its own interval
	runCtx, cancel := context.WithTimeout(ctx, task.Interval)
	defer cancel()

	started := time.Now()
	if err := task.Run(runCtx); err != nil {
		b.logger.Error("Maintenance task failed",
			zap.String("task", task.Name),
			zap.Error(err),
		)
		return
	}

	b.logger.Debug("Maintenance task finished",
		zap.String("task", task.Name),
		zap.Duration("took", time.Since(started)),
	)
}
