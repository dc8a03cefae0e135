package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Enqueuer schedules sync jobs for asynchronous execution
type Enqueuer interface {
	// Enqueue schedules a job to run after the given delay. Args must be
	// JSON-serializable.
	Enqueue(ctx context.Context, name string, args interface{}, delay time.Duration) error
}

// RepositoryEnqueuer enqueues jobs into the durable job table, taking the
// retry policy for each job name from the handler registry
type RepositoryEnqueuer struct {
	repo     JobRepository
	registry *Registry
}

// NewRepositoryEnqueuer creates a new RepositoryEnqueuer
func NewRepositoryEnqueuer(repo JobRepository, registry *Registry) *RepositoryEnqueuer {
	return &RepositoryEnqueuer{
		repo:     repo,
		registry: registry,
	}
}

// Enqueue persists a pending job due after the delay
func (e *RepositoryEnqueuer) Enqueue(ctx context.Context, name string, args interface{}, delay time.Duration) error {
	spec, err := e.registry.Lookup(name)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to marshal job args for %s: %w", name, err)
	}

	job := NewJob(name, payload, spec.MaxAttempts, delay)
	return e.repo.Save(ctx, job)
}

// Ensure RepositoryEnqueuer implements Enqueuer
var _ Enqueuer = (*RepositoryEnqueuer)(nil)
