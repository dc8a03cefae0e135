package queue

import (
	"context"
	"sync"
	"time"

	"github.com/nexus/backend/internal/domain/integration"
	"github.com/nexus/backend/internal/domain/shared"
)

// Handler executes one job and classifies the result
type Handler interface {
	Execute(ctx context.Context, job *Job) integration.Outcome
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context, job *Job) integration.Outcome

// Execute calls the wrapped function
func (f HandlerFunc) Execute(ctx context.Context, job *Job) integration.Outcome {
	return f(ctx, job)
}

// HandlerSpec binds a handler to its retry policy. Messaging jobs retry
// faster and give up sooner than CRM jobs.
type HandlerSpec struct {
	Handler     Handler
	MaxAttempts int
	BackoffBase time.Duration
	Timeout     time.Duration
}

// Registry maps job names to their handler specs
type Registry struct {
	mu    sync.RWMutex
	specs map[string]HandlerSpec
}

// NewRegistry creates an empty handler registry
func NewRegistry() *Registry {
	return &Registry{
		specs: make(map[string]HandlerSpec),
	}
}

// Register binds a job name to a handler spec
func (r *Registry) Register(name string, spec HandlerSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[name] = spec
}

// Lookup returns the spec for a job name
func (r *Registry) Lookup(name string) (HandlerSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[name]
	if !ok {
		return HandlerSpec{}, shared.NewDomainError("UNKNOWN_JOB", "No handler registered for job: "+name)
	}
	return spec, nil
}

// Names returns all registered job names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	return names
}
