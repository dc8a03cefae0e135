package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexus/backend/internal/domain/integration"
	"github.com/nexus/backend/internal/infrastructure/queue"
)

// DeadLetterService stores jobs that exhausted their retries and can
// resubmit them through the normal queue. Resolving marks the entry
// resolved immediately; if the resubmitted job dies again it produces a
// fresh entry.
type DeadLetterService struct {
	entries  integration.DeadLetterRepository
	enqueuer queue.Enqueuer
	logger   *zap.Logger
}

// NewDeadLetterService creates the dead letter service
func NewDeadLetterService(
	entries integration.DeadLetterRepository,
	enqueuer queue.Enqueuer,
	logger *zap.Logger,
) *DeadLetterService {
	return &DeadLetterService{
		entries:  entries,
		enqueuer: enqueuer,
		logger:   logger,
	}
}

var _ queue.DeadLetterSink = (*DeadLetterService)(nil)

// Record stores an exhausted job as a dead letter entry
func (s *DeadLetterService) Record(ctx context.Context, job *queue.Job, errMsg string) error {
	leadID := uuid.Nil
	if args, err := DecodeArgs(job); err == nil {
		leadID = args.LeadID
	}

	entry := integration.NewDeadLetterEntry(
		leadID,
		PlatformForJob(job.Name),
		job.Name,
		job.Args,
		errMsg,
		job.Attempt,
	)
	if err := s.entries.Record(ctx, entry); err != nil {
		return fmt.Errorf("record dead letter for job %s: %w", job.Name, err)
	}

	s.logger.Warn("Job recorded as dead letter",
		zap.String("job", job.Name),
		zap.String("lead_id", leadID.String()),
		zap.Int("attempts", job.Attempt),
	)
	return nil
}

// List returns up to limit unresolved entries, oldest first
func (s *DeadLetterService) List(ctx context.Context, limit int) ([]integration.DeadLetterEntry, error) {
	return s.entries.ListUnresolved(ctx, limit)
}

// CountUnresolved returns the number of entries awaiting resolution
func (s *DeadLetterService) CountUnresolved(ctx context.Context) (int64, error) {
	return s.entries.CountUnresolved(ctx)
}

// Resolve resubmits the dead job with a fresh attempt budget and marks
// the entry resolved
func (s *DeadLetterService) Resolve(ctx context.Context, id uuid.UUID) error {
	entry, err := s.entries.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if entry.Resolved {
		return nil
	}

	if err := s.enqueuer.Enqueue(ctx, entry.JobName, json.RawMessage(entry.JobArgs), 0); err != nil {
		return fmt.Errorf("re-enqueue dead letter %s: %w", id, err)
	}

	if err := s.entries.MarkResolved(ctx, id); err != nil {
		return fmt.Errorf("mark dead letter %s resolved: %w", id, err)
	}

	s.logger.Info("Dead letter resolved",
		zap.String("id", id.String()),
		zap.String("job", entry.JobName),
	)
	return nil
}

// Sweep resolves up to limit unresolved entries and returns how many were
// resubmitted. Individual failures are logged and skipped so one bad
// entry cannot stall the sweep.
func (s *DeadLetterService) Sweep(ctx context.Context, limit int) (int, error) {
	entries, err := s.entries.ListUnresolved(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list unresolved dead letters: %w", err)
	}

	resolved := 0
	for _, entry := range entries {
		if err := s.Resolve(ctx, entry.ID); err != nil {
			s.logger.Error("Failed to resolve dead letter",
				zap.String("id", entry.ID.String()),
				zap.Error(err),
			)
			continue
		}
		resolved++
	}
	return resolved, nil
}
