package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nexus/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobRepository persists and claims sync jobs
type JobRepository interface {
	Save(ctx context.Context, jobs ...*Job) error
	Update(ctx context.Context, job *Job) error
	FindByID(ctx context.Context, id uuid.UUID) (*Job, error)
	// ClaimDue atomically claims up to limit due jobs for processing.
	// Claimed jobs are invisible to other workers.
	ClaimDue(ctx context.Context, limit int) ([]*Job, error)
	CountByStatus(ctx context.Context) (map[JobStatus]int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// GormJobRepository implements JobRepository using GORM
type GormJobRepository struct {
	db *gorm.DB
}

// NewGormJobRepository creates a new GormJobRepository
func NewGormJobRepository(db *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: db}
}

// Save persists new jobs
func (r *GormJobRepository) Save(ctx context.Context, jobs ...*Job) error {
	if len(jobs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(jobs).Error
}

// Update persists changes to an existing job
func (r *GormJobRepository) Update(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Save(job).Error
}

// FindByID finds a job by its ID
func (r *GormJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*Job, error) {
	var job Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ClaimDue claims due jobs inside a transaction using SKIP LOCKED so
// concurrent workers never double-claim
func (r *GormJobRepository) ClaimDue(ctx context.Context, limit int) ([]*Job, error) {
	var claimed []*Job

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var jobs []*Job
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status IN ? AND run_at <= ?",
				[]JobStatus{JobStatusPending, JobStatusFailed}, time.Now()).
			Order("run_at ASC").
			Limit(limit).
			Find(&jobs).Error; err != nil {
			return err
		}

		if len(jobs) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, 0, len(jobs))
		for _, job := range jobs {
			if err := job.MarkProcessing(); err != nil {
				continue
			}
			ids = append(ids, job.ID)
		}

		if err := tx.Model(&Job{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":     JobStatusProcessing,
				"updated_at": time.Now(),
			}).Error; err != nil {
			return err
		}

		claimed = jobs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// CountByStatus returns job counts grouped by status
func (r *GormJobRepository) CountByStatus(ctx context.Context) (map[JobStatus]int64, error) {
	var results []struct {
		Status JobStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&Job{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&results).Error; err != nil {
		return nil, err
	}

	counts := make(map[JobStatus]int64, len(results))
	for _, result := range results {
		counts[result.Status] = result.Count
	}
	return counts, nil
}

// DeleteOlderThan removes succeeded jobs processed before the cutoff
func (r *GormJobRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", JobStatusSucceeded, cutoff).
		Delete(&Job{})
	return result.RowsAffected, result.Error
}

// Ensure GormJobRepository implements JobRepository
var _ JobRepository = (*GormJobRepository)(nil)
