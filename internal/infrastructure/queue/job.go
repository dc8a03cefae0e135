package queue

import (
	"time"

	"github.com/google/uuid"
	"github.com/nexus/backend/internal/domain/shared"
)

// JobStatus represents the lifecycle state of a queued sync job
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusSucceeded  JobStatus = "SUCCEEDED"
	JobStatusFailed     JobStatus = "FAILED"
	JobStatusDead       JobStatus = "DEAD"
)

// Job is a durable unit of sync work. Jobs survive restarts and are claimed
// by workers with row locks, so every enqueued job runs at least once.
type Job struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Name        string     `gorm:"type:varchar(100);not null"`
	Args        []byte     `gorm:"type:jsonb"`
	Status      JobStatus  `gorm:"type:varchar(20);not null;default:PENDING;index:idx_jobs_status_run_at,priority:1"`
	Attempt     int        `gorm:"not null;default:0"`
	MaxAttempts int        `gorm:"not null"`
	LastError   string     `gorm:"type:varchar(2000)"`
	RunAt       time.Time  `gorm:"not null;index:idx_jobs_status_run_at,priority:2"`
	ProcessedAt *time.Time
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the database table name
func (Job) TableName() string {
	return "sync_jobs"
}

// NewJob creates a pending job due after the given delay
func NewJob(name string, args []byte, maxAttempts int, delay time.Duration) *Job {
	now := time.Now()
	return &Job{
		ID:          uuid.New(),
		Name:        name,
		Args:        args,
		Status:      JobStatusPending,
		MaxAttempts: maxAttempts,
		RunAt:       now.Add(delay),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// MarkProcessing transitions the job to processing
func (j *Job) MarkProcessing() error {
	if j.Status != JobStatusPending && j.Status != JobStatusFailed {
		return shared.NewDomainError("INVALID_JOB_STATE", "Job must be pending or failed to start processing")
	}
	j.Status = JobStatusProcessing
	j.UpdatedAt = time.Now()
	return nil
}

// MarkSucceeded closes the job
func (j *Job) MarkSucceeded() {
	now := time.Now()
	j.Status = JobStatusSucceeded
	j.ProcessedAt = &now
	j.UpdatedAt = now
}

// ScheduleRetry counts a failed attempt and either re-queues the job with
// exponential backoff or moves it to dead when attempts are exhausted.
// Returns true when the job went dead.
func (j *Job) ScheduleRetry(base time.Duration, errMsg string) bool {
	if len(errMsg) > 2000 {
		errMsg = errMsg[:2000]
	}
	// Delay grows from the attempt that just failed: first retry waits
	// base, then 2*base, 4*base, ...
	delay := base * time.Duration(1<<uint(j.Attempt))
	j.Attempt++
	j.LastError = errMsg
	j.UpdatedAt = time.Now()

	if j.Attempt >= j.MaxAttempts {
		now := time.Now()
		j.Status = JobStatusDead
		j.ProcessedAt = &now
		return true
	}

	j.Status = JobStatusFailed
	j.RunAt = time.Now().Add(delay)
	return false
}
