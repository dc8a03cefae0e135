package queue

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	job := NewJob("hubspot.push", []byte(`{"lead_id":"abc"}`), 3, 2*time.Minute)

	assert.Equal(t, "hubspot.push", job.Name)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, 0, job.Attempt)
	assert.Equal(t, 3, job.MaxAttempts)
	assert.WithinDuration(t, time.Now().Add(2*time.Minute), job.RunAt, time.Second)
}

func TestJob_MarkProcessing(t *testing.T) {
	job := NewJob("zoho.push", nil, 3, 0)

	require.NoError(t, job.MarkProcessing())
	assert.Equal(t, JobStatusProcessing, job.Status)

	err := job.MarkProcessing()
	assert.Error(t, err)
}

func TestJob_MarkProcessing_FromFailed(t *testing.T) {
	job := NewJob("zoho.push", nil, 3, 0)
	job.Status = JobStatusFailed

	require.NoError(t, job.MarkProcessing())
	assert.Equal(t, JobStatusProcessing, job.Status)
}

func TestJob_ScheduleRetry_Backoff(t *testing.T) {
	job := NewJob("hubspot.push", nil, 3, 0)
	base := 60 * time.Second

	dead := job.ScheduleRetry(base, "connection refused")
	assert.False(t, dead)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.Attempt)
	assert.Equal(t, "connection refused", job.LastError)
	assert.WithinDuration(t, time.Now().Add(time.Minute), job.RunAt, time.Second)

	dead = job.ScheduleRetry(base, "connection refused")
	assert.False(t, dead)
	assert.Equal(t, 2, job.Attempt)
	assert.WithinDuration(t, time.Now().Add(2*time.Minute), job.RunAt, time.Second)
}

func TestJob_ScheduleRetry_DeadAfterMaxAttempts(t *testing.T) {
	job := NewJob("whatsapp.welcome", nil, 2, 0)
	base := 30 * time.Second

	assert.False(t, job.ScheduleRetry(base, "timeout"))
	assert.True(t, job.ScheduleRetry(base, "timeout"))
	assert.Equal(t, JobStatusDead, job.Status)
	assert.Equal(t, 2, job.Attempt)
	assert.NotNil(t, job.ProcessedAt)
}

func TestJob_ScheduleRetry_TruncatesError(t *testing.T) {
	job := NewJob("hubspot.push", nil, 3, 0)

	job.ScheduleRetry(time.Second, strings.Repeat("x", 5000))
	assert.Len(t, job.LastError, 2000)
}

func TestJob_MarkSucceeded(t *testing.T) {
	job := NewJob("meta.lead", nil, 3, 0)
	require.NoError(t, job.MarkProcessing())

	job.MarkSucceeded()
	assert.Equal(t, JobStatusSucceeded, job.Status)
	assert.NotNil(t, job.ProcessedAt)
}
