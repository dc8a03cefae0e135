package shared

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvent() DomainEvent {
	event := NewBaseDomainEvent("test.event", "Test", uuid.New())
	return &event
}

func TestNewOutboxEntry(t *testing.T) {
	event := newTestEvent()
	entry := NewOutboxEntry(event, []byte(`{"k":"v"}`))

	assert.Equal(t, OutboxStatusPending, entry.Status)
	assert.Equal(t, event.EventID(), entry.EventID)
	assert.Equal(t, event.EventType(), entry.EventType)
	assert.Equal(t, 0, entry.RetryCount)
	assert.Equal(t, DefaultMaxRetries, entry.MaxRetries)
	assert.True(t, entry.CanRetry())
}

func TestOutboxEntry_MarkProcessing(t *testing.T) {
	t.Run("allows pending entries", func(t *testing.T) {
		entry := NewOutboxEntry(newTestEvent(), nil)
		require.NoError(t, entry.MarkProcessing())
		assert.Equal(t, OutboxStatusProcessing, entry.Status)
	})

	t.Run("allows failed entries", func(t *testing.T) {
		entry := NewOutboxEntry(newTestEvent(), nil)
		entry.MarkFailed("boom")
		require.NoError(t, entry.MarkProcessing())
		assert.Equal(t, OutboxStatusProcessing, entry.Status)
	})

	t.Run("rejects sent entries", func(t *testing.T) {
		entry := NewOutboxEntry(newTestEvent(), nil)
		entry.MarkSent()
		assert.Error(t, entry.MarkProcessing())
	})
}

func TestOutboxEntry_MarkFailed(t *testing.T) {
	t.Run("schedules exponential backoff", func(t *testing.T) {
		entry := NewOutboxEntry(newTestEvent(), nil)

		entry.MarkFailed("first failure")
		assert.Equal(t, OutboxStatusFailed, entry.Status)
		assert.Equal(t, 1, entry.RetryCount)
		require.NotNil(t, entry.NextRetryAt)
		assert.WithinDuration(t, time.Now().Add(DefaultBaseBackoff), *entry.NextRetryAt, time.Second)

		entry.MarkFailed("second failure")
		require.NotNil(t, entry.NextRetryAt)
		assert.WithinDuration(t, time.Now().Add(2*DefaultBaseBackoff), *entry.NextRetryAt, time.Second)
	})

	t.Run("moves to dead after max retries", func(t *testing.T) {
		entry := NewOutboxEntry(newTestEvent(), nil)
		for i := 0; i < DefaultMaxRetries; i++ {
			entry.MarkFailed("failure")
		}
		assert.Equal(t, OutboxStatusDead, entry.Status)
		assert.True(t, entry.IsDead())
		assert.False(t, entry.CanRetry())
		assert.Nil(t, entry.NextRetryAt)
	})
}

func TestOutboxEntry_ResetForRetry(t *testing.T) {
	t.Run("resets dead entries", func(t *testing.T) {
		entry := NewOutboxEntry(newTestEvent(), nil)
		for i := 0; i < DefaultMaxRetries; i++ {
			entry.MarkFailed("failure")
		}

		require.NoError(t, entry.ResetForRetry())
		assert.Equal(t, OutboxStatusPending, entry.Status)
		assert.Equal(t, 0, entry.RetryCount)
		assert.Empty(t, entry.LastError)
	})

	t.Run("rejects non-dead entries", func(t *testing.T) {
		entry := NewOutboxEntry(newTestEvent(), nil)
		assert.Error(t, entry.ResetForRetry())
	})
}
