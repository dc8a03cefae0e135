package integration

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSyncRecord(t *testing.T) {
	leadID := uuid.New()
	record := NewSyncRecord(leadID, PlatformHubSpot)

	assert.Equal(t, leadID, record.LeadID)
	assert.Equal(t, PlatformHubSpot, record.Platform)
	assert.Equal(t, SyncStatusPending, record.Status)
	assert.Equal(t, 0, record.SyncCount)
	assert.Empty(t, record.ExternalID)
}

func TestSyncRecord_MarkSuccess(t *testing.T) {
	t.Run("records success and external id", func(t *testing.T) {
		record := NewSyncRecord(uuid.New(), PlatformZoho)
		record.MarkSuccess("zoho-123")

		assert.Equal(t, SyncStatusSuccess, record.Status)
		assert.Equal(t, "zoho-123", record.ExternalID)
		assert.Equal(t, 1, record.SyncCount)
		assert.Empty(t, record.ErrorMessage)
		require.NotNil(t, record.LastSyncedAt)
	})

	t.Run("external id is set once", func(t *testing.T) {
		record := NewSyncRecord(uuid.New(), PlatformZoho)
		record.MarkSuccess("first")
		record.MarkSuccess("second")

		assert.Equal(t, "first", record.ExternalID)
		assert.Equal(t, 2, record.SyncCount)
	})

	t.Run("clears previous error", func(t *testing.T) {
		record := NewSyncRecord(uuid.New(), PlatformHubSpot)
		record.MarkFailed("temporary outage")
		record.MarkSuccess("hs-1")

		assert.Empty(t, record.ErrorMessage)
		assert.Equal(t, SyncStatusSuccess, record.Status)
	})
}

func TestSyncRecord_MarkFailed(t *testing.T) {
	t.Run("keeps external id from earlier success", func(t *testing.T) {
		record := NewSyncRecord(uuid.New(), PlatformHubSpot)
		record.MarkSuccess("hs-42")
		record.MarkFailed("stage update rejected")

		assert.Equal(t, SyncStatusFailed, record.Status)
		assert.Equal(t, "hs-42", record.ExternalID)
		assert.Equal(t, "stage update rejected", record.ErrorMessage)
		assert.Equal(t, 2, record.SyncCount)
	})

	t.Run("truncates long error messages", func(t *testing.T) {
		record := NewSyncRecord(uuid.New(), PlatformWhatsApp)
		record.MarkFailed(strings.Repeat("x", MaxErrorMessageLength+500))

		assert.Len(t, record.ErrorMessage, MaxErrorMessageLength)
	})
}

func TestSyncRecord_MarkSkipped(t *testing.T) {
	record := NewSyncRecord(uuid.New(), PlatformMeta)
	record.MarkSkipped("platform not configured")

	assert.Equal(t, SyncStatusSkipped, record.Status)
	assert.Equal(t, "platform not configured", record.ErrorMessage)
	assert.Equal(t, 0, record.SyncCount)
}

func TestPlatform_IsValid(t *testing.T) {
	assert.True(t, PlatformHubSpot.IsValid())
	assert.True(t, PlatformSlack.IsValid())
	assert.False(t, Platform("salesforce").IsValid())
}
