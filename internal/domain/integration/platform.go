package integration

// ---------------------------------------------------------------------------
// Platform
// ---------------------------------------------------------------------------

// Platform identifies an external system leads are synchronized with
type Platform string

const (
	// PlatformHubSpot represents the HubSpot CRM
	PlatformHubSpot Platform = "hubspot"
	// PlatformZoho represents the Zoho CRM
	PlatformZoho Platform = "zoho"
	// PlatformWhatsApp represents the WhatsApp Business Cloud API
	PlatformWhatsApp Platform = "whatsapp"
	// PlatformMeta represents the Meta Conversions API
	PlatformMeta Platform = "meta"
	// PlatformGA4 represents Google Analytics 4 measurement protocol
	PlatformGA4 Platform = "ga4"
	// PlatformSlack represents Slack notification webhooks
	PlatformSlack Platform = "slack"
)

// IsValid returns true if the platform is known
func (p Platform) IsValid() bool {
	switch p {
	case PlatformHubSpot, PlatformZoho, PlatformWhatsApp,
		PlatformMeta, PlatformGA4, PlatformSlack:
		return true
	default:
		return false
	}
}

// String returns the string representation of the platform
func (p Platform) String() string {
	return string(p)
}

// DisplayName returns a human-readable name for the platform
func (p Platform) DisplayName() string {
	switch p {
	case PlatformHubSpot:
		return "HubSpot"
	case PlatformZoho:
		return "Zoho CRM"
	case PlatformWhatsApp:
		return "WhatsApp Business"
	case PlatformMeta:
		return "Meta Conversions API"
	case PlatformGA4:
		return "Google Analytics 4"
	case PlatformSlack:
		return "Slack"
	default:
		return string(p)
	}
}

// ---------------------------------------------------------------------------
// SyncStatus
// ---------------------------------------------------------------------------

// SyncStatus represents the outcome of the latest sync attempt for a
// lead/platform pair
type SyncStatus string

const (
	// SyncStatusPending indicates a sync is queued but has not completed
	SyncStatusPending SyncStatus = "PENDING"
	// SyncStatusSuccess indicates the last sync attempt succeeded
	SyncStatusSuccess SyncStatus = "SUCCESS"
	// SyncStatusFailed indicates the last sync attempt failed
	SyncStatusFailed SyncStatus = "FAILED"
	// SyncStatusSkipped indicates the platform was not configured
	SyncStatusSkipped SyncStatus = "SKIPPED"
)

// IsValid returns true if the status is known
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusPending, SyncStatusSuccess, SyncStatusFailed, SyncStatusSkipped:
		return true
	default:
		return false
	}
}
