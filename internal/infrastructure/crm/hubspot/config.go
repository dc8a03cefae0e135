package hubspot

import (
	"time"
)

// DefaultBaseURL is the HubSpot public API endpoint
const DefaultBaseURL = "https://api.hubapi.com"

// DefaultTimeout bounds every HubSpot API call
const DefaultTimeout = 10 * time.Second

// Config holds HubSpot private-app credentials and pipeline settings.
// An empty AccessToken leaves the adapter constructed but unconfigured;
// jobs against it are skipped rather than failed.
type Config struct {
	AccessToken   string
	PipelineID    string
	WebhookSecret string
	BaseURL       string
	Timeout       time.Duration
}

// Validate fills defaults for optional fields
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.PipelineID == "" {
		c.PipelineID = "default"
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return nil
}

// NewConfig creates a HubSpot configuration with production defaults
func NewConfig(accessToken, pipelineID, webhookSecret string) *Config {
	c := &Config{
		AccessToken:   accessToken,
		PipelineID:    pipelineID,
		WebhookSecret: webhookSecret,
	}
	_ = c.Validate()
	return c
}
