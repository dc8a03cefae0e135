package meta

import (
	"time"
)

// DefaultBaseURL is the Meta Graph API endpoint
const DefaultBaseURL = "https://graph.facebook.com/v19.0"

// DefaultTimeout bounds every Conversions API call
const DefaultTimeout = 10 * time.Second

// Config holds Meta Conversions API credentials. Missing credentials
// leave the sender constructed but unconfigured; attribution jobs against
// it are skipped.
type Config struct {
	AccessToken   string
	PixelID       string
	VerifyToken   string
	AppSecret     string
	TestEventCode string
	BaseURL       string
	Timeout       time.Duration
}

// Validate fills defaults for optional fields
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return nil
}

// Configured reports whether the credential set is complete
func (c *Config) Configured() bool {
	return c.AccessToken != "" && c.PixelID != ""
}
