package whatsapp

import (
	"time"
)

// DefaultBaseURL is the Meta Graph API endpoint the Cloud API lives under
const DefaultBaseURL = "https://graph.facebook.com/v19.0"

// DefaultTimeout bounds every Cloud API call
const DefaultTimeout = 10 * time.Second

// DefaultTemplateLang is the language code templates were approved for
const DefaultTemplateLang = "en"

// Config holds WhatsApp Business Cloud API credentials. Missing
// credentials leave the sender constructed but unconfigured; messaging
// jobs against it are skipped.
type Config struct {
	AccessToken   string
	PhoneNumberID string
	VerifyToken   string
	AppSecret     string
	BaseURL       string
	Timeout       time.Duration
	TemplateLang  string
	BrochureURL   string
}

// Validate fills defaults for optional fields
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.TemplateLang == "" {
		c.TemplateLang = DefaultTemplateLang
	}
	if c.BrochureURL == "" {
		c.BrochureURL = "https://www.nexusrealty.in/brochures/general.pdf"
	}
	return nil
}

// Configured reports whether the credential set is complete
func (c *Config) Configured() bool {
	return c.AccessToken != "" && c.PhoneNumberID != ""
}
