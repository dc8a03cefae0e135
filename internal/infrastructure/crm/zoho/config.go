package zoho

import (
	"time"
)

// DefaultAccountsURL is the Zoho India OAuth endpoint
const DefaultAccountsURL = "https://accounts.zoho.in"

// DefaultAPIBaseURL is the Zoho India CRM API endpoint
const DefaultAPIBaseURL = "https://www.zohoapis.in"

// DefaultTimeout bounds standard Zoho API calls; lead conversion gets a
// longer budget because Zoho creates several records server-side.
const (
	DefaultTimeout        = 10 * time.Second
	DefaultConvertTimeout = 15 * time.Second
	DefaultTokenSkew      = time.Minute
)

// Config holds Zoho CRM OAuth credentials. Missing credentials leave the
// adapter constructed but unconfigured; jobs against it are skipped.
type Config struct {
	ClientID       string
	ClientSecret   string
	RefreshToken   string
	AccountsURL    string
	APIBaseURL     string
	Timeout        time.Duration
	ConvertTimeout time.Duration
	TokenSkew      time.Duration
}

// Validate fills defaults for optional fields
func (c *Config) Validate() error {
	if c.AccountsURL == "" {
		c.AccountsURL = DefaultAccountsURL
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ConvertTimeout <= 0 {
		c.ConvertTimeout = DefaultConvertTimeout
	}
	if c.TokenSkew <= 0 {
		c.TokenSkew = DefaultTokenSkew
	}
	return nil
}

// Configured reports whether the OAuth credential set is complete
func (c *Config) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}
