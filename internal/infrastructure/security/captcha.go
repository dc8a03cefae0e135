package security

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nexus/backend/internal/domain/shared"
)

// DefaultVerifyURL is the hCaptcha server-side verification endpoint
const DefaultVerifyURL = "https://hcaptcha.com/siteverify"

// DefaultCaptchaTimeout bounds the verification round trip; a slow
// verifier must not stall lead capture
const DefaultCaptchaTimeout = 5 * time.Second

// ErrCaptchaFailed is returned when the token is missing or rejected
var ErrCaptchaFailed = shared.NewDomainError("CAPTCHA_FAILED", "Captcha verification failed")

// CaptchaConfig holds hCaptcha settings. An empty Secret disables
// verification entirely (local development).
type CaptchaConfig struct {
	Secret    string
	VerifyURL string
	Timeout   time.Duration

	// FailOpen lets captures through when the verifier itself is down.
	// A rejected token still fails regardless of this setting.
	FailOpen bool
}

// HCaptchaVerifier validates hCaptcha tokens server-side
type HCaptchaVerifier struct {
	config     CaptchaConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHCaptchaVerifier creates a verifier with the given policy
func NewHCaptchaVerifier(config CaptchaConfig, logger *zap.Logger) *HCaptchaVerifier {
	if config.VerifyURL == "" {
		config.VerifyURL = DefaultVerifyURL
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultCaptchaTimeout
	}
	return &HCaptchaVerifier{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// verifyResponse is the hCaptcha siteverify result
type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify checks a captcha token against the hCaptcha API. Verifier
// outages pass or fail according to the FailOpen policy; a token the
// verifier actually rejected always fails.
func (v *HCaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	if v.config.Secret == "" {
		return nil
	}
	if token == "" {
		v.logger.Warn("Captcha token missing", zap.String("ip", remoteIP))
		return ErrCaptchaFailed
	}

	form := url.Values{}
	form.Set("secret", v.config.Secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.config.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("security: failed to create captcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return v.outage(fmt.Errorf("security: captcha verifier unreachable: %w", err), remoteIP)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return v.outage(fmt.Errorf("security: failed to read captcha response: %w", err), remoteIP)
	}
	if resp.StatusCode >= 500 {
		return v.outage(fmt.Errorf("security: captcha verifier returned HTTP %d", resp.StatusCode), remoteIP)
	}

	var result verifyResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return v.outage(fmt.Errorf("security: failed to parse captcha response: %w", err), remoteIP)
	}

	if !result.Success {
		v.logger.Warn("Captcha rejected",
			zap.String("ip", remoteIP),
			zap.Strings("error_codes", result.ErrorCodes),
		)
		return ErrCaptchaFailed
	}
	return nil
}

// outage applies the fail-open policy to a verifier-side failure
func (v *HCaptchaVerifier) outage(err error, remoteIP string) error {
	if v.config.FailOpen {
		v.logger.Error("Captcha verifier outage, allowing capture",
			zap.String("ip", remoteIP),
			zap.Error(err),
		)
		return nil
	}
	return err
}
