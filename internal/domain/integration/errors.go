package integration

import "errors"

var (
	// Platform errors
	ErrPlatformNotConfigured    = errors.New("integration: platform not configured")
	ErrPlatformUnavailable      = errors.New("integration: platform temporarily unavailable")
	ErrPlatformRequestFailed    = errors.New("integration: platform request failed")
	ErrPlatformInvalidResponse  = errors.New("integration: invalid platform response")
	ErrPlatformAuthFailed       = errors.New("integration: platform authentication failed")
	ErrPlatformTokenExpired     = errors.New("integration: platform token expired")
	ErrPlatformRateLimited      = errors.New("integration: platform rate limited")
	ErrPlatformInvalidSignature = errors.New("integration: invalid platform signature")

	// Sync ledger errors
	ErrSyncRecordNotFound = errors.New("integration: sync record not found")

	// Dead letter errors
	ErrDeadLetterNotFound = errors.New("integration: dead letter entry not found")

	// Messaging errors
	ErrRecipientOptedOut = errors.New("integration: recipient opted out of messages")

	// Token cache errors
	ErrTokenNotCached = errors.New("integration: no valid token cached")
)
