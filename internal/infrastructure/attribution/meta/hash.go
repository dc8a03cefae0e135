package meta

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/nexus/backend/internal/domain/lead"
)

// hashValue one-way hashes a PII value the way the Conversions API
// requires: trimmed, lowercased, SHA-256 hex
func hashValue(value string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(value))))
	return hex.EncodeToString(sum[:])
}

// buildUserData assembles the hashed user_data object for a lead. The
// phone is already normalized with country code by the domain layer.
func buildUserData(l *lead.Lead) map[string][]string {
	userData := map[string][]string{
		"ph":      {hashValue(l.Phone)},
		"country": {hashValue("in")},
	}
	if l.Email != "" {
		userData["em"] = []string{hashValue(l.Email)}
	}

	fields := strings.Fields(l.Name)
	if len(fields) > 0 {
		userData["fn"] = []string{hashValue(fields[0])}
	}
	if len(fields) > 1 {
		userData["ln"] = []string{hashValue(strings.Join(fields[1:], " "))}
	}
	if l.City != "" {
		userData["ct"] = []string{hashValue(strings.ReplaceAll(l.City, " ", ""))}
	}
	return userData
}
