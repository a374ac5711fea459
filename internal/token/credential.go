package token

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Credential is the cached bearer token for a profile. It is replaced
// as a whole on every successful refresh, never mutated in place.
type Credential struct {
	Token     string
	TokenType string
	Profile   string

	// ExpiresAt is always materialized: when the CLI reports no expiry
	// the manager substitutes its assumed TTL and sets ExpiryAssumed.
	ExpiresAt     time.Time
	ExpiryAssumed bool

	FetchedAt time.Time
}

// Valid reports whether the credential is usable at the given instant,
// i.e. the token is present and now is still before expiry minus the
// safety margin.
func (c Credential) Valid(now time.Time, margin time.Duration) bool {
	if c.Token == "" {
		return false
	}
	return now.Before(c.ExpiresAt.Add(-margin))
}

// Fingerprint returns a short stable digest of the token value. It is
// safe to log and is what client handles bind to; the raw token never
// appears in logs or handle state.
func (c Credential) Fingerprint() string {
	sum := sha256.Sum256([]byte(c.Token))
	return hex.EncodeToString(sum[:8])
}
