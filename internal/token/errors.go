package token

import (
	"fmt"
	"time"
)

// ExpiredTokenError reports that the CLI handed back a token that is
// already inside the expiry margin. The manager retries the fetch once
// before surfacing this; returning such a token to callers is never an
// option.
type ExpiredTokenError struct {
	Profile   string
	ExpiresAt time.Time
}

// Error implements the error interface.
func (e *ExpiredTokenError) Error() string {
	return fmt.Sprintf("token for profile %q is already expired (expiry %s)", e.Profile, e.ExpiresAt.Format(time.RFC3339))
}
