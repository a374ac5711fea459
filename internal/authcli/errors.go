package authcli

import "fmt"

// Op identifies which CLI operation failed.
type Op string

const (
	OpLogin Op = "auth login"
	OpToken Op = "auth token"
)

// InvocationError reports a databricks CLI invocation that exited
// non-zero or was killed by a timeout. The exit code and stderr are
// preserved so the failure is never mistaken for an empty credential.
type InvocationError struct {
	Op       Op
	Profile  string
	ExitCode int
	Stderr   string
	Err      error
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	msg := fmt.Sprintf("databricks %s failed for profile %q (exit code %d)", e.Op, e.Profile, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying process error, e.g.
// context.DeadlineExceeded when the invocation timed out.
func (e *InvocationError) Unwrap() error {
	return e.Err
}

// TokenParseError reports CLI output that exited zero but could not be
// parsed into a bearer token. Not retryable.
type TokenParseError struct {
	Profile string
	Reason  string
}

// Error implements the error interface.
func (e *TokenParseError) Error() string {
	return fmt.Sprintf("could not parse databricks auth token output for profile %q: %s", e.Profile, e.Reason)
}
