package authcli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"dbxmcp/pkg/logging"
)

const authSubsystem = "AuthCLI"

// binaryName is the external CLI driven by the Runner. It must be
// resolvable on PATH.
const binaryName = "databricks"

// execCommandContext is a variable to allow mocking in tests
var execCommandContext = exec.CommandContext

// TokenResponse is the parsed output of `databricks auth token`.
// A zero Expiry means the CLI did not report one.
type TokenResponse struct {
	AccessToken string
	TokenType   string
	Expiry      time.Time
}

// Runner drives the databricks CLI as a black box. It performs no
// retries and caches nothing; refresh policy lives in the token manager.
type Runner struct {
	binary       string
	loginTimeout time.Duration
	tokenTimeout time.Duration
}

// NewRunner creates a Runner. loginTimeout bounds the interactive
// browser login, tokenTimeout the non-interactive token fetch.
func NewRunner(loginTimeout, tokenTimeout time.Duration) *Runner {
	return &Runner{
		binary:       binaryName,
		loginTimeout: loginTimeout,
		tokenTimeout: tokenTimeout,
	}
}

// CheckInstalled verifies the databricks CLI is available on PATH.
func (r *Runner) CheckInstalled() error {
	if _, err := exec.LookPath(r.binary); err != nil {
		return fmt.Errorf("databricks CLI not found in PATH: %w", err)
	}
	return nil
}

// Login runs the interactive login flow for the given profile and host.
// It blocks until the external process exits, which may involve a
// browser-based approval by the user, bounded by the login timeout.
func (r *Runner) Login(ctx context.Context, profile, host string) error {
	logging.Info(authSubsystem, "Starting databricks auth login for profile=%s host=%s", profile, host)

	_, err := r.run(ctx, OpLogin, profile, r.loginTimeout,
		"auth", "login", "--host", host, "--profile", profile)
	if err != nil {
		return err
	}

	logging.Info(authSubsystem, "Login completed for profile=%s", profile)
	return nil
}

// Token fetches a bearer token for the given profile and parses the
// CLI's JSON output. The profile must have completed a login before.
func (r *Runner) Token(ctx context.Context, profile string) (TokenResponse, error) {
	logging.Debug(authSubsystem, "Fetching token for profile=%s", profile)

	stdout, err := r.run(ctx, OpToken, profile, r.tokenTimeout,
		"auth", "token", "--profile", profile)
	if err != nil {
		return TokenResponse{}, err
	}

	return parseTokenOutput(profile, stdout)
}

// run executes the CLI with the given args, bounded by timeout, and
// returns stdout. Non-zero exit or timeout yields an InvocationError.
func (r *Runner) run(ctx context.Context, op Op, profile string, timeout time.Duration, args ...string) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := execCommandContext(ctx, r.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		// The context error is more informative than "signal: killed"
		// when the process was torn down by the timeout.
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		logging.Error(authSubsystem, err, "databricks %s failed for profile=%s (exit code %d)", op, profile, exitCode)
		return "", &InvocationError{
			Op:       op,
			Profile:  profile,
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
	}

	return stdout.String(), nil
}

// tokenOutput mirrors the JSON document `databricks auth token` prints.
type tokenOutput struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Expiry      string `json:"expiry"`
}

// parseTokenOutput turns raw CLI stdout into a TokenResponse. Any
// ambiguity fails with a TokenParseError rather than producing an empty
// or misdated token.
func parseTokenOutput(profile, raw string) (TokenResponse, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TokenResponse{}, &TokenParseError{Profile: profile, Reason: "empty output"}
	}

	var parsed tokenOutput
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return TokenResponse{}, &TokenParseError{
			Profile: profile,
			Reason:  fmt.Sprintf("invalid JSON: %v", err),
		}
	}

	if parsed.AccessToken == "" {
		return TokenResponse{}, &TokenParseError{
			Profile: profile,
			Reason:  "missing access_token field",
		}
	}

	resp := TokenResponse{
		AccessToken: parsed.AccessToken,
		TokenType:   parsed.TokenType,
	}

	if parsed.Expiry != "" {
		expiry, err := time.Parse(time.RFC3339Nano, parsed.Expiry)
		if err != nil {
			return TokenResponse{}, &TokenParseError{
				Profile: profile,
				Reason:  fmt.Sprintf("unparsable expiry %q: %v", parsed.Expiry, err),
			}
		}
		resp.Expiry = expiry
	} else {
		logging.Warn(authSubsystem, "Token for profile=%s has no expiry, caller applies assumed TTL", profile)
	}

	return resp, nil
}
