package token

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dbxmcp/internal/authcli"
)

const (
	testProfile = "p1"
	testHost    = "https://example.cloud.databricks.com"
)

func init() {
	retryDelay = 10 * time.Millisecond
}

// fakeExecutor scripts CLI behavior per call and counts invocations.
type fakeExecutor struct {
	mu         sync.Mutex
	loginCalls int
	tokenCalls int

	loginErr error
	// tokenFn receives the 1-based call number.
	tokenFn func(call int) (authcli.TokenResponse, error)
	// delay simulates a slow external process.
	delay time.Duration
}

func (f *fakeExecutor) Login(ctx context.Context, profile, host string) error {
	f.mu.Lock()
	f.loginCalls++
	f.mu.Unlock()
	return f.loginErr
}

func (f *fakeExecutor) Token(ctx context.Context, profile string) (authcli.TokenResponse, error) {
	f.mu.Lock()
	f.tokenCalls++
	call := f.tokenCalls
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.tokenFn(call)
}

func (f *fakeExecutor) counts() (logins, tokens int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls, f.tokenCalls
}

func tokenAt(tok string, expiry time.Time) func(int) (authcli.TokenResponse, error) {
	return func(int) (authcli.TokenResponse, error) {
		return authcli.TokenResponse{AccessToken: tok, TokenType: "Bearer", Expiry: expiry}, nil
	}
}

func invocationErr() error {
	return &authcli.InvocationError{Op: authcli.OpToken, Profile: testProfile, ExitCode: 3, Stderr: "no such profile"}
}

func newTestManager(exec Executor) (*Manager, *time.Time) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	m := NewManager(exec, testHost, time.Minute, time.Hour)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestEnsureValidBootstrapWithoutLogin(t *testing.T) {
	exec := &fakeExecutor{}
	m, now := newTestManager(exec)
	exec.tokenFn = tokenAt("tok1", now.Add(time.Hour))

	cred, err := m.EnsureValid(context.Background(), testProfile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cred.Token != "tok1" {
		t.Errorf("expected tok1, got %q", cred.Token)
	}
	logins, tokens := exec.counts()
	if logins != 0 {
		t.Errorf("expected no interactive login when the probe fetch succeeds, got %d", logins)
	}
	if tokens != 1 {
		t.Errorf("expected 1 token fetch, got %d", tokens)
	}
}

func TestEnsureValidBootstrapRunsLoginWhenProbeFails(t *testing.T) {
	exec := &fakeExecutor{}
	m, now := newTestManager(exec)
	exec.tokenFn = func(call int) (authcli.TokenResponse, error) {
		if call == 1 {
			return authcli.TokenResponse{}, invocationErr()
		}
		return authcli.TokenResponse{AccessToken: "tok1", Expiry: now.Add(time.Hour)}, nil
	}

	cred, err := m.EnsureValid(context.Background(), testProfile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cred.Token != "tok1" {
		t.Errorf("expected tok1, got %q", cred.Token)
	}
	logins, tokens := exec.counts()
	if logins != 1 {
		t.Errorf("expected exactly 1 interactive login, got %d", logins)
	}
	if tokens != 2 {
		t.Errorf("expected probe + post-login fetch, got %d fetches", tokens)
	}
}

func TestEnsureValidFastPathSkipsExecutor(t *testing.T) {
	exec := &fakeExecutor{}
	m, now := newTestManager(exec)
	exec.tokenFn = tokenAt("tok1", now.Add(time.Hour))

	if _, err := m.EnsureValid(context.Background(), testProfile); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 10s later, well inside expiry minus margin: no new invocation.
	*now = now.Add(10 * time.Second)
	cred, err := m.EnsureValid(context.Background(), testProfile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cred.Token != "tok1" {
		t.Errorf("expected cached tok1, got %q", cred.Token)
	}
	if _, tokens := exec.counts(); tokens != 1 {
		t.Errorf("expected no refresh inside margin, got %d fetches", tokens)
	}
}

func TestEnsureValidRefreshesPastMargin(t *testing.T) {
	exec := &fakeExecutor{}
	m, now := newTestManager(exec)
	firstExpiry := now.Add(time.Hour)
	exec.tokenFn = func(call int) (authcli.TokenResponse, error) {
		if call == 1 {
			return authcli.TokenResponse{AccessToken: "tok1", Expiry: firstExpiry}, nil
		}
		return authcli.TokenResponse{AccessToken: "tok2", Expiry: now.Add(time.Hour)}, nil
	}

	if _, err := m.EnsureValid(context.Background(), testProfile); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Cross expiry: exactly one new invocation, rotated token.
	*now = now.Add(time.Hour)
	cred, err := m.EnsureValid(context.Background(), testProfile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cred.Token != "tok2" {
		t.Errorf("expected rotated tok2, got %q", cred.Token)
	}
	logins, tokens := exec.counts()
	if logins != 0 {
		t.Errorf("expected no login after bootstrap, got %d", logins)
	}
	if tokens != 2 {
		t.Errorf("expected exactly 1 new fetch on rotation, got %d total", tokens)
	}
}

func TestEnsureValidSingleFlight(t *testing.T) {
	exec := &fakeExecutor{delay: 50 * time.Millisecond}
	m, now := newTestManager(exec)
	exec.tokenFn = tokenAt("tok1", now.Add(time.Hour))

	const callers = 20
	var wg sync.WaitGroup
	results := make([]Credential, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.EnsureValid(context.Background(), testProfile)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: unexpected error: %v", i, errs[i])
		}
		if results[i].Token != "tok1" {
			t.Errorf("caller %d: expected tok1, got %q", i, results[i].Token)
		}
	}

	if _, tokens := exec.counts(); tokens != 1 {
		t.Errorf("expected exactly 1 external invocation for %d concurrent callers, got %d", callers, tokens)
	}
}

func TestEnsureValidSharesFailureAcrossCallers(t *testing.T) {
	exec := &fakeExecutor{delay: 50 * time.Millisecond}
	m, _ := newTestManager(exec)
	exec.tokenFn = func(int) (authcli.TokenResponse, error) {
		return authcli.TokenResponse{}, &authcli.TokenParseError{Profile: testProfile, Reason: "invalid JSON"}
	}

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.EnsureValid(context.Background(), testProfile)
		}(i)
	}
	wg.Wait()

	var parseErr *authcli.TokenParseError
	for i := 0; i < callers; i++ {
		if !errors.As(errs[i], &parseErr) {
			t.Errorf("caller %d: expected shared TokenParseError, got %v", i, errs[i])
		}
	}
	if _, tokens := exec.counts(); tokens != 1 {
		t.Errorf("expected 1 invocation (parse errors are permanent), got %d", tokens)
	}
}

func TestEnsureValidRetriesInvocationErrorOnce(t *testing.T) {
	exec := &fakeExecutor{}
	m, now := newTestManager(exec)
	exec.tokenFn = func(call int) (authcli.TokenResponse, error) {
		switch call {
		case 1:
			return authcli.TokenResponse{AccessToken: "tok1", Expiry: now.Add(time.Hour)}, nil
		case 2:
			return authcli.TokenResponse{}, invocationErr()
		default:
			return authcli.TokenResponse{AccessToken: "tok2", Expiry: now.Add(time.Hour)}, nil
		}
	}

	if _, err := m.EnsureValid(context.Background(), testProfile); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	*now = now.Add(2 * time.Hour)
	cred, err := m.EnsureValid(context.Background(), testProfile)
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if cred.Token != "tok2" {
		t.Errorf("expected tok2 after retry, got %q", cred.Token)
	}
	if _, tokens := exec.counts(); tokens != 3 {
		t.Errorf("expected 3 fetches (initial, failed, retried), got %d", tokens)
	}
}

func TestEnsureValidNeverReturnsExpiredFetch(t *testing.T) {
	exec := &fakeExecutor{}
	m, now := newTestManager(exec)
	// The CLI keeps returning a token that expired in the past.
	exec.tokenFn = tokenAt("stale", now.Add(-time.Minute))

	_, err := m.EnsureValid(context.Background(), testProfile)

	var expErr *ExpiredTokenError
	if !errors.As(err, &expErr) {
		t.Fatalf("expected ExpiredTokenError, got %v", err)
	}
	if expErr.Profile != testProfile {
		t.Errorf("expected profile on error, got %q", expErr.Profile)
	}
	// Probe plus the retrying fetch asked again instead of serving it.
	if _, tokens := exec.counts(); tokens < 2 {
		t.Errorf("expected another fetch before surfacing an expired token, got %d", tokens)
	}
}

func TestEnsureValidFailureClearsCredential(t *testing.T) {
	exec := &fakeExecutor{}
	m, now := newTestManager(exec)
	fail := false
	exec.tokenFn = func(int) (authcli.TokenResponse, error) {
		if fail {
			return authcli.TokenResponse{}, &authcli.TokenParseError{Profile: testProfile, Reason: "garbage"}
		}
		return authcli.TokenResponse{AccessToken: "tok1", Expiry: now.Add(time.Hour)}, nil
	}

	if _, err := m.EnsureValid(context.Background(), testProfile); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	*now = now.Add(2 * time.Hour)
	fail = true
	if _, err := m.EnsureValid(context.Background(), testProfile); err == nil {
		t.Fatal("expected refresh failure to surface")
	}

	if _, ok := m.Peek(testProfile); ok {
		t.Error("expected failed refresh to clear the cached credential")
	}

	// Recovery: the next call restarts from absent and succeeds.
	fail = false
	cred, err := m.EnsureValid(context.Background(), testProfile)
	if err != nil {
		t.Fatalf("expected recovery after clear, got %v", err)
	}
	if cred.Token != "tok1" {
		t.Errorf("expected fresh credential, got %q", cred.Token)
	}
}

func TestEnsureValidAppliesAssumedTTL(t *testing.T) {
	exec := &fakeExecutor{}
	m, now := newTestManager(exec)
	exec.tokenFn = tokenAt("tok-noexp", time.Time{})

	cred, err := m.EnsureValid(context.Background(), testProfile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cred.ExpiryAssumed {
		t.Error("expected ExpiryAssumed for a token without reported expiry")
	}
	if want := now.Add(time.Hour); !cred.ExpiresAt.Equal(want) {
		t.Errorf("expected assumed expiry %v, got %v", want, cred.ExpiresAt)
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	exec := &fakeExecutor{}
	m, now := newTestManager(exec)
	exec.tokenFn = func(call int) (authcli.TokenResponse, error) {
		tok := "tok1"
		if call > 1 {
			tok = "tok2"
		}
		return authcli.TokenResponse{AccessToken: tok, Expiry: now.Add(time.Hour)}, nil
	}

	if _, err := m.EnsureValid(context.Background(), testProfile); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.Invalidate(testProfile)

	cred, err := m.EnsureValid(context.Background(), testProfile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cred.Token != "tok2" {
		t.Errorf("expected a fresh token after Invalidate, got %q", cred.Token)
	}
}

func TestCredentialFingerprintStableAndOpaque(t *testing.T) {
	a := Credential{Token: "secret-token"}
	b := Credential{Token: "secret-token"}
	c := Credential{Token: "other-token"}

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("expected identical tokens to share a fingerprint")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("expected distinct tokens to differ in fingerprint")
	}
	if len(a.Fingerprint()) != 16 {
		t.Errorf("expected 16 hex chars, got %d", len(a.Fingerprint()))
	}
	if a.Fingerprint() == a.Token {
		t.Error("fingerprint must not expose the token")
	}
}
