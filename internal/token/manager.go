package token

import (
	"context"
	"errors"
	"sync"
	"time"

	"dbxmcp/internal/authcli"
	"dbxmcp/pkg/logging"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"
)

const tokenSubsystem = "TokenManager"

// retryDelay is the pause before the single retry of a failed token
// fetch. A variable so tests can shrink it.
var retryDelay = 2 * time.Second

// Executor abstracts the external CLI operations the manager drives.
// Satisfied by *authcli.Runner.
type Executor interface {
	Login(ctx context.Context, profile, host string) error
	Token(ctx context.Context, profile string) (authcli.TokenResponse, error)
}

// Manager is the single source of truth for whether the current
// credential of a profile is usable. Refreshes for the same profile are
// serialized through a singleflight group so an expired cache entry
// triggers exactly one external invocation no matter how many callers
// race on it; refreshes for distinct profiles never block each other.
type Manager struct {
	executor   Executor
	host       string
	margin     time.Duration
	assumedTTL time.Duration

	mu           sync.RWMutex
	credentials  map[string]Credential
	bootstrapped map[string]bool

	group singleflight.Group

	// now is replaceable in tests.
	now func() time.Time
}

// NewManager creates a token manager. host is the workspace URL passed
// to the interactive login; margin and assumedTTL implement the expiry
// policy.
func NewManager(executor Executor, host string, margin, assumedTTL time.Duration) *Manager {
	return &Manager{
		executor:     executor,
		host:         host,
		margin:       margin,
		assumedTTL:   assumedTTL,
		credentials:  make(map[string]Credential),
		bootstrapped: make(map[string]bool),
		now:          time.Now,
	}
}

// EnsureValid returns a credential for the profile that is guaranteed to
// be outside the expiry margin. The fast path is a read-locked cache
// check; the slow path funnels all concurrent callers through one
// refresh whose outcome (success or failure) they all share.
func (m *Manager) EnsureValid(ctx context.Context, profile string) (Credential, error) {
	if cred, ok := m.cached(profile); ok {
		return cred, nil
	}

	v, err, shared := m.group.Do(profile, func() (interface{}, error) {
		// Another caller may have completed the refresh while this one
		// was queued on the group.
		if cred, ok := m.cached(profile); ok {
			return cred, nil
		}
		cred, err := m.refresh(ctx, profile)
		return cred, err
	})
	if err != nil {
		return Credential{}, err
	}

	cred := v.(Credential)
	if shared {
		logging.Debug(tokenSubsystem, "Refresh result for profile=%s shared across concurrent callers", profile)
	}
	return cred, nil
}

// Peek returns the cached credential without triggering a refresh. Used
// by status reporting.
func (m *Manager) Peek(profile string) (Credential, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cred, ok := m.credentials[profile]
	return cred, ok
}

// Invalidate drops the cached credential so the next EnsureValid call
// starts from the absent state. Called when a downstream consumer
// rejects the token.
func (m *Manager) Invalidate(profile string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.credentials, profile)
	logging.Info(tokenSubsystem, "Invalidated credential for profile=%s", profile)
}

func (m *Manager) cached(profile string) (Credential, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cred, ok := m.credentials[profile]
	if !ok || !cred.Valid(m.now(), m.margin) {
		return Credential{}, false
	}
	return cred, true
}

// refresh obtains a fresh credential for the profile. On the first
// refresh of a profile the CLI may not have a cached session yet: a
// failed probe fetch then triggers the interactive login before the
// token is fetched again. Any terminal failure clears the cached
// credential so the state machine restarts from absent.
func (m *Manager) refresh(ctx context.Context, profile string) (Credential, error) {
	if !m.isBootstrapped(profile) {
		cred, err := m.fetch(ctx, profile)
		if err == nil {
			m.store(profile, cred)
			return cred, nil
		}

		var invErr *authcli.InvocationError
		var expErr *ExpiredTokenError
		switch {
		case errors.As(err, &invErr):
			logging.Info(tokenSubsystem, "No usable CLI session for profile=%s, starting interactive login", profile)
			if err := m.executor.Login(ctx, profile, m.host); err != nil {
				m.clear(profile)
				return Credential{}, err
			}
		case errors.As(err, &expErr):
			// Stale token from an old CLI session; the retrying fetch
			// below asks again.
		default:
			m.clear(profile)
			return Credential{}, err
		}
	}

	cred, err := m.fetchWithRetry(ctx, profile)
	if err != nil {
		m.clear(profile)
		return Credential{}, err
	}

	m.store(profile, cred)
	return cred, nil
}

// fetchWithRetry runs the token fetch, retrying exactly once after a
// short delay when the failure is transient (CLI invocation error or an
// already-expired token). Parse errors are permanent: malformed output
// will not improve by asking again.
func (m *Manager) fetchWithRetry(ctx context.Context, profile string) (Credential, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = retryDelay

	return backoff.Retry(ctx, func() (Credential, error) {
		cred, err := m.fetch(ctx, profile)
		if err != nil {
			var parseErr *authcli.TokenParseError
			if errors.As(err, &parseErr) {
				return Credential{}, backoff.Permanent(err)
			}
			return Credential{}, err
		}
		return cred, nil
	},
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(2),
	)
}

// fetch performs one token fetch and materializes the credential. A
// token already inside the margin is a failure, never a result.
func (m *Manager) fetch(ctx context.Context, profile string) (Credential, error) {
	resp, err := m.executor.Token(ctx, profile)
	if err != nil {
		return Credential{}, err
	}

	now := m.now()
	cred := Credential{
		Token:     resp.AccessToken,
		TokenType: resp.TokenType,
		Profile:   profile,
		ExpiresAt: resp.Expiry,
		FetchedAt: now,
	}
	if cred.ExpiresAt.IsZero() {
		cred.ExpiresAt = now.Add(m.assumedTTL)
		cred.ExpiryAssumed = true
	}

	if !cred.Valid(now, m.margin) {
		return Credential{}, &ExpiredTokenError{Profile: profile, ExpiresAt: cred.ExpiresAt}
	}

	return cred, nil
}

func (m *Manager) isBootstrapped(profile string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bootstrapped[profile]
}

// store atomically replaces the cached credential. The rotation is
// visible to every subsequent caller the moment the lock is released.
func (m *Manager) store(profile string, cred Credential) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.credentials[profile] = cred
	m.bootstrapped[profile] = true

	logging.Info(tokenSubsystem, "Stored credential for profile=%s fingerprint=%s expiry=%s assumed=%v",
		profile, cred.Fingerprint(), cred.ExpiresAt.Format(time.RFC3339), cred.ExpiryAssumed)
}

func (m *Manager) clear(profile string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.credentials, profile)
}
