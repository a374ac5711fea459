package workspace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dbxmcp/internal/token"
	"dbxmcp/pkg/logging"

	"github.com/databricks/databricks-sdk-go"
)

const workspaceSubsystem = "ClientManager"

// Handle is a cached workspace client bound to the fingerprint of the
// credential it was built with. Once the credential rotates the handle
// is discarded, never reused.
type Handle struct {
	Workspace *databricks.WorkspaceClient

	profile     string
	fingerprint string
	createdAt   time.Time
}

// Fingerprint returns the token fingerprint the handle is bound to.
func (h *Handle) Fingerprint() string {
	return h.fingerprint
}

// CreatedAt returns when the handle was constructed.
func (h *Handle) CreatedAt() time.Time {
	return h.createdAt
}

// ClientConstructionError reports that the workspace client rejected the
// host/token pairing. Not retried here: a retry only makes sense after a
// credential refresh.
type ClientConstructionError struct {
	Profile string
	Err     error
}

// Error implements the error interface.
func (e *ClientConstructionError) Error() string {
	return fmt.Sprintf("failed to construct workspace client for profile %q: %v", e.Profile, e.Err)
}

// Unwrap exposes the SDK error.
func (e *ClientConstructionError) Unwrap() error {
	return e.Err
}

// TokenSource abstracts the token manager. Satisfied by *token.Manager.
type TokenSource interface {
	EnsureValid(ctx context.Context, profile string) (token.Credential, error)
	Invalidate(profile string)
}

// Manager owns at most one live workspace client per profile and
// rebuilds it only when the underlying credential has rotated. Callers
// holding a still-matching handle are served lock-free on the read path;
// construction for one profile never blocks another profile.
type Manager struct {
	tokens TokenSource
	host   string

	mu      sync.RWMutex
	handles map[string]*Handle
	locks   map[string]*sync.Mutex

	// build is replaceable in tests so no network client is constructed.
	build func(host, tok string) (*databricks.WorkspaceClient, error)
}

// NewManager creates a client manager on top of the given token source.
func NewManager(tokens TokenSource, host string) *Manager {
	return &Manager{
		tokens:  tokens,
		host:    host,
		handles: make(map[string]*Handle),
		locks:   make(map[string]*sync.Mutex),
		build:   buildWorkspaceClient,
	}
}

func buildWorkspaceClient(host, tok string) (*databricks.WorkspaceClient, error) {
	return databricks.NewWorkspaceClient(&databricks.Config{
		Host:  host,
		Token: tok,
	})
}

// GetClient returns a workspace client handle bound to the profile's
// current credential, constructing a new one only when the token has
// rotated since the cached handle was built.
func (m *Manager) GetClient(ctx context.Context, profile string) (*Handle, error) {
	cred, err := m.tokens.EnsureValid(ctx, profile)
	if err != nil {
		return nil, err
	}

	fingerprint := cred.Fingerprint()
	if handle := m.cachedHandle(profile, fingerprint); handle != nil {
		return handle, nil
	}

	lock := m.profileLock(profile)
	lock.Lock()
	defer lock.Unlock()

	// Another caller may have rebuilt for the same rotation while this
	// one waited on the construction lock.
	if handle := m.cachedHandle(profile, fingerprint); handle != nil {
		return handle, nil
	}

	client, err := m.build(m.host, cred.Token)
	if err != nil {
		// Let the next caller start from a fresh credential rather than
		// looping on the same rejected token.
		m.tokens.Invalidate(profile)
		return nil, &ClientConstructionError{Profile: profile, Err: err}
	}

	handle := &Handle{
		Workspace:   client,
		profile:     profile,
		fingerprint: fingerprint,
		createdAt:   time.Now(),
	}

	m.mu.Lock()
	m.handles[profile] = handle
	m.mu.Unlock()

	logging.Info(workspaceSubsystem, "Built workspace client for profile=%s fingerprint=%s", profile, fingerprint)
	return handle, nil
}

func (m *Manager) cachedHandle(profile, fingerprint string) *Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()

	handle, ok := m.handles[profile]
	if !ok || handle.fingerprint != fingerprint {
		return nil
	}
	return handle
}

// profileLock returns the construction lock for a profile, creating it
// on first use. Per-profile locks keep an interactive refresh on one
// profile from stalling construction on another.
func (m *Manager) profileLock(profile string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[profile]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[profile] = lock
	}
	return lock
}
