package workspace

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dbxmcp/internal/token"

	"github.com/databricks/databricks-sdk-go"
)

const testProfile = "p1"

// fakeTokens serves a scripted credential and records invalidations.
type fakeTokens struct {
	mu          sync.Mutex
	cred        token.Credential
	err         error
	ensureCalls int
	invalidated int
}

func (f *fakeTokens) EnsureValid(ctx context.Context, profile string) (token.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureCalls++
	if f.err != nil {
		return token.Credential{}, f.err
	}
	return f.cred, nil
}

func (f *fakeTokens) Invalidate(profile string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
}

func (f *fakeTokens) rotate(tok string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cred = token.Credential{Token: tok, Profile: testProfile, ExpiresAt: time.Now().Add(time.Hour)}
}

func newTestManager(tokens *fakeTokens) (*Manager, *int32) {
	m := NewManager(tokens, "https://example.cloud.databricks.com")
	builds := new(int32)
	var mu sync.Mutex
	m.build = func(host, tok string) (*databricks.WorkspaceClient, error) {
		mu.Lock()
		defer mu.Unlock()
		*builds++
		return &databricks.WorkspaceClient{}, nil
	}
	return m, builds
}

func TestGetClientBuildsOncePerToken(t *testing.T) {
	tokens := &fakeTokens{}
	tokens.rotate("tok1")
	m, builds := newTestManager(tokens)

	first, err := m.GetClient(context.Background(), testProfile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := m.GetClient(context.Background(), testProfile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first != second {
		t.Error("expected the cached handle while the token is unchanged")
	}
	if *builds != 1 {
		t.Errorf("expected exactly 1 construction, got %d", *builds)
	}
}

func TestGetClientRebuildsOnRotation(t *testing.T) {
	tokens := &fakeTokens{}
	tokens.rotate("tok1")
	m, builds := newTestManager(tokens)

	first, err := m.GetClient(context.Background(), testProfile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tokens.rotate("tok2")
	second, err := m.GetClient(context.Background(), testProfile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first == second {
		t.Error("expected a new handle after credential rotation")
	}
	if first.Fingerprint() == second.Fingerprint() {
		t.Error("expected the new handle to be bound to the rotated token")
	}
	if *builds != 2 {
		t.Errorf("expected 1 construction per distinct token, got %d", *builds)
	}

	// The old handle is never served again.
	third, err := m.GetClient(context.Background(), testProfile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third != second {
		t.Error("expected the rotated handle to stay cached")
	}
}

func TestGetClientConcurrentCallersShareOneConstruction(t *testing.T) {
	tokens := &fakeTokens{}
	tokens.rotate("tok1")
	m, builds := newTestManager(tokens)

	const callers = 16
	var wg sync.WaitGroup
	handles := make([]*Handle, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], _ = m.GetClient(context.Background(), testProfile)
		}(i)
	}
	wg.Wait()

	if *builds != 1 {
		t.Errorf("expected 1 construction for %d concurrent callers, got %d", callers, *builds)
	}
	for i := 1; i < callers; i++ {
		if handles[i] != handles[0] {
			t.Errorf("caller %d received a different handle", i)
		}
	}
}

func TestGetClientPropagatesAuthError(t *testing.T) {
	tokens := &fakeTokens{err: errors.New("refresh failed")}
	m, builds := newTestManager(tokens)

	_, err := m.GetClient(context.Background(), testProfile)
	if err == nil {
		t.Fatal("expected auth error to propagate")
	}
	if *builds != 0 {
		t.Errorf("expected no construction on auth failure, got %d", *builds)
	}
}

func TestGetClientConstructionFailure(t *testing.T) {
	tokens := &fakeTokens{}
	tokens.rotate("tok1")
	m, _ := newTestManager(tokens)
	m.build = func(host, tok string) (*databricks.WorkspaceClient, error) {
		return nil, errors.New("bad host")
	}

	_, err := m.GetClient(context.Background(), testProfile)

	var consErr *ClientConstructionError
	if !errors.As(err, &consErr) {
		t.Fatalf("expected ClientConstructionError, got %v", err)
	}
	if consErr.Profile != testProfile {
		t.Errorf("expected profile on error, got %q", consErr.Profile)
	}
	if tokens.invalidated != 1 {
		t.Errorf("expected the credential to be invalidated, got %d invalidations", tokens.invalidated)
	}
}

func TestProfilesDoNotShareHandles(t *testing.T) {
	tokens := &fakeTokens{}
	tokens.rotate("tok1")
	m, builds := newTestManager(tokens)

	a, err := m.GetClient(context.Background(), "profile-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := m.GetClient(context.Background(), "profile-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a == b {
		t.Error("expected distinct handles per profile")
	}
	if *builds != 2 {
		t.Errorf("expected one construction per profile, got %d", *builds)
	}
}
