package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"droffers.app/internal/api"
)

// upstream is a scripted marketplace API for session tests.
type upstream struct {
	t *testing.T

	mu            sync.Mutex
	refreshCalls  int64
	meCalls       int64
	refreshDelay  time.Duration
	rejectRefresh bool
	rejectMe      bool
	validToken    string
	lastAuth      string

	srv *httptest.Server
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{t: t, validToken: "access-1"}
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&u.refreshCalls, 1)
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		u.mu.Lock()
		delay := u.refreshDelay
		reject := u.rejectRefresh || body.RefreshToken == ""
		u.mu.Unlock()
		if delay > 0 {
			time.Sleep(delay)
		}
		if reject {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "refresh rejected"})
			return
		}
		u.mu.Lock()
		u.validToken = "access-" + time.Now().Format("150405.000000000")
		token := u.validToken
		u.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token":  token,
			"refresh_token": "refresh-rotated",
		})
	})

	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.validToken = "access-login"
		u.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{
			"accessToken":  "access-login",
			"refreshToken": "refresh-login",
		})
	})

	mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&u.meCalls, 1)
		u.mu.Lock()
		u.lastAuth = r.Header.Get("Authorization")
		ok := !u.rejectMe && r.Header.Get("Authorization") == "Bearer "+u.validToken
		u.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"id":    "u-1",
			"role":  "owner",
			"email": "owner@example.com",
			"brands": []map[string]any{
				{"id": "b-1", "brand_name": "Acme", "status": "pending", "category_type": "food"},
			},
		}})
	})

	u.srv = httptest.NewServer(mux)
	t.Cleanup(u.srv.Close)
	return u
}

func newTestManager(t *testing.T, u *upstream) (*Manager, *MemoryStore) {
	t.Helper()
	client, err := api.New(u.srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	store := NewMemoryStore()
	return NewManager(client, store), store
}

func seedTokens(m *Manager, access, refresh string) {
	m.mu.Lock()
	m.tokens = api.TokenPair{AccessToken: access, RefreshToken: refresh}
	m.state = StateAuthenticating
	m.mu.Unlock()
}

func TestSingleFlightRefresh(t *testing.T) {
	u := newUpstream(t)
	u.refreshDelay = 50 * time.Millisecond
	m, _ := newTestManager(t, u)
	seedTokens(m, "stale", "refresh-ok")

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.client.Me(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}
	if got := atomic.LoadInt64(&u.refreshCalls); got != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", got)
	}
}

func TestRefreshFailureRejectsAllWaiters(t *testing.T) {
	u := newUpstream(t)
	u.refreshDelay = 30 * time.Millisecond
	u.rejectRefresh = true
	m, store := newTestManager(t, u)
	seedTokens(m, "stale", "refresh-dead")
	_ = store.Save(context.Background(), api.TokenPair{AccessToken: "stale", RefreshToken: "refresh-dead"})

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.client.Me(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if api.StatusOf(err) != http.StatusUnauthorized {
			t.Fatalf("request %d: expected the original 401, got %v", i, err)
		}
	}
	if got := atomic.LoadInt64(&u.refreshCalls); got != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", got)
	}
	if m.State() != StateAnonymous {
		t.Fatalf("expected anonymous state after terminal refresh failure, got %s", m.State())
	}
	if pair, _ := store.Load(context.Background()); pair.RefreshToken != "" {
		t.Fatal("expected persisted tokens to be cleared")
	}
}

func TestNoDoubleRetry(t *testing.T) {
	u := newUpstream(t)
	u.rejectMe = true // /users/me keeps returning 401 even after refresh
	m, _ := newTestManager(t, u)
	seedTokens(m, "stale", "refresh-ok")

	_, err := m.client.Me(context.Background())
	if api.StatusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 to propagate, got %v", err)
	}
	if got := atomic.LoadInt64(&u.refreshCalls); got != 1 {
		t.Fatalf("expected one refresh, got %d", got)
	}
	if got := atomic.LoadInt64(&u.meCalls); got != 2 {
		t.Fatalf("expected original request plus one replay, got %d", got)
	}
}

func TestLoginThenLogoutClearsState(t *testing.T) {
	u := newUpstream(t)
	m, store := newTestManager(t, u)

	if err := m.Login(context.Background(), "owner@example.com", "pw"); err != nil {
		t.Fatal(err)
	}
	if !m.Authenticated() {
		t.Fatal("expected authenticated session after login")
	}
	if m.Role() != api.RoleOwner {
		t.Fatalf("unexpected role: %q", m.Role())
	}
	if len(m.Brands()) != 1 {
		t.Fatalf("expected one owned brand, got %d", len(m.Brands()))
	}

	if err := m.Logout(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m.Authenticated() {
		t.Fatal("expected unauthenticated session after logout")
	}
	if _, ok := m.CurrentUser(); ok {
		t.Fatal("expected user to be cleared")
	}
	if len(m.Brands()) != 0 {
		t.Fatal("expected owned brands to be cleared")
	}
	if pair, _ := store.Load(context.Background()); pair.AccessToken != "" || pair.RefreshToken != "" {
		t.Fatal("expected persisted tokens to be cleared")
	}

	// Logout is idempotent.
	if err := m.Logout(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Subsequent requests must not carry an Authorization header.
	_, _ = m.client.Me(context.Background())
	u.mu.Lock()
	lastAuth := u.lastAuth
	u.mu.Unlock()
	if lastAuth != "" {
		t.Fatalf("expected no Authorization header after logout, got %q", lastAuth)
	}
}

func TestStartRestoresStoredSession(t *testing.T) {
	u := newUpstream(t)
	m, store := newTestManager(t, u)
	_ = store.Save(context.Background(), api.TokenPair{RefreshToken: "refresh-stored"})

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt64(&u.refreshCalls); got != 1 {
		t.Fatalf("expected one automatic refresh, got %d", got)
	}
	if got := atomic.LoadInt64(&u.meCalls); got != 1 {
		t.Fatalf("expected one user fetch, got %d", got)
	}
	if !m.Authenticated() {
		t.Fatal("expected restored session to be authenticated")
	}
	if m.State() != StateAuthenticated {
		t.Fatalf("unexpected state: %s", m.State())
	}
}

func TestStartWithoutStoredTokensStaysAnonymous(t *testing.T) {
	u := newUpstream(t)
	m, _ := newTestManager(t, u)

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m.State() != StateAnonymous {
		t.Fatalf("unexpected state: %s", m.State())
	}
	if atomic.LoadInt64(&u.refreshCalls) != 0 || atomic.LoadInt64(&u.meCalls) != 0 {
		t.Fatal("expected no upstream calls for a cold anonymous start")
	}
}

func TestStartWithDeadRefreshTokenStaysAnonymous(t *testing.T) {
	u := newUpstream(t)
	u.rejectRefresh = true
	m, store := newTestManager(t, u)
	_ = store.Save(context.Background(), api.TokenPair{RefreshToken: "refresh-dead"})

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m.State() != StateAnonymous {
		t.Fatalf("unexpected state: %s", m.State())
	}
	if pair, _ := store.Load(context.Background()); pair.RefreshToken != "" {
		t.Fatal("expected dead refresh token to be purged")
	}
}

func TestMarkEmailVerifiedIsLocal(t *testing.T) {
	u := newUpstream(t)
	m, _ := newTestManager(t, u)
	if err := m.Login(context.Background(), "owner@example.com", "pw"); err != nil {
		t.Fatal(err)
	}
	before := atomic.LoadInt64(&u.meCalls)

	m.MarkEmailVerified()

	user, ok := m.CurrentUser()
	if !ok || !user.IsEmailVerified {
		t.Fatal("expected in-memory user to be patched")
	}
	if atomic.LoadInt64(&u.meCalls) != before {
		t.Fatal("expected no refetch after local email verification")
	}
}

func TestRefreshWithoutTokenFails(t *testing.T) {
	u := newUpstream(t)
	m, _ := newTestManager(t, u)

	if _, err := m.Refresh(context.Background()); err != ErrNoRefreshToken {
		t.Fatalf("expected ErrNoRefreshToken, got %v", err)
	}
	if atomic.LoadInt64(&u.refreshCalls) != 0 {
		t.Fatal("expected no refresh call without a stored token")
	}
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateAnonymous:      "anonymous",
		StateRestoring:      "restoring",
		StateAuthenticating: "authenticating",
		StateAuthenticated:  "authenticated",
		StateRefreshing:     "refreshing",
	}
	for state, want := range states {
		if got := state.String(); got != want {
			t.Fatalf("State(%d).String()=%q, want %q", state, got, want)
		}
	}
	if !strings.Contains(State(99).String(), "unknown") {
		t.Fatal("expected unknown for out-of-range state")
	}
}
