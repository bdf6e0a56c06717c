package session

import (
	"context"
	"errors"
	"sync"

	"droffers.app/internal/api"
	"droffers.app/internal/audit"
	"droffers.app/internal/obs"
)

var (
	// ErrNoRefreshToken indicates a refresh was attempted without a stored credential.
	ErrNoRefreshToken = errors.New("session: no refresh token")
	// ErrUnauthorized indicates the session could not be established.
	ErrUnauthorized = errors.New("session: unauthorized")
)

// State is the lifecycle phase of the session manager.
type State int

const (
	// StateAnonymous — no credentials.
	StateAnonymous State = iota
	// StateRestoring — persisted refresh token found, silent refresh pending.
	StateRestoring
	// StateAuthenticating — tokens present, user fetch in flight.
	StateAuthenticating
	// StateAuthenticated — tokens and resolved user present.
	StateAuthenticated
	// StateRefreshing — a 401 was observed, refresh in flight.
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateRestoring:
		return "restoring"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// TokenStore persists the token pair between process runs. The zero pair
// means no stored session.
type TokenStore interface {
	Load(ctx context.Context) (api.TokenPair, error)
	Save(ctx context.Context, pair api.TokenPair) error
	Clear(ctx context.Context) error
}

// refreshCall is the shared handle for one in-flight token exchange. Callers
// arriving while it is open wait on done and adopt its outcome, so at most
// one POST /auth/refresh is ever outstanding.
type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

// Manager owns the access/refresh token pair and the authenticated user. It
// is constructed once at process start and injected wherever needed; it also
// serves as the API client's token source.
type Manager struct {
	client *api.Client
	store  TokenStore

	mu       sync.Mutex
	state    State
	tokens   api.TokenPair
	user     *api.User
	inflight *refreshCall
}

var _ api.TokenSource = (*Manager)(nil)

// NewManager wires a session manager to the client and token store. The
// client's token source is set as a side effect.
func NewManager(client *api.Client, store TokenStore) *Manager {
	m := &Manager{
		client: client,
		store:  store,
		state:  StateAnonymous,
	}
	client.SetTokenSource(m)
	return m
}

// Start restores a persisted session. With no stored refresh token the
// manager stays anonymous; otherwise it performs one silent refresh followed
// by a user fetch. Restore failures leave the manager anonymous and return
// no error: a stale session is an expected cold-start condition.
func (m *Manager) Start(ctx context.Context) error {
	pair, err := m.store.Load(ctx)
	if err != nil {
		return err
	}
	if pair.RefreshToken == "" {
		return nil
	}

	m.mu.Lock()
	m.tokens = api.TokenPair{RefreshToken: pair.RefreshToken}
	m.state = StateRestoring
	m.mu.Unlock()

	if _, err := m.Refresh(ctx); err != nil {
		_ = audit.LogEvent(ctx, "session.restore.failed", map[string]any{"error": err.Error()})
		return nil
	}
	if err := m.fetchUser(ctx); err != nil {
		return nil
	}
	return nil
}

// Login exchanges credentials for a token pair and establishes the session.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	pair, err := m.client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return m.Establish(ctx, pair)
}

// Signup registers an account and establishes the session.
func (m *Manager) Signup(ctx context.Context, req api.SignupRequest) error {
	pair, err := m.client.Signup(ctx, req)
	if err != nil {
		return err
	}
	return m.Establish(ctx, pair)
}

// Establish adopts an issued token pair: persists it and resolves the user.
func (m *Manager) Establish(ctx context.Context, pair api.TokenPair) error {
	if !pair.Valid() {
		return ErrUnauthorized
	}
	m.mu.Lock()
	m.tokens = pair
	m.user = nil
	m.state = StateAuthenticating
	m.mu.Unlock()

	if err := m.store.Save(ctx, pair); err != nil {
		return err
	}
	if err := m.fetchUser(ctx); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, "session.login", map[string]any{"role": m.Role()})
	return nil
}

// Logout clears all session state. Idempotent.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	wasAuthenticated := m.state != StateAnonymous
	m.tokens = api.TokenPair{}
	m.user = nil
	m.state = StateAnonymous
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		return err
	}
	if wasAuthenticated {
		_ = audit.LogEvent(ctx, "session.logout", nil)
	}
	return nil
}

// AccessToken implements api.TokenSource.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens.AccessToken
}

// CanRefresh implements api.TokenSource.
func (m *Manager) CanRefresh() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens.RefreshToken != ""
}

// Refresh exchanges the refresh token for a new pair and returns the new
// access token. The exchange is single-flight: callers that arrive while one
// is outstanding block until it settles and share its outcome. A failed
// exchange is terminal — all session state is cleared before the error is
// returned to every waiter.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	if call := m.inflight; call != nil {
		m.mu.Unlock()
		select {
		case <-call.done:
			return call.token, call.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	refresh := m.tokens.RefreshToken
	if refresh == "" {
		m.mu.Unlock()
		return "", ErrNoRefreshToken
	}
	call := &refreshCall{done: make(chan struct{})}
	m.inflight = call
	if m.state != StateRestoring {
		m.state = StateRefreshing
	}
	m.mu.Unlock()

	pair, err := m.client.RefreshSession(ctx, refresh)

	m.mu.Lock()
	m.inflight = nil
	if err != nil {
		m.tokens = api.TokenPair{}
		m.user = nil
		m.state = StateAnonymous
		m.mu.Unlock()

		_ = m.store.Clear(ctx)
		obs.CountTokenRefresh("failed")
		_ = audit.LogEvent(ctx, "session.refresh.failed", map[string]any{"error": err.Error()})

		call.err = err
		close(call.done)
		return "", err
	}
	m.tokens = pair
	if m.user != nil {
		m.state = StateAuthenticated
	} else {
		m.state = StateAuthenticating
	}
	m.mu.Unlock()

	if err := m.store.Save(ctx, pair); err != nil {
		_ = audit.LogEvent(ctx, "session.persist.failed", map[string]any{"error": err.Error()})
	}
	obs.CountTokenRefresh("ok")

	call.token = pair.AccessToken
	close(call.done)
	return pair.AccessToken, nil
}

// fetchUser resolves /users/me for the current access token. A 401 during
// the fetch gets exactly one refresh-and-retry through the client; any other
// failure tears the session down.
func (m *Manager) fetchUser(ctx context.Context) error {
	user, err := m.client.Me(ctx)
	if err != nil {
		_ = m.Logout(ctx)
		return err
	}
	m.mu.Lock()
	m.user = &user
	if m.tokens.AccessToken != "" {
		m.state = StateAuthenticated
	}
	m.mu.Unlock()
	return nil
}

// CurrentUser returns a copy of the resolved user, if any.
func (m *Manager) CurrentUser() (api.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return api.User{}, false
	}
	return *m.user, true
}

// Brands returns the brands owned by the current user.
func (m *Manager) Brands() []api.Brand {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	out := make([]api.Brand, len(m.user.Brands))
	copy(out, m.user.Brands)
	return out
}

// Role returns the derived role: the user's role when resolved, "" otherwise.
func (m *Manager) Role() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return ""
	}
	return m.user.Role
}

// Authenticated is true iff both a non-empty access token and a resolved
// user are present.
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens.AccessToken != "" && m.user != nil
}

// State returns the current lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// MarkEmailVerified patches the in-memory user after a verification the
// process itself just completed. No network call and no refetch.
func (m *Manager) MarkEmailVerified() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user != nil {
		m.user.IsEmailVerified = true
	}
}
