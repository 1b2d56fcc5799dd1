package session

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	// ErrMissingIdentifier is returned when login/register gets an empty identifier.
	ErrMissingIdentifier = errors.New("identifier is required")
	// ErrMissingSecret is returned when login/register gets an empty secret.
	ErrMissingSecret = errors.New("secret is required")
)

const (
	genericLoginFailure    = "login failed"
	genericRegisterFailure = "registration failed"
)

// Manager owns the authenticated-user state. It mediates between an optional
// hosted identity provider (probed per capability) and the backend API client,
// keeps the bearer token mirrored across memory, the token store and the
// client's default Authorization header, and reacts to pushed auth events.
//
// Operations do not hold the state lock across network calls; concurrent
// callers race with last-writer-wins semantics on all three mirror locations.
type Manager struct {
	provider any
	backend  *Client
	store    TokenStore
	logger   *logrus.Logger

	mu      sync.Mutex
	user    *User
	token   string
	loading bool

	unsubscribe func()
}

// NewManager builds a manager and, when the provider supports it, subscribes
// to its auth-state events. provider may be nil. Close releases the
// subscription.
func NewManager(provider any, backend *Client, store TokenStore, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	m := &Manager{
		provider: provider,
		backend:  backend,
		store:    store,
		logger:   logger,
		loading:  true,
	}
	if src, ok := provider.(AuthEventSource); ok {
		m.unsubscribe = src.OnAuthStateChange(m.handleAuthEvent)
	}
	return m
}

// Snapshot returns the read-only projection of the current session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{Token: m.token, Loading: m.loading}
	if m.user != nil {
		u := *m.user
		snap.User = &u
	}
	return snap
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	return m.Snapshot().State()
}

// Restore recovers a session at startup: first from the identity provider's
// externally managed session, then from a previously persisted token validated
// against the backend. It never fails; whatever happens, loading ends false.
func (m *Manager) Restore(ctx context.Context) {
	defer m.settle()

	if src, ok := m.provider.(SessionSource); ok {
		cred, err := src.ActiveSession(ctx)
		if err != nil {
			m.logger.WithError(err).Warn("identity session lookup failed")
		} else if cred != nil && cred.Token != "" {
			m.adopt(*cred)
			return
		}
	}

	if m.store == nil {
		return
	}
	token, ok := m.store.Get()
	if !ok || token == "" {
		return
	}

	m.backend.SetAuthToken(token)
	user, err := m.backend.Me(ctx)
	if err != nil {
		// Stale token: clear it and continue unauthenticated.
		m.logger.WithError(err).Info("persisted token rejected, clearing")
		m.backend.ClearAuthToken()
		if err := m.store.Remove(); err != nil {
			m.logger.WithError(err).Warn("remove persisted token")
		}
		return
	}
	m.adopt(Credential{User: user, Token: token})
}

// settle flips loading to false; it only ever transitions true -> false.
func (m *Manager) settle() {
	m.mu.Lock()
	m.loading = false
	m.mu.Unlock()
}

// Login authenticates with the identity provider when it can sign in, falling
// back to the backend token exchange. It returns nil on success and an error
// carrying a human-readable message otherwise; it never panics and performs
// no retries.
func (m *Manager) Login(ctx context.Context, identifier, secret string) error {
	if identifier == "" {
		return ErrMissingIdentifier
	}
	if secret == "" {
		return ErrMissingSecret
	}

	var providerErr error
	if p, ok := m.provider.(SignInProvider); ok {
		cred, err := p.SignIn(ctx, identifier, secret)
		if err == nil && cred != nil && cred.User != (User{}) {
			m.adopt(*cred)
			return nil
		}
		providerErr = err
		if providerErr != nil {
			m.logger.WithError(providerErr).Debug("identity sign-in failed, trying backend")
		}
	}

	token, err := m.backend.Login(ctx, identifier, secret)
	if err != nil {
		return failure(err, providerErr, genericLoginFailure)
	}
	return m.adoptBackendToken(ctx, token, providerErr, genericLoginFailure)
}

// Register mirrors Login's two-path structure for account creation. A missing
// display name defaults to the identifier's local part, which also names the
// backend account.
func (m *Manager) Register(ctx context.Context, identifier, secret, displayName string) error {
	if identifier == "" {
		return ErrMissingIdentifier
	}
	if secret == "" {
		return ErrMissingSecret
	}
	if displayName == "" {
		displayName = localPart(identifier)
	}

	var providerErr error
	if p, ok := m.provider.(SignUpProvider); ok {
		cred, err := p.SignUp(ctx, identifier, secret, Profile{DisplayName: displayName})
		if err == nil && cred != nil && cred.User != (User{}) {
			m.adopt(*cred)
			return nil
		}
		providerErr = err
		if providerErr != nil {
			m.logger.WithError(providerErr).Debug("identity sign-up failed, trying backend")
		}
	}

	token, err := m.backend.Register(ctx, localPart(identifier), identifier, secret, displayName)
	if err != nil {
		return failure(err, providerErr, genericRegisterFailure)
	}
	return m.adoptBackendToken(ctx, token, providerErr, genericRegisterFailure)
}

// adoptBackendToken completes the backend path shared by Login and Register:
// install the token, fetch the profile, adopt the credential.
func (m *Manager) adoptBackendToken(ctx context.Context, token string, providerErr error, generic string) error {
	m.backend.SetAuthToken(token)
	user, err := m.backend.Me(ctx)
	if err != nil {
		m.backend.ClearAuthToken()
		return failure(err, providerErr, generic)
	}
	m.adopt(Credential{User: user, Token: token})
	return nil
}

// Logout signs out of the identity provider on a best-effort basis and then
// unconditionally tears the local session down. Provider failure is logged,
// never propagated, and never blocks the cleanup.
func (m *Manager) Logout(ctx context.Context) {
	if p, ok := m.provider.(SignOutProvider); ok {
		if err := p.SignOut(ctx); err != nil {
			m.logger.WithError(err).Warn("provider sign-out failed")
		}
	}
	m.clearLocal()
}

// Close cancels the auth-event subscription. Safe to call repeatedly.
func (m *Manager) Close() {
	m.mu.Lock()
	unsub := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (m *Manager) handleAuthEvent(ev Event) {
	switch ev.Kind {
	case EventSignedIn:
		if ev.Credential != nil {
			m.adopt(*ev.Credential)
		}
	case EventSignedOut:
		m.clearLocal()
	}
}

// adopt installs a credential in all three mirror locations. An empty token
// clears the persisted and header copies so the mirrors cannot diverge.
func (m *Manager) adopt(cred Credential) {
	m.mu.Lock()
	u := cred.User
	m.user = &u
	m.token = cred.Token
	m.mu.Unlock()

	if cred.Token != "" {
		m.backend.SetAuthToken(cred.Token)
		if m.store != nil {
			if err := m.store.Set(cred.Token); err != nil {
				m.logger.WithError(err).Warn("persist token")
			}
		}
		return
	}
	m.backend.ClearAuthToken()
	if m.store != nil {
		if err := m.store.Remove(); err != nil {
			m.logger.WithError(err).Warn("remove persisted token")
		}
	}
}

// clearLocal resets memory, persisted token and the default header.
func (m *Manager) clearLocal() {
	m.mu.Lock()
	m.user = nil
	m.token = ""
	m.mu.Unlock()

	m.backend.ClearAuthToken()
	if m.store != nil {
		if err := m.store.Remove(); err != nil {
			m.logger.WithError(err).Warn("remove persisted token")
		}
	}
}

// failure picks the most specific human-readable message available: the
// backend-reported detail, then the provider error, then a generic fallback.
func failure(backendErr, providerErr error, generic string) error {
	if backendErr != nil && backendErr.Error() != "" {
		return backendErr
	}
	if providerErr != nil && providerErr.Error() != "" {
		return providerErr
	}
	return errors.New(generic)
}

func localPart(identifier string) string {
	for i := 0; i < len(identifier); i++ {
		if identifier[i] == '@' {
			return identifier[:i]
		}
	}
	return identifier
}
