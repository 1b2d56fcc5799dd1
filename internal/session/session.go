package session

import "context"

// State describes where the manager is in its lifecycle.
type State int

const (
	// StateRestoring is the initial state, held until the startup restore settles.
	StateRestoring State = iota
	// StateUnauthenticated means no user is signed in.
	StateUnauthenticated
	// StateAuthenticated means a user is signed in.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateRestoring:
		return "restoring"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// User is the identity record adopted from whichever provider authenticated it.
type User struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// Credential pairs a user with the bearer token that authenticates it.
// Token may be empty when a provider reports a user without a session.
type Credential struct {
	User  User
	Token string
}

// Snapshot is the read-only projection exposed to callers.
type Snapshot struct {
	User    *User
	Token   string
	Loading bool
}

// State derives the lifecycle state from the projection.
func (s Snapshot) State() State {
	if s.Loading {
		return StateRestoring
	}
	if s.User != nil {
		return StateAuthenticated
	}
	return StateUnauthenticated
}

// Profile carries optional sign-up metadata.
type Profile struct {
	DisplayName string
}

// EventKind identifies a pushed auth-state change.
type EventKind int

const (
	// EventSignedIn carries a fresh credential to adopt.
	EventSignedIn EventKind = iota
	// EventSignedOut requests local session teardown.
	EventSignedOut
)

// Event is pushed spontaneously by an identity provider that supports it.
type Event struct {
	Kind       EventKind
	Credential *Credential
}

// The identity provider is passed to the manager as a plain value and probed
// for each capability separately; a provider implements only what it has.

// SessionSource reports an externally managed active session, or nil when none.
type SessionSource interface {
	ActiveSession(ctx context.Context) (*Credential, error)
}

// SignInProvider exchanges credentials for an identity, optionally with a session.
type SignInProvider interface {
	SignIn(ctx context.Context, identifier, secret string) (*Credential, error)
}

// SignUpProvider registers a new identity, optionally yielding a session.
type SignUpProvider interface {
	SignUp(ctx context.Context, identifier, secret string, profile Profile) (*Credential, error)
}

// SignOutProvider invalidates the provider-side session.
type SignOutProvider interface {
	SignOut(ctx context.Context) error
}

// AuthEventSource pushes sign-in/sign-out events; the returned function
// cancels the subscription and must be safe to call more than once.
type AuthEventSource interface {
	OnAuthStateChange(handler func(Event)) (unsubscribe func())
}
