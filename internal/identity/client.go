// Package identity implements the hosted identity provider client. It speaks
// a GoTrue-style HTTP API (password grant, signup, logout) and pushes
// auth-state events to subscribers when its background refresh loop rotates
// or loses the access token.
package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"stock-dashboard/internal/session"
)

const (
	defaultTimeout = 10 * time.Second
	// refreshLead is how long before expiry the refresh loop fires.
	refreshLead = 30 * time.Second
)

// Config describes the hosted identity service endpoint.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Client is the hosted identity provider. It holds the provider-side session
// in memory only; durable persistence is the session manager's concern.
type Client struct {
	http   *resty.Client
	logger *logrus.Logger

	mu           sync.Mutex
	current      *session.Credential
	refreshToken string
	expiresAt    time.Time
	handlers     map[int]func(session.Event)
	nextHandler  int
	stopRefresh  chan struct{}
}

// New builds an identity client. The API key is sent both as apikey header and
// bearer fallback, the way hosted GoTrue deployments expect.
func New(cfg Config, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.URL, "/")).
			SetTimeout(timeout).
			SetHeader("apikey", cfg.APIKey),
		logger:   logger,
		handlers: make(map[int]func(session.Event)),
	}
}

type grantResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"`
	User         identityUser `json:"user"`
}

type identityUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Metadata struct {
		FullName string `json:"full_name"`
	} `json:"user_metadata"`
}

type identityError struct {
	Message     string `json:"msg"`
	Description string `json:"error_description"`
}

func (e identityError) message() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Description
}

func (u identityUser) toUser() session.User {
	return session.User{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.Metadata.FullName,
	}
}

// ActiveSession reports the in-memory provider session when it is still
// valid, refreshing it first when it is about to lapse.
func (c *Client) ActiveSession(ctx context.Context) (*session.Credential, error) {
	c.mu.Lock()
	cred := c.current
	expired := c.current != nil && !c.expiresAt.IsZero() && time.Now().After(c.expiresAt)
	refreshToken := c.refreshToken
	c.mu.Unlock()

	if cred == nil {
		return nil, nil
	}
	if !expired {
		copied := *cred
		return &copied, nil
	}
	if refreshToken == "" {
		return nil, nil
	}
	refreshed, err := c.refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return refreshed, nil
}

// SignIn performs the password grant and begins refreshing the session in the
// background.
func (c *Client) SignIn(ctx context.Context, identifier, secret string) (*session.Credential, error) {
	var grant grantResponse
	var idErr identityError
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": identifier, "password": secret}).
		SetResult(&grant).
		SetError(&idErr).
		Post("/token")
	if err != nil {
		return nil, fmt.Errorf("identity sign-in: %w", err)
	}
	if resp.IsError() {
		return nil, grantFailure("sign-in", resp.StatusCode(), idErr)
	}
	return c.install(grant), nil
}

// SignUp registers the identity. Depending on provider settings the response
// may or may not include a session; the credential's token is empty when it
// does not.
func (c *Client) SignUp(ctx context.Context, identifier, secret string, profile session.Profile) (*session.Credential, error) {
	var grant grantResponse
	var idErr identityError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"email":    identifier,
			"password": secret,
			"data":     map[string]string{"full_name": profile.DisplayName},
		}).
		SetResult(&grant).
		SetError(&idErr).
		Post("/signup")
	if err != nil {
		return nil, fmt.Errorf("identity sign-up: %w", err)
	}
	if resp.IsError() {
		return nil, grantFailure("sign-up", resp.StatusCode(), idErr)
	}
	if grant.AccessToken == "" {
		// Confirmation flow: user exists but no session yet.
		return &session.Credential{User: grant.User.toUser()}, nil
	}
	return c.install(grant), nil
}

// SignOut revokes the provider session and notifies subscribers.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := ""
	if c.current != nil {
		token = c.current.Token
	}
	c.mu.Unlock()

	req := c.http.R().SetContext(ctx)
	if token != "" {
		req.SetAuthToken(token)
	}
	resp, err := req.Post("/logout")

	c.drop()
	c.emit(session.Event{Kind: session.EventSignedOut})

	if err != nil {
		return fmt.Errorf("identity sign-out: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("identity sign-out failed with status %d", resp.StatusCode())
	}
	return nil
}

// OnAuthStateChange registers a handler for pushed events. The returned
// function removes the registration and may be called more than once.
func (c *Client) OnAuthStateChange(handler func(session.Event)) func() {
	c.mu.Lock()
	id := c.nextHandler
	c.nextHandler++
	c.handlers[id] = handler
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}

// Close stops the refresh loop without revoking the provider session.
func (c *Client) Close() {
	c.mu.Lock()
	if c.stopRefresh != nil {
		close(c.stopRefresh)
		c.stopRefresh = nil
	}
	c.mu.Unlock()
}

// install records a granted session and (re)starts the refresh loop.
func (c *Client) install(grant grantResponse) *session.Credential {
	cred := &session.Credential{User: grant.User.toUser(), Token: grant.AccessToken}

	c.mu.Lock()
	c.current = cred
	c.refreshToken = grant.RefreshToken
	if grant.ExpiresIn > 0 {
		c.expiresAt = time.Now().Add(time.Duration(grant.ExpiresIn) * time.Second)
	} else {
		c.expiresAt = time.Time{}
	}
	if c.stopRefresh != nil {
		close(c.stopRefresh)
		c.stopRefresh = nil
	}
	var stop chan struct{}
	if grant.RefreshToken != "" && grant.ExpiresIn > 0 {
		stop = make(chan struct{})
		c.stopRefresh = stop
		delay := time.Until(c.expiresAt) - refreshLead
		if delay < time.Second {
			delay = time.Second
		}
		go c.refreshLoop(stop, delay)
	}
	c.mu.Unlock()

	copied := *cred
	return &copied
}

func (c *Client) refreshLoop(stop chan struct{}, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-stop:
		return
	case <-timer.C:
	}

	c.mu.Lock()
	refreshToken := c.refreshToken
	c.mu.Unlock()
	if refreshToken == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	cred, err := c.refresh(ctx, refreshToken)
	if err != nil {
		c.logger.WithError(err).Warn("identity token refresh failed")
		c.drop()
		c.emit(session.Event{Kind: session.EventSignedOut})
		return
	}
	c.emit(session.Event{Kind: session.EventSignedIn, Credential: cred})
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*session.Credential, error) {
	var grant grantResponse
	var idErr identityError
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("grant_type", "refresh_token").
		SetBody(map[string]string{"refresh_token": refreshToken}).
		SetResult(&grant).
		SetError(&idErr).
		Post("/token")
	if err != nil {
		return nil, fmt.Errorf("identity refresh: %w", err)
	}
	if resp.IsError() {
		return nil, grantFailure("refresh", resp.StatusCode(), idErr)
	}
	return c.install(grant), nil
}

func (c *Client) drop() {
	c.mu.Lock()
	c.current = nil
	c.refreshToken = ""
	c.expiresAt = time.Time{}
	if c.stopRefresh != nil {
		close(c.stopRefresh)
		c.stopRefresh = nil
	}
	c.mu.Unlock()
}

func (c *Client) emit(ev session.Event) {
	c.mu.Lock()
	handlers := make([]func(session.Event), 0, len(c.handlers))
	for _, h := range c.handlers {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

func grantFailure(op string, status int, idErr identityError) error {
	if msg := idErr.message(); msg != "" {
		return fmt.Errorf("%s", msg)
	}
	return fmt.Errorf("identity %s failed with status %d", op, status)
}

var (
	_ session.SessionSource   = (*Client)(nil)
	_ session.SignInProvider  = (*Client)(nil)
	_ session.SignUpProvider  = (*Client)(nil)
	_ session.SignOutProvider = (*Client)(nil)
	_ session.AuthEventSource = (*Client)(nil)
)
