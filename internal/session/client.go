package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultClientTimeout = 15 * time.Second

// Client talks to the application backend: token exchange, registration and
// profile lookup. The bearer credential lives behind a mutex and is attached
// per request, so the manager may rotate it from pushed auth events while
// requests are in flight.
type Client struct {
	http *resty.Client

	mu    sync.RWMutex
	token string
}

// NewClient builds a backend client for the given base URL, e.g.
// "http://localhost:8080/api". A non-positive timeout falls back to a default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout),
	}
	c.http.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if token := c.AuthToken(); token != "" {
			r.SetAuthToken(token)
		}
		return nil
	})
	return c
}

// SetAuthToken installs token as the bearer credential attached to every
// subsequent request.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ClearAuthToken removes the bearer credential.
func (c *Client) ClearAuthToken() {
	c.SetAuthToken("")
}

// AuthToken reports the current bearer credential.
func (c *Client) AuthToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type apiError struct {
	Detail string `json:"detail"`
	Err    string `json:"error"`
}

func (e apiError) message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Err
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var token tokenResponse
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"username": username, "password": password}).
		SetResult(&token).
		SetError(&apiErr).
		Post("/auth/login")
	if err != nil {
		return "", fmt.Errorf("backend login: %w", err)
	}
	if resp.IsError() {
		return "", requestError("login", resp.StatusCode(), apiErr)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("backend login: empty access token")
	}
	return token.AccessToken, nil
}

// Register creates an account and returns its bearer token.
func (c *Client) Register(ctx context.Context, username, email, password, fullName string) (string, error) {
	var token tokenResponse
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"username":  username,
			"email":     email,
			"password":  password,
			"full_name": fullName,
		}).
		SetResult(&token).
		SetError(&apiErr).
		Post("/auth/register")
	if err != nil {
		return "", fmt.Errorf("backend register: %w", err)
	}
	if resp.IsError() {
		return "", requestError("register", resp.StatusCode(), apiErr)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("backend register: empty access token")
	}
	return token.AccessToken, nil
}

// Me fetches the profile behind the current bearer credential.
func (c *Client) Me(ctx context.Context) (User, error) {
	var user User
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&user).
		SetError(&apiErr).
		Get("/auth/me")
	if err != nil {
		return User{}, fmt.Errorf("backend profile: %w", err)
	}
	if resp.IsError() {
		return User{}, requestError("profile", resp.StatusCode(), apiErr)
	}
	return user, nil
}

// requestError surfaces the server-reported human-readable message when one
// exists; the manager passes it through to callers verbatim.
func requestError(op string, status int, apiErr apiError) error {
	if msg := apiErr.message(); msg != "" {
		return fmt.Errorf("%s", msg)
	}
	return fmt.Errorf("backend %s failed with status %d", op, status)
}
