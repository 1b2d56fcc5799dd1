package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-dashboard/internal/session"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func grantBody(token, refresh string, expires int) map[string]any {
	return map[string]any{
		"access_token":  token,
		"refresh_token": refresh,
		"expires_in":    expires,
		"user": map[string]any{
			"id":            "u-1",
			"email":         "a@b.com",
			"user_metadata": map[string]string{"full_name": "Ada"},
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestSignInInstallsSession(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/token", r.URL.Path)
		require.Equal(t, "password", r.URL.Query().Get("grant_type"))
		gotKey = r.Header.Get("apikey")
		writeJSON(w, http.StatusOK, grantBody("tok-1", "", 0))
	}))
	defer srv.Close()

	client := New(Config{URL: srv.URL, APIKey: "anon"}, quietLogger())
	defer client.Close()

	cred, err := client.SignIn(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "anon", gotKey)
	assert.Equal(t, "tok-1", cred.Token)
	assert.Equal(t, "a@b.com", cred.User.Email)
	assert.Equal(t, "Ada", cred.User.FullName)

	active, err := client.ActiveSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "tok-1", active.Token)
}

func TestSignInFailureMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error_description": "Invalid login credentials"})
	}))
	defer srv.Close()

	client := New(Config{URL: srv.URL}, quietLogger())
	defer client.Close()

	_, err := client.SignIn(context.Background(), "a@b.com", "nope")
	require.Error(t, err)
	assert.Equal(t, "Invalid login credentials", err.Error())
}

func TestSignUpWithoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/signup", r.URL.Path)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "new@user.com", body["email"])
		// Confirmation required: user record only, no grant.
		writeJSON(w, http.StatusOK, map[string]any{
			"user": map[string]any{"id": "u-2", "email": "new@user.com"},
		})
	}))
	defer srv.Close()

	client := New(Config{URL: srv.URL}, quietLogger())
	defer client.Close()

	cred, err := client.SignUp(context.Background(), "new@user.com", "pw", session.Profile{DisplayName: "New"})
	require.NoError(t, err)
	assert.Empty(t, cred.Token)
	assert.Equal(t, "new@user.com", cred.User.Email)

	active, err := client.ActiveSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, active, "no session until confirmation")
}

func TestSignOutClearsAndNotifies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			writeJSON(w, http.StatusOK, grantBody("tok-1", "", 0))
		case "/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := New(Config{URL: srv.URL}, quietLogger())
	defer client.Close()

	var events []session.Event
	unsubscribe := client.OnAuthStateChange(func(ev session.Event) {
		events = append(events, ev)
	})
	defer unsubscribe()

	_, err := client.SignIn(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	require.NoError(t, client.SignOut(context.Background()))

	active, err := client.ActiveSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, active)
	require.Len(t, events, 1)
	assert.Equal(t, session.EventSignedOut, events[0].Kind)

	// Unsubscribe twice: second call must be harmless.
	unsubscribe()
	unsubscribe()
}

func TestExpiredSessionRefreshesOnDemand(t *testing.T) {
	var refreshCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		refreshCalls++
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "refresh-1", body["refresh_token"])
		writeJSON(w, http.StatusOK, grantBody("tok-new", "refresh-2", 3600))
	}))
	defer srv.Close()

	client := New(Config{URL: srv.URL, Timeout: time.Second}, quietLogger())
	defer client.Close()

	// Seed a session that lapsed a minute ago.
	client.mu.Lock()
	client.current = &session.Credential{User: session.User{ID: "u-1"}, Token: "tok-old"}
	client.refreshToken = "refresh-1"
	client.expiresAt = time.Now().Add(-time.Minute)
	client.mu.Unlock()

	active, err := client.ActiveSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "tok-new", active.Token)
	assert.Equal(t, 1, refreshCalls)
}

func TestActiveSessionExpiredWithoutRefreshToken(t *testing.T) {
	client := New(Config{URL: "http://127.0.0.1:0"}, quietLogger())
	defer client.Close()

	client.mu.Lock()
	client.current = &session.Credential{Token: "tok-old"}
	client.expiresAt = time.Now().Add(-time.Minute)
	client.mu.Unlock()

	active, err := client.ActiveSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, active)
}
