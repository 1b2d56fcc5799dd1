package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-dashboard/internal/domain"
	"stock-dashboard/internal/service"
	"stock-dashboard/internal/storage"
)

type memUserRepo struct {
	users  map[string]*domain.User
	nextID int64
}

func (r *memUserRepo) Init(ctx context.Context) error { return nil }

func (r *memUserRepo) Create(ctx context.Context, user *domain.User) (int64, error) {
	if _, ok := r.users[user.Username]; ok {
		return 0, fmt.Errorf("user %q already exists", user.Username)
	}
	r.nextID++
	user.ID = r.nextID
	copied := *user
	r.users[user.Username] = &copied
	return user.ID, nil
}

func (r *memUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, ok := r.users[username]
	if !ok {
		return nil, fmt.Errorf("user %q not found", username)
	}
	copied := *user
	return &copied, nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	for _, user := range r.users {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("user %d not found", id)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	users := service.NewUserService(&memUserRepo{users: make(map[string]*domain.User)})
	tokens := service.NewTokenService("test-secret", time.Hour)
	market := service.NewMarketService(nil, time.Minute, logger)
	predictions := service.NewPredictionService(market, nil, logger)
	portfolio := service.NewPortfolioService(market, nil, logger)
	benchmarks := service.NewBenchmarkService(nil)

	handler := NewHandler(users, tokens, market, predictions, portfolio, benchmarks, nil, "", "")
	router := gin.New()
	handler.RegisterRoutes(router)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func registerUser(t *testing.T, router *gin.Engine, username string) string {
	t.Helper()
	rec, body := doJSON(t, router, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return body["access_token"].(string)
}

func TestRegisterLoginMeFlow(t *testing.T) {
	router := newTestRouter(t)

	token := registerUser(t, router, "alice")
	require.NotEmpty(t, token)

	rec, body := doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "alice",
		"password": "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bearer", body["token_type"])

	rec, body = doJSON(t, router, http.MethodGet, "/api/auth/me", body["access_token"].(string), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "alice@example.com", body["email"])
}

func TestRegisterDuplicateUsername(t *testing.T) {
	router := newTestRouter(t)
	registerUser(t, router, "alice")

	rec, body := doJSON(t, router, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "alice",
		"email":    "other@example.com",
		"password": "secret2",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Username already registered", body["detail"])
}

func TestLoginRejectsBadPassword(t *testing.T) {
	router := newTestRouter(t)
	registerUser(t, router, "alice")

	rec, body := doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "alice",
		"password": "wrong-pw",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Incorrect username or password", body["detail"])
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
}

func TestMeRequiresValidToken(t *testing.T) {
	router := newTestRouter(t)

	rec, body := doJSON(t, router, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authenticated", body["detail"])

	rec, body = doJSON(t, router, http.MethodGet, "/api/auth/me", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Could not validate credentials", body["detail"])
}

func TestStockEndpointsArePublic(t *testing.T) {
	router := newTestRouter(t)

	rec, body := doJSON(t, router, http.MethodGet, "/api/stocks/history?ticker=aapl&period=5d", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AAPL", body["ticker"])
	assert.Equal(t, float64(5), body["total_records"])

	rec, _ = doJSON(t, router, http.MethodGet, "/api/stocks/history", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = doJSON(t, router, http.MethodGet, "/api/stocks/popular", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["stocks"], 8)

	rec, body = doJSON(t, router, http.MethodGet, "/api/stocks/search?q=aapl", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["results"], 1)

	rec, body = doJSON(t, router, http.MethodGet, "/api/stocks/quote/MSFT", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MSFT", body["symbol"])
}

func TestPortfolioEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec, body := doJSON(t, router, http.MethodGet, "/api/portfolio/overview", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(25000), body["cash_balance"])
	assert.Len(t, body["holdings"], 5)

	rec, body = doJSON(t, router, http.MethodGet, "/api/portfolio/history?period=1Y", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1Y", body["period"])
	assert.Len(t, body["data"], 12)
}

func TestBenchmarkEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec, body := doJSON(t, router, http.MethodGet, "/api/benchmarks/performance", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	benchmarks := body["benchmarks"].(map[string]any)
	assert.Contains(t, benchmarks, "lstm")
	assert.Contains(t, benchmarks, "rnn")

	rec, body = doJSON(t, router, http.MethodGet, "/api/benchmarks/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "online", body["system_status"])
	assert.Equal(t, "not_configured", body["api_status"])
}

func TestPredictRequiresAuth(t *testing.T) {
	router := newTestRouter(t)

	rec, _ := doJSON(t, router, http.MethodPost, "/api/predict", "", gin.H{"ticker": "AAPL"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := registerUser(t, router, "alice")
	rec, body := doJSON(t, router, http.MethodPost, "/api/predict", token, gin.H{
		"ticker": "AAPL",
		"days":   7,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "AAPL", body["ticker"])
	assert.Equal(t, "LSTM", body["model_type"])
	assert.Len(t, body["predictions"], 7)
}

type fakeArchiveStore struct {
	objects       []storage.ObjectInfo
	purgedPrefix  string
	purgedBuckets []string
}

func (f *fakeArchiveStore) UploadJSON(ctx context.Context, bucket, key string, value any) (string, error) {
	return "s3://" + bucket + "/" + key, nil
}

func (f *fakeArchiveStore) ListObjects(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	return f.objects, nil
}

func (f *fakeArchiveStore) DeletePrefix(ctx context.Context, bucket, prefix string) error {
	f.purgedBuckets = append(f.purgedBuckets, bucket)
	f.purgedPrefix = prefix
	return nil
}

func newArchiveRouter(t *testing.T, store storage.Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	users := service.NewUserService(&memUserRepo{users: make(map[string]*domain.User)})
	tokens := service.NewTokenService("test-secret", time.Hour)
	market := service.NewMarketService(nil, time.Minute, logger)
	predictions := service.NewPredictionService(market, nil, logger)
	portfolio := service.NewPortfolioService(market, nil, logger)
	benchmarks := service.NewBenchmarkService(nil)

	handler := NewHandler(users, tokens, market, predictions, portfolio, benchmarks, store, "archive-bucket", "predictions")
	router := gin.New()
	handler.RegisterRoutes(router)
	return router
}

func TestArchiveListAndPurge(t *testing.T) {
	modified := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	store := &fakeArchiveStore{objects: []storage.ObjectInfo{
		{Key: "predictions/2026/08/20/runs-120000.json", Size: 2048, LastModified: &modified},
	}}
	router := newArchiveRouter(t, store)
	token := registerUser(t, router, "alice")

	rec, body := doJSON(t, router, http.MethodGet, "/api/predictions/archive", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	objects := body["objects"].([]any)
	require.Len(t, objects, 1)
	first := objects[0].(map[string]any)
	assert.Equal(t, "predictions/2026/08/20/runs-120000.json", first["key"])
	assert.Equal(t, "2026-08-20T12:00:00Z", first["last_modified"])

	rec, body = doJSON(t, router, http.MethodDelete, "/api/predictions/archive", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "predictions", body["purged"])
	assert.Equal(t, "predictions", store.purgedPrefix)
	assert.Equal(t, []string{"archive-bucket"}, store.purgedBuckets)
}

func TestArchiveUnavailableWithoutStorage(t *testing.T) {
	router := newTestRouter(t)
	token := registerUser(t, router, "alice")

	rec, body := doJSON(t, router, http.MethodGet, "/api/predictions/archive", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "archive storage not configured", body["error"])
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/stocks/popular", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
