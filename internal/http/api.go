package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"stock-dashboard/internal/domain"
	"stock-dashboard/internal/service"
	"stock-dashboard/internal/storage"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	users       service.UserService
	tokens      *service.TokenService
	market      *service.MarketService
	predictions *service.PredictionService
	portfolio   *service.PortfolioService
	benchmarks  *service.BenchmarkService
	storage     storage.Service
	bucket      string
	keyPrefix   string
}

func NewHandler(
	users service.UserService,
	tokens *service.TokenService,
	market *service.MarketService,
	predictions *service.PredictionService,
	portfolio *service.PortfolioService,
	benchmarks *service.BenchmarkService,
	store storage.Service,
	bucket, keyPrefix string,
) *Handler {
	return &Handler{
		users:       users,
		tokens:      tokens,
		market:      market,
		predictions: predictions,
		portfolio:   portfolio,
		benchmarks:  benchmarks,
		storage:     store,
		bucket:      bucket,
		keyPrefix:   keyPrefix,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{
				"status":    "healthy",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		})

		auth := api.Group("/auth")
		{
			auth.POST("/register", h.register)
			auth.POST("/login", h.login)
			auth.GET("/me", bearerAuth(h.tokens, h.users), h.me)
		}

		stocks := api.Group("/stocks")
		{
			stocks.GET("/history", h.stockHistory)
			stocks.GET("/popular", h.popularStocks)
			stocks.GET("/search", h.searchStocks)
			stocks.GET("/quote/:ticker", h.stockQuote)
		}

		portfolio := api.Group("/portfolio")
		{
			portfolio.GET("/overview", h.portfolioOverview)
			portfolio.GET("/history", h.portfolioHistory)
		}

		benchmarks := api.Group("/benchmarks")
		{
			benchmarks.GET("/performance", h.benchmarkPerformance)
			benchmarks.GET("/metrics", h.systemMetrics)
		}

		authed := api.Group("", bearerAuth(h.tokens, h.users))
		{
			authed.POST("/predict", h.predict)
			authed.GET("/predictions/history", h.predictionHistory)
			authed.GET("/predictions/archive", h.predictionArchive)
			authed.DELETE("/predictions/archive", h.purgeArchive)
		}
	}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Email, req.Password, req.FullName)
	if err != nil {
		if errors.Is(err, service.ErrUserAlreadyExists) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Username already registered"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	token, err := h.tokens.Issue(user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "could not issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.Header("WWW-Authenticate", "Bearer")
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Incorrect username or password"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	token, err := h.tokens.Issue(user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "could not issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

func (h *Handler) me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
		return
	}
	// The id is rendered as a string so every client decodes the profile the
	// same way regardless of which identity backend issued it.
	c.JSON(http.StatusOK, gin.H{
		"id":        strconv.FormatInt(user.ID, 10),
		"username":  user.Username,
		"email":     user.Email,
		"full_name": user.FullName,
	})
}

func (h *Handler) stockHistory(c *gin.Context) {
	ticker := c.Query("ticker")
	if ticker == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticker is required"})
		return
	}
	period := c.DefaultQuery("period", "1y")

	data := h.market.History(c.Request.Context(), ticker, period)
	c.JSON(http.StatusOK, gin.H{
		"ticker":        strings.ToUpper(strings.TrimSpace(ticker)),
		"period":        period,
		"data":          data,
		"total_records": len(data),
	})
}

func (h *Handler) popularStocks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stocks": h.market.Popular(c.Request.Context())})
}

func (h *Handler) searchStocks(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	results := h.market.Search(c.Request.Context(), query)
	if results == nil {
		results = []domain.SearchResult{}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *Handler) stockQuote(c *gin.Context) {
	ticker := c.Param("ticker")
	c.JSON(http.StatusOK, h.market.Quote(c.Request.Context(), ticker))
}

func (h *Handler) portfolioOverview(c *gin.Context) {
	overview, err := h.portfolio.Overview(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (h *Handler) portfolioHistory(c *gin.Context) {
	period := c.DefaultQuery("period", "1W")
	c.JSON(http.StatusOK, gin.H{
		"period": period,
		"data":   h.portfolio.BalanceHistory(period),
	})
}

func (h *Handler) benchmarkPerformance(c *gin.Context) {
	c.JSON(http.StatusOK, h.benchmarks.Benchmarks())
}

func (h *Handler) systemMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.benchmarks.Metrics())
}

type predictRequest struct {
	Ticker    string `json:"ticker" binding:"required"`
	ModelType string `json:"model_type"`
	Days      int    `json:"days"`
}

func (h *Handler) predict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run, err := h.predictions.Predict(c.Request.Context(), req.Ticker, req.ModelType, req.Days)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, runToResponse(*run))
}

func (h *Handler) predictionHistory(c *gin.Context) {
	ticker := c.Query("ticker")
	if ticker == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticker is required"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	runs, err := h.predictions.History(c.Request.Context(), ticker, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]PredictionRunResponse, len(runs))
	for i := range runs {
		resp[i] = runToResponse(runs[i])
	}
	c.JSON(http.StatusOK, gin.H{"runs": resp})
}

func (h *Handler) predictionArchive(c *gin.Context) {
	if h.storage == nil || h.bucket == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive storage not configured"})
		return
	}

	objects, err := h.storage.ListObjects(c.Request.Context(), h.bucket, h.keyPrefix)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, gin.H{"objects": resp})
}

func (h *Handler) purgeArchive(c *gin.Context) {
	if h.storage == nil || h.bucket == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive storage not configured"})
		return
	}

	if err := h.storage.DeletePrefix(c.Request.Context(), h.bucket, h.keyPrefix); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": h.keyPrefix})
}

// PredictionRunResponse is the wire form of a forecast run.
type PredictionRunResponse struct {
	ID          string                   `json:"id"`
	Ticker      string                   `json:"ticker"`
	ModelType   string                   `json:"model_type"`
	Days        int                      `json:"days"`
	Predictions []domain.PredictedPoint  `json:"predictions"`
	Metrics     domain.PredictionMetrics `json:"metrics"`
	CreatedAt   string                   `json:"created_at"`
}

func runToResponse(run domain.PredictionRun) PredictionRunResponse {
	return PredictionRunResponse{
		ID:          run.ID,
		Ticker:      run.Ticker,
		ModelType:   run.ModelType,
		Days:        run.Days,
		Predictions: run.Predictions,
		Metrics:     run.Metrics,
		CreatedAt:   run.CreatedAt.Format(time.RFC3339),
	}
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}
