// Package http exposes the budgeting engine as a JSON API.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"kakeibo/internal/budget"
	"kakeibo/internal/cache"
	"kakeibo/internal/core"
	"kakeibo/internal/log"
)

// BudgetService is what the handlers need from the service layer.
type BudgetService interface {
	SetupBudget(ctx context.Context, settings core.UserBudgetSettings) error
	RecordTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	CreatePlan(ctx context.Context, p core.PlannedSpending) (core.PlannedSpending, error)
	UpdatePlan(ctx context.Context, p core.PlannedSpending) (core.PlannedSpending, error)
	CreateGoal(ctx context.Context, g core.SavingGoal) (core.SavingGoal, error)
	Timeline(ctx context.Context, userID string, through core.MonthKey) (core.Timeline, error)
	Forecast(ctx context.Context, userID string, monthsAhead int) (budget.ForecastResult, error)
}

type Server struct {
	http.Server
	svc         BudgetService
	rateLimiter *rateLimiter
	metrics     *securityMetrics

	// Read responses are cached per user and dropped on any write for
	// that user, so a client never sees a timeline older than its own
	// last write.
	timelineCache *cache.LRUCache[timelineResponse]
	forecastCache *cache.LRUCache[forecastResponse]
	cacheManager  *cache.Manager

	defaultForecastMonths int

	shutdownOnce sync.Once
}

// Options tunes the server's caching and forecast defaults.
type Options struct {
	CacheTTL       time.Duration
	CacheSize      int
	ForecastMonths int
}

func (o Options) withDefaults() Options {
	if o.CacheTTL <= 0 {
		o.CacheTTL = 30 * time.Second
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 256
	}
	if o.ForecastMonths <= 0 {
		o.ForecastMonths = 6
	}
	return o
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc BudgetService, opts Options) *Server {
	opts = opts.withDefaults()
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		svc:                   svc,
		rateLimiter:           newRateLimiter(),
		metrics:               &securityMetrics{},
		timelineCache:         cache.NewLRUCache[timelineResponse](opts.CacheSize, opts.CacheTTL),
		forecastCache:         cache.NewLRUCache[forecastResponse](opts.CacheSize, opts.CacheTTL),
		cacheManager:          cache.NewManager(),
		defaultForecastMonths: opts.ForecastMonths,
	}

	s.cacheManager.Register(s.timelineCache)
	s.cacheManager.Register(s.forecastCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("PUT /settings", s.guard(s.handleSaveSettings))
	mux.HandleFunc("POST /transactions", s.guard(s.handleRecordTransaction))
	mux.HandleFunc("POST /plans", s.guard(s.handleCreatePlan))
	mux.HandleFunc("PUT /plans/{id}", s.guard(s.handleUpdatePlan))
	mux.HandleFunc("POST /goals", s.guard(s.handleCreateGoal))
	mux.HandleFunc("GET /timeline", s.guard(s.handleTimeline))
	mux.HandleFunc("GET /forecast", s.guard(s.handleForecast))

	return s
}

// guard adds security headers, rate limiting, request IDs and access logging.
func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		if detectSuspiciousRequest(r, s.metrics) {
			slog.WarnContext(ctx, "Suspicious request",
				log.FieldRequestID, requestID,
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldComponent, log.ComponentSecurity)
		}

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP, s.metrics) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldComponent, log.ComponentRateLimit)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, duration.Milliseconds(),
			log.FieldClientIP, clientIP,
			log.FieldComponent, log.ComponentHTTP)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// invalidateUser drops all cached read responses for the user.
func (s *Server) invalidateUser(userID string) {
	s.timelineCache.DeletePrefix(userID + "|")
	s.forecastCache.DeletePrefix(userID + "|")
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
