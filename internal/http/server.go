// Package http exposes the reward engine as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"miles/internal/cache"
	"miles/internal/core"
	applog "miles/internal/log"
	"miles/internal/services"
)

// RewardAPI is what the handlers need from the service layer.
type RewardAPI interface {
	RecordTransaction(ctx context.Context, candidate core.TransactionCandidate) (services.RecordedTransaction, error)
	Simulate(ctx context.Context, candidate core.TransactionCandidate, targetCurrency string) ([]core.SimulationResult, error)

	ListRules(ctx context.Context, instrumentTypeID int64) ([]core.RewardRule, error)
	CreateRule(ctx context.Context, rule core.RewardRule) (core.RewardRule, error)
	UpdateRule(ctx context.Context, rule core.RewardRule) error
	DeleteRule(ctx context.Context, id uuid.UUID) error

	CreateInstrument(ctx context.Context, in core.Instrument) (core.Instrument, error)
	ListInstruments(ctx context.Context) ([]core.Instrument, error)

	Overview(ctx context.Context, year, month int) (core.MonthOverview, error)
	UpsertRate(ctx context.Context, from, to string, rate float64) error
}

type Server struct {
	http.Server
	service     RewardAPI
	rateLimiter *rateLimiter
	logger      *applog.Logger

	// LRU cache for month overviews with eviction policy
	overviewCache *cache.LRUCache[core.MonthOverview]
	cacheManager  *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
// A nil logger gets the package defaults.
func NewServer(addr string, service RewardAPI, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr: addr,
			// Every handler can recover a request-scoped logger from
			// its context.
			Handler: applog.Middleware(logger)(mux),
		},
		service:       service,
		rateLimiter:   newRateLimiter(),
		logger:        logger,
		overviewCache: cache.NewLRUCache[core.MonthOverview](100, 5*time.Minute),
		cacheManager:  cache.NewManager(),
	}

	s.cacheManager.Register(s.overviewCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/rules", s.withMiddleware(s.handleListRules))
	mux.HandleFunc("POST /api/rules", s.withMiddleware(s.handleCreateRule))
	mux.HandleFunc("PUT /api/rules/{id}", s.withMiddleware(s.handleUpdateRule))
	mux.HandleFunc("DELETE /api/rules/{id}", s.withMiddleware(s.handleDeleteRule))

	mux.HandleFunc("GET /api/instruments", s.withMiddleware(s.handleListInstruments))
	mux.HandleFunc("POST /api/instruments", s.withMiddleware(s.handleCreateInstrument))

	mux.HandleFunc("POST /api/transactions", s.withMiddleware(s.handleRecordTransaction))
	mux.HandleFunc("POST /api/simulate", s.withMiddleware(s.handleSimulate))

	mux.HandleFunc("GET /api/overview", s.withMiddleware(s.handleOverview))
	mux.HandleFunc("PUT /api/rates", s.withMiddleware(s.handleUpsertRate))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.cacheManager != nil {
			s.cacheManager.Stop()
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withMiddleware adds security headers, rate limiting and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		reqLog := s.logger.With(applog.FieldRequestID, requestID)
		sl := applog.NewStructuredLogger(reqLog)

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		ctx = context.WithValue(ctx, applog.LoggerContextKey, reqLog)
		r = r.WithContext(ctx)

		sl.LogHTTPStart(ctx, r, clientIP)

		// Rate limit mutating requests only.
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			reqLog.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		sl.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
