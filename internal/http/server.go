// Package http exposes the JSON API: ledger CRUD, analytics, budgets,
// patrimoine, SMS intake, the AI advisor and web-push endpoints.
//
// Callers are identified by the X-User-ID header, set by the fronting
// proxy after authentication. Requests without it are rejected.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"

	"finai/internal/advisor"
	"finai/internal/analytics"
	"finai/internal/services"
	"finai/internal/storage"
)

const categoryCacheTTL = 5 * time.Minute

type Server struct {
	http.Server
	store     storage.Store
	analytics *analytics.Service
	advisor   *advisor.Service
	txs       *services.TransactionService

	rateLimiter *rateLimiter
	metrics     *securityMetrics

	// Category reference data changes only via migrations, so it is
	// served from an in-process cache.
	catCache *ristretto.Cache

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, store storage.Store, an *analytics.Service, adv *advisor.Service, txs *services.TransactionService) *Server {
	mux := http.NewServeMux()

	catCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		slog.Warn("Failed to create category cache, serving uncached", "error", err)
	}

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:       store,
		analytics:   an,
		advisor:     adv,
		txs:         txs,
		rateLimiter: newRateLimiter(),
		metrics:     &securityMetrics{},
		catCache:    catCache,
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("GET /api/categories", s.protect(s.handleListCategories))

	mux.HandleFunc("GET /api/transactions", s.protect(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.protect(s.handleCreateTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.protect(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.protect(s.handleDeleteTransaction))
	mux.HandleFunc("GET /api/transactions/export", s.protect(s.handleExportCSV))

	mux.HandleFunc("GET /api/dashboard", s.protect(s.handleDashboard))
	mux.HandleFunc("GET /api/stats/monthly", s.protect(s.handleMonthlyStats))
	mux.HandleFunc("GET /api/stats/analyse", s.protect(s.handleAnalyse))
	mux.HandleFunc("GET /api/stats/score", s.protect(s.handleScore))
	mux.HandleFunc("GET /api/stats/leaks", s.protect(s.handleLeaks))

	mux.HandleFunc("GET /api/budgets", s.protect(s.handleListBudgets))
	mux.HandleFunc("POST /api/budgets", s.protect(s.handleUpsertBudget))
	mux.HandleFunc("DELETE /api/budgets/{id}", s.protect(s.handleDeleteBudget))

	mux.HandleFunc("GET /api/patrimoine", s.protect(s.handlePatrimoine))
	mux.HandleFunc("POST /api/patrimoine", s.protect(s.handleAddPatrimoine))
	mux.HandleFunc("DELETE /api/patrimoine/{id}", s.protect(s.handleDeletePatrimoine))

	mux.HandleFunc("POST /api/sms/parse", s.protect(s.handleParseSMS))
	mux.HandleFunc("POST /api/sms/add", s.protect(s.handleAddFromSMS))

	mux.HandleFunc("GET /api/advisor", s.protect(s.handleAdvisorHome))
	mux.HandleFunc("POST /api/advisor/chat", s.protect(s.handleChat))
	mux.HandleFunc("POST /api/advisor/sms", s.protect(s.handleParseSMSAI))
	mux.HandleFunc("POST /api/advisor/report/refresh", s.protect(s.handleRefreshReport))

	mux.HandleFunc("POST /api/push/subscribe", s.protect(s.handlePushSubscribe))
	mux.HandleFunc("GET /api/push/check", s.protect(s.handlePushCheck))

	return s
}

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyOwnerID
)

// protect wraps a handler with request logging, security headers, rate
// limiting on writes and owner identification.
func (s *Server) protect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := "req_" + uuid.NewString()

		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP, s.metrics) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			errorJSON(w, http.StatusTooManyRequests, "trop de requêtes, réessayez plus tard")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		ownerID, ok := ownerFromHeader(r)
		if !ok {
			errorJSON(w, http.StatusUnauthorized, "authentification requise")
			return
		}
		r = r.WithContext(context.WithValue(r.Context(), ctxKeyOwnerID, ownerID))

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(r.Context(), "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
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

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		if s.catCache != nil {
			s.catCache.Close()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
