// Package http exposes the engine over a JSON API.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"kanakku/internal/extract"
	applog "kanakku/internal/log"
	"kanakku/internal/services"
	"kanakku/internal/storage"
)

type Server struct {
	http.Server

	svcs        *services.Services
	repos       *storage.Repositories
	parser      extract.Parser
	rateLimiter *rateLimiter

	defaultCurrency string

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svcs *services.Services, repos *storage.Repositories, parser extract.Parser, defaultCurrency string) *Server {
	mux := http.NewServeMux()

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	handler := applog.Middleware(logger)(applog.RequestIDMiddleware(requestIDFor)(mux))

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		svcs:            svcs,
		repos:           repos,
		parser:          parser,
		rateLimiter:     newRateLimiter(),
		defaultCurrency: defaultCurrency,
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/v1/recurring/due", s.withMiddleware(s.handleRecurringDue))
	mux.HandleFunc("POST /api/v1/recurring/confirm", s.withMiddleware(s.handleRecurringConfirm))
	mux.HandleFunc("POST /api/v1/recurring/upsert", s.withMiddleware(s.handleRecurringUpsert))
	mux.HandleFunc("GET /api/v1/recurring/templates", s.withMiddleware(s.handleTemplateList))
	mux.HandleFunc("DELETE /api/v1/recurring/templates/{id}", s.withMiddleware(s.handleTemplateDelete))

	mux.HandleFunc("POST /api/v1/expenses", s.withMiddleware(s.handleExpenseCreate))
	mux.HandleFunc("GET /api/v1/expenses", s.withMiddleware(s.handleExpenseList))
	mux.HandleFunc("GET /api/v1/expenses/{id}", s.withMiddleware(s.handleExpenseGet))
	mux.HandleFunc("PUT /api/v1/expenses/{id}", s.withMiddleware(s.handleExpenseUpdate))
	mux.HandleFunc("DELETE /api/v1/expenses/{id}", s.withMiddleware(s.handleExpenseDelete))
	mux.HandleFunc("POST /api/v1/expenses/with_items", s.withMiddleware(s.handleExpenseIngest))

	mux.HandleFunc("POST /api/v1/ingest/receipt/parse", s.withMiddleware(s.handleReceiptParse))
	mux.HandleFunc("GET /api/v1/analysis", s.withMiddleware(s.handleAnalysis))

	return s
}

// withMiddleware adds security headers, rate limiting on mutating methods,
// and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		ctx := r.Context()
		logger := applog.FromContext(ctx)

		logger.InfoContext(ctx, "request started",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, clientIP)

		if isMutating(r.Method) && !s.rateLimiter.allow(clientIP) {
			logger.WarnContext(ctx, "rate limit exceeded",
				applog.FieldClientIP, clientIP, applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		logger.InfoContext(ctx, "request completed",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, time.Since(start).Milliseconds(),
			applog.FieldClientIP, clientIP)
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Shutdown stops the rate limiter cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
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

// extractClientIP returns the peer address, honoring forwarding headers only
// when the direct peer is a private network.
func extractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}
	parsed := net.ParseIP(directIP)
	if parsed == nil || !parsed.IsPrivate() && !parsed.IsLoopback() {
		return directIP
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}
	return directIP
}

// requestIDFor trusts an inbound X-Request-ID so traces line up across
// services, generating one otherwise.
func requestIDFor(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Request-ID")); id != "" {
		return id
	}
	return generateRequestID()
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
