// Package api provides the HTTP surface: account endpoints, progress and
// government queries, payments, and the websocket entry into the live world.
// Account endpoints are rate limited per IP; everything mutating requires a
// session.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/varelagames/aldea/internal/engine"
	"github.com/varelagames/aldea/internal/payments"
	"github.com/varelagames/aldea/internal/profile"
	"github.com/varelagames/aldea/internal/world"
)

// Server serves the HTTP API and upgrades websocket connections.
type Server struct {
	Profiles  *profile.Store
	Registry  *world.Registry
	Sim       *engine.Simulation
	Payments  *payments.Service
	Port      int
	JWTSecret []byte

	httpSrv *http.Server
}

// Start begins serving in a goroutine. Shutdown stops it.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.httpSrv = &http.Server{Addr: addr, Handler: s.Routes()}
	slog.Info("HTTP API starting", "addr", addr)

	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Routes builds the full handler tree.
func (s *Server) Routes() http.Handler {
	authLimiter := NewRateLimiter(20, 10*time.Minute)

	mux := http.NewServeMux()

	// Account endpoints (unauthenticated traffic, rate limited).
	mux.HandleFunc("/api/register", RateLimitMiddleware(authLimiter, s.handleRegister))
	mux.HandleFunc("/api/login", RateLimitMiddleware(authLimiter, s.handleLogin))

	// Session endpoints.
	mux.HandleFunc("/api/logout", s.authed(s.handleLogout))
	mux.HandleFunc("/api/me", s.authed(s.handleMe))
	mux.HandleFunc("/api/change-password", s.authed(s.handleChangePassword))
	mux.HandleFunc("/api/progress", s.authed(s.handleProgress))

	// World and government.
	mux.HandleFunc("/api/gov", s.handleGov)
	mux.HandleFunc("/api/gov/funds/add", s.authed(s.handleGovFundsAdd))
	mux.HandleFunc("/api/world/structures", s.handleStructures)

	// Payments.
	mux.HandleFunc("/api/pay/create-intent", s.authed(s.handlePayCreateIntent))
	mux.HandleFunc("/api/pay/webhook", s.handlePayWebhook)
	mux.HandleFunc("/api/pay/return", s.handlePayReturn)
	mux.HandleFunc("/api/pay/status", s.authed(s.handlePayStatus))

	// Live world.
	mux.HandleFunc("/ws", s.handleWS)

	return corsMiddleware(mux)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list; localhost dev servers are
// always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authed resolves the session and passes the user id through the request
// context. Unauthenticated calls are rejected.
func (s *Server) authed(next func(w http.ResponseWriter, r *http.Request, userID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _, err := s.sessionFromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "not signed in")
			return
		}
		next(w, r, userID)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": msg})
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body")
		return false
	}
	return true
}
