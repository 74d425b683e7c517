// Package server provides HTTP server initialization and lifecycle
// management for the langlab API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/faragon/langlab/internal/config"
	"github.com/faragon/langlab/web/handlers"
)

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// methodHandler restricts a handler to a single HTTP method.
func methodHandler(method string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		fn(w, r)
	}
}

// Start wires the routes and starts the HTTP server. It returns the actual
// listen address (useful with port 0 in tests). The server shuts down
// gracefully when ctx is cancelled.
func Start(ctx context.Context, cfg *config.Config, h *handlers.Handlers, hub *handlers.WebSocketHub) (string, error) {
	mux := http.NewServeMux()

	// Health is reachable without auth; monitors poll it.
	mux.HandleFunc("/health", methodHandler(http.MethodGet, h.Health))

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/test-llm", methodHandler(http.MethodGet, h.TestLLM))
	apiMux.HandleFunc("/docs", methodHandler(http.MethodGet, h.Docs))
	apiMux.HandleFunc("/a1/chat", methodHandler(http.MethodPost, h.Chat))
	apiMux.HandleFunc("/a2/parse-intent", methodHandler(http.MethodPost, h.ParseIntent))
	apiMux.HandleFunc("/a3/ask", methodHandler(http.MethodPost, h.Ask))
	apiMux.HandleFunc("/a3v2/query", methodHandler(http.MethodPost, h.QueryV2))
	apiMux.HandleFunc("/a4v2/query", methodHandler(http.MethodPost, h.QueryAdvanced))
	apiMux.HandleFunc("/a5/query", methodHandler(http.MethodPost, h.Route))
	apiMux.HandleFunc("/a6memory/query", methodHandler(http.MethodPost, h.MemoryQuery))
	apiMux.HandleFunc("/a6memory/memory_state/{user_id}", methodHandler(http.MethodGet, h.MemoryState))
	apiMux.HandleFunc("/a6memory/clear/{user_id}", methodHandler(http.MethodPost, h.MemoryClear))

	mux.Handle("/", handlers.RequireAuth(apiMux, cfg))

	// WebSocket endpoint carries no auth; it only emits progress events.
	mux.Handle("/ws", hub)

	rateLimiter := handlers.NewRateLimiter(10.0, 20)
	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	handler = securityHeadersMiddleware(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("server: failed to listen on %s: %w", addr, err)
	}
	actualAddr := listener.Addr().String()

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("server: serve error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server: shutdown error: %v", err)
		}
		hub.Stop()
	}()

	log.Printf("server: listening on %s", actualAddr)
	return actualAddr, nil
}
