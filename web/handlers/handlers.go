// Package handlers provides the HTTP handlers and middleware for the langlab
// API: one route group per mini-project plus health, diagnostics and the
// websocket hub.
package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/faragon/langlab/internal/config"
	"github.com/faragon/langlab/internal/memory"
	"github.com/faragon/langlab/internal/rag"
	"github.com/faragon/langlab/internal/router"
)

// Completer is the gateway surface the handlers call directly (structured
// chat, intent extraction, the connectivity probe).
type Completer interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
	DefaultModel() string
}

// MemoryRunner is the conversational-pipeline surface used by the a6 routes.
type MemoryRunner interface {
	Run(ctx context.Context, raw any) (memory.Result, error)
	Fragments(ctx context.Context, userID string) ([]string, error)
	Forget(ctx context.Context, userID string) error
}

// Handlers bundles every route group's dependencies. Constructed once at
// startup and injected; handlers hold no global state.
type Handlers struct {
	cfg      *config.Config
	gateway  Completer
	basic    *rag.Pipeline
	v2       *rag.Pipeline
	advanced *rag.Pipeline
	router   *router.Router
	memory   MemoryRunner
}

// New wires the handler set.
func New(cfg *config.Config, gateway Completer, basic, v2, advanced *rag.Pipeline, rt *router.Router, mem MemoryRunner) *Handlers {
	return &Handlers{
		cfg:      cfg,
		gateway:  gateway,
		basic:    basic,
		v2:       v2,
		advanced: advanced,
		router:   rt,
		memory:   mem,
	}
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// TestLLM handles GET /test-llm: a connectivity probe through the gateway
// with a fixed prompt.
func (h *Handlers) TestLLM(w http.ResponseWriter, r *http.Request) {
	answer, err := h.gateway.Complete(r.Context(), "Say hello in one short sentence.", "")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "llm connectivity check failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"response": answer})
}

// Docs handles GET /docs: a JSON route catalog, exposed only in development
// mode. Production returns 404 so the surface stays undocumented there.
func (h *Handlers) Docs(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Security.Mode != "development" {
		http.NotFound(w, r)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"GET /health":                          "liveness probe",
		"GET /test-llm":                        "gateway connectivity probe",
		"POST /a1/chat":                        "structured chat with JSON contract",
		"POST /a2/parse-intent":                "task-intent extraction",
		"POST /a3/ask":                         "grounded RAG answer",
		"POST /a3v2/query":                     "RAG answer with JSON envelope",
		"POST /a4v2/query":                     "RAG answer with compression and scored sources",
		"POST /a5/query":                       "intent-routed answer",
		"POST /a6memory/query":                 "conversational turn with long-term memory",
		"GET /a6memory/memory_state/{user_id}": "stored memory fragments for a user",
		"POST /a6memory/clear/{user_id}":       "delete a user's memory fragments",
		"GET /ws":                              "indexing progress events (websocket)",
	})
}

// decodeBody decodes a JSON request body into dst, responding 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already sent; nothing left to do but log.
		log.Printf("handlers: failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	body := map[string]interface{}{"error": message}
	if err != nil {
		body["details"] = err.Error()
	}
	respondJSON(w, statusCode, body)
}
