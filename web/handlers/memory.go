package handlers

import (
	"net/http"

	"github.com/faragon/langlab/internal/memory"
)

// MemoryQuery handles POST /a6memory/query: one conversational turn through
// the memory pipeline.
func (h *Handlers) MemoryQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"user_id"`
		Question string `json:"question"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	state := memory.State{
		UserID:   req.UserID,
		Messages: []memory.Message{{Role: memory.RoleUser, Content: req.Question}},
	}
	result, err := h.memory.Run(r.Context(), state)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "memory pipeline failed", err)
		return
	}

	resp := map[string]interface{}{
		"answer":      result.State.Meta[memory.MetaLastAssistantMessage],
		"memory_used": result.MemoryUsed(),
	}
	if len(result.Degraded) > 0 {
		resp["degraded"] = result.Degraded
	}
	respondJSON(w, http.StatusOK, resp)
}

// MemoryState handles GET /a6memory/memory_state/{user_id}: every stored
// fragment for a user, in insertion order.
func (h *Handlers) MemoryState(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	fragments, err := h.memory.Fragments(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read memory", err)
		return
	}
	if fragments == nil {
		fragments = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"memory":  fragments,
	})
}

// MemoryClear handles POST /a6memory/clear/{user_id}: deletes every stored
// fragment for a user.
func (h *Handlers) MemoryClear(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	if err := h.memory.Forget(r.Context(), userID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to clear memory", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
