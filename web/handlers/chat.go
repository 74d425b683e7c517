package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/faragon/langlab/internal/llm"
)

// Model misbehavior (invalid JSON, missing fields) is a normal outcome of
// these endpoints, not a server failure: the envelope carries the raw model
// output at HTTP 200 so clients can inspect what came back.

// ChatResponse is the structured-chat contract the model must honor.
type ChatResponse struct {
	Answer   string `json:"answer"`
	Tone     string `json:"tone"`
	Metadata struct {
		Model string `json:"model"`
	} `json:"metadata"`
}

// Chat handles POST /a1/chat: a chat turn whose answer must arrive as a JSON
// object with a fixed schema.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	model := h.gateway.DefaultModel()
	raw, err := h.gateway.Complete(r.Context(), llm.ChatPrompt(model, req.Message), "")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "model call failed", err)
		return
	}

	cleaned, ok := llm.ExtractJSON(raw)
	if !ok {
		respondJSON(w, http.StatusOK, map[string]string{
			"error":        "model did not return valid JSON",
			"raw_response": raw,
		})
		return
	}

	var parsed ChatResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		respondJSON(w, http.StatusOK, map[string]string{
			"error":        "model did not return valid JSON",
			"raw_response": raw,
		})
		return
	}
	if parsed.Answer == "" || parsed.Tone == "" || parsed.Metadata.Model == "" {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"error":    "model response is missing required fields",
			"details":  "expected answer, tone and metadata.model",
			"raw_data": json.RawMessage(cleaned),
		})
		return
	}

	respondJSON(w, http.StatusOK, parsed)
}

// IntentResponse is the intent-extraction contract. Title and DueDate are
// nullable by design.
type IntentResponse struct {
	Action  string  `json:"action"`
	Title   *string `json:"title"`
	DueDate *string `json:"due_date"`
}

// ParseIntent handles POST /a2/parse-intent: extracts a structured task
// intent from a free-form message. Relative due dates resolve against
// today's date, which is baked into the prompt.
func (h *Handlers) ParseIntent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	today := time.Now().Format("2006-01-02")
	raw, err := h.gateway.Complete(r.Context(), llm.IntentPrompt(req.Message, today), "")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "model call failed", err)
		return
	}

	cleaned, ok := llm.ExtractJSON(raw)
	if !ok {
		respondJSON(w, http.StatusOK, map[string]string{
			"error":        "model did not return valid JSON",
			"raw_response": raw,
		})
		return
	}

	var parsed IntentResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		respondJSON(w, http.StatusOK, map[string]string{
			"error":        "model did not return valid JSON",
			"raw_response": raw,
		})
		return
	}
	if parsed.Action == "" {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"error":    "model response is missing required fields",
			"details":  "expected a non-empty action",
			"raw_data": json.RawMessage(cleaned),
		})
		return
	}

	respondJSON(w, http.StatusOK, parsed)
}
