package handlers

import (
	"net/http"
)

type questionRequest struct {
	Question string `json:"question"`
}

// Ask handles POST /a3/ask: the basic grounded RAG variant.
func (h *Handlers) Ask(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	answer, sources, err := h.basic.AnswerBasic(r.Context(), req.Question)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "retrieval failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"response": answer,
		"sources":  sources,
	})
}

// QueryV2 handles POST /a3v2/query: the JSON-envelope RAG variant.
func (h *Handlers) QueryV2(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	answer, sources, err := h.v2.AnswerJSON(r.Context(), req.Question)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "retrieval failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"answer":  answer,
		"sources": sources,
	})
}

// QueryAdvanced handles POST /a4v2/query: the compressed-context variant
// with scored sources.
func (h *Handlers) QueryAdvanced(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	answer, sources, err := h.advanced.AnswerCompressed(r.Context(), req.Question)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "retrieval failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"answer":  answer,
		"sources": sources,
	})
}

// Route handles POST /a5/query: classify the question and answer through the
// selected chain.
func (h *Handlers) Route(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.router.Route(r.Context(), req.Question)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "routing failed", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
