// Package router classifies incoming questions into an intent and dispatches
// them to the matching specialist chain.
package router

import (
	"context"
	"log"
	"strings"

	"github.com/faragon/langlab/internal/llm"
)

// Chain names reported to clients alongside the answer.
const (
	ChainRAG     = "rag_chain"
	ChainCode    = "code_chain"
	ChainSummary = "summary_chain"
	ChainMath    = "math_chain"
	ChainGeneral = "general_chain"
)

// RAGAnswerer answers a question grounded in the document collection. The
// retrieval pipeline implements it.
type RAGAnswerer interface {
	AnswerBasic(ctx context.Context, question string) (string, []string, error)
}

// Result is a routed answer: the normalized intent, the chain that produced
// the answer and the answer itself.
type Result struct {
	Intent string `json:"intent"`
	Chain  string `json:"chain_used"`
	Answer string `json:"answer"`
}

// Router classifies questions with a single-word-intent prompt and routes
// them to one of five chains. Classification noise is absorbed by substring
// matching with a fixed priority; anything unrecognized lands on the general
// chain.
type Router struct {
	classify llm.CompletionFunc
	general  llm.CompletionFunc
	code     llm.CompletionFunc
	summary  llm.CompletionFunc
	math     llm.CompletionFunc
	rag      RAGAnswerer
}

// New builds a router over the gateway's default model plus a retrieval
// pipeline for the rag branch.
func New(gateway *llm.Gateway, rag RAGAnswerer) *Router {
	handle := gateway.Handle("", -1)
	return &Router{
		classify: handle,
		general:  handle,
		code:     handle,
		summary:  handle,
		math:     handle,
		rag:      rag,
	}
}

// NewWithFuncs builds a router with explicit branch callables. Used by tests.
func NewWithFuncs(classify, general, code, summary, math llm.CompletionFunc, rag RAGAnswerer) *Router {
	return &Router{
		classify: classify,
		general:  general,
		code:     code,
		summary:  summary,
		math:     math,
		rag:      rag,
	}
}

// Route classifies question and runs the selected chain.
func (r *Router) Route(ctx context.Context, question string) (Result, error) {
	raw, err := r.classify(ctx, llm.ClassifierPrompt(question))
	if err != nil {
		return Result{}, err
	}
	intent := NormalizeIntent(raw)

	var answer string
	chain := chainFor(intent)
	switch chain {
	case ChainRAG:
		answer, _, err = r.rag.AnswerBasic(ctx, question)
	case ChainCode:
		answer, err = r.code(ctx, llm.CodePrompt(question))
	case ChainSummary:
		answer, err = r.summary(ctx, llm.SummaryPrompt(question))
	case ChainMath:
		answer, err = r.math(ctx, llm.MathPrompt(question))
	default:
		answer, err = r.general(ctx, llm.GeneralPrompt(question))
	}
	if err != nil {
		return Result{}, err
	}

	log.Printf("router: intent %q routed to %s", intent, chain)
	return Result{
		Intent: intent,
		Chain:  chain,
		Answer: strings.TrimSpace(answer),
	}, nil
}

// NormalizeIntent lowercases and trims the raw classifier output.
func NormalizeIntent(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// chainFor maps a normalized intent to a chain by substring containment, in
// fixed priority order. Models sometimes pad the single word with
// punctuation or quotes; containment absorbs that.
func chainFor(intent string) string {
	switch {
	case strings.Contains(intent, "rag"):
		return ChainRAG
	case strings.Contains(intent, "code"):
		return ChainCode
	case strings.Contains(intent, "summary"):
		return ChainSummary
	case strings.Contains(intent, "math"):
		return ChainMath
	default:
		return ChainGeneral
	}
}
