package rag

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrapeURL_ExtractsVisibleText(t *testing.T) {
	page := `<html><head>
		<title>Guide</title>
		<style>body { color: red; }</style>
		<script>console.log("hidden");</script>
	</head><body>
		<h1>Welcome</h1>
		<p>First paragraph.</p>
		<noscript>Enable JS</noscript>
		<p>Second   paragraph.</p>
	</body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	text, err := ScrapeURL(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Contains(t, text, "Welcome")
	assert.Contains(t, text, "First paragraph.")
	assert.Contains(t, text, "Second   paragraph.")
	assert.NotContains(t, text, "console.log")
	assert.NotContains(t, text, "color: red")
	assert.NotContains(t, text, "Enable JS")
}

func TestScrapeURL_NonOKStatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := ScrapeURL(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestScrapeURL_UnreachableHostFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ScrapeURL(ctx, "http://127.0.0.1:1")
	assert.Error(t, err)
}
