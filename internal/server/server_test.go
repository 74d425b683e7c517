package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faragon/langlab/internal/config"
	"github.com/faragon/langlab/internal/memory"
	"github.com/faragon/langlab/internal/server"
	"github.com/faragon/langlab/web/handlers"
)

type stubGateway struct{}

func (stubGateway) Complete(ctx context.Context, prompt, model string) (string, error) {
	return "pong", nil
}

func (stubGateway) DefaultModel() string { return "stub" }

type stubMemory struct{}

func (stubMemory) Run(ctx context.Context, raw any) (memory.Result, error) {
	return memory.Result{}, nil
}

func (stubMemory) Fragments(ctx context.Context, userID string) ([]string, error) {
	return nil, nil
}

func (stubMemory) Forget(ctx context.Context, userID string) error { return nil }

func startTestServer(t *testing.T, cfg *config.Config) string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := handlers.NewWebSocketHub()
	go hub.Run()

	h := handlers.New(cfg, stubGateway{}, nil, nil, nil, nil, stubMemory{})
	addr, err := server.Start(ctx, cfg, h, hub)
	require.NoError(t, err)

	// Give the listener goroutine a moment to start serving.
	time.Sleep(50 * time.Millisecond)
	return addr
}

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Security: config.SecurityConfig{Mode: "development"},
	}
}

func TestStart_HealthEndpoint(t *testing.T) {
	addr := startTestServer(t, testConfig())

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestStart_SecurityHeaders(t *testing.T) {
	addr := startTestServer(t, testConfig())

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}

func TestStart_MethodNotAllowed(t *testing.T) {
	addr := startTestServer(t, testConfig())

	resp, err := http.Get("http://" + addr + "/a1/chat")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStart_ProductionRequiresAuth(t *testing.T) {
	cfg := testConfig()
	cfg.Security.Mode = "production"
	cfg.Security.APIToken = "secret"
	addr := startTestServer(t, cfg)

	// Health stays open for monitors.
	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// API routes demand the bearer token.
	resp, err = http.Get("http://" + addr + "/test-llm")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, "http://"+addr+"/test-llm", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStart_GracefulShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	hub := handlers.NewWebSocketHub()
	go hub.Run()

	cfg := testConfig()
	h := handlers.New(cfg, stubGateway{}, nil, nil, nil, nil, stubMemory{})
	addr, err := server.Start(ctx, cfg, h, hub)
	require.NoError(t, err)

	cancel()
	time.Sleep(100 * time.Millisecond)

	_, err = http.Get("http://" + addr + "/health")
	assert.Error(t, err, "server must stop accepting connections after shutdown")
}
