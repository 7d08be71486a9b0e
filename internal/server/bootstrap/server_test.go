package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"architect/internal/config"
	"architect/internal/leads"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Advisor.BaseURL = "http://127.0.0.1:1"
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Observability.Metrics.Enabled = false
	cfg.Observability.Tracing.Enabled = false
	return cfg
}

type health struct {
	Status         string            `json:"status"`
	Degraded       map[string]string `json:"degraded"`
	AdvisorBreaker string            `json:"advisor_breaker"`
}

func startServer(t *testing.T, cfg config.Config) (string, func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- RunServer(ctx, cfg, ServerOptions{Ready: func(addr string) { ready <- addr }})
	}()

	select {
	case addr := <-ready:
		return "http://" + addr, func() error {
			cancel()
			select {
			case err := <-done:
				return err
			case <-time.After(5 * time.Second):
				t.Fatal("server did not stop")
				return nil
			}
		}
	case err := <-done:
		cancel()
		t.Fatalf("server exited early: %v", err)
	case <-time.After(10 * time.Second):
		cancel()
		t.Fatal("server did not become ready")
	}
	return "", nil
}

func getHealth(t *testing.T, base string) health {
	t.Helper()
	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestRunServerServesUntilCancelled(t *testing.T) {
	base, stop := startServer(t, testConfig())

	body := getHealth(t, base)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "closed", body.AdvisorBreaker)

	resp, err := http.Get(base + "/v1/catalog")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, stop())
}

func TestRunServerFallsBackWhenRedisUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.LocalStore.Driver = "redis"
	cfg.LocalStore.RedisAddr = "127.0.0.1:1"
	cfg.Auth.JWTSecret = ""

	base, stop := startServer(t, cfg)
	body := getHealth(t, base)
	assert.Equal(t, "degraded", body.Status)
	assert.Contains(t, body.Degraded, "local-store")
	assert.Contains(t, body.Degraded, "auth-secret")
	require.NoError(t, stop())
}

func TestRunServerFailsOnUnknownLeadStore(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Driver = "cassandra"

	err := RunServer(context.Background(), cfg, ServerOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lead-store")
}

func TestRunMigrateCreatesSQLiteSchema(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "leads.db")
	storeCfg := config.StoreConfig{Driver: "sqlite", DSN: dsn}

	require.NoError(t, RunMigrate(context.Background(), storeCfg))

	store, cleanup, err := leads.Open(context.Background(), storeCfg)
	require.NoError(t, err)
	defer cleanup()
	_, err = store.FindByEmail(context.Background(), "nobody@example.com")
	require.Error(t, err)
}

func TestRunAdvisorRequiresAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.AdvisorServer.GeminiAPIKey = ""

	err := RunAdvisor(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key")
}
