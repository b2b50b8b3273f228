package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/sooshi/internal/aiprovider/mock"
	"github.com/MrWong99/sooshi/internal/app"
	"github.com/MrWong99/sooshi/internal/config"
	"github.com/MrWong99/sooshi/internal/observe"
)

// testConfig returns a valid config whose listeners bind ephemeral ports.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Server.MetricsAddr = "127.0.0.1:0"
	cfg.Whisper.URL = "http://127.0.0.1:1/inference"
	return cfg
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func TestNew_WithMockAdapter(t *testing.T) {
	t.Parallel()

	a := &mock.Adapter{AdapterKind: config.ProviderCloud, DisplayName: "OpenAI (GPT-4 + TTS)"}
	application, err := app.New(testConfig(), app.WithAdapter(a), app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if got := application.Service().ActiveProviderName(); got != "OpenAI (GPT-4 + TTS)" {
		t.Errorf("ActiveProviderName = %q", got)
	}

	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/voice/provider", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["provider"] != "cloud" {
		t.Errorf("provider = %q, want cloud", body["provider"])
	}
}

func TestNew_BuildsConfiguredAdapter(t *testing.T) {
	t.Parallel()

	application, err := app.New(testConfig(), app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if got := application.Service().ActiveProviderName(); got != "Local (Ollama + Coqui TTS)" {
		t.Errorf("ActiveProviderName = %q", got)
	}
}

func TestNew_FailsFast(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantSub string
	}{
		{"cloud without key", func(c *config.Config) { c.Provider = config.ProviderCloud }, "apikey"},
		{"unknown provider", func(c *config.Config) { c.Provider = "azure" }, "azure"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			tc.mutate(cfg)
			_, err := app.New(cfg, app.WithMetrics(testMetrics(t)))
			if err == nil || !strings.Contains(strings.ToLower(err.Error()), tc.wantSub) {
				t.Errorf("err = %v, want it to mention %q", err, tc.wantSub)
			}
		})
	}

	if _, err := app.New(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestHandler_ServesHealthWithoutMetricsListener(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Server.MetricsAddr = ""
	application, err := app.New(cfg, app.WithAdapter(&mock.Adapter{}), app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	for _, path := range []string{"/healthz", "/metrics"} {
		rec := httptest.NewRecorder()
		application.Handler().ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestApp_RunAndShutdown(t *testing.T) {
	t.Parallel()

	application, err := app.New(testConfig(), app.WithAdapter(&mock.Adapter{}), app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run(ctx)
	}()

	// Give Run a moment to bind its listeners.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return within 5s after context cancellation")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("second Shutdown() error: %v", err)
	}
}

func TestApp_RunFailsOnBusyAddress(t *testing.T) {
	t.Parallel()

	busy := httptest.NewServer(http.NotFoundHandler())
	defer busy.Close()

	cfg := testConfig()
	cfg.Server.ListenAddr = strings.TrimPrefix(busy.URL, "http://")
	application, err := app.New(cfg, app.WithAdapter(&mock.Adapter{}), app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := application.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "listen") {
		t.Errorf("Run() err = %v, want a listen error", err)
	}
}
