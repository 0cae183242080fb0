package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pairvault/pairvault/internal/app"
	"github.com/pairvault/pairvault/internal/config"
	"github.com/pairvault/pairvault/internal/logging"
)

func TestNewServesScanAndMetrics(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{
		AppName:             "PairVault",
		AppEnv:              "development",
		Port:                "0",
		BlobBackend:         config.BlobBackendMemory,
		SchemaVersion:       2,
		MaxImageBytes:       1 << 20,
		ScanRateLimitPerMin: 10,
	}
	backends, err := app.Open(ctx, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("open backends: %v", err)
	}
	defer backends.Close(ctx) // nolint:errcheck

	srv, err := New(cfg, backends, logging.Discard())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	resp, err := srv.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/scan?k=T1", nil))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	resp, err = srv.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `pairvault_scan_resolutions_total{resolution="just_opened"} 1`) {
		t.Fatalf("expected scan to be counted:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Fatalf("expected runtime metrics")
	}
}

func TestNewRequiresBackends(t *testing.T) {
	if _, err := New(config.Config{}, nil, logging.Discard()); err == nil {
		t.Fatalf("expected error without backends")
	}
}
