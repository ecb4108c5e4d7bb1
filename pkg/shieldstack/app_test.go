package shieldstack

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ShieldStack/server/internal/config"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	app, err := NewApp(context.Background(), cfg, WithRegistry(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	t.Cleanup(func() { app.Close() })
	return app
}

func TestAppServesHeaders(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "SAMEORIGIN" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

func TestAppReloadPolicy(t *testing.T) {
	app := newTestApp(t)

	headers := app.Config.Headers
	headers.FrameOptions = &config.HeaderValueConfig{Value: "DENY"}
	if err := app.ReloadPolicy(headers); err != nil {
		t.Fatalf("ReloadPolicy: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestAppReloadPolicyRejectsBadValues(t *testing.T) {
	app := newTestApp(t)

	headers := app.Config.Headers
	headers.FrameOptions = &config.HeaderValueConfig{Value: "SIDEWAYS"}
	if err := app.ReloadPolicy(headers); err == nil {
		t.Fatal("expected error for invalid frame options value")
	}

	// Active policy is untouched after a failed reload.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Frame-Options"); got != "SAMEORIGIN" {
		t.Errorf("X-Frame-Options = %q, want SAMEORIGIN", got)
	}
}
