package reports

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/ShieldStack/server/internal/config"
)

func forwardConfig(url string) config.ForwardConfig {
	return config.ForwardConfig{
		URL: url,
		Retry: config.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: config.Duration{Duration: 1},
			MaxInterval:     config.Duration{Duration: 1},
			Multiplier:      2,
		},
	}
}

func TestForwarderDelivers(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := forwardConfig(srv.URL)
	cfg.Headers = map[string]string{"Authorization": "Bearer token"}
	f := NewForwarder(cfg, zerolog.Nop(), nil)
	if f == nil {
		t.Fatal("NewForwarder returned nil with URL set")
	}

	if err := f.Forward(context.Background(), testReport(1)); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if gotAuth.Load() != "Bearer token" {
		t.Errorf("Authorization header = %v", gotAuth.Load())
	}
}

func TestForwarderRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := NewForwarder(forwardConfig(srv.URL), zerolog.Nop(), nil)
	if err := f.Forward(context.Background(), testReport(1)); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("got %d attempts, want 3", calls.Load())
	}
}

func TestForwarderExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewForwarder(forwardConfig(srv.URL), zerolog.Nop(), nil)
	if err := f.Forward(context.Background(), testReport(1)); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls.Load() != 3 {
		t.Errorf("got %d attempts, want 3", calls.Load())
	}
}

func TestForwarderBreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := forwardConfig(srv.URL)
	cfg.Breaker = config.BreakerConfig{
		Enabled:             true,
		ConsecutiveFailures: 2,
	}
	f := NewForwarder(cfg, zerolog.Nop(), nil)

	// First chain trips the breaker after two consecutive failures and
	// then short-circuits on the open state.
	err := f.Forward(context.Background(), testReport(1))
	if err == nil {
		t.Fatal("expected error")
	}

	if err := f.Forward(context.Background(), testReport(2)); err != gobreaker.ErrOpenState {
		t.Errorf("got %v, want gobreaker.ErrOpenState", err)
	}
}

func TestNilForwarderIsNoop(t *testing.T) {
	var f *Forwarder
	if err := f.Forward(context.Background(), testReport(1)); err != nil {
		t.Errorf("nil forwarder Forward: %v", err)
	}
	if f := NewForwarder(config.ForwardConfig{}, zerolog.Nop(), nil); f != nil {
		t.Errorf("NewForwarder without URL = %v, want nil", f)
	}
}
