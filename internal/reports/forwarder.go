package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/ShieldStack/server/internal/config"
	"github.com/ShieldStack/server/internal/metrics"
)

// Forwarder posts ingested reports to a configured webhook with
// exponential backoff. A circuit breaker keeps a dead upstream from
// soaking up retry budget on every report.
type Forwarder struct {
	cfg        config.ForwardConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

// NewForwarder builds a forwarder from config. Returns nil when no
// forward URL is configured; a nil Forwarder is a no-op.
func NewForwarder(cfg config.ForwardConfig, logger zerolog.Logger, m *metrics.Metrics) *Forwarder {
	if cfg.URL == "" {
		return nil
	}

	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	f := &Forwarder{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    m,
	}

	if cfg.Breaker.Enabled {
		failures := cfg.Breaker.ConsecutiveFailures
		if failures == 0 {
			failures = 5
		}
		f.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "report-forward",
			MaxRequests: cfg.Breaker.MaxRequests,
			Interval:    cfg.Breaker.Interval.Duration,
			Timeout:     cfg.Breaker.Timeout.Duration,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("forward.breaker_state_changed")
			},
		})
	}

	return f
}

// Forward delivers one report, retrying with exponential backoff until the
// attempt budget runs out or ctx is cancelled.
func (f *Forwarder) Forward(ctx context.Context, report Report) error {
	if f == nil {
		return nil
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	retry := f.cfg.Retry
	maxAttempts := retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	interval := retry.InitialInterval.Duration
	if interval <= 0 {
		interval = time.Second
	}
	multiplier := retry.Multiplier
	if multiplier < 1 {
		multiplier = 2
	}

	started := time.Now()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = f.deliver(ctx, payload)
		if lastErr == nil {
			f.metrics.ObserveForward("delivered", attempt-1, time.Since(started))
			return nil
		}
		if lastErr == gobreaker.ErrOpenState {
			f.metrics.ObserveForward("breaker_open", attempt-1, time.Since(started))
			return lastErr
		}

		f.logger.Warn().
			Err(lastErr).
			Str("report_id", report.ID).
			Int("attempt", attempt).
			Msg("forward.attempt_failed")

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			f.metrics.ObserveForward("cancelled", attempt, time.Since(started))
			return ctx.Err()
		case <-time.After(interval):
		}
		interval = time.Duration(float64(interval) * multiplier)
		if max := retry.MaxInterval.Duration; max > 0 && interval > max {
			interval = max
		}
	}

	f.metrics.ObserveForward("failed", maxAttempts-1, time.Since(started))
	return fmt.Errorf("forward report %s: %w", report.ID, lastErr)
}

func (f *Forwarder) deliver(ctx context.Context, payload []byte) error {
	post := func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.URL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for name, value := range f.cfg.Headers {
			req.Header.Set(name, value)
		}

		resp, err := f.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}
		return nil, nil
	}

	if f.breaker == nil {
		_, err := post()
		return err
	}
	_, err := f.breaker.Execute(post)
	return err
}
