package reports

import (
	"context"
	"fmt"
	"sync"

	"github.com/ShieldStack/server/internal/config"
)

// Store persists ingested CSP violation reports.
type Store interface {
	Save(ctx context.Context, report Report) error
	List(ctx context.Context, limit int) ([]Report, error)
	Close() error
}

// NewStore builds the store selected by configuration.
func NewStore(ctx context.Context, cfg config.ReportsConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(cfg.MaxStored), nil
	case "postgres":
		return NewPostgresStore(cfg.PostgresURL, cfg.PostgresTable)
	case "mongodb":
		return NewMongoStore(ctx, cfg.MongoDBURL, cfg.MongoDBDatabase, cfg.MongoDBCollection)
	default:
		return nil, fmt.Errorf("unknown reports backend %q", cfg.Backend)
	}
}

// MemoryStore keeps the most recent reports in memory, newest first,
// dropping the oldest once the cap is reached. Suitable for single-node
// deployments and tests.
type MemoryStore struct {
	mu      sync.Mutex
	max     int
	reports []Report
}

// NewMemoryStore creates a memory store retaining at most max reports.
func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = 1000
	}
	return &MemoryStore{max: max}
}

// Save records one report.
func (s *MemoryStore) Save(_ context.Context, report Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	if len(s.reports) > s.max {
		s.reports = s.reports[len(s.reports)-s.max:]
	}
	return nil
}

// List returns up to limit reports, newest first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.reports) {
		limit = len(s.reports)
	}
	out := make([]Report, 0, limit)
	for i := len(s.reports) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.reports[i])
	}
	return out, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
