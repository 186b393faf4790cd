// Package events drops webhook deliveries that were already handled.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Sources of deduplicated deliveries.
const (
	SourceTwilio     = "twilio"
	SourceStorefront = "woocommerce"
)

// Deduper claims a delivery id. MarkProcessed returns false when the id was
// already claimed, in which case the caller drops the delivery. A caller that
// fails to handle a claimed delivery calls Release so the sender's retry is
// accepted.
type Deduper interface {
	MarkProcessed(ctx context.Context, source, eventID string) (bool, error)
	Release(ctx context.Context, source, eventID string) error
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ProcessedStore keeps claimed ids in the processed_events table.
type ProcessedStore struct {
	pool   execer
	tracer trace.Tracer
}

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return newProcessedStoreWithExec(pool)
}

func newProcessedStoreWithExec(exec execer) *ProcessedStore {
	if exec == nil {
		panic("events: exec required")
	}
	return &ProcessedStore{pool: exec, tracer: otel.Tracer("wellness.internal.events")}
}

func (s *ProcessedStore) MarkProcessed(ctx context.Context, source, eventID string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "events.mark_processed")
	defer span.End()

	ct, err := s.pool.Exec(ctx, `
		INSERT INTO processed_events (source, event_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, source, eventID)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (s *ProcessedStore) Release(ctx context.Context, source, eventID string) error {
	ctx, span := s.tracer.Start(ctx, "events.release")
	defer span.End()

	if _, err := s.pool.Exec(ctx, `DELETE FROM processed_events WHERE source = $1 AND event_id = $2`, source, eventID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("events: release: %w", err)
	}
	return nil
}

// MemoryProcessedStore is a process-local Deduper. Ids are forgotten after ttl.
type MemoryProcessedStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

// NewMemoryProcessedStore creates a store. ttl <= 0 keeps ids forever.
func NewMemoryProcessedStore(ttl time.Duration) *MemoryProcessedStore {
	return &MemoryProcessedStore{ttl: ttl, now: time.Now, seen: make(map[string]time.Time)}
}

func (s *MemoryProcessedStore) MarkProcessed(_ context.Context, source, eventID string) (bool, error) {
	key := source + ":" + eventID
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ttl > 0 {
		for k, at := range s.seen {
			if now.Sub(at) > s.ttl {
				delete(s.seen, k)
			}
		}
	}
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = now
	return true, nil
}

func (s *MemoryProcessedStore) Release(_ context.Context, source, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, source+":"+eventID)
	return nil
}
