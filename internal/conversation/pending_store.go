package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// PendingBooking is a slot a user picked that still needs the visit reason.
type PendingBooking struct {
	UserID    string    `json:"user_id"`
	SlotStart time.Time `json:"slot_start"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingStore holds at most one PendingBooking per user. Entries older than the
// store TTL read as absent. Callers serialize access per user.
type PendingStore interface {
	Get(ctx context.Context, userID string) (PendingBooking, bool, error)
	Put(ctx context.Context, p PendingBooking) error
	Delete(ctx context.Context, userID string) error
}

// MemoryPendingStore is a process-local PendingStore.
type MemoryPendingStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]PendingBooking
}

// NewMemoryPendingStore creates a store. ttl <= 0 disables expiry.
func NewMemoryPendingStore(ttl time.Duration) *MemoryPendingStore {
	return &MemoryPendingStore{ttl: ttl, now: time.Now, entries: make(map[string]PendingBooking)}
}

func (s *MemoryPendingStore) Get(_ context.Context, userID string) (PendingBooking, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.entries[userID]
	if !ok {
		return PendingBooking{}, false, nil
	}
	if s.ttl > 0 && s.now().Sub(p.CreatedAt) > s.ttl {
		delete(s.entries, userID)
		return PendingBooking{}, false, nil
	}
	return p, true, nil
}

func (s *MemoryPendingStore) Put(_ context.Context, p PendingBooking) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[p.UserID] = p
	return nil
}

func (s *MemoryPendingStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}

// RedisPendingStore keeps entries as JSON strings with a Redis TTL.
type RedisPendingStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisPendingStore(client *redis.Client, ttl time.Duration) *RedisPendingStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	return &RedisPendingStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("wellness.internal.conversation.pending"),
	}
}

func pendingKey(userID string) string {
	return "pending_booking:" + userID
}

func (s *RedisPendingStore) Get(ctx context.Context, userID string) (PendingBooking, bool, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.pending_get")
	defer span.End()

	data, err := s.redis.Get(ctx, pendingKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return PendingBooking{}, false, nil
		}
		span.RecordError(err)
		return PendingBooking{}, false, fmt.Errorf("conversation: load pending booking: %w", err)
	}
	var p PendingBooking
	if err := json.Unmarshal(data, &p); err != nil {
		span.RecordError(err)
		return PendingBooking{}, false, fmt.Errorf("conversation: decode pending booking: %w", err)
	}
	return p, true, nil
}

func (s *RedisPendingStore) Put(ctx context.Context, p PendingBooking) error {
	ctx, span := s.tracer.Start(ctx, "conversation.pending_put")
	defer span.End()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("conversation: encode pending booking: %w", err)
	}
	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := s.redis.Set(ctx, pendingKey(p.UserID), data, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: save pending booking: %w", err)
	}
	return nil
}

func (s *RedisPendingStore) Delete(ctx context.Context, userID string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.pending_delete")
	defer span.End()

	if err := s.redis.Del(ctx, pendingKey(userID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: delete pending booking: %w", err)
	}
	return nil
}
