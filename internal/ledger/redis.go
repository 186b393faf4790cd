package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	convertedKey  = "ledger:converted"
	interestedKey = "ledger:interested"
	reasonKey     = "ledger:conversion_reason"
)

// markConverted adds the user and records the reason in one step. A stored
// e-book reason is overwritten by any other reason.
// KEYS: converted set, reason hash. ARGV: user, reason, e-book reason.
var markConverted = redis.NewScript(`
if redis.call('SADD', KEYS[1], ARGV[1]) == 1 then
  redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
  return 1
end
if ARGV[2] ~= ARGV[3] and redis.call('HGET', KEYS[2], ARGV[1]) == ARGV[3] then
  redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
  return 1
end
return 0
`)

// RedisStore keeps both sets as Redis sets, with conversion reasons in a hash.
type RedisStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("ledger: redis client cannot be nil")
	}
	return &RedisStore{
		redis:  client,
		tracer: otel.Tracer("wellness.internal.ledger"),
	}
}

func (s *RedisStore) HasConverted(ctx context.Context, userID string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.has_converted")
	defer span.End()

	ok, err := s.redis.SIsMember(ctx, convertedKey, userID).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("ledger: check conversion: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) ConversionReason(ctx context.Context, userID string) (Reason, bool, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.conversion_reason")
	defer span.End()

	reason, err := s.redis.HGet(ctx, reasonKey, userID).Result()
	if err == nil {
		return Reason(reason), true, nil
	}
	if !errors.Is(err, redis.Nil) {
		span.RecordError(err)
		return "", false, fmt.Errorf("ledger: conversion reason: %w", err)
	}
	ok, err := s.HasConverted(ctx, userID)
	return "", ok, err
}

func (s *RedisStore) MarkConverted(ctx context.Context, userID string, reason Reason) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.mark_converted")
	defer span.End()

	changed, err := markConverted.Run(ctx, s.redis, []string{convertedKey, reasonKey}, userID, string(reason), string(ReasonEbook)).Int()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("ledger: mark conversion: %w", err)
	}
	return changed == 1, nil
}

func (s *RedisStore) MarkInterested(ctx context.Context, userID string) error {
	ctx, span := s.tracer.Start(ctx, "ledger.mark_interested")
	defer span.End()

	if err := s.redis.SAdd(ctx, interestedKey, userID).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("ledger: mark interest: %w", err)
	}
	return nil
}

func (s *RedisStore) IsInterested(ctx context.Context, userID string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.is_interested")
	defer span.End()

	ok, err := s.redis.SIsMember(ctx, interestedKey, userID).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("ledger: check interest: %w", err)
	}
	return ok, nil
}
