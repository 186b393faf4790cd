package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists the ledger in the conversions and interested_users tables.
type PostgresStore struct {
	pool rowQuerier
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("ledger: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

func newPostgresStoreWithExec(exec rowQuerier) *PostgresStore {
	if exec == nil {
		panic("ledger: exec required")
	}
	return &PostgresStore{pool: exec}
}

func (s *PostgresStore) HasConverted(ctx context.Context, userID string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM conversions WHERE user_id = $1`, userID)
}

func (s *PostgresStore) ConversionReason(ctx context.Context, userID string) (Reason, bool, error) {
	var reason string
	err := s.pool.QueryRow(ctx, `SELECT reason FROM conversions WHERE user_id = $1`, userID).Scan(&reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("ledger: conversion reason: %w", err)
	}
	return Reason(reason), true, nil
}

func (s *PostgresStore) MarkConverted(ctx context.Context, userID string, reason Reason) (bool, error) {
	query := `
		INSERT INTO conversions (user_id, reason)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET reason = EXCLUDED.reason, created_at = NOW()
		WHERE conversions.reason = $3 AND EXCLUDED.reason <> $3
	`
	ct, err := s.pool.Exec(ctx, query, userID, string(reason), string(ReasonEbook))
	if err != nil {
		return false, fmt.Errorf("ledger: mark conversion: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (s *PostgresStore) MarkInterested(ctx context.Context, userID string) error {
	query := `
		INSERT INTO interested_users (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("ledger: mark interest: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsInterested(ctx context.Context, userID string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM interested_users WHERE user_id = $1`, userID)
}

func (s *PostgresStore) exists(ctx context.Context, query, userID string) (bool, error) {
	var one int
	if err := s.pool.QueryRow(ctx, query, userID).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("ledger: lookup: %w", err)
	}
	return true, nil
}
