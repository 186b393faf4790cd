package booking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditStatus is the outcome of a booking attempt.
type AuditStatus string

const (
	AuditStatusCommitted AuditStatus = "committed"
	AuditStatusFailed    AuditStatus = "failed"
)

// AuditEntry is an immutable booking attempt record.
type AuditEntry struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	SlotTime  time.Time   `json:"slot_time"`
	Free      bool        `json:"free"`
	Note      string      `json:"note,omitempty"`
	EventID   string      `json:"event_id,omitempty"`
	Status    AuditStatus `json:"status"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// AuditLog appends booking attempts to the booking_audit table.
type AuditLog struct {
	db *sql.DB
}

func NewAuditLog(db *sql.DB) *AuditLog {
	return &AuditLog{db: db}
}

// Record appends one entry.
func (a *AuditLog) Record(ctx context.Context, entry AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO booking_audit (
			id, user_id, slot_time, free, note, event_id, status, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := a.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.SlotTime,
		entry.Free,
		nullString(entry.Note),
		nullString(entry.EventID),
		entry.Status,
		nullString(entry.Error),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("booking: failed to write audit entry: %w", err)
	}
	return nil
}

// SlotCollisions returns committed entries sharing slot with more than one user.
func (a *AuditLog) SlotCollisions(ctx context.Context, since time.Time) ([]AuditEntry, error) {
	query := `
		SELECT id, user_id, slot_time, free, note, event_id, status, error, created_at
		FROM booking_audit
		WHERE status = 'committed'
		  AND created_at >= $1
		  AND slot_time IN (
			SELECT slot_time FROM booking_audit
			WHERE status = 'committed' AND created_at >= $1
			GROUP BY slot_time
			HAVING COUNT(DISTINCT user_id) > 1
		  )
		ORDER BY slot_time, created_at
	`
	rows, err := a.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("booking: failed to query collisions: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var note, eventID, errText sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.SlotTime, &e.Free, &note, &eventID, &e.Status, &errText, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("booking: failed to scan audit entry: %w", err)
		}
		e.Note = note.String
		e.EventID = eventID.String
		e.Error = errText.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: failed to read audit entries: %w", err)
	}
	return entries, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
