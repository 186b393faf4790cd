// Package ledger records which users have converted and which have shown interest.
//
// The conversion set is append-only. Every follow-up task reads it at fire time,
// so a backend must never answer HasConverted from a cache that could lag a
// completed MarkConverted.
package ledger

import "context"

// Reason tags the event that converted a user.
type Reason string

const (
	ReasonPurchase    Reason = "purchase"
	ReasonBooking     Reason = "booking"
	ReasonFreeBooking Reason = "free_booking"
	// ReasonEbook is the gift e-book order. It opens the day-6/day-7 upsell
	// instead of closing it, and any later conversion replaces it.
	ReasonEbook Reason = "ebook"
)

// Ledger is the conversion set.
type Ledger interface {
	HasConverted(ctx context.Context, userID string) (bool, error)
	// ConversionReason returns the stored reason. ok is false when userID has not
	// converted; reason may be empty for entries written without one.
	ConversionReason(ctx context.Context, userID string) (reason Reason, ok bool, err error)
	// MarkConverted inserts userID once. A stored ReasonEbook is replaced by any
	// other reason. It reports true when the stored entry changed.
	MarkConverted(ctx context.Context, userID string, reason Reason) (bool, error)
}

// InterestSet marks users who asked about therapy without converting.
type InterestSet interface {
	MarkInterested(ctx context.Context, userID string) error
	IsInterested(ctx context.Context, userID string) (bool, error)
}

// supersedes reports whether next replaces the stored reason.
func supersedes(stored, next Reason) bool {
	return stored == ReasonEbook && next != ReasonEbook
}

// Store is a backend implementing both sets.
type Store interface {
	Ledger
	InterestSet
}
