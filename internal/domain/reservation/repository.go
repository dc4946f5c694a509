package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists reservations. Status writes are conditioned on the
// current status so that concurrent attempts to transition the same row
// (a confirm racing the sweep, a double cancel) resolve to exactly one winner.
type Repository interface {
	Save(ctx context.Context, r *Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error)

	// FindPendingByUser returns a user's pending reservations, optionally
	// filtered to one campaign.
	FindPendingByUser(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID) ([]*Reservation, error)

	// FindExpiredPending returns up to limit pending reservations whose
	// expiry has passed, oldest first. Used by the sweep.
	FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*Reservation, error)

	// SumPendingQuantity returns the total quantity currently held by a
	// user's pending reservations for one campaign product.
	SumPendingQuantity(ctx context.Context, userID, campaignID uuid.UUID, productID int64) (int, error)

	// TransitionStatus atomically updates status (and the order reference)
	// only if the row is still in the expected status. Reports false when
	// another actor won the transition.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, orderID *uuid.UUID) (bool, error)

	// CountByStatus returns reservation counts and held units grouped by
	// status (ops reporting).
	CountByStatus(ctx context.Context) (map[Status]StatusStats, error)
}

// StatusStats aggregates reservations in one status.
type StatusStats struct {
	Count int64
	Units int64
}
