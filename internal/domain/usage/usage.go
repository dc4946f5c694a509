package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record tracks a user's cumulative confirmed purchases of one campaign
// product across all orders. It is derived state: rebuildable from the
// confirmed reservations, kept denormalized so the per-user limit check is
// one read. Never deleted.
type Record struct {
	UserID      uuid.UUID
	CampaignID  uuid.UUID
	ProductID   int64
	Quantity    int
	LastOrderID uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository persists usage records.
type Repository interface {
	// IncrementConfirmed upserts the record for (user, campaign, product),
	// atomically adding quantity and recording the order.
	IncrementConfirmed(ctx context.Context, userID, campaignID uuid.UUID, productID int64, quantity int, orderID uuid.UUID) error

	// ConfirmedQuantity returns the cumulative confirmed quantity, zero when
	// no record exists.
	ConfirmedQuantity(ctx context.Context, userID, campaignID uuid.UUID, productID int64) (int, error)
}
