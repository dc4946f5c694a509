package stock

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists stock entries and performs the atomic counter
// operations that gate every reservation decision. Each counter mutation
// must be a single conditional update against the store; the precondition
// is evaluated at write time, never read back in application memory first.
type Repository interface {
	Save(ctx context.Context, e *Entry) error
	FindByCampaignAndProduct(ctx context.Context, campaignID uuid.UUID, productID int64) (*Entry, error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*Entry, error)

	// TryReserve increments reserved by quantity only if
	// total_stock - sold - reserved >= quantity holds at write time.
	// Returns ErrInsufficientStock when the condition is not met.
	TryReserve(ctx context.Context, campaignID uuid.UUID, productID int64, quantity int) error

	// ConfirmReserved moves quantity units from reserved to sold, conditioned
	// on reserved >= quantity. Returns ErrReservationMismatch otherwise.
	ConfirmReserved(ctx context.Context, campaignID uuid.UUID, productID int64, quantity int) error

	// ReleaseReserved decrements reserved by quantity when a pending hold is
	// cancelled or expires. Reports false when reserved < quantity, in which
	// case the counter is left untouched; the caller must treat that as a
	// data-integrity alert, not a user error.
	ReleaseReserved(ctx context.Context, campaignID uuid.UUID, productID int64, quantity int) (bool, error)

	// RollbackConfirmed moves quantity units from sold back to reserved after
	// a post-confirmation reversal, conditioned on sold >= quantity.
	// Returns ErrRollbackMismatch otherwise.
	RollbackConfirmed(ctx context.Context, campaignID uuid.UUID, productID int64, quantity int) error

	// ResetReserved zeroes the reserved counter for every entry in a
	// campaign. Used on activation; sold is never reset.
	ResetReserved(ctx context.Context, campaignID uuid.UUID) error
}
