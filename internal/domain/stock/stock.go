package stock

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Counter mutation failures. These are returned by the repository when the
// conditional update matched no row, i.e. the precondition did not hold at
// the instant of the write.
var (
	// ErrInsufficientStock means available stock was below the requested
	// quantity when the reserve was attempted. Expected under contention.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrReservationMismatch means the reserved counter was below the
	// quantity being confirmed. Indicates a bookkeeping bug, not contention.
	ErrReservationMismatch = errors.New("reserved counter below requested quantity")

	// ErrRollbackMismatch means the sold counter was below the quantity
	// being rolled back.
	ErrRollbackMismatch = errors.New("sold counter below requested quantity")
)

// Entry is the per-campaign-per-product stock record. The sold and reserved
// counters are the single source of truth for availability and are mutated
// only through the atomic repository operations, never through this type.
type Entry struct {
	id              uuid.UUID
	campaignID      uuid.UUID
	productID       int64
	flashPriceCents int64
	totalStock      int
	sold            int
	reserved        int
	perUserLimit    int
	displayOrder    int
	createdAt       time.Time
	updatedAt       time.Time
}

// NewEntry creates a stock entry for a product joining a campaign.
func NewEntry(campaignID uuid.UUID, productID, flashPriceCents int64, totalStock, perUserLimit, displayOrder int) (*Entry, error) {
	if productID <= 0 {
		return nil, fmt.Errorf("product id is required")
	}
	if flashPriceCents < 0 {
		return nil, fmt.Errorf("flash price must not be negative")
	}
	if totalStock < 0 {
		return nil, fmt.Errorf("total stock must not be negative")
	}
	if perUserLimit < 1 {
		return nil, fmt.Errorf("per-user limit must be at least 1")
	}

	now := time.Now().UTC()
	return &Entry{
		id:              uuid.New(),
		campaignID:      campaignID,
		productID:       productID,
		flashPriceCents: flashPriceCents,
		totalStock:      totalStock,
		perUserLimit:    perUserLimit,
		displayOrder:    displayOrder,
		createdAt:       now,
		updatedAt:       now,
	}, nil
}

// Reconstitute rebuilds an Entry from persistence.
func Reconstitute(id, campaignID uuid.UUID, productID, flashPriceCents int64, totalStock, sold, reserved, perUserLimit, displayOrder int, createdAt, updatedAt time.Time) *Entry {
	return &Entry{
		id:              id,
		campaignID:      campaignID,
		productID:       productID,
		flashPriceCents: flashPriceCents,
		totalStock:      totalStock,
		sold:            sold,
		reserved:        reserved,
		perUserLimit:    perUserLimit,
		displayOrder:    displayOrder,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
}

// --- Getters ---

func (e *Entry) ID() uuid.UUID          { return e.id }
func (e *Entry) CampaignID() uuid.UUID  { return e.campaignID }
func (e *Entry) ProductID() int64       { return e.productID }
func (e *Entry) FlashPriceCents() int64 { return e.flashPriceCents }
func (e *Entry) TotalStock() int        { return e.totalStock }
func (e *Entry) Sold() int              { return e.sold }
func (e *Entry) Reserved() int          { return e.reserved }
func (e *Entry) PerUserLimit() int      { return e.perUserLimit }
func (e *Entry) DisplayOrder() int      { return e.displayOrder }
func (e *Entry) CreatedAt() time.Time   { return e.createdAt }
func (e *Entry) UpdatedAt() time.Time   { return e.updatedAt }

// Available returns total - sold - reserved, floored at zero. This value is
// advisory only; the reserve decision is made by the conditional update.
func (e *Entry) Available() int {
	available := e.totalStock - e.sold - e.reserved
	if available < 0 {
		return 0
	}
	return available
}
