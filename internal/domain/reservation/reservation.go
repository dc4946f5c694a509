package reservation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flashmart/service-flashsale/pkg/domain"
)

// Status represents the state of a stock hold.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// DefaultTTL is the hold duration applied when the caller does not supply one.
const DefaultTTL = 15 * time.Minute

// Reservation is a temporary, expiring hold on a quantity of campaign stock
// for one user. Quantity and price are immutable after creation; only the
// status and order reference change.
type Reservation struct {
	id         uuid.UUID
	userID     uuid.UUID
	campaignID uuid.UUID
	productID  int64
	quantity   int
	priceCents int64
	expiresAt  time.Time
	status     Status
	orderID    *uuid.UUID
	createdAt  time.Time
	updatedAt  time.Time
}

// New creates a pending reservation expiring after ttl. The price is locked
// in from the stock entry at this moment.
func New(userID, campaignID uuid.UUID, productID int64, quantity int, priceCents int64, ttl time.Duration) (*Reservation, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1")
	}
	if priceCents < 0 {
		return nil, fmt.Errorf("price must not be negative")
	}

	now := time.Now().UTC()
	return &Reservation{
		id:         uuid.New(),
		userID:     userID,
		campaignID: campaignID,
		productID:  productID,
		quantity:   quantity,
		priceCents: priceCents,
		expiresAt:  now.Add(ttl),
		status:     StatusPending,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// Reconstitute rebuilds a Reservation from persistence.
func Reconstitute(id, userID, campaignID uuid.UUID, productID int64, quantity int, priceCents int64, expiresAt time.Time, status Status, orderID *uuid.UUID, createdAt, updatedAt time.Time) *Reservation {
	return &Reservation{
		id:         id,
		userID:     userID,
		campaignID: campaignID,
		productID:  productID,
		quantity:   quantity,
		priceCents: priceCents,
		expiresAt:  expiresAt,
		status:     status,
		orderID:    orderID,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

// --- Getters ---

func (r *Reservation) ID() uuid.UUID         { return r.id }
func (r *Reservation) UserID() uuid.UUID     { return r.userID }
func (r *Reservation) CampaignID() uuid.UUID { return r.campaignID }
func (r *Reservation) ProductID() int64      { return r.productID }
func (r *Reservation) Quantity() int         { return r.quantity }
func (r *Reservation) PriceCents() int64     { return r.priceCents }
func (r *Reservation) ExpiresAt() time.Time  { return r.expiresAt }
func (r *Reservation) Status() Status        { return r.status }
func (r *Reservation) OrderID() *uuid.UUID   { return r.orderID }
func (r *Reservation) CreatedAt() time.Time  { return r.createdAt }
func (r *Reservation) UpdatedAt() time.Time  { return r.updatedAt }

// --- State machine ---

// IsExpiredAt is the single arbiter of expiry: a reservation is logically
// expired once the instant passes expiresAt while it is still pending.
// Validate, confirm and the sweep all go through this check.
func (r *Reservation) IsExpiredAt(now time.Time) bool {
	return r.status == StatusPending && now.After(r.expiresAt)
}

// IsTerminal reports whether the reservation can no longer transition.
func (r *Reservation) IsTerminal() bool {
	return r.status == StatusCancelled || r.status == StatusExpired
}

// Confirm transitions pending -> confirmed, recording the order.
func (r *Reservation) Confirm(orderID uuid.UUID, now time.Time) error {
	if r.status != StatusPending {
		return domain.NewInvalidStateError(string(r.status), string(StatusConfirmed))
	}
	if r.IsExpiredAt(now) {
		return domain.NewUnprocessableError("RESERVATION_EXPIRED", "reservation has expired")
	}
	r.status = StatusConfirmed
	r.orderID = &orderID
	r.updatedAt = now
	return nil
}

// Release transitions pending to its terminal release state: expired when
// the hold lapsed before it was acted upon, cancelled otherwise. Both tags
// share the same stock-release behavior; the distinction exists only for
// reporting.
func (r *Reservation) Release(now time.Time) (Status, error) {
	if r.status != StatusPending {
		return r.status, domain.NewInvalidStateError(string(r.status), string(StatusCancelled))
	}
	if now.After(r.expiresAt) {
		r.status = StatusExpired
	} else {
		r.status = StatusCancelled
	}
	r.updatedAt = now
	return r.status, nil
}

// Rollback reverses a confirmation after a downstream failure, moving
// confirmed -> cancelled and clearing the order reference.
func (r *Reservation) Rollback(now time.Time) error {
	if r.status != StatusConfirmed {
		return domain.NewInvalidStateError(string(r.status), string(StatusCancelled))
	}
	r.status = StatusCancelled
	r.orderID = nil
	r.updatedAt = now
	return nil
}
