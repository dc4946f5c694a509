// Package events defines the event contracts exchanged between FlashMart
// services over Kafka. The flash-sale service publishes reservation and
// campaign lifecycle events and consumes order lifecycle events from the
// checkout service.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	TopicFlashsaleEvents = "flashsale.events"
	TopicOrderEvents     = "order.events"
)

// Event types published by the flash-sale service.
const (
	ReservationCreated    = "flashsale.reservation.created"
	ReservationConfirmed  = "flashsale.reservation.confirmed"
	ReservationReleased   = "flashsale.reservation.released"
	ReservationRolledBack = "flashsale.reservation.rolled_back"
	CampaignActivated     = "flashsale.campaign.activated"
	CampaignEnded         = "flashsale.campaign.ended"
)

// Event types consumed from the order service.
const (
	OrderPaymentSucceeded = "order.payment.succeeded"
	OrderPaymentFailed    = "order.payment.failed"
	OrderCancelled        = "order.cancelled"
)

// ReservationCreatedEvent is published when a buyer acquires a stock hold.
type ReservationCreatedEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	UserID        uuid.UUID `json:"user_id"`
	CampaignID    uuid.UUID `json:"campaign_id"`
	ProductID     int64     `json:"product_id"`
	Quantity      int       `json:"quantity"`
	PriceCents    int64     `json:"price_cents"`
	ExpiresAt     time.Time `json:"expires_at"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ReservationConfirmedEvent is published when payment succeeds and the hold
// becomes a sale.
type ReservationConfirmedEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	UserID        uuid.UUID `json:"user_id"`
	CampaignID    uuid.UUID `json:"campaign_id"`
	ProductID     int64     `json:"product_id"`
	Quantity      int       `json:"quantity"`
	OrderID       uuid.UUID `json:"order_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ReservationReleasedEvent is published when a pending hold is cancelled or
// swept as expired. Reason is the terminal status tag.
type ReservationReleasedEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	UserID        uuid.UUID `json:"user_id"`
	CampaignID    uuid.UUID `json:"campaign_id"`
	ProductID     int64     `json:"product_id"`
	Quantity      int       `json:"quantity"`
	Reason        string    `json:"reason"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ReservationRolledBackEvent is published when a confirmed reservation is
// reversed after a downstream failure.
type ReservationRolledBackEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	UserID        uuid.UUID `json:"user_id"`
	CampaignID    uuid.UUID `json:"campaign_id"`
	ProductID     int64     `json:"product_id"`
	Quantity      int       `json:"quantity"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// CampaignActivatedEvent is published when the scheduler opens a campaign.
type CampaignActivatedEvent struct {
	CampaignID uuid.UUID `json:"campaign_id"`
	Slug       string    `json:"slug"`
	EndsAt     time.Time `json:"ends_at"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CampaignEndedEvent is published when the scheduler closes a campaign.
type CampaignEndedEvent struct {
	CampaignID uuid.UUID `json:"campaign_id"`
	Slug       string    `json:"slug"`
	OccurredAt time.Time `json:"occurred_at"`
}

// OrderPaymentSucceededEvent signals that the order service captured payment
// for an order backed by a reservation.
type OrderPaymentSucceededEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	ReservationID uuid.UUID `json:"reservation_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// OrderPaymentFailedEvent signals that payment for a pending order failed
// and its reservation should be released.
type OrderPaymentFailedEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	ReservationID uuid.UUID `json:"reservation_id"`
	Reason        string    `json:"reason"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// OrderCancelledEvent signals that an order was cancelled after payment and
// its confirmed reservation must be rolled back.
type OrderCancelledEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	ReservationID uuid.UUID `json:"reservation_id"`
	Reason        string    `json:"reason"`
	OccurredAt    time.Time `json:"occurred_at"`
}
