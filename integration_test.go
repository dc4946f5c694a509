//go:build integration

package main_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashmart/service-flashsale/internal/application"
	"github.com/flashmart/service-flashsale/pkg/events"
)

// TestConcurrentReservations_NeverOversell fires many concurrent reserve
// requests at a small stock pool and verifies the conditional UPDATE admits
// exactly the available quantity, no more.
func TestConcurrentReservations_NeverOversell(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupFlashsaleStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	const totalStock = 5
	const attempts = 20
	productID := int64(42)
	campaignID := seedActiveCampaign(t, infra.DB, productID, totalStock, 1)

	var succeeded int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := stack.Reservations.CreateReservation(context.Background(), uuid.New(),
				application.CreateReservationRequest{
					CampaignID: campaignID,
					ProductID:  productID,
					Quantity:   1,
				})
			if err == nil {
				atomic.AddInt64(&succeeded, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(totalStock), succeeded, "exactly the stock quantity should win")

	entry := loadStockEntry(t, infra.DB, campaignID, productID)
	assert.Equal(t, totalStock, entry.Reserved)
	assert.Equal(t, 0, entry.Sold)
	assert.LessOrEqual(t, entry.Sold+entry.Reserved, entry.TotalStock)
}

// TestOrderPaymentSucceeded_ConfirmsReservation verifies that a payment
// success event consumed from order.events confirms the hold, moves the units
// to sold and publishes a confirmation event.
func TestOrderPaymentSucceeded_ConfirmsReservation(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupFlashsaleStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()
	defer func() { _ = stack.Consumer.Close() }()

	productID := int64(7)
	campaignID := seedActiveCampaign(t, infra.DB, productID, 10, 2)
	reservationID := seedPendingReservation(t, infra.DB, campaignID, productID, 2,
		time.Now().UTC().Add(10*time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second) // Wait for consumer group join.

	orderID := uuid.New()
	publishTestEvent(t, infra.KafkaBrokers, events.TopicOrderEvents,
		"service-order", events.OrderPaymentSucceeded, events.OrderPaymentSucceededEvent{
			OrderID:       orderID,
			ReservationID: reservationID,
			OccurredAt:    time.Now().UTC(),
		})

	model := waitForReservationStatus(t, infra.DB, reservationID, "confirmed", 15*time.Second)
	require.NotNil(t, model.OrderID)
	assert.Equal(t, orderID, *model.OrderID)

	entry := loadStockEntry(t, infra.DB, campaignID, productID)
	assert.Equal(t, 2, entry.Sold)
	assert.Equal(t, 0, entry.Reserved)

	ce := consumeOneEvent(t, infra.KafkaBrokers, events.TopicFlashsaleEvents,
		events.ReservationConfirmed, 15*time.Second)

	var confirmed events.ReservationConfirmedEvent
	require.NoError(t, ce.ParseData(&confirmed))
	assert.Equal(t, reservationID, confirmed.ReservationID)
	assert.Equal(t, orderID, confirmed.OrderID)
}

// TestOrderPaymentFailed_ReleasesHold verifies that a payment failure event
// releases the pending hold back to availability.
func TestOrderPaymentFailed_ReleasesHold(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupFlashsaleStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()
	defer func() { _ = stack.Consumer.Close() }()

	productID := int64(7)
	campaignID := seedActiveCampaign(t, infra.DB, productID, 10, 2)
	reservationID := seedPendingReservation(t, infra.DB, campaignID, productID, 2,
		time.Now().UTC().Add(10*time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second)

	publishTestEvent(t, infra.KafkaBrokers, events.TopicOrderEvents,
		"service-order", events.OrderPaymentFailed, events.OrderPaymentFailedEvent{
			OrderID:       uuid.New(),
			ReservationID: reservationID,
			Reason:        "card declined",
			OccurredAt:    time.Now().UTC(),
		})

	waitForReservationStatus(t, infra.DB, reservationID, "cancelled", 15*time.Second)

	entry := loadStockEntry(t, infra.DB, campaignID, productID)
	assert.Equal(t, 0, entry.Reserved)
	assert.Equal(t, 0, entry.Sold)
}

// TestOrderCancelled_RollsBackConfirmedSale verifies the post-confirmation
// reversal: units move from sold back to reserved, not to availability.
func TestOrderCancelled_RollsBackConfirmedSale(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupFlashsaleStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()
	defer func() { _ = stack.Consumer.Close() }()

	productID := int64(7)
	campaignID := seedActiveCampaign(t, infra.DB, productID, 10, 2)
	reservationID := seedPendingReservation(t, infra.DB, campaignID, productID, 2,
		time.Now().UTC().Add(10*time.Minute))

	orderID := uuid.New()
	_, err := stack.Reservations.ConfirmReservation(context.Background(), reservationID, orderID)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second)

	publishTestEvent(t, infra.KafkaBrokers, events.TopicOrderEvents,
		"service-order", events.OrderCancelled, events.OrderCancelledEvent{
			OrderID:       orderID,
			ReservationID: reservationID,
			Reason:        "buyer cancelled",
			OccurredAt:    time.Now().UTC(),
		})

	model := waitForReservationStatus(t, infra.DB, reservationID, "cancelled", 15*time.Second)
	assert.Nil(t, model.OrderID, "order reference should be cleared")

	entry := loadStockEntry(t, infra.DB, campaignID, productID)
	assert.Equal(t, 0, entry.Sold)
	assert.Equal(t, 2, entry.Reserved)
}

// TestCleanupExpiredReservations_ReclaimsStock verifies the sweep releases
// expired holds through the same idempotent cancel path buyers use.
func TestCleanupExpiredReservations_ReclaimsStock(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupFlashsaleStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	productID := int64(9)
	campaignID := seedActiveCampaign(t, infra.DB, productID, 10, 5)

	expired := seedPendingReservation(t, infra.DB, campaignID, productID, 2,
		time.Now().UTC().Add(-time.Minute))
	live := seedPendingReservation(t, infra.DB, campaignID, productID, 3,
		time.Now().UTC().Add(10*time.Minute))

	result, err := stack.Reservations.CleanupExpiredReservations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Cleaned)

	waitForReservationStatus(t, infra.DB, expired, "expired", 5*time.Second)
	waitForReservationStatus(t, infra.DB, live, "pending", 5*time.Second)

	entry := loadStockEntry(t, infra.DB, campaignID, productID)
	assert.Equal(t, 3, entry.Reserved, "only the live hold should remain counted")
}

// TestSchedulerActivation_ResetsReservedOnce verifies the activation pass is
// idempotent: the transition is won once and reserved is reset only then.
func TestSchedulerActivation_ResetsReservedOnce(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupFlashsaleStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	productID := int64(11)
	campaignID := seedActiveCampaign(t, infra.DB, productID, 10, 2)

	// Rewind the campaign to upcoming with a stale reserved counter.
	require.NoError(t, infra.DB.Exec(
		`UPDATE campaigns SET status = 'upcoming' WHERE id = ?`, campaignID).Error)
	require.NoError(t, infra.DB.Exec(
		`UPDATE stock_entries SET reserved = 4 WHERE campaign_id = ?`, campaignID).Error)

	first, err := stack.Scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Activated)

	entry := loadStockEntry(t, infra.DB, campaignID, productID)
	assert.Equal(t, 0, entry.Reserved)

	second, err := stack.Scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Activated)
}
