package events

import (
	"context"
	"errors"
	"strings"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/flashmart/service-flashsale/internal/application"
	"github.com/flashmart/service-flashsale/pkg/domain"
	"github.com/flashmart/service-flashsale/pkg/events"
	"github.com/flashmart/service-flashsale/pkg/kafka"
)

// OrderEventConsumer listens to order events and drives the reservation
// lifecycle: payment success confirms the hold, payment failure releases it
// and order cancellation rolls a confirmed sale back.
type OrderEventConsumer struct {
	consumer           *kafka.Consumer
	reservationService *application.ReservationService
	logger             *zap.Logger
}

// NewOrderEventConsumer creates a new consumer for order events.
func NewOrderEventConsumer(
	brokers []string,
	groupID string,
	reservationService *application.ReservationService,
	logger *zap.Logger,
) *OrderEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, events.TopicOrderEvents, logger)
	return &OrderEventConsumer{
		consumer:           consumer,
		reservationService: reservationService,
		logger:             logger,
	}
}

// Start begins consuming order events. It blocks until the context is cancelled.
func (c *OrderEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// handleMessage routes incoming Kafka messages to the appropriate handler.
func (c *OrderEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from order topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return err
	}

	c.logger.Info("received order event",
		zap.String("type", cloudEvent.Type),
		zap.String("id", cloudEvent.ID),
	)

	switch {
	case strings.EqualFold(cloudEvent.Type, events.OrderPaymentSucceeded):
		return c.handlePaymentSucceeded(ctx, cloudEvent)

	case strings.EqualFold(cloudEvent.Type, events.OrderPaymentFailed):
		return c.handlePaymentFailed(ctx, cloudEvent)

	case strings.EqualFold(cloudEvent.Type, events.OrderCancelled):
		return c.handleOrderCancelled(ctx, cloudEvent)

	default:
		c.logger.Debug("ignoring unhandled order event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

// handlePaymentSucceeded confirms the reservation named by the order.
func (c *OrderEventConsumer) handlePaymentSucceeded(ctx context.Context, ce kafka.CloudEvent) error {
	var event events.OrderPaymentSucceededEvent
	if err := ce.ParseData(&event); err != nil {
		c.logger.Error("failed to parse OrderPaymentSucceededEvent data", zap.Error(err))
		return err
	}

	_, err := c.reservationService.ConfirmReservation(ctx, event.ReservationID, event.OrderID)
	return c.swallowDomainError(err, "confirm", event.ReservationID.String())
}

// handlePaymentFailed releases the hold so the stock returns to the pool.
func (c *OrderEventConsumer) handlePaymentFailed(ctx context.Context, ce kafka.CloudEvent) error {
	var event events.OrderPaymentFailedEvent
	if err := ce.ParseData(&event); err != nil {
		c.logger.Error("failed to parse OrderPaymentFailedEvent data", zap.Error(err))
		return err
	}

	_, err := c.reservationService.CancelReservation(ctx, event.ReservationID)
	return c.swallowDomainError(err, "cancel", event.ReservationID.String())
}

// handleOrderCancelled reverses a confirmed sale after the fact.
func (c *OrderEventConsumer) handleOrderCancelled(ctx context.Context, ce kafka.CloudEvent) error {
	var event events.OrderCancelledEvent
	if err := ce.ParseData(&event); err != nil {
		c.logger.Error("failed to parse OrderCancelledEvent data", zap.Error(err))
		return err
	}

	_, err := c.reservationService.RollbackConfirmedReservation(ctx, event.ReservationID)
	return c.swallowDomainError(err, "rollback", event.ReservationID.String())
}

// swallowDomainError downgrades failures that are domain outcomes (unknown
// reservation, wrong state) to a warning; the message is spent either way.
// Infrastructure errors are returned so the consumer loop records them at
// error level.
func (c *OrderEventConsumer) swallowDomainError(err error, action, reservationID string) error {
	if err == nil {
		return nil
	}
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		c.logger.Warn("order event rejected by reservation state",
			zap.String("action", action),
			zap.String("reservation_id", reservationID),
			zap.String("code", domainErr.Code),
			zap.Error(err),
		)
		return nil
	}
	return err
}

// Close closes the underlying Kafka consumer.
func (c *OrderEventConsumer) Close() error {
	return c.consumer.Close()
}
