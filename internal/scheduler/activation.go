// Package scheduler hosts the time-driven processes: the campaign activation
// scheduler and the expired-reservation sweep. Both are safe to run from
// multiple process instances concurrently because every transition they
// perform is conditioned on the current status at write time; a duplicate
// run is an idempotent no-op.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/flashmart/service-flashsale/internal/domain/campaign"
	"github.com/flashmart/service-flashsale/internal/domain/stock"
	"github.com/flashmart/service-flashsale/internal/metrics"
	"github.com/flashmart/service-flashsale/pkg/events"
	"github.com/flashmart/service-flashsale/pkg/kafka"
)

// EventPublisher publishes CloudEvents; satisfied by *kafka.Producer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// ScheduleResultDTO reports one scheduler pass.
type ScheduleResultDTO struct {
	Activated int `json:"activated"`
	Closed    int `json:"closed"`
}

// ActivationScheduler flips campaign status along upcoming -> active -> ended
// as their windows open and close. Cancelled campaigns are never touched.
type ActivationScheduler struct {
	campaigns campaign.Repository
	stock     stock.Repository
	producer  EventPublisher
	logger    *zap.Logger
}

// NewActivationScheduler creates a new ActivationScheduler.
func NewActivationScheduler(
	campaigns campaign.Repository,
	stockRepo stock.Repository,
	producer EventPublisher,
	logger *zap.Logger,
) *ActivationScheduler {
	return &ActivationScheduler{
		campaigns: campaigns,
		stock:     stockRepo,
		producer:  producer,
		logger:    logger,
	}
}

// RunOnce performs a single scheduler pass. Per-campaign failures are logged
// and skipped so one bad row cannot stall the rest.
func (s *ActivationScheduler) RunOnce(ctx context.Context) (*ScheduleResultDTO, error) {
	now := time.Now().UTC()
	result := &ScheduleResultDTO{}

	due, err := s.campaigns.FindDueForActivation(ctx, now)
	if err != nil {
		return nil, err
	}
	for _, c := range due {
		if s.activate(ctx, c) {
			result.Activated++
		}
	}

	closing, err := s.campaigns.FindDueForClosing(ctx, now)
	if err != nil {
		return nil, err
	}
	for _, c := range closing {
		if s.close(ctx, c) {
			result.Closed++
		}
	}

	if result.Activated > 0 || result.Closed > 0 {
		s.logger.Info("scheduler pass completed",
			zap.Int("activated", result.Activated),
			zap.Int("closed", result.Closed),
		)
	}
	return result, nil
}

// activate flips one campaign to active and resets its reserved counters.
// Sold is never reset: units already sold in a prior inconsistent state stay
// sold. Returns false when another runner won the transition.
func (s *ActivationScheduler) activate(ctx context.Context, c *campaign.Campaign) bool {
	won, err := s.campaigns.TransitionStatus(ctx, c.ID(), campaign.StatusUpcoming, campaign.StatusActive)
	if err != nil {
		s.logger.Error("failed to activate campaign",
			zap.String("campaign_id", c.ID().String()),
			zap.Error(err),
		)
		return false
	}
	if !won {
		return false
	}

	if err := s.stock.ResetReserved(ctx, c.ID()); err != nil {
		s.logger.Error("failed to reset reserved counters on activation",
			zap.String("campaign_id", c.ID().String()),
			zap.Error(err),
		)
	}

	metrics.CampaignTransitions.WithLabelValues("activated").Inc()
	s.publish(ctx, events.CampaignActivated, events.CampaignActivatedEvent{
		CampaignID: c.ID(),
		Slug:       c.Slug(),
		EndsAt:     c.EndsAt(),
		OccurredAt: time.Now().UTC(),
	})

	s.logger.Info("campaign activated",
		zap.String("campaign_id", c.ID().String()),
		zap.String("slug", c.Slug()),
	)
	return true
}

// close flips one campaign to ended. Pending reservations remain subject to
// normal expiry and cleanup; only new holds are rejected from here on.
func (s *ActivationScheduler) close(ctx context.Context, c *campaign.Campaign) bool {
	won, err := s.campaigns.TransitionStatus(ctx, c.ID(), campaign.StatusActive, campaign.StatusEnded)
	if err != nil {
		s.logger.Error("failed to close campaign",
			zap.String("campaign_id", c.ID().String()),
			zap.Error(err),
		)
		return false
	}
	if !won {
		return false
	}

	metrics.CampaignTransitions.WithLabelValues("ended").Inc()
	s.publish(ctx, events.CampaignEnded, events.CampaignEndedEvent{
		CampaignID: c.ID(),
		Slug:       c.Slug(),
		OccurredAt: time.Now().UTC(),
	})

	s.logger.Info("campaign ended",
		zap.String("campaign_id", c.ID().String()),
		zap.String("slug", c.Slug()),
	)
	return true
}

// Start runs the scheduler on a fixed interval until the context is
// cancelled.
func (s *ActivationScheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("scheduler pass failed", zap.Error(err))
			}
		}
	}
}

func (s *ActivationScheduler) publish(ctx context.Context, eventType string, data interface{}) {
	ce, err := kafka.NewCloudEvent("service-flashsale", eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := s.producer.PublishEvent(ctx, events.TopicFlashsaleEvents, ce); err != nil {
		s.logger.Error("failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}
