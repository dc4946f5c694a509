package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/flashmart/service-flashsale/internal/application"
)

// Sweeper periodically reclaims stock held by expired pending reservations.
// It is a thin ticker around the reservation service's cleanup operation,
// which already races safely against user-initiated cancels and confirms.
type Sweeper struct {
	reservations *application.ReservationService
	logger       *zap.Logger
}

func NewSweeper(reservations *application.ReservationService, logger *zap.Logger) *Sweeper {
	return &Sweeper{reservations: reservations, logger: logger}
}

// Start runs the sweep on a fixed interval until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := s.reservations.CleanupExpiredReservations(ctx)
			if err != nil {
				s.logger.Error("reservation sweep failed", zap.Error(err))
				continue
			}
			if result.Cleaned > 0 {
				s.logger.Info("reservation sweep completed", zap.Int("cleaned", result.Cleaned))
			}
		}
	}
}
