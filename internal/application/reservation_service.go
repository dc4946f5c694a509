package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flashmart/service-flashsale/internal/domain/campaign"
	"github.com/flashmart/service-flashsale/internal/domain/reservation"
	"github.com/flashmart/service-flashsale/internal/domain/stock"
	"github.com/flashmart/service-flashsale/internal/domain/usage"
	"github.com/flashmart/service-flashsale/internal/metrics"
	"github.com/flashmart/service-flashsale/internal/saga"
	"github.com/flashmart/service-flashsale/pkg/domain"
	"github.com/flashmart/service-flashsale/pkg/events"
	"github.com/flashmart/service-flashsale/pkg/kafka"
)

// sweepBatchSize bounds one sweep query so a huge backlog cannot hold a
// single scan open for minutes; the sweep loops until the backlog is drained.
const sweepBatchSize = 200

// EventPublisher publishes CloudEvents; satisfied by *kafka.Producer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// CreateReservationRequest is the DTO for acquiring a stock hold.
type CreateReservationRequest struct {
	CampaignID uuid.UUID `json:"campaign_id" binding:"required"`
	ProductID  int64     `json:"product_id" binding:"required,gt=0"`
	Quantity   int       `json:"quantity" binding:"required,gte=1"`
	TTLMinutes int       `json:"ttl_minutes" binding:"omitempty,gte=0,lte=60"`
}

// ReservationDTO is the API response representation of a reservation.
type ReservationDTO struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	CampaignID uuid.UUID  `json:"campaign_id"`
	ProductID  int64      `json:"product_id"`
	Quantity   int        `json:"quantity"`
	PriceCents int64      `json:"price_cents"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Status     string     `json:"status"`
	OrderID    *uuid.UUID `json:"order_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ValidationDTO is the result of the pre-payment re-check.
type ValidationDTO struct {
	Valid          bool   `json:"valid"`
	Reason         string `json:"reason,omitempty"`
	AvailableStock *int   `json:"available_stock,omitempty"`
}

// CleanupResultDTO reports one sweep run.
type CleanupResultDTO struct {
	Cleaned int `json:"cleaned"`
}

// ReservationService orchestrates the reservation lifecycle across the stock
// counters, the reservation ledger and the usage tracker. Correctness under
// concurrent buyers comes entirely from the conditional updates in the
// repositories; this service never reads counters and writes them back.
type ReservationService struct {
	campaigns    campaign.Repository
	stock        stock.Repository
	reservations reservation.Repository
	usage        usage.Repository
	producer     EventPublisher
	defaultTTL   time.Duration
	logger       *zap.Logger
}

// NewReservationService creates a new ReservationService. A non-positive
// defaultTTL falls back to the built-in reservation TTL.
func NewReservationService(
	campaigns campaign.Repository,
	stockRepo stock.Repository,
	reservations reservation.Repository,
	usageRepo usage.Repository,
	producer EventPublisher,
	defaultTTL time.Duration,
	logger *zap.Logger,
) *ReservationService {
	if defaultTTL <= 0 {
		defaultTTL = reservation.DefaultTTL
	}
	return &ReservationService{
		campaigns:    campaigns,
		stock:        stockRepo,
		reservations: reservations,
		usage:        usageRepo,
		producer:     producer,
		defaultTTL:   defaultTTL,
		logger:       logger,
	}
}

// CreateReservation acquires a hold on campaign stock for a buyer. The
// request either reserves the full quantity or nothing; on a lost race the
// caller sees insufficient stock with the remaining count and may retry.
func (s *ReservationService) CreateReservation(ctx context.Context, userID uuid.UUID, req CreateReservationRequest) (*ReservationDTO, error) {
	start := time.Now()
	dto, err := s.createReservation(ctx, userID, req)
	metrics.ReservationCreateDuration.
		WithLabelValues(createOutcome(err)).
		Observe(time.Since(start).Seconds())
	return dto, err
}

func (s *ReservationService) createReservation(ctx context.Context, userID uuid.UUID, req CreateReservationRequest) (*ReservationDTO, error) {
	c, err := s.campaigns.FindByID(ctx, req.CampaignID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if !c.IsOpenAt(now) {
		return nil, errCampaignNotOpen()
	}

	entry, err := s.stock.FindByCampaignAndProduct(ctx, req.CampaignID, req.ProductID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errProductNotInCampaign(req.ProductID)
		}
		return nil, err
	}

	if err := s.checkPurchaseLimit(ctx, userID, entry, req.Quantity); err != nil {
		return nil, err
	}

	if available := entry.Available(); req.Quantity > available {
		return nil, errInsufficientStock(available)
	}

	ttl := s.defaultTTL
	if req.TTLMinutes > 0 {
		ttl = time.Duration(req.TTLMinutes) * time.Minute
	}
	res, err := reservation.New(userID, req.CampaignID, req.ProductID, req.Quantity, entry.FlashPriceCents(), ttl)
	if err != nil {
		return nil, domain.NewUnprocessableError("INVALID_RESERVATION", err.Error())
	}

	var lostRace bool
	create := saga.New("create_reservation", s.logger).
		Then(saga.Step{
			Name: "reserve_stock",
			Execute: func(ctx context.Context) error {
				err := s.stock.TryReserve(ctx, req.CampaignID, req.ProductID, req.Quantity)
				if errors.Is(err, stock.ErrInsufficientStock) {
					lostRace = true
				}
				return err
			},
			Undo: func(ctx context.Context) error {
				return s.releaseStock(ctx, res)
			},
		}).
		Then(saga.Step{
			Name: "insert_reservation",
			Execute: func(ctx context.Context) error {
				return s.reservations.Save(ctx, res)
			},
		})

	if err := create.Execute(ctx); err != nil {
		if lostRace {
			// Re-read for an honest remaining count in the error message.
			remaining := 0
			if fresh, ferr := s.stock.FindByCampaignAndProduct(ctx, req.CampaignID, req.ProductID); ferr == nil {
				remaining = fresh.Available()
			}
			return nil, errInsufficientStock(remaining)
		}
		return nil, err
	}

	metrics.ReservationTransitions.WithLabelValues(string(reservation.StatusPending)).Inc()
	s.publishReservationCreated(ctx, res)

	s.logger.Info("reservation created",
		zap.String("reservation_id", res.ID().String()),
		zap.String("campaign_id", req.CampaignID.String()),
		zap.Int64("product_id", req.ProductID),
		zap.Int("quantity", req.Quantity),
	)

	dto := toReservationDTO(res)
	return &dto, nil
}

// checkPurchaseLimit enforces the per-user limit against confirmed usage plus
// the user's still-pending holds. This is a best-effort check at creation
// time, not an atomic per-user counter; two simultaneous requests from the
// same user can both pass it. The hard stock invariant is unaffected.
func (s *ReservationService) checkPurchaseLimit(ctx context.Context, userID uuid.UUID, entry *stock.Entry, quantity int) error {
	confirmed, err := s.usage.ConfirmedQuantity(ctx, userID, entry.CampaignID(), entry.ProductID())
	if err != nil {
		return err
	}
	pending, err := s.reservations.SumPendingQuantity(ctx, userID, entry.CampaignID(), entry.ProductID())
	if err != nil {
		return err
	}
	if confirmed+pending+quantity > entry.PerUserLimit() {
		return errPurchaseLimitExceeded(entry.PerUserLimit())
	}
	return nil
}

// ConfirmReservation turns a pending hold into a sale once payment succeeds.
// The ledger row is claimed first with a status-conditioned update so a
// racing sweep or cancel resolves to exactly one winner; the counter move
// and usage upsert follow, with compensation unwinding the claim on failure.
func (s *ReservationService) ConfirmReservation(ctx context.Context, reservationID, orderID uuid.UUID) (*ReservationDTO, error) {
	res, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if res.Status() != reservation.StatusPending {
		return nil, domain.NewInvalidStateError(string(res.Status()), string(reservation.StatusConfirmed))
	}
	if res.IsExpiredAt(now) {
		return nil, errReservationExpired()
	}

	var mismatch bool
	confirm := saga.New("confirm_reservation", s.logger).
		Then(saga.Step{
			Name: "claim_reservation",
			Execute: func(ctx context.Context) error {
				won, err := s.reservations.TransitionStatus(ctx, reservationID,
					reservation.StatusPending, reservation.StatusConfirmed, &orderID)
				if err != nil {
					return err
				}
				if !won {
					return domain.NewConflictError("reservation was transitioned by another request")
				}
				return nil
			},
			Undo: func(ctx context.Context) error {
				_, err := s.reservations.TransitionStatus(ctx, reservationID,
					reservation.StatusConfirmed, reservation.StatusPending, nil)
				return err
			},
		}).
		Then(saga.Step{
			Name: "confirm_stock",
			Execute: func(ctx context.Context) error {
				err := s.stock.ConfirmReserved(ctx, res.CampaignID(), res.ProductID(), res.Quantity())
				if errors.Is(err, stock.ErrReservationMismatch) {
					mismatch = true
				}
				return err
			},
			Undo: func(ctx context.Context) error {
				return s.stock.RollbackConfirmed(ctx, res.CampaignID(), res.ProductID(), res.Quantity())
			},
		}).
		Then(saga.Step{
			Name: "record_usage",
			Execute: func(ctx context.Context) error {
				return s.usage.IncrementConfirmed(ctx, res.UserID(), res.CampaignID(), res.ProductID(), res.Quantity(), orderID)
			},
		})

	if err := confirm.Execute(ctx); err != nil {
		if mismatch {
			// Counter and ledger disagree: a bookkeeping bug, not contention.
			s.logger.Error("reserved counter below reservation quantity",
				zap.String("reservation_id", reservationID.String()),
				zap.String("campaign_id", res.CampaignID().String()),
				zap.Int64("product_id", res.ProductID()),
				zap.Int("quantity", res.Quantity()),
			)
			metrics.CounterIntegrityAlerts.Inc()
			return nil, errReservationMismatch()
		}
		return nil, err
	}

	if err := res.Confirm(orderID, now); err != nil {
		// The persisted transition already succeeded; only the in-memory
		// snapshot was stale. Reload for an accurate response.
		res, err = s.reservations.FindByID(ctx, reservationID)
		if err != nil {
			return nil, err
		}
	}

	metrics.ReservationTransitions.WithLabelValues(string(reservation.StatusConfirmed)).Inc()
	s.publishReservationConfirmed(ctx, res, orderID)

	s.logger.Info("reservation confirmed",
		zap.String("reservation_id", reservationID.String()),
		zap.String("order_id", orderID.String()),
	)

	dto := toReservationDTO(res)
	return &dto, nil
}

// CancelReservation releases a hold. Calling it on an already released
// reservation is a no-op returning the terminal state; calling it on a
// confirmed reservation delegates to the rollback path, since sold rather
// than reserved must be decremented there.
func (s *ReservationService) CancelReservation(ctx context.Context, reservationID uuid.UUID) (*ReservationDTO, error) {
	res, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	if res.IsTerminal() {
		dto := toReservationDTO(res)
		return &dto, nil
	}
	if res.Status() == reservation.StatusConfirmed {
		return s.RollbackConfirmedReservation(ctx, reservationID)
	}

	now := time.Now().UTC()
	target := reservation.StatusCancelled
	if now.After(res.ExpiresAt()) {
		target = reservation.StatusExpired
	}

	var lost bool
	cancel := saga.New("cancel_reservation", s.logger).
		Then(saga.Step{
			Name: "claim_reservation",
			Execute: func(ctx context.Context) error {
				won, err := s.reservations.TransitionStatus(ctx, reservationID,
					reservation.StatusPending, target, nil)
				if err != nil {
					return err
				}
				if !won {
					lost = true
					return domain.NewConflictError("reservation was transitioned by another request")
				}
				return nil
			},
			Undo: func(ctx context.Context) error {
				// Put the row back to pending so a retry or the expiry sweep
				// still owns a path to the stock release.
				_, err := s.reservations.TransitionStatus(ctx, reservationID,
					target, reservation.StatusPending, nil)
				return err
			},
		}).
		Then(saga.Step{
			Name: "release_stock",
			Execute: func(ctx context.Context) error {
				return s.releaseStock(ctx, res)
			},
		})

	if err := cancel.Execute(ctx); err != nil {
		if lost {
			// Another actor released or confirmed it first; report their result.
			res, err = s.reservations.FindByID(ctx, reservationID)
			if err != nil {
				return nil, err
			}
			dto := toReservationDTO(res)
			return &dto, nil
		}
		return nil, err
	}

	metrics.ReservationTransitions.WithLabelValues(string(target)).Inc()
	s.publishReservationReleased(ctx, res, string(target))

	s.logger.Info("reservation released",
		zap.String("reservation_id", reservationID.String()),
		zap.String("status", string(target)),
	)

	res, err = s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	dto := toReservationDTO(res)
	return &dto, nil
}

// releaseStock returns a pending hold's units to availability. An underflow
// means some earlier bookkeeping already lost these units; the counter is
// left untouched and the anomaly is alerted, never silently clamped.
func (s *ReservationService) releaseStock(ctx context.Context, res *reservation.Reservation) error {
	released, err := s.stock.ReleaseReserved(ctx, res.CampaignID(), res.ProductID(), res.Quantity())
	if err != nil {
		return err
	}
	if !released {
		s.logger.Error("reserved counter underflow on release",
			zap.String("reservation_id", res.ID().String()),
			zap.String("campaign_id", res.CampaignID().String()),
			zap.Int64("product_id", res.ProductID()),
			zap.Int("quantity", res.Quantity()),
		)
		metrics.CounterIntegrityAlerts.Inc()
	}
	return nil
}

// RollbackConfirmedReservation reverses a confirmed reservation after an
// irrecoverable downstream failure (payment reversal, order cancellation).
// The units move from sold back to reserved, not straight to availability;
// the normal expiry sweep releases them if checkout is not retried.
func (s *ReservationService) RollbackConfirmedReservation(ctx context.Context, reservationID uuid.UUID) (*ReservationDTO, error) {
	res, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.Status() != reservation.StatusConfirmed {
		return nil, domain.NewInvalidStateError(string(res.Status()), string(reservation.StatusCancelled))
	}

	var mismatch bool
	rollback := saga.New("rollback_reservation", s.logger).
		Then(saga.Step{
			Name: "rollback_stock",
			Execute: func(ctx context.Context) error {
				err := s.stock.RollbackConfirmed(ctx, res.CampaignID(), res.ProductID(), res.Quantity())
				if errors.Is(err, stock.ErrRollbackMismatch) {
					mismatch = true
				}
				return err
			},
			Undo: func(ctx context.Context) error {
				return s.stock.ConfirmReserved(ctx, res.CampaignID(), res.ProductID(), res.Quantity())
			},
		}).
		Then(saga.Step{
			Name: "transition_status",
			Execute: func(ctx context.Context) error {
				won, err := s.reservations.TransitionStatus(ctx, reservationID,
					reservation.StatusConfirmed, reservation.StatusCancelled, nil)
				if err != nil {
					return err
				}
				if !won {
					return domain.NewConflictError("reservation was transitioned by another request")
				}
				return nil
			},
		})

	if err := rollback.Execute(ctx); err != nil {
		if mismatch {
			s.logger.Error("sold counter below rollback quantity",
				zap.String("reservation_id", reservationID.String()),
				zap.String("campaign_id", res.CampaignID().String()),
				zap.Int64("product_id", res.ProductID()),
				zap.Int("quantity", res.Quantity()),
			)
			metrics.CounterIntegrityAlerts.Inc()
			return nil, errRollbackMismatch()
		}
		return nil, err
	}

	metrics.ReservationTransitions.WithLabelValues(string(reservation.StatusCancelled)).Inc()
	s.publishReservationRolledBack(ctx, res)

	s.logger.Info("reservation rolled back",
		zap.String("reservation_id", reservationID.String()),
	)

	res, err = s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	dto := toReservationDTO(res)
	return &dto, nil
}

// ValidateReservation is the read-only re-check performed immediately before
// payment capture. It does not mutate anything; it defends against the
// window between reservation and payment where assumptions may have drifted.
func (s *ReservationService) ValidateReservation(ctx context.Context, reservationID uuid.UUID) (*ValidationDTO, error) {
	res, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &ValidationDTO{Valid: false, Reason: "reservation not found"}, nil
		}
		return nil, err
	}

	now := time.Now().UTC()
	if res.Status() != reservation.StatusPending {
		return &ValidationDTO{Valid: false, Reason: "reservation is " + string(res.Status())}, nil
	}
	if res.IsExpiredAt(now) {
		return &ValidationDTO{Valid: false, Reason: "reservation has expired"}, nil
	}

	c, err := s.campaigns.FindByID(ctx, res.CampaignID())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &ValidationDTO{Valid: false, Reason: "campaign no longer exists"}, nil
		}
		return nil, err
	}
	if !c.IsOpenAt(now) {
		return &ValidationDTO{Valid: false, Reason: "campaign is no longer open"}, nil
	}

	entry, err := s.stock.FindByCampaignAndProduct(ctx, res.CampaignID(), res.ProductID())
	if err != nil {
		return nil, err
	}
	available := entry.Available()
	if entry.Reserved() < res.Quantity() {
		return &ValidationDTO{Valid: false, Reason: "stock bookkeeping does not cover this reservation", AvailableStock: &available}, nil
	}

	return &ValidationDTO{Valid: true, AvailableStock: &available}, nil
}

// GetUserReservations returns a user's pending reservations, optionally
// filtered to one campaign.
func (s *ReservationService) GetUserReservations(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID) ([]ReservationDTO, error) {
	list, err := s.reservations.FindPendingByUser(ctx, userID, campaignID)
	if err != nil {
		return nil, err
	}

	dtos := make([]ReservationDTO, len(list))
	for i, res := range list {
		dtos[i] = toReservationDTO(res)
	}
	return dtos, nil
}

// CleanupExpiredReservations reclaims pending reservations whose expiry has
// passed. Each item goes through the normal idempotent cancel path; one bad
// row is logged and skipped, never fatal to the batch.
func (s *ReservationService) CleanupExpiredReservations(ctx context.Context) (*CleanupResultDTO, error) {
	now := time.Now().UTC()
	cleaned := 0

	for {
		batch, err := s.reservations.FindExpiredPending(ctx, now, sweepBatchSize)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		progressed := 0
		for _, res := range batch {
			if _, err := s.CancelReservation(ctx, res.ID()); err != nil {
				s.logger.Error("failed to reclaim expired reservation",
					zap.String("reservation_id", res.ID().String()),
					zap.Error(err),
				)
				continue
			}
			cleaned++
			progressed++
			metrics.SweepReclaimed.Inc()
		}

		// Every row in the batch failed: bail out rather than spin on the
		// same rows forever.
		if progressed == 0 {
			break
		}
	}

	if cleaned > 0 {
		s.logger.Info("expired reservations reclaimed", zap.Int("count", cleaned))
	}
	return &CleanupResultDTO{Cleaned: cleaned}, nil
}

// --- event publishing (best effort; failures are logged, not returned) ---

func (s *ReservationService) publishReservationCreated(ctx context.Context, res *reservation.Reservation) {
	s.publish(ctx, events.ReservationCreated, events.ReservationCreatedEvent{
		ReservationID: res.ID(),
		UserID:        res.UserID(),
		CampaignID:    res.CampaignID(),
		ProductID:     res.ProductID(),
		Quantity:      res.Quantity(),
		PriceCents:    res.PriceCents(),
		ExpiresAt:     res.ExpiresAt(),
		OccurredAt:    time.Now().UTC(),
	})
}

func (s *ReservationService) publishReservationConfirmed(ctx context.Context, res *reservation.Reservation, orderID uuid.UUID) {
	s.publish(ctx, events.ReservationConfirmed, events.ReservationConfirmedEvent{
		ReservationID: res.ID(),
		UserID:        res.UserID(),
		CampaignID:    res.CampaignID(),
		ProductID:     res.ProductID(),
		Quantity:      res.Quantity(),
		OrderID:       orderID,
		OccurredAt:    time.Now().UTC(),
	})
}

func (s *ReservationService) publishReservationReleased(ctx context.Context, res *reservation.Reservation, reason string) {
	s.publish(ctx, events.ReservationReleased, events.ReservationReleasedEvent{
		ReservationID: res.ID(),
		UserID:        res.UserID(),
		CampaignID:    res.CampaignID(),
		ProductID:     res.ProductID(),
		Quantity:      res.Quantity(),
		Reason:        reason,
		OccurredAt:    time.Now().UTC(),
	})
}

func (s *ReservationService) publishReservationRolledBack(ctx context.Context, res *reservation.Reservation) {
	s.publish(ctx, events.ReservationRolledBack, events.ReservationRolledBackEvent{
		ReservationID: res.ID(),
		UserID:        res.UserID(),
		CampaignID:    res.CampaignID(),
		ProductID:     res.ProductID(),
		Quantity:      res.Quantity(),
		OccurredAt:    time.Now().UTC(),
	})
}

func (s *ReservationService) publish(ctx context.Context, eventType string, data interface{}) {
	ce, err := kafka.NewCloudEvent("service-flashsale", eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := s.producer.PublishEvent(ctx, events.TopicFlashsaleEvents, ce); err != nil {
		s.logger.Error("failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}

func createOutcome(err error) string {
	if err == nil {
		return "created"
	}
	var domErr *domain.DomainError
	if errors.As(err, &domErr) {
		if domErr.Code == "INSUFFICIENT_STOCK" {
			return "insufficient_stock"
		}
		return "rejected"
	}
	return "error"
}

// toReservationDTO maps a domain Reservation to its API representation.
func toReservationDTO(res *reservation.Reservation) ReservationDTO {
	return ReservationDTO{
		ID:         res.ID(),
		UserID:     res.UserID(),
		CampaignID: res.CampaignID(),
		ProductID:  res.ProductID(),
		Quantity:   res.Quantity(),
		PriceCents: res.PriceCents(),
		ExpiresAt:  res.ExpiresAt(),
		Status:     string(res.Status()),
		OrderID:    res.OrderID(),
		CreatedAt:  res.CreatedAt(),
	}
}
