package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	reservationDomain "github.com/flashmart/service-flashsale/internal/domain/reservation"
	"github.com/flashmart/service-flashsale/pkg/domain"
)

// ReservationModel is the GORM persistence model for the reservations table.
// The (status, expires_at) index serves the sweep; (user_id, campaign_id)
// serves the buyer's own-reservations lookup.
type ReservationModel struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index:idx_reservations_user_campaign"`
	CampaignID uuid.UUID  `gorm:"type:uuid;not null;index:idx_reservations_user_campaign"`
	ProductID  int64      `gorm:"not null"`
	Quantity   int        `gorm:"not null"`
	PriceCents int64      `gorm:"not null"`
	ExpiresAt  time.Time  `gorm:"type:timestamptz;not null;index:idx_reservations_status_expiry"`
	Status     string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_reservations_status_expiry"`
	OrderID    *uuid.UUID `gorm:"type:uuid"`
	CreatedAt  time.Time  `gorm:"type:timestamptz;not null"`
	UpdatedAt  time.Time  `gorm:"type:timestamptz;not null"`
}

// TableName specifies the table name for GORM.
func (ReservationModel) TableName() string {
	return "reservations"
}

// GormReservationRepository is the GORM-based implementation of
// reservation.Repository.
type GormReservationRepository struct {
	db *gorm.DB
}

// NewReservationRepository creates a new GORM-based reservation repository.
func NewReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// Save persists a new reservation.
func (r *GormReservationRepository) Save(ctx context.Context, res *reservationDomain.Reservation) error {
	model := toReservationModel(res)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindByID retrieves a reservation by its unique ID.
func (r *GormReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*reservationDomain.Reservation, error) {
	var model ReservationModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Reservation", id.String())
		}
		return nil, err
	}
	return toReservationDomain(&model), nil
}

// FindPendingByUser returns a user's pending reservations, newest first.
func (r *GormReservationRepository) FindPendingByUser(ctx context.Context, userID uuid.UUID, campaignID *uuid.UUID) ([]*reservationDomain.Reservation, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, reservationDomain.StatusPending)
	if campaignID != nil {
		query = query.Where("campaign_id = ?", *campaignID)
	}

	var models []ReservationModel
	if err := query.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return toReservationDomains(models), nil
}

// FindExpiredPending returns pending reservations past their expiry,
// oldest first.
func (r *GormReservationRepository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]*reservationDomain.Reservation, error) {
	var models []ReservationModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", reservationDomain.StatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	return toReservationDomains(models), nil
}

// SumPendingQuantity totals a user's pending holds for one campaign product.
func (r *GormReservationRepository) SumPendingQuantity(ctx context.Context, userID, campaignID uuid.UUID, productID int64) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&ReservationModel{}).
		Where("user_id = ? AND campaign_id = ? AND product_id = ? AND status = ?",
			userID, campaignID, productID, reservationDomain.StatusPending).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	return int(total), err
}

// TransitionStatus performs the status-conditioned update that guards
// against double-confirmation and confirm-after-cancel races. The order
// reference is written (or cleared) together with the status.
func (r *GormReservationRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to reservationDomain.Status, orderID *uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&ReservationModel{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"order_id":   orderID,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CountByStatus returns reservation counts and held units grouped by status.
func (r *GormReservationRepository) CountByStatus(ctx context.Context) (map[reservationDomain.Status]reservationDomain.StatusStats, error) {
	type row struct {
		Status string
		Count  int64
		Units  int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&ReservationModel{}).
		Select("status, count(*) as count, COALESCE(SUM(quantity), 0) as units").
		Group("status").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	stats := make(map[reservationDomain.Status]reservationDomain.StatusStats, len(rows))
	for _, rw := range rows {
		stats[reservationDomain.Status(rw.Status)] = reservationDomain.StatusStats{
			Count: rw.Count,
			Units: rw.Units,
		}
	}
	return stats, nil
}

func toReservationModel(res *reservationDomain.Reservation) ReservationModel {
	return ReservationModel{
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
		UpdatedAt:  res.UpdatedAt(),
	}
}

func toReservationDomain(m *ReservationModel) *reservationDomain.Reservation {
	return reservationDomain.Reconstitute(
		m.ID, m.UserID, m.CampaignID, m.ProductID,
		m.Quantity, m.PriceCents, m.ExpiresAt,
		reservationDomain.Status(m.Status), m.OrderID,
		m.CreatedAt, m.UpdatedAt,
	)
}

func toReservationDomains(models []ReservationModel) []*reservationDomain.Reservation {
	reservations := make([]*reservationDomain.Reservation, len(models))
	for i := range models {
		reservations[i] = toReservationDomain(&models[i])
	}
	return reservations
}
