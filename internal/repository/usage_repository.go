package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UsageRecordModel is the GORM persistence model for the usage_records table.
type UsageRecordModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_usage_user_campaign_product"`
	CampaignID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_usage_user_campaign_product"`
	ProductID   int64     `gorm:"not null;uniqueIndex:idx_usage_user_campaign_product"`
	Quantity    int       `gorm:"not null"`
	LastOrderID uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null"`
}

// TableName specifies the table name for GORM.
func (UsageRecordModel) TableName() string {
	return "usage_records"
}

// GormUsageRepository is the GORM-based implementation of usage.Repository.
type GormUsageRepository struct {
	db *gorm.DB
}

// NewUsageRepository creates a new GORM-based usage repository.
func NewUsageRepository(db *gorm.DB) *GormUsageRepository {
	return &GormUsageRepository{db: db}
}

// IncrementConfirmed upserts the (user, campaign, product) record in one
// statement, adding the quantity atomically on conflict.
func (r *GormUsageRepository) IncrementConfirmed(ctx context.Context, userID, campaignID uuid.UUID, productID int64, quantity int, orderID uuid.UUID) error {
	now := time.Now().UTC()
	model := UsageRecordModel{
		ID:          uuid.New(),
		UserID:      userID,
		CampaignID:  campaignID,
		ProductID:   productID,
		Quantity:    quantity,
		LastOrderID: orderID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"}, {Name: "campaign_id"}, {Name: "product_id"},
			},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity":      gorm.Expr("usage_records.quantity + ?", quantity),
				"last_order_id": orderID,
				"updated_at":    now,
			}),
		}).
		Create(&model).Error
}

// ConfirmedQuantity returns the cumulative confirmed quantity, zero when no
// record exists.
func (r *GormUsageRepository) ConfirmedQuantity(ctx context.Context, userID, campaignID uuid.UUID, productID int64) (int, error) {
	var model UsageRecordModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND campaign_id = ? AND product_id = ?", userID, campaignID, productID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return model.Quantity, nil
}
