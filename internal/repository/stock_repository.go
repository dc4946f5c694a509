package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	stockDomain "github.com/flashmart/service-flashsale/internal/domain/stock"
	"github.com/flashmart/service-flashsale/pkg/domain"
)

// StockEntryModel is the GORM persistence model for the stock_entries table.
type StockEntryModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	CampaignID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_stock_campaign_product"`
	ProductID       int64     `gorm:"not null;uniqueIndex:idx_stock_campaign_product"`
	FlashPriceCents int64     `gorm:"not null"`
	TotalStock      int       `gorm:"not null"`
	Sold            int       `gorm:"not null;default:0"`
	Reserved        int       `gorm:"not null;default:0"`
	PerUserLimit    int       `gorm:"not null;default:1"`
	DisplayOrder    int       `gorm:"not null;default:0"`
	CreatedAt       time.Time `gorm:"type:timestamptz;not null"`
	UpdatedAt       time.Time `gorm:"type:timestamptz;not null"`
}

// TableName specifies the table name for GORM.
func (StockEntryModel) TableName() string {
	return "stock_entries"
}

// GormStockRepository is the GORM-based implementation of stock.Repository.
// Every counter mutation is a single conditional UPDATE whose WHERE clause
// carries the precondition, so the decision is made atomically at write time
// regardless of how many request handlers race on the same row.
type GormStockRepository struct {
	db *gorm.DB
}

// NewStockRepository creates a new GORM-based stock repository.
func NewStockRepository(db *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: db}
}

// Save persists a new stock entry.
func (r *GormStockRepository) Save(ctx context.Context, e *stockDomain.Entry) error {
	model := toStockModel(e)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindByCampaignAndProduct retrieves the entry for one campaign product.
func (r *GormStockRepository) FindByCampaignAndProduct(ctx context.Context, campaignID uuid.UUID, productID int64) (*stockDomain.Entry, error) {
	var model StockEntryModel
	if err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND product_id = ?", campaignID, productID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("StockEntry", campaignID.String())
		}
		return nil, err
	}
	return toStockDomain(&model), nil
}

// ListByCampaign returns all entries of a campaign in display order.
func (r *GormStockRepository) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*stockDomain.Entry, error) {
	var models []StockEntryModel
	if err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("display_order ASC, product_id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	entries := make([]*stockDomain.Entry, len(models))
	for i := range models {
		entries[i] = toStockDomain(&models[i])
	}
	return entries, nil
}

// TryReserve increments reserved by quantity, conditioned on enough stock
// being available at the instant of the write.
func (r *GormStockRepository) TryReserve(ctx context.Context, campaignID uuid.UUID, productID int64, quantity int) error {
	result := r.db.WithContext(ctx).
		Model(&StockEntryModel{}).
		Where("campaign_id = ? AND product_id = ? AND total_stock - sold - reserved >= ?",
			campaignID, productID, quantity).
		Updates(map[string]interface{}{
			"reserved":   gorm.Expr("reserved + ?", quantity),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return stockDomain.ErrInsufficientStock
	}
	return nil
}

// ConfirmReserved moves quantity from reserved to sold, conditioned on
// reserved covering the quantity.
func (r *GormStockRepository) ConfirmReserved(ctx context.Context, campaignID uuid.UUID, productID int64, quantity int) error {
	result := r.db.WithContext(ctx).
		Model(&StockEntryModel{}).
		Where("campaign_id = ? AND product_id = ? AND reserved >= ?",
			campaignID, productID, quantity).
		Updates(map[string]interface{}{
			"reserved":   gorm.Expr("reserved - ?", quantity),
			"sold":       gorm.Expr("sold + ?", quantity),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return stockDomain.ErrReservationMismatch
	}
	return nil
}

// ReleaseReserved decrements reserved by quantity. The condition only guards
// against driving the counter negative; a false return signals an upstream
// invariant violation that the caller must alert on.
func (r *GormStockRepository) ReleaseReserved(ctx context.Context, campaignID uuid.UUID, productID int64, quantity int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&StockEntryModel{}).
		Where("campaign_id = ? AND product_id = ? AND reserved >= ?",
			campaignID, productID, quantity).
		Updates(map[string]interface{}{
			"reserved":   gorm.Expr("reserved - ?", quantity),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RollbackConfirmed moves quantity from sold back to reserved, conditioned
// on sold covering the quantity.
func (r *GormStockRepository) RollbackConfirmed(ctx context.Context, campaignID uuid.UUID, productID int64, quantity int) error {
	result := r.db.WithContext(ctx).
		Model(&StockEntryModel{}).
		Where("campaign_id = ? AND product_id = ? AND sold >= ?",
			campaignID, productID, quantity).
		Updates(map[string]interface{}{
			"sold":       gorm.Expr("sold - ?", quantity),
			"reserved":   gorm.Expr("reserved + ?", quantity),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return stockDomain.ErrRollbackMismatch
	}
	return nil
}

// ResetReserved zeroes the reserved counter for every entry of a campaign.
func (r *GormStockRepository) ResetReserved(ctx context.Context, campaignID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&StockEntryModel{}).
		Where("campaign_id = ?", campaignID).
		Updates(map[string]interface{}{
			"reserved":   0,
			"updated_at": time.Now().UTC(),
		}).Error
}

func toStockModel(e *stockDomain.Entry) StockEntryModel {
	return StockEntryModel{
		ID:              e.ID(),
		CampaignID:      e.CampaignID(),
		ProductID:       e.ProductID(),
		FlashPriceCents: e.FlashPriceCents(),
		TotalStock:      e.TotalStock(),
		Sold:            e.Sold(),
		Reserved:        e.Reserved(),
		PerUserLimit:    e.PerUserLimit(),
		DisplayOrder:    e.DisplayOrder(),
		CreatedAt:       e.CreatedAt(),
		UpdatedAt:       e.UpdatedAt(),
	}
}

func toStockDomain(m *StockEntryModel) *stockDomain.Entry {
	return stockDomain.Reconstitute(
		m.ID, m.CampaignID, m.ProductID, m.FlashPriceCents,
		m.TotalStock, m.Sold, m.Reserved,
		m.PerUserLimit, m.DisplayOrder,
		m.CreatedAt, m.UpdatedAt,
	)
}
