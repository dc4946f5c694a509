package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	campaignDomain "github.com/flashmart/service-flashsale/internal/domain/campaign"
	"github.com/flashmart/service-flashsale/pkg/domain"
)

// CampaignModel is the GORM persistence model for the campaigns table.
type CampaignModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"type:varchar(255);not null"`
	Slug      string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	StartsAt  time.Time `gorm:"type:timestamptz;not null;index"`
	EndsAt    time.Time `gorm:"type:timestamptz;not null;index"`
	Status    string    `gorm:"type:varchar(20);not null;default:'upcoming';index"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null"`
}

// TableName specifies the table name for GORM.
func (CampaignModel) TableName() string {
	return "campaigns"
}

// GormCampaignRepository is the GORM-based implementation of campaign.Repository.
type GormCampaignRepository struct {
	db *gorm.DB
}

// NewCampaignRepository creates a new GORM-based campaign repository.
func NewCampaignRepository(db *gorm.DB) *GormCampaignRepository {
	return &GormCampaignRepository{db: db}
}

// Save persists a new campaign.
func (r *GormCampaignRepository) Save(ctx context.Context, c *campaignDomain.Campaign) error {
	model := toCampaignModel(c)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindByID retrieves a campaign by its unique ID.
func (r *GormCampaignRepository) FindByID(ctx context.Context, id uuid.UUID) (*campaignDomain.Campaign, error) {
	var model CampaignModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Campaign", id.String())
		}
		return nil, err
	}
	return toCampaignDomain(&model), nil
}

// FindBySlug retrieves a campaign by its URL slug.
func (r *GormCampaignRepository) FindBySlug(ctx context.Context, slug string) (*campaignDomain.Campaign, error) {
	var model CampaignModel
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Campaign", slug)
		}
		return nil, err
	}
	return toCampaignDomain(&model), nil
}

// FindOpen returns active campaigns ordered by start time.
func (r *GormCampaignRepository) FindOpen(ctx context.Context) ([]*campaignDomain.Campaign, error) {
	var models []CampaignModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND active = true", campaignDomain.StatusActive).
		Order("starts_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return toCampaignDomains(models), nil
}

// FindDueForActivation returns upcoming campaigns whose window contains now.
func (r *GormCampaignRepository) FindDueForActivation(ctx context.Context, now time.Time) ([]*campaignDomain.Campaign, error) {
	var models []CampaignModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND starts_at <= ? AND ends_at >= ?", campaignDomain.StatusUpcoming, now, now).
		Find(&models).Error; err != nil {
		return nil, err
	}
	return toCampaignDomains(models), nil
}

// FindDueForClosing returns active campaigns whose window has passed.
func (r *GormCampaignRepository) FindDueForClosing(ctx context.Context, now time.Time) ([]*campaignDomain.Campaign, error) {
	var models []CampaignModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND ends_at < ?", campaignDomain.StatusActive, now).
		Find(&models).Error; err != nil {
		return nil, err
	}
	return toCampaignDomains(models), nil
}

// TransitionStatus moves a campaign between statuses with a status-conditioned
// update. RowsAffected tells us whether this runner won the transition.
func (r *GormCampaignRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to campaignDomain.Status) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&CampaignModel{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func toCampaignModel(c *campaignDomain.Campaign) CampaignModel {
	return CampaignModel{
		ID:        c.ID(),
		Name:      c.Name(),
		Slug:      c.Slug(),
		StartsAt:  c.StartsAt(),
		EndsAt:    c.EndsAt(),
		Status:    string(c.Status()),
		Active:    c.Active(),
		CreatedAt: c.CreatedAt(),
		UpdatedAt: c.UpdatedAt(),
	}
}

func toCampaignDomain(m *CampaignModel) *campaignDomain.Campaign {
	return campaignDomain.Reconstitute(
		m.ID, m.Name, m.Slug,
		m.StartsAt, m.EndsAt,
		campaignDomain.Status(m.Status), m.Active,
		m.CreatedAt, m.UpdatedAt,
	)
}

func toCampaignDomains(models []CampaignModel) []*campaignDomain.Campaign {
	campaigns := make([]*campaignDomain.Campaign, len(models))
	for i := range models {
		campaigns[i] = toCampaignDomain(&models[i])
	}
	return campaigns
}
