package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flashmart/service-flashsale/internal/adapter"
	"github.com/flashmart/service-flashsale/internal/domain/campaign"
	"github.com/flashmart/service-flashsale/internal/domain/reservation"
	"github.com/flashmart/service-flashsale/internal/domain/stock"
	"github.com/flashmart/service-flashsale/pkg/domain"
)

// CreateCampaignRequest holds data to create a flash-sale campaign.
type CreateCampaignRequest struct {
	Name     string `json:"name" binding:"required"`
	Slug     string `json:"slug" binding:"required"`
	StartsAt string `json:"starts_at" binding:"required"`
	EndsAt   string `json:"ends_at" binding:"required"`
}

// AddProductRequest holds data to add a product to a campaign.
type AddProductRequest struct {
	ProductID       int64  `json:"product_id" binding:"required,gt=0"`
	FlashPriceCents *int64 `json:"flash_price_cents" binding:"omitempty,gte=0"`
	TotalStock      int    `json:"total_stock" binding:"required,gte=0"`
	PerUserLimit    int    `json:"per_user_limit" binding:"required,gte=1"`
	DisplayOrder    int    `json:"display_order"`
}

// CampaignDTO is the API response representation of a campaign.
type CampaignDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Status    string    `json:"status"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// StockEntryDTO is the API response representation of one campaign product.
type StockEntryDTO struct {
	ProductID       int64  `json:"product_id"`
	ProductName     string `json:"product_name,omitempty"`
	FlashPriceCents int64  `json:"flash_price_cents"`
	TotalStock      int    `json:"total_stock"`
	Sold            int    `json:"sold"`
	Available       int    `json:"available"`
	PerUserLimit    int    `json:"per_user_limit"`
	DisplayOrder    int    `json:"display_order"`
}

// CampaignDetailDTO is a campaign with its stock entries.
type CampaignDetailDTO struct {
	CampaignDTO
	Products []StockEntryDTO `json:"products"`
}

// ReservationStatsDTO aggregates the ledger for the ops dashboard.
type ReservationStatsDTO struct {
	ByStatus map[string]int64 `json:"by_status"`
	Units    map[string]int64 `json:"units_by_status"`
}

// CampaignService handles campaign administration and browsing.
type CampaignService struct {
	campaigns    campaign.Repository
	stock        stock.Repository
	reservations reservation.Repository
	catalog      adapter.CatalogAdapter
	logger       *zap.Logger
}

// NewCampaignService creates a new CampaignService.
func NewCampaignService(
	campaigns campaign.Repository,
	stockRepo stock.Repository,
	reservations reservation.Repository,
	catalog adapter.CatalogAdapter,
	logger *zap.Logger,
) *CampaignService {
	return &CampaignService{
		campaigns:    campaigns,
		stock:        stockRepo,
		reservations: reservations,
		catalog:      catalog,
		logger:       logger,
	}
}

// CreateCampaign creates a campaign with a future or immediate window (admin).
func (s *CampaignService) CreateCampaign(ctx context.Context, req CreateCampaignRequest) (*CampaignDTO, error) {
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return nil, fmt.Errorf("invalid starts_at format (use RFC3339)")
	}
	endsAt, err := time.Parse(time.RFC3339, req.EndsAt)
	if err != nil {
		return nil, fmt.Errorf("invalid ends_at format (use RFC3339)")
	}

	c, err := campaign.NewCampaign(req.Name, req.Slug, startsAt, endsAt)
	if err != nil {
		return nil, err
	}

	if err := s.campaigns.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to save campaign: %w", err)
	}

	s.logger.Info("campaign created",
		zap.String("campaign_id", c.ID().String()),
		zap.String("slug", c.Slug()),
	)
	dto := toCampaignDTO(c)
	return &dto, nil
}

// CancelCampaign terminates a campaign early (admin). Outstanding pending
// reservations remain subject to normal expiry and cleanup. The write is
// status-conditioned so a concurrent scheduler transition is never clobbered;
// on a lost race the fresh status is re-checked.
func (s *CampaignService) CancelCampaign(ctx context.Context, id uuid.UUID) (*CampaignDTO, error) {
	for attempt := 0; attempt < 3; attempt++ {
		c, err := s.campaigns.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		from := c.Status()
		if err := c.Cancel(); err != nil {
			return nil, err
		}

		won, err := s.campaigns.TransitionStatus(ctx, id, from, campaign.StatusCancelled)
		if err != nil {
			return nil, err
		}
		if !won {
			continue
		}

		s.logger.Info("campaign cancelled", zap.String("campaign_id", id.String()))
		dto := toCampaignDTO(c)
		return &dto, nil
	}
	return nil, domain.NewConflictError("campaign status is changing concurrently")
}

// AddProduct creates the stock entry for a product joining a campaign
// (admin). The product must exist in the catalog; when no flash price is
// given, the catalog base price is locked in.
func (s *CampaignService) AddProduct(ctx context.Context, campaignID uuid.UUID, req AddProductRequest) (*StockEntryDTO, error) {
	c, err := s.campaigns.FindByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	product, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup failed: %w", err)
	}

	price := product.BasePriceCents
	if req.FlashPriceCents != nil {
		price = *req.FlashPriceCents
	}

	entry, err := stock.NewEntry(c.ID(), req.ProductID, price, req.TotalStock, req.PerUserLimit, req.DisplayOrder)
	if err != nil {
		return nil, err
	}

	if err := s.stock.Save(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to save stock entry: %w", err)
	}

	s.logger.Info("product added to campaign",
		zap.String("campaign_id", campaignID.String()),
		zap.Int64("product_id", req.ProductID),
		zap.Int("total_stock", req.TotalStock),
	)

	dto := toStockEntryDTO(entry)
	dto.ProductName = product.Name
	return &dto, nil
}

// ListOpenCampaigns returns campaigns currently accepting reservations.
func (s *CampaignService) ListOpenCampaigns(ctx context.Context) ([]CampaignDTO, error) {
	list, err := s.campaigns.FindOpen(ctx)
	if err != nil {
		return nil, err
	}

	dtos := make([]CampaignDTO, len(list))
	for i, c := range list {
		dtos[i] = toCampaignDTO(c)
	}
	return dtos, nil
}

// GetCampaignBySlug returns a campaign with its stock entries and computed
// availability.
func (s *CampaignService) GetCampaignBySlug(ctx context.Context, slug string) (*CampaignDetailDTO, error) {
	c, err := s.campaigns.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	entries, err := s.stock.ListByCampaign(ctx, c.ID())
	if err != nil {
		return nil, err
	}

	detail := CampaignDetailDTO{
		CampaignDTO: toCampaignDTO(c),
		Products:    make([]StockEntryDTO, len(entries)),
	}
	for i, e := range entries {
		detail.Products[i] = toStockEntryDTO(e)
	}
	return &detail, nil
}

// GetReservationStats returns ledger aggregates (admin).
func (s *CampaignService) GetReservationStats(ctx context.Context) (*ReservationStatsDTO, error) {
	stats, err := s.reservations.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	dto := &ReservationStatsDTO{
		ByStatus: make(map[string]int64, len(stats)),
		Units:    make(map[string]int64, len(stats)),
	}
	for status, st := range stats {
		dto.ByStatus[string(status)] = st.Count
		dto.Units[string(status)] = st.Units
	}
	return dto, nil
}

// toCampaignDTO maps a domain Campaign to its API representation.
func toCampaignDTO(c *campaign.Campaign) CampaignDTO {
	return CampaignDTO{
		ID:        c.ID(),
		Name:      c.Name(),
		Slug:      c.Slug(),
		StartsAt:  c.StartsAt(),
		EndsAt:    c.EndsAt(),
		Status:    string(c.Status()),
		Active:    c.Active(),
		CreatedAt: c.CreatedAt(),
	}
}

func toStockEntryDTO(e *stock.Entry) StockEntryDTO {
	return StockEntryDTO{
		ProductID:       e.ProductID(),
		FlashPriceCents: e.FlashPriceCents(),
		TotalStock:      e.TotalStock(),
		Sold:            e.Sold(),
		Available:       e.Available(),
		PerUserLimit:    e.PerUserLimit(),
		DisplayOrder:    e.DisplayOrder(),
	}
}
