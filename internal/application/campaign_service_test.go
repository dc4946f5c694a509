package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flashmart/service-flashsale/internal/adapter"
	"github.com/flashmart/service-flashsale/internal/application"
	"github.com/flashmart/service-flashsale/internal/domain/campaign"
	"github.com/flashmart/service-flashsale/pkg/domain"
)

// staleOnceCampaignRepo serves one stale snapshot before delegating to the
// backing store, simulating a scheduler transition landing between a read
// and the following write.
type staleOnceCampaignRepo struct {
	*fakeCampaignRepo
	stale  *campaign.Campaign
	served bool
}

func (r *staleOnceCampaignRepo) FindByID(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error) {
	if !r.served && id == r.stale.ID() {
		r.served = true
		return r.stale, nil
	}
	return r.fakeCampaignRepo.FindByID(ctx, id)
}

func newCampaignService(campaigns campaign.Repository) *application.CampaignService {
	return application.NewCampaignService(
		campaigns, newFakeStockRepo(), newFakeReservationRepo(),
		adapter.NewMockCatalogAdapter(zap.NewNop()), zap.NewNop())
}

func seedStoredCampaign(t *testing.T, repo *fakeCampaignRepo, status campaign.Status) *campaign.Campaign {
	t.Helper()
	now := time.Now().UTC()
	c := campaign.Reconstitute(uuid.New(), "Payday Sale", "payday-sale",
		now.Add(-time.Hour), now.Add(time.Hour), status, true, now, now)
	require.NoError(t, repo.Save(context.Background(), c))
	return c
}

func TestCancelCampaign(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels an active campaign", func(t *testing.T) {
		campaigns := newFakeCampaignRepo()
		c := seedStoredCampaign(t, campaigns, campaign.StatusActive)
		service := newCampaignService(campaigns)

		dto, err := service.CancelCampaign(ctx, c.ID())
		require.NoError(t, err)
		assert.Equal(t, string(campaign.StatusCancelled), dto.Status)

		stored, err := campaigns.FindByID(ctx, c.ID())
		require.NoError(t, err)
		assert.Equal(t, campaign.StatusCancelled, stored.Status())
	})

	t.Run("rejects cancelling an ended campaign", func(t *testing.T) {
		campaigns := newFakeCampaignRepo()
		c := seedStoredCampaign(t, campaigns, campaign.StatusEnded)
		service := newCampaignService(campaigns)

		_, err := service.CancelCampaign(ctx, c.ID())
		assert.True(t, errors.Is(err, domain.ErrInvalidState))
	})

	t.Run("retries against the fresh status after losing a race", func(t *testing.T) {
		campaigns := newFakeCampaignRepo()
		c := seedStoredCampaign(t, campaigns, campaign.StatusActive)

		// First read sees the campaign before the scheduler activated it.
		stale := campaign.Reconstitute(c.ID(), c.Name(), c.Slug(), c.StartsAt(), c.EndsAt(),
			campaign.StatusUpcoming, true, c.CreatedAt(), c.UpdatedAt())
		service := newCampaignService(&staleOnceCampaignRepo{fakeCampaignRepo: campaigns, stale: stale})

		dto, err := service.CancelCampaign(ctx, c.ID())
		require.NoError(t, err)
		assert.Equal(t, string(campaign.StatusCancelled), dto.Status)

		stored, err := campaigns.FindByID(ctx, c.ID())
		require.NoError(t, err)
		assert.Equal(t, campaign.StatusCancelled, stored.Status())
	})

	t.Run("never clobbers a campaign the scheduler just ended", func(t *testing.T) {
		campaigns := newFakeCampaignRepo()
		c := seedStoredCampaign(t, campaigns, campaign.StatusEnded)

		// First read raced the closing pass and still sees it active.
		stale := campaign.Reconstitute(c.ID(), c.Name(), c.Slug(), c.StartsAt(), c.EndsAt(),
			campaign.StatusActive, true, c.CreatedAt(), c.UpdatedAt())
		service := newCampaignService(&staleOnceCampaignRepo{fakeCampaignRepo: campaigns, stale: stale})

		_, err := service.CancelCampaign(ctx, c.ID())
		assert.True(t, errors.Is(err, domain.ErrInvalidState))

		stored, err := campaigns.FindByID(ctx, c.ID())
		require.NoError(t, err)
		assert.Equal(t, campaign.StatusEnded, stored.Status())
	})
}
