package campaign

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists campaigns.
type Repository interface {
	Save(ctx context.Context, c *Campaign) error
	FindByID(ctx context.Context, id uuid.UUID) (*Campaign, error)
	FindBySlug(ctx context.Context, slug string) (*Campaign, error)

	// FindOpen returns campaigns in active status, ordered by start time.
	FindOpen(ctx context.Context) ([]*Campaign, error)

	// FindDueForActivation returns upcoming campaigns whose window contains now.
	FindDueForActivation(ctx context.Context, now time.Time) ([]*Campaign, error)

	// FindDueForClosing returns active campaigns whose window has passed.
	FindDueForClosing(ctx context.Context, now time.Time) ([]*Campaign, error)

	// TransitionStatus atomically moves a campaign from one status to another.
	// It reports false when the campaign was not in the expected status, which
	// makes concurrent scheduler runs idempotent no-ops.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status) (bool, error)
}
