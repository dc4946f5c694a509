package campaign

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flashmart/service-flashsale/pkg/domain"
)

// Status represents the lifecycle state of a flash-sale campaign.
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

// Campaign is the aggregate root for a time-boxed flash-sale event.
// Status only moves forward along upcoming -> active -> ended; cancelled is
// terminal and reachable from any non-ended state via an explicit admin action.
type Campaign struct {
	id        uuid.UUID
	name      string
	slug      string
	startsAt  time.Time
	endsAt    time.Time
	status    Status
	active    bool
	createdAt time.Time
	updatedAt time.Time
}

// NewCampaign creates a campaign with a future or immediate sale window.
func NewCampaign(name, slug string, startsAt, endsAt time.Time) (*Campaign, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("campaign name is required")
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, fmt.Errorf("campaign slug is required")
	}
	if !endsAt.After(startsAt) {
		return nil, fmt.Errorf("campaign end must be after start")
	}

	now := time.Now().UTC()
	return &Campaign{
		id:        uuid.New(),
		name:      name,
		slug:      slug,
		startsAt:  startsAt.UTC(),
		endsAt:    endsAt.UTC(),
		status:    StatusUpcoming,
		active:    true,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstitute rebuilds a Campaign from persistence.
func Reconstitute(id uuid.UUID, name, slug string, startsAt, endsAt time.Time, status Status, active bool, createdAt, updatedAt time.Time) *Campaign {
	return &Campaign{
		id:        id,
		name:      name,
		slug:      slug,
		startsAt:  startsAt,
		endsAt:    endsAt,
		status:    status,
		active:    active,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// --- Getters ---

func (c *Campaign) ID() uuid.UUID        { return c.id }
func (c *Campaign) Name() string         { return c.name }
func (c *Campaign) Slug() string         { return c.slug }
func (c *Campaign) StartsAt() time.Time  { return c.startsAt }
func (c *Campaign) EndsAt() time.Time    { return c.endsAt }
func (c *Campaign) Status() Status       { return c.status }
func (c *Campaign) Active() bool         { return c.active }
func (c *Campaign) CreatedAt() time.Time { return c.createdAt }
func (c *Campaign) UpdatedAt() time.Time { return c.updatedAt }

// --- Behavior ---

// WindowContains reports whether the instant falls inside the sale window.
func (c *Campaign) WindowContains(now time.Time) bool {
	return !now.Before(c.startsAt) && !now.After(c.endsAt)
}

// IsOpenAt reports whether the campaign accepts new reservations at the
// given instant: status active, window open, not soft-deactivated.
func (c *Campaign) IsOpenAt(now time.Time) bool {
	return c.active && c.status == StatusActive && c.WindowContains(now)
}

// DueForActivation reports whether the scheduler should flip the campaign
// to active at the given instant.
func (c *Campaign) DueForActivation(now time.Time) bool {
	return c.status == StatusUpcoming && c.WindowContains(now)
}

// DueForClosing reports whether the scheduler should flip the campaign
// to ended at the given instant.
func (c *Campaign) DueForClosing(now time.Time) bool {
	return c.status == StatusActive && now.After(c.endsAt)
}

// Cancel terminates a campaign that has not already ended or been cancelled.
func (c *Campaign) Cancel() error {
	if c.status == StatusEnded || c.status == StatusCancelled {
		return domain.NewInvalidStateError(string(c.status), string(StatusCancelled))
	}
	c.status = StatusCancelled
	c.updatedAt = time.Now().UTC()
	return nil
}

// Deactivate soft-hides a campaign that still has reservations referencing it.
func (c *Campaign) Deactivate() {
	c.active = false
	c.updatedAt = time.Now().UTC()
}
