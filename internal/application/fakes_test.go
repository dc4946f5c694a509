package application_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flashmart/service-flashsale/internal/domain/campaign"
	"github.com/flashmart/service-flashsale/internal/domain/reservation"
	"github.com/flashmart/service-flashsale/internal/domain/stock"
	"github.com/flashmart/service-flashsale/internal/domain/usage"
	"github.com/flashmart/service-flashsale/pkg/domain"
	"github.com/flashmart/service-flashsale/pkg/kafka"
)

// The fakes below mirror the conditional-update contracts of the GORM
// repositories: every counter or status mutation checks its precondition
// under the lock at write time, exactly like the SQL WHERE clauses do.

// --- campaign repository ---

type fakeCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[uuid.UUID]*campaign.Campaign
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{campaigns: make(map[uuid.UUID]*campaign.Campaign)}
}

func (f *fakeCampaignRepo) Save(_ context.Context, c *campaign.Campaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.campaigns[c.ID()] = c
	return nil
}

func (f *fakeCampaignRepo) FindByID(_ context.Context, id uuid.UUID) (*campaign.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return nil, domain.NewNotFoundError("campaign", "")
	}
	// Return a snapshot, like a SQL read: mutations on the returned
	// aggregate must not leak into the store except via Save/TransitionStatus.
	return campaign.Reconstitute(
		c.ID(), c.Name(), c.Slug(), c.StartsAt(), c.EndsAt(),
		c.Status(), c.Active(), c.CreatedAt(), c.UpdatedAt(),
	), nil
}

func (f *fakeCampaignRepo) FindBySlug(_ context.Context, slug string) (*campaign.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.campaigns {
		if c.Slug() == slug {
			return c, nil
		}
	}
	return nil, domain.NewNotFoundError("campaign", "")
}

func (f *fakeCampaignRepo) FindOpen(_ context.Context) ([]*campaign.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*campaign.Campaign
	for _, c := range f.campaigns {
		if c.Active() && c.Status() == campaign.StatusActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCampaignRepo) FindDueForActivation(_ context.Context, now time.Time) ([]*campaign.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*campaign.Campaign
	for _, c := range f.campaigns {
		if c.DueForActivation(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCampaignRepo) FindDueForClosing(_ context.Context, now time.Time) ([]*campaign.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*campaign.Campaign
	for _, c := range f.campaigns {
		if c.DueForClosing(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCampaignRepo) TransitionStatus(_ context.Context, id uuid.UUID, from, to campaign.Status) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok || c.Status() != from {
		return false, nil
	}
	f.campaigns[id] = campaign.Reconstitute(
		c.ID(), c.Name(), c.Slug(), c.StartsAt(), c.EndsAt(),
		to, c.Active(), c.CreatedAt(), time.Now().UTC(),
	)
	return true, nil
}

// --- stock repository ---

type stockKey struct {
	campaignID uuid.UUID
	productID  int64
}

type fakeStockRepo struct {
	mu         sync.Mutex
	entries    map[stockKey]*stock.Entry
	releaseErr error // consumed by the next ReleaseReserved call
}

func newFakeStockRepo() *fakeStockRepo {
	return &fakeStockRepo{entries: make(map[stockKey]*stock.Entry)}
}

func (f *fakeStockRepo) Save(_ context.Context, e *stock.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[stockKey{e.CampaignID(), e.ProductID()}] = e
	return nil
}

func (f *fakeStockRepo) FindByCampaignAndProduct(_ context.Context, campaignID uuid.UUID, productID int64) (*stock.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[stockKey{campaignID, productID}]
	if !ok {
		return nil, domain.NewNotFoundError("stock entry", "")
	}
	return e, nil
}

func (f *fakeStockRepo) ListByCampaign(_ context.Context, campaignID uuid.UUID) ([]*stock.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*stock.Entry
	for k, e := range f.entries {
		if k.campaignID == campaignID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStockRepo) replace(e *stock.Entry, sold, reserved int) {
	f.entries[stockKey{e.CampaignID(), e.ProductID()}] = stock.Reconstitute(
		e.ID(), e.CampaignID(), e.ProductID(), e.FlashPriceCents(),
		e.TotalStock(), sold, reserved, e.PerUserLimit(), e.DisplayOrder(),
		e.CreatedAt(), time.Now().UTC(),
	)
}

func (f *fakeStockRepo) TryReserve(_ context.Context, campaignID uuid.UUID, productID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[stockKey{campaignID, productID}]
	if !ok || e.TotalStock()-e.Sold()-e.Reserved() < quantity {
		return stock.ErrInsufficientStock
	}
	f.replace(e, e.Sold(), e.Reserved()+quantity)
	return nil
}

func (f *fakeStockRepo) ConfirmReserved(_ context.Context, campaignID uuid.UUID, productID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[stockKey{campaignID, productID}]
	if !ok || e.Reserved() < quantity {
		return stock.ErrReservationMismatch
	}
	f.replace(e, e.Sold()+quantity, e.Reserved()-quantity)
	return nil
}

func (f *fakeStockRepo) failNextRelease(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseErr = err
}

func (f *fakeStockRepo) ReleaseReserved(_ context.Context, campaignID uuid.UUID, productID int64, quantity int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.releaseErr != nil {
		err := f.releaseErr
		f.releaseErr = nil
		return false, err
	}
	e, ok := f.entries[stockKey{campaignID, productID}]
	if !ok || e.Reserved() < quantity {
		return false, nil
	}
	f.replace(e, e.Sold(), e.Reserved()-quantity)
	return true, nil
}

func (f *fakeStockRepo) RollbackConfirmed(_ context.Context, campaignID uuid.UUID, productID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[stockKey{campaignID, productID}]
	if !ok || e.Sold() < quantity {
		return stock.ErrRollbackMismatch
	}
	f.replace(e, e.Sold()-quantity, e.Reserved()+quantity)
	return nil
}

func (f *fakeStockRepo) ResetReserved(_ context.Context, campaignID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, e := range f.entries {
		if k.campaignID == campaignID {
			f.replace(e, e.Sold(), 0)
		}
	}
	return nil
}

// --- reservation repository ---

type fakeReservationRepo struct {
	mu           sync.Mutex
	reservations map[uuid.UUID]*reservation.Reservation
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{reservations: make(map[uuid.UUID]*reservation.Reservation)}
}

func (f *fakeReservationRepo) Save(_ context.Context, r *reservation.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reservations[r.ID()] = r
	return nil
}

func (f *fakeReservationRepo) FindByID(_ context.Context, id uuid.UUID) (*reservation.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok {
		return nil, domain.NewNotFoundError("reservation", "")
	}
	return r, nil
}

func (f *fakeReservationRepo) FindPendingByUser(_ context.Context, userID uuid.UUID, campaignID *uuid.UUID) ([]*reservation.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*reservation.Reservation
	for _, r := range f.reservations {
		if r.UserID() != userID || r.Status() != reservation.StatusPending {
			continue
		}
		if campaignID != nil && r.CampaignID() != *campaignID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeReservationRepo) FindExpiredPending(_ context.Context, now time.Time, limit int) ([]*reservation.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*reservation.Reservation
	for _, r := range f.reservations {
		if r.IsExpiredAt(now) {
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeReservationRepo) SumPendingQuantity(_ context.Context, userID, campaignID uuid.UUID, productID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, r := range f.reservations {
		if r.UserID() == userID && r.CampaignID() == campaignID &&
			r.ProductID() == productID && r.Status() == reservation.StatusPending {
			total += r.Quantity()
		}
	}
	return total, nil
}

func (f *fakeReservationRepo) TransitionStatus(_ context.Context, id uuid.UUID, from, to reservation.Status, orderID *uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok || r.Status() != from {
		return false, nil
	}
	f.reservations[id] = reservation.Reconstitute(
		r.ID(), r.UserID(), r.CampaignID(), r.ProductID(), r.Quantity(),
		r.PriceCents(), r.ExpiresAt(), to, orderID, r.CreatedAt(), time.Now().UTC(),
	)
	return true, nil
}

func (f *fakeReservationRepo) CountByStatus(_ context.Context) (map[reservation.Status]reservation.StatusStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[reservation.Status]reservation.StatusStats)
	for _, r := range f.reservations {
		stats := out[r.Status()]
		stats.Count++
		stats.Units += int64(r.Quantity())
		out[r.Status()] = stats
	}
	return out, nil
}

// --- usage repository ---

type usageKey struct {
	userID     uuid.UUID
	campaignID uuid.UUID
	productID  int64
}

type fakeUsageRepo struct {
	mu      sync.Mutex
	records map[usageKey]*usage.Record
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{records: make(map[usageKey]*usage.Record)}
}

func (f *fakeUsageRepo) IncrementConfirmed(_ context.Context, userID, campaignID uuid.UUID, productID int64, quantity int, orderID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := usageKey{userID, campaignID, productID}
	now := time.Now().UTC()
	if rec, ok := f.records[key]; ok {
		rec.Quantity += quantity
		rec.LastOrderID = orderID
		rec.UpdatedAt = now
		return nil
	}
	f.records[key] = &usage.Record{
		UserID:      userID,
		CampaignID:  campaignID,
		ProductID:   productID,
		Quantity:    quantity,
		LastOrderID: orderID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return nil
}

func (f *fakeUsageRepo) ConfirmedQuantity(_ context.Context, userID, campaignID uuid.UUID, productID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[usageKey{userID, campaignID, productID}]
	if !ok {
		return 0, nil
	}
	return rec.Quantity, nil
}

// --- event publisher ---

type fakePublisher struct {
	mu     sync.Mutex
	events []kafka.CloudEvent
}

func (f *fakePublisher) PublishEvent(_ context.Context, _ string, event kafka.CloudEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, len(f.events))
	for i, e := range f.events {
		types[i] = e.Type
	}
	return types
}
