package application

import (
	"fmt"

	"github.com/flashmart/service-flashsale/pkg/domain"
)

// Business errors surfaced to the checkout/order collaborator. Not-found and
// state-conflict errors must not be retried unchanged; insufficient stock is
// expected under contention and shown to the buyer as sold out.

func errCampaignNotOpen() *domain.DomainError {
	return domain.NewStateConflictError("CAMPAIGN_NOT_OPEN",
		"campaign is not open for reservations")
}

func errProductNotInCampaign(productID int64) *domain.DomainError {
	return &domain.DomainError{
		Err:     domain.ErrNotFound,
		Code:    "PRODUCT_NOT_IN_CAMPAIGN",
		Message: fmt.Sprintf("product %d is not part of this campaign", productID),
	}
}

func errInsufficientStock(available int) *domain.DomainError {
	return domain.NewUnprocessableError("INSUFFICIENT_STOCK",
		fmt.Sprintf("insufficient stock: %d units remaining", available))
}

func errPurchaseLimitExceeded(limit int) *domain.DomainError {
	return domain.NewUnprocessableError("PURCHASE_LIMIT_EXCEEDED",
		fmt.Sprintf("purchase limit of %d units per user reached", limit))
}

func errReservationExpired() *domain.DomainError {
	return domain.NewStateConflictError("RESERVATION_EXPIRED",
		"reservation has expired; cancel and reserve again")
}

func errReservationMismatch() *domain.DomainError {
	return domain.NewConflictError("reserved stock does not cover this reservation")
}

func errRollbackMismatch() *domain.DomainError {
	return domain.NewConflictError("sold stock does not cover this rollback")
}
