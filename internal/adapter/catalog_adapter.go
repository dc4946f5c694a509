package adapter

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Product is the catalog's view of a sellable item. The flash-sale service
// reads it once when a product joins a campaign; the flash price is locked
// into the stock entry and never re-validated against the catalog.
type Product struct {
	ID             int64
	Name           string
	BasePriceCents int64
	ImageURL       string
}

// CatalogAdapter is the Anti-Corruption Layer interface for the product
// catalog service.
type CatalogAdapter interface {
	// GetProduct returns the product with the given ID, or an error when the
	// catalog does not know it.
	GetProduct(ctx context.Context, productID int64) (*Product, error)
}

// MockCatalogAdapter is a development/testing implementation of
// CatalogAdapter. It accepts any positive product ID.
type MockCatalogAdapter struct {
	logger *zap.Logger
}

// NewMockCatalogAdapter creates a new mock catalog adapter for development.
func NewMockCatalogAdapter(logger *zap.Logger) *MockCatalogAdapter {
	return &MockCatalogAdapter{logger: logger}
}

// GetProduct returns a synthetic product for any positive ID.
func (m *MockCatalogAdapter) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	if productID <= 0 {
		return nil, fmt.Errorf("product %d not found in catalog", productID)
	}

	m.logger.Debug("[MOCK CATALOG] product lookup",
		zap.Int64("product_id", productID),
	)

	return &Product{
		ID:             productID,
		Name:           fmt.Sprintf("Product #%d", productID),
		BasePriceCents: 9900,
		ImageURL:       fmt.Sprintf("https://cdn.flashmart.dev/products/%d.jpg", productID),
	}, nil
}
