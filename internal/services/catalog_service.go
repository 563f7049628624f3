package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"festival-backend/internal/status"
	"festival-backend/internal/store"
	"festival-backend/models"
)

const (
	MinQuantity = 1
	MaxQuantity = 99
)

type CartLine struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

type CatalogService struct {
	store  *store.Store
	logger *slog.Logger
}

func NewCatalogService(s *store.Store, logger *slog.Logger) *CatalogService {
	return &CatalogService{store: s, logger: logger}
}

// Resolve looks up the distinct SKUs of a cart. Every SKU that is missing or
// inactive is reported in a single *status.UnknownSKUError.
func (s *CatalogService) Resolve(ctx context.Context, skus []string) (map[string]models.Product, error) {
	distinct := make([]string, 0, len(skus))
	seen := make(map[string]bool, len(skus))
	for _, sku := range skus {
		if !seen[sku] {
			seen[sku] = true
			distinct = append(distinct, sku)
		}
	}

	products, err := s.store.ActiveProductsBySKU(ctx, distinct)
	if err != nil {
		return nil, fmt.Errorf("resolve skus: %w", err)
	}

	bySKU := make(map[string]models.Product, len(products))
	for _, p := range products {
		bySKU[p.SKU] = p
	}

	var unknown []string
	for _, sku := range distinct {
		if _, ok := bySKU[sku]; !ok {
			unknown = append(unknown, sku)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &status.UnknownSKUError{SKUs: unknown}
	}

	return bySKU, nil
}

func (s *CatalogService) List(ctx context.Context) ([]models.Product, error) {
	return s.store.ListActiveProducts(ctx)
}

// Upsert validates and stores a product definition keyed by SKU.
func (s *CatalogService) Upsert(ctx context.Context, p *models.Product) error {
	p.SKU = strings.TrimSpace(p.SKU)
	p.Name = strings.TrimSpace(p.Name)
	p.Currency = strings.ToLower(strings.TrimSpace(p.Currency))

	if p.SKU == "" || p.Name == "" {
		return fmt.Errorf("product sku and name are required")
	}
	if p.UnitAmount < 0 {
		return fmt.Errorf("product %s: unit amount must not be negative", p.SKU)
	}

	if err := s.store.UpsertProduct(ctx, p); err != nil {
		return fmt.Errorf("upsert product %s: %w", p.SKU, err)
	}

	s.logger.Info("Product upserted", "sku", p.SKU, "unit_amount", p.UnitAmount, "active", p.Active)
	return nil
}

// ValidateCart checks cart shape before any lookup.
func ValidateCart(items []CartLine) error {
	if len(items) == 0 {
		return status.ErrEmptyCart
	}
	for _, item := range items {
		if strings.TrimSpace(item.SKU) == "" {
			return &status.UnknownSKUError{SKUs: []string{item.SKU}}
		}
		if item.Quantity < MinQuantity || item.Quantity > MaxQuantity {
			return fmt.Errorf("%w: %s has quantity %d", status.ErrInvalidQuantity, item.SKU, item.Quantity)
		}
	}
	return nil
}
