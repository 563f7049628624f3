package store

import (
	"context"

	"festival-backend/models"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/tools/types"
)

// ActiveProductsBySKU returns the active products among skus. Missing or
// inactive SKUs are simply absent from the result.
func (s *Store) ActiveProductsBySKU(ctx context.Context, skus []string) ([]models.Product, error) {
	products := []models.Product{}
	if len(skus) == 0 {
		return products, nil
	}

	args := make([]any, len(skus))
	for i, sku := range skus {
		args[i] = sku
	}

	err := s.db.
		Select("*").
		From("products").
		Where(dbx.In("sku", args...)).
		AndWhere(dbx.HashExp{"active": true}).
		WithContext(ctx).
		All(&products)
	return products, err
}

func (s *Store) ListActiveProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.
		Select("*").
		From("products").
		Where(dbx.HashExp{"active": true}).
		OrderBy("event_date ASC", "sku ASC").
		WithContext(ctx).
		All(&products)
	return products, err
}

// UpsertProduct creates or updates a product keyed by SKU.
func (s *Store) UpsertProduct(ctx context.Context, p *models.Product) error {
	now := types.NowDateTime()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Currency == "" {
		p.Currency = "eur"
	}

	_, err := s.db.NewQuery(`
		INSERT INTO products (
			id, sku, name, description, event_name, event_date, unit_amount, currency,
			external_price_id, external_product_id, active, created, updated
		) VALUES (
			{:id}, {:sku}, {:name}, {:description}, {:eventName}, {:eventDate}, {:unitAmount}, {:currency},
			{:priceID}, {:productID}, {:active}, {:now}, {:now}
		)
		ON CONFLICT (sku) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			event_name = excluded.event_name,
			event_date = excluded.event_date,
			unit_amount = excluded.unit_amount,
			currency = excluded.currency,
			external_price_id = excluded.external_price_id,
			external_product_id = excluded.external_product_id,
			active = excluded.active,
			updated = excluded.updated
	`).Bind(dbx.Params{
		"id":          p.ID,
		"sku":         p.SKU,
		"name":        p.Name,
		"description": p.Description,
		"eventName":   p.EventName,
		"eventDate":   p.EventDate.String(),
		"unitAmount":  p.UnitAmount,
		"currency":    p.Currency,
		"priceID":     p.ExternalPriceID,
		"productID":   p.ExternalID,
		"active":      p.Active,
		"now":         now.String(),
	}).WithContext(ctx).Execute()
	if err != nil {
		return err
	}

	return s.db.
		Select("*").
		From("products").
		Where(dbx.HashExp{"sku": p.SKU}).
		WithContext(ctx).
		One(p)
}
