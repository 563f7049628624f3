package store

import (
	"context"
	"database/sql"
	"errors"

	"festival-backend/models"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/tools/types"
)

var ErrCustomerNotFound = errors.New("store: customer not found")

// UpsertCustomer records the provider identity, refreshing the email when a
// non-empty one is supplied.
func (s *Store) UpsertCustomer(ctx context.Context, uid, email string) error {
	now := types.NowDateTime().String()
	_, err := s.db.NewQuery(`
		INSERT INTO customers (id, uid, email, created, updated)
		VALUES ({:id}, {:uid}, {:email}, {:now}, {:now})
		ON CONFLICT (uid) DO UPDATE SET
			email = CASE WHEN excluded.email != '' THEN excluded.email ELSE customers.email END,
			updated = excluded.updated
	`).Bind(dbx.Params{
		"id":    uuid.NewString(),
		"uid":   uid,
		"email": email,
		"now":   now,
	}).WithContext(ctx).Execute()
	return err
}

func (s *Store) CustomerByUID(ctx context.Context, uid string) (*models.Customer, error) {
	c := &models.Customer{}
	err := s.db.
		Select("*").
		From("customers").
		Where(dbx.HashExp{"uid": uid}).
		WithContext(ctx).
		One(c)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
