package migrations

import (
	"festival-backend/internal/store"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		return store.CreateSchema(app.DB())
	}, func(app core.App) error {
		return store.DropSchema(app.DB())
	})
}
