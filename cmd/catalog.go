package cmd

import (
	"fmt"
	"strings"

	"festival-backend/internal/services"
	"festival-backend/models"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/spf13/cobra"
)

type productFlags struct {
	sku         string
	name        string
	description string
	price       string
	currency    string
	eventName   string
	eventDate   string
	priceID     string
	productID   string
	inactive    bool
}

// toProduct converts CLI flags into a product, parsing the major-unit price.
func (f productFlags) toProduct() (*models.Product, error) {
	amount, err := models.ParseMajor(f.price)
	if err != nil {
		return nil, fmt.Errorf("invalid --price %q: %w", f.price, err)
	}

	p := &models.Product{
		SKU:             f.sku,
		Name:            f.name,
		Description:     f.description,
		EventName:       f.eventName,
		UnitAmount:      amount,
		Currency:        f.currency,
		ExternalPriceID: f.priceID,
		ExternalID:      f.productID,
		Active:          !f.inactive,
	}

	if f.eventDate != "" {
		date, err := types.ParseDateTime(f.eventDate)
		if err != nil || date.IsZero() {
			return nil, fmt.Errorf("invalid --event-date %q", f.eventDate)
		}
		p.EventDate = date
	}

	return p, nil
}

func newCatalogCommand(app *pocketbase.PocketBase) *cobra.Command {
	command := &cobra.Command{
		Use:   "catalog",
		Short: "Manage purchasable products",
	}

	command.AddCommand(newCatalogUpsertCommand(app), newCatalogListCommand(app))
	return command
}

func newCatalogUpsertCommand(app *pocketbase.PocketBase) *cobra.Command {
	var flags productFlags

	command := &cobra.Command{
		Use:   "upsert",
		Short: "Create or update a product by SKU",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := flags.toProduct()
			if err != nil {
				return err
			}

			if err := app.RunAllMigrations(); err != nil {
				return err
			}

			s, err := openStore(app)
			if err != nil {
				return err
			}

			catalog := services.NewCatalogService(s, app.Logger())
			if err := catalog.Upsert(cmd.Context(), p); err != nil {
				return err
			}

			cmd.Printf("Saved %s (%s %s %s)\n", p.SKU, p.Name, models.FormatMinor(p.UnitAmount), strings.ToUpper(p.Currency))
			return nil
		},
	}

	command.Flags().StringVar(&flags.sku, "sku", "", "product SKU")
	command.Flags().StringVar(&flags.name, "name", "", "display name, used as ticket type")
	command.Flags().StringVar(&flags.description, "description", "", "description")
	command.Flags().StringVar(&flags.price, "price", "", "unit price in major units, e.g. 60.00")
	command.Flags().StringVar(&flags.currency, "currency", "eur", "ISO currency code")
	command.Flags().StringVar(&flags.eventName, "event-name", "", "event name printed on tickets")
	command.Flags().StringVar(&flags.eventDate, "event-date", "", "event date, e.g. 2025-07-12 18:00:00.000Z")
	command.Flags().StringVar(&flags.priceID, "price-id", "", "payment processor price id")
	command.Flags().StringVar(&flags.productID, "product-id", "", "payment processor product id")
	command.Flags().BoolVar(&flags.inactive, "inactive", false, "hide the product from checkout")
	command.MarkFlagRequired("sku")
	command.MarkFlagRequired("name")
	command.MarkFlagRequired("price")

	return command
}

func newCatalogListCommand(app *pocketbase.PocketBase) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active products",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.RunAllMigrations(); err != nil {
				return err
			}

			s, err := openStore(app)
			if err != nil {
				return err
			}

			products, err := services.NewCatalogService(s, app.Logger()).List(cmd.Context())
			if err != nil {
				return err
			}

			for _, p := range products {
				cmd.Printf("%-12s %-24s %10s %s\n", p.SKU, p.Name, models.FormatMinor(p.UnitAmount), strings.ToUpper(p.Currency))
			}
			return nil
		},
	}
}
