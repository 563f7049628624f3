package models

import (
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"
)

// minorExponent is the number of decimals between major and minor units.
// All supported currencies (eur, usd) use cents.
const minorExponent = 2

type Product struct {
	ID              string         `db:"id" json:"id"`
	SKU             string         `db:"sku" json:"sku"`
	Name            string         `db:"name" json:"name"`
	Description     string         `db:"description" json:"description"`
	EventName       string         `db:"event_name" json:"event_name"`
	EventDate       types.DateTime `db:"event_date" json:"event_date"`
	UnitAmount      int64          `db:"unit_amount" json:"unit_amount"`
	Currency        string         `db:"currency" json:"currency"`
	ExternalPriceID string         `db:"external_price_id" json:"-"`
	ExternalID      string         `db:"external_product_id" json:"-"`
	Active          bool           `db:"active" json:"active"`
	Created         types.DateTime `db:"created" json:"created"`
	Updated         types.DateTime `db:"updated" json:"updated"`
}

// FormatMinor renders an amount in minor units as a fixed two-decimal string.
func FormatMinor(amount int64) string {
	return decimal.New(amount, -minorExponent).StringFixed(minorExponent)
}

// ParseMajor converts a user supplied major-unit price ("60.00") to minor units.
func ParseMajor(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.Shift(minorExponent).Round(0).IntPart(), nil
}
