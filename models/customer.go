package models

import "github.com/pocketbase/pocketbase/tools/types"

// Customer mirrors an identity from the external provider. UID is the
// provider's stable user key and the owner key on payments and tickets.
type Customer struct {
	ID      string         `db:"id" json:"id"`
	UID     string         `db:"uid" json:"uid"`
	Email   string         `db:"email" json:"email"`
	Created types.DateTime `db:"created" json:"created"`
	Updated types.DateTime `db:"updated" json:"updated"`
}
