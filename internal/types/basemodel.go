package types

import "time"

// BaseModel carries the created_at/updated_at audit column pair. Not every
// billing table has both (ledger_entries has no updated_at, wallets no
// created_at).
// Any change here must be mirrored in the migrations under migrations/.
type BaseModel struct {
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewBaseModel stamps a fresh BaseModel at the current time.
func NewBaseModel(now time.Time) BaseModel {
	return BaseModel{CreatedAt: now, UpdatedAt: now}
}
