// Package ledger models the immutable append-only record of credit
// deltas. It owns no SQL — that lives in internal/repository/postgres —
// only the entity shape and the rules a repository implementation must
// uphold.
package ledger

import (
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

// Entry is one immutable ledger row. Never mutated after insert.
type Entry struct {
	ID         string                 `db:"id"`
	Identity   string                 `db:"identity_id"`
	EntryType  types.LedgerEntryType  `db:"entry_type"`
	Amount     int64                  `db:"amount"`
	Class      types.CreditClass      `db:"credit_class"`
	RefType    string                 `db:"ref_type"`
	RefID      string                 `db:"ref_id"`
	Meta       types.JSONMap          `db:"meta"`
	CreatedAt  time.Time              `db:"created_at"`
}

// AppendInput is the argument set for Repository.Append.
type AppendInput struct {
	Identity  string
	EntryType types.LedgerEntryType
	Delta     int64
	Class     types.CreditClass
	RefType   string
	RefID     string
	Meta      types.JSONMap
}
