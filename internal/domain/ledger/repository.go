package ledger

import "context"

// Repository is the ledger's contract to the rest of the core.
// Both operations run inside whatever transaction is already on ctx —
// Append takes the wallet row lock itself via the underlying SQL, callers
// never lock it separately.
type Repository interface {
	// Append takes a row lock on the matching wallet, inserts the ledger
	// row, updates the wallet's balance for in.Class, and returns the new
	// entry. Returns an insufficient-funds error if the resulting balance
	// would go negative for an entry type outside the allow-negative set.
	// Returns a duplicate-ref error (caller must treat as already-applied)
	// when the (ref_type, ref_id) partial unique index rejects the insert.
	Append(ctx context.Context, in AppendInput) (*Entry, error)

	// Sum returns Σ amount for (identity, class). Unlocked; used only by
	// repair and verification paths, never by mutators.
	Sum(ctx context.Context, identity string, class string) (int64, error)

	// FindByRef looks up an existing entry by (ref_type, ref_id) within an
	// entry-type group, used to recover the prior result on a duplicate-ref
	// conflict and by reconciliation to check whether a grant/revoke/
	// finalize already happened.
	FindByRef(ctx context.Context, refType, refID string, entryTypes ...string) (*Entry, error)
}
