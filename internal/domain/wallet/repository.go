package wallet

import "context"

// Repository is the wallet cache's storage contract. Ledger
// is the only writer to balance_general/balance_video in the steady
// state — this repository's mutators exist only for wallet creation and
// reconciliation repair, never for ordinary credit/debit flow.
type Repository interface {
	// EnsureExists inserts a zero-balance wallet row if one doesn't
	// already exist for identity, ON CONFLICT DO NOTHING.
	EnsureExists(ctx context.Context, identityID string) (*Wallet, error)

	Get(ctx context.Context, identityID string) (*Wallet, error)

	// LockBalance takes FOR UPDATE on the wallet row and returns the
	// current balance for class, for callers (reserve's step 3) that need
	// to serialise on the wallet without writing to it themselves.
	LockBalance(ctx context.Context, identityID string, class string) (int64, error)

	// Recompute locks the wallet row, overwrites balance_class with the
	// ledger sum, and reports whether a correction was made (for the
	// caller to decide whether to record a WalletRepair row).
	Recompute(ctx context.Context, identityID string, class string, ledgerSum int64) (oldBalance int64, changed bool, err error)

	// ListMismatched returns every (identity, class) pair whose cached
	// balance differs from Σ ledger_entries.amount for that class, bounded
	// by limit.
	ListMismatched(ctx context.Context, limit int) ([]Mismatch, error)
}
