package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/ledger"
	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/logger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/postgres"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
	"github.com/lib/pq"
)

type ledgerRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewLedgerRepository(db *postgres.DB, log *logger.Logger) ledger.Repository {
	return &ledgerRepository{db: db, logger: log}
}

// Append is the single idempotency pivot for the whole system:
// lock the wallet row, check balance, insert the ledger row under the
// entry-type's partial unique index, and update the cached balance in the
// same transaction.
func (r *ledgerRepository) Append(ctx context.Context, in ledger.AppendInput) (*ledger.Entry, error) {
	q := r.db.Querier(ctx)

	var currentBalance int64
	lockQuery := fmt.Sprintf(`
		SELECT balance_%s FROM billing.wallets WHERE identity_id = $1 FOR UPDATE`, in.Class)
	if err := q.QueryRowContext(ctx, lockQuery, in.Identity).Scan(&currentBalance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.Wrap(ierr.ErrNotFound, "WALLET_NOT_FOUND", "wallet not found for identity "+in.Identity)
		}
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}

	resultingBalance := currentBalance + in.Delta
	walletBalance := resultingBalance
	if in.EntryType.FloorsWalletAtZero() && walletBalance < 0 {
		// Ledger keeps the full, unclamped delta — the wallet cache
		// floors at zero so a revocation never claws back more than the
		// identity still holds. The gap
		// between the ledger sum and the floored wallet is exactly the
		// shortfall reconciliation's wallet-vs-ledger check lists.
		walletBalance = 0
	} else if resultingBalance < 0 && !in.EntryType.AllowsNegativeBalance() {
		return nil, ierr.NewError("insufficient credits").
			WithHintf("insufficient %s credits", in.Class).
			WithReportableDetails(map[string]any{
				"required": -in.Delta,
				"balance":  currentBalance,
				"class":    string(in.Class),
			}).
			Mark(ierr.ErrInsufficientFunds)
	}

	id := types.GenerateUUIDWithPrefix(types.UUIDPrefixLedgerEntry)

	insertQuery := `
		INSERT INTO billing.ledger_entries
			(id, identity_id, entry_type, amount, credit_class, ref_type, ref_id, meta, created_at)
		VALUES
			(:id, :identity_id, :entry_type, :amount, :credit_class, :ref_type, :ref_id, :meta, now())
		RETURNING *`

	params := map[string]interface{}{
		"id":           id,
		"identity_id":  in.Identity,
		"entry_type":   in.EntryType,
		"amount":       in.Delta,
		"credit_class": in.Class,
		"ref_type":     in.RefType,
		"ref_id":       in.RefID,
		"meta":         in.Meta,
	}

	rows, err := r.db.NamedQueryContext(ctx, insertQuery, params)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ierr.WithError(err).
				WithMessage("duplicate ledger ref").
				Mark(ierr.ErrDuplicateRef)
		}
		return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	defer rows.Close()

	var entry ledger.Entry
	if !rows.Next() {
		return nil, fmt.Errorf("insert returned no row")
	}
	if err := rows.StructScan(&entry); err != nil {
		return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
	}
	rows.Close()

	updateQuery := fmt.Sprintf(`
		UPDATE billing.wallets SET balance_%s = $1, updated_at = now() WHERE identity_id = $2`, in.Class)
	if _, err := q.ExecContext(ctx, updateQuery, walletBalance, in.Identity); err != nil {
		return nil, fmt.Errorf("failed to update wallet balance: %w", err)
	}

	return &entry, nil
}

func (r *ledgerRepository) Sum(ctx context.Context, identity string, class string) (int64, error) {
	q := r.db.Querier(ctx)
	var sum sql.NullInt64
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM billing.ledger_entries WHERE identity_id = $1 AND credit_class = $2`,
		identity, class,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	return sum.Int64, nil
}

func (r *ledgerRepository) FindByRef(ctx context.Context, refType, refID string, entryTypes ...string) (*ledger.Entry, error) {
	query := `
		SELECT * FROM billing.ledger_entries
		WHERE ref_type = :ref_type AND ref_id = :ref_id AND entry_type = ANY(:entry_types)
		LIMIT 1`
	params := map[string]interface{}{
		"ref_type":    refType,
		"ref_id":      refID,
		"entry_types": pq.Array(entryTypes),
	}
	rows, err := r.db.NamedQueryContext(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entry by ref: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ierr.Wrap(ierr.ErrNotFound, "LEDGER_ENTRY_NOT_FOUND", "no ledger entry for ref")
	}
	var entry ledger.Entry
	if err := rows.StructScan(&entry); err != nil {
		return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
	}
	return &entry, nil
}
