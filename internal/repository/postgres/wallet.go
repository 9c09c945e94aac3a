package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/wallet"
	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/logger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/postgres"
)

type walletRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewWalletRepository(db *postgres.DB, log *logger.Logger) wallet.Repository {
	return &walletRepository{db: db, logger: log}
}

func (r *walletRepository) EnsureExists(ctx context.Context, identityID string) (*wallet.Wallet, error) {
	q := r.db.Querier(ctx)

	_, err := q.ExecContext(ctx, `
		INSERT INTO billing.wallets (identity_id, balance_general, balance_video, updated_at)
		VALUES ($1, 0, 0, now())
		ON CONFLICT (identity_id) DO NOTHING`, identityID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure wallet exists: %w", err)
	}

	return r.Get(ctx, identityID)
}

func (r *walletRepository) Get(ctx context.Context, identityID string) (*wallet.Wallet, error) {
	q := r.db.Querier(ctx)

	var w wallet.Wallet
	err := q.QueryRowContext(ctx, `
		SELECT identity_id, balance_general, balance_video, updated_at
		FROM billing.wallets WHERE identity_id = $1`, identityID,
	).Scan(&w.IdentityID, &w.BalanceGeneral, &w.BalanceVideo, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.Wrap(ierr.ErrNotFound, "WALLET_NOT_FOUND", "wallet not found for identity "+identityID)
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &w, nil
}

// LockBalance locks the wallet row and returns the current balance for
// class without writing to it, so callers can serialise a read-then-decide
// step (reserve's double lock) under the same lock
// Append itself takes.
func (r *walletRepository) LockBalance(ctx context.Context, identityID string, class string) (int64, error) {
	q := r.db.Querier(ctx)

	var balance int64
	lockQuery := fmt.Sprintf(`SELECT balance_%s FROM billing.wallets WHERE identity_id = $1 FOR UPDATE`, class)
	if err := q.QueryRowContext(ctx, lockQuery, identityID).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ierr.Wrap(ierr.ErrNotFound, "WALLET_NOT_FOUND", "wallet not found for identity "+identityID)
		}
		return 0, fmt.Errorf("failed to lock wallet: %w", err)
	}
	return balance, nil
}

// Recompute is the canonical "ledger wins" repair: it
// locks the wallet row, reads the current cached balance, and overwrites
// it with ledgerSum if they differ.
func (r *walletRepository) Recompute(ctx context.Context, identityID string, class string, ledgerSum int64) (int64, bool, error) {
	q := r.db.Querier(ctx)

	var oldBalance int64
	lockQuery := fmt.Sprintf(`SELECT balance_%s FROM billing.wallets WHERE identity_id = $1 FOR UPDATE`, class)
	if err := q.QueryRowContext(ctx, lockQuery, identityID).Scan(&oldBalance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, ierr.Wrap(ierr.ErrNotFound, "WALLET_NOT_FOUND", "wallet not found for identity "+identityID)
		}
		return 0, false, fmt.Errorf("failed to lock wallet for recompute: %w", err)
	}

	if oldBalance == ledgerSum {
		return oldBalance, false, nil
	}

	updateQuery := fmt.Sprintf(`UPDATE billing.wallets SET balance_%s = $1, updated_at = now() WHERE identity_id = $2`, class)
	if _, err := q.ExecContext(ctx, updateQuery, ledgerSum, identityID); err != nil {
		return 0, false, fmt.Errorf("failed to recompute wallet balance: %w", err)
	}
	return oldBalance, true, nil
}

// ListMismatched unions the general and video columns against their
// ledger sums; balances are split by credit class, so the comparison
// runs once per class.
func (r *walletRepository) ListMismatched(ctx context.Context, limit int) ([]wallet.Mismatch, error) {
	q := r.db.Querier(ctx)
	rows, err := q.QueryContext(ctx, `
		SELECT identity_id, class, wallet_sum, ledger_sum FROM (
			SELECT w.identity_id, 'general' AS class, w.balance_general AS wallet_sum,
			       COALESCE(SUM(l.amount), 0) AS ledger_sum
			FROM billing.wallets w
			LEFT JOIN billing.ledger_entries l
			       ON l.identity_id = w.identity_id AND l.credit_class = 'general'
			GROUP BY w.identity_id, w.balance_general
			UNION ALL
			SELECT w.identity_id, 'video' AS class, w.balance_video AS wallet_sum,
			       COALESCE(SUM(l.amount), 0) AS ledger_sum
			FROM billing.wallets w
			LEFT JOIN billing.ledger_entries l
			       ON l.identity_id = w.identity_id AND l.credit_class = 'video'
			GROUP BY w.identity_id, w.balance_video
		) sub
		WHERE wallet_sum != ledger_sum
		LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list mismatched wallets: %w", err)
	}
	defer rows.Close()

	var out []wallet.Mismatch
	for rows.Next() {
		var m wallet.Mismatch
		if err := rows.Scan(&m.IdentityID, &m.Class, &m.WalletSum, &m.LedgerSum); err != nil {
			return nil, fmt.Errorf("failed to scan wallet mismatch: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
