package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/reservation"
	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/logger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/postgres"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

type reservationRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewReservationRepository(db *postgres.DB, log *logger.Logger) reservation.Repository {
	return &reservationRepository{db: db, logger: log}
}

func (r *reservationRepository) FindActiveHeld(ctx context.Context, identity, jobRef, actionCode string) (*reservation.Reservation, error) {
	q := r.db.Querier(ctx)
	row := q.QueryRowContext(ctx, `
		SELECT id, identity_id, action_code, cost, credit_class, status, job_ref,
		       created_at, expires_at, captured_at, released_at, meta
		FROM billing.reservations
		WHERE identity_id = $1 AND job_ref = $2 AND action_code = $3
		  AND status = $4 AND expires_at > now()`,
		identity, jobRef, actionCode, types.ReservationHeld,
	)
	res, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.Wrap(ierr.ErrNotFound, "RESERVATION_NOT_FOUND", "no active held reservation")
		}
		return nil, fmt.Errorf("failed to find active reservation: %w", err)
	}
	return res, nil
}

// LockHeldForClass is the second half of reserve's double lock: it locks
// every held, non-expired reservation for (identity, class) so a
// concurrent reserve can't admit on top of a sum this call already
// counted.
func (r *reservationRepository) LockHeldForClass(ctx context.Context, identity string, class string) ([]*reservation.Reservation, error) {
	q := r.db.Querier(ctx)
	rows, err := q.QueryContext(ctx, `
		SELECT id, identity_id, action_code, cost, credit_class, status, job_ref,
		       created_at, expires_at, captured_at, released_at, meta
		FROM billing.reservations
		WHERE identity_id = $1 AND credit_class = $2
		  AND status = $3 AND expires_at > now()
		FOR UPDATE`,
		identity, class, types.ReservationHeld,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to lock held reservations: %w", err)
	}
	defer rows.Close()

	var out []*reservation.Reservation
	for rows.Next() {
		res, err := scanReservationRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *reservationRepository) Create(ctx context.Context, in reservation.CreateInput) (*reservation.Reservation, error) {
	q := r.db.Querier(ctx)
	id := types.GenerateUUIDWithPrefix(types.UUIDPrefixReservation)

	row := q.QueryRowContext(ctx, `
		INSERT INTO billing.reservations
			(id, identity_id, action_code, cost, credit_class, status, job_ref, created_at, expires_at, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), $8, $9)
		RETURNING id, identity_id, action_code, cost, credit_class, status, job_ref,
		          created_at, expires_at, captured_at, released_at, meta`,
		id, in.Identity, in.ActionCode, in.Cost, in.Class, types.ReservationHeld, in.JobRef, in.ExpiresAt, in.Meta,
	)
	res, err := scanReservation(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}
	return res, nil
}

func (r *reservationRepository) LockByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	q := r.db.Querier(ctx)
	row := q.QueryRowContext(ctx, `
		SELECT id, identity_id, action_code, cost, credit_class, status, job_ref,
		       created_at, expires_at, captured_at, released_at, meta
		FROM billing.reservations WHERE id = $1 FOR UPDATE`, id,
	)
	res, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.Wrap(ierr.ErrNotFound, "RESERVATION_NOT_FOUND", "reservation not found: "+id)
		}
		return nil, fmt.Errorf("failed to lock reservation: %w", err)
	}
	return res, nil
}

func (r *reservationRepository) MarkFinalized(ctx context.Context, id string, capturedAt time.Time) error {
	q := r.db.Querier(ctx)
	_, err := q.ExecContext(ctx, `
		UPDATE billing.reservations SET status = $1, captured_at = $2 WHERE id = $3`,
		types.ReservationFinalized, capturedAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark reservation finalized: %w", err)
	}
	return nil
}

func (r *reservationRepository) MarkReleased(ctx context.Context, id string, releasedAt time.Time, reason string) error {
	q := r.db.Querier(ctx)
	_, err := q.ExecContext(ctx, `
		UPDATE billing.reservations
		SET status = $1, released_at = $2, meta = meta || jsonb_build_object('reason', $3::text)
		WHERE id = $4`,
		types.ReservationReleased, releasedAt, reason, id)
	if err != nil {
		return fmt.Errorf("failed to mark reservation released: %w", err)
	}
	return nil
}

func (r *reservationRepository) Reserved(ctx context.Context, identity string, class string) (int64, error) {
	q := r.db.Querier(ctx)
	var sum sql.NullInt64
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(cost), 0) FROM billing.reservations
		WHERE identity_id = $1 AND credit_class = $2 AND status = $3 AND expires_at > now()`,
		identity, class, types.ReservationHeld,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum reserved: %w", err)
	}
	return sum.Int64, nil
}

func (r *reservationRepository) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	q := r.db.Querier(ctx)
	result, err := q.ExecContext(ctx, `
		UPDATE billing.reservations
		SET status = $1, released_at = $2, meta = meta || jsonb_build_object('reason', 'expired'::text)
		WHERE status = $3 AND expires_at < $2`,
		types.ReservationReleased, now, types.ReservationHeld)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired reservations: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read sweep row count: %w", err)
	}
	return int(n), nil
}

func (r *reservationRepository) FindStaleHeld(ctx context.Context, cutoff time.Time, limit int) ([]*reservation.Reservation, error) {
	q := r.db.Querier(ctx)
	rows, err := q.QueryContext(ctx, `
		SELECT id, identity_id, action_code, cost, credit_class, status, job_ref,
		       created_at, expires_at, captured_at, released_at, meta
		FROM billing.reservations
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3`,
		types.ReservationHeld, cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale reservations: %w", err)
	}
	defer rows.Close()

	var out []*reservation.Reservation
	for rows.Next() {
		res, err := scanReservationRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stale reservation: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// FindFinalizedMissingLedger is the unbilled-work check this core can
// actually run: it has no owned jobs table to scan for terminal-success
// jobs with no reservation, so instead it looks for reservations this
// core itself finalized but never debited.
func (r *reservationRepository) FindFinalizedMissingLedger(ctx context.Context, limit int) ([]*reservation.Reservation, error) {
	q := r.db.Querier(ctx)
	rows, err := q.QueryContext(ctx, `
		SELECT r.id, r.identity_id, r.action_code, r.cost, r.credit_class, r.status, r.job_ref,
		       r.created_at, r.expires_at, r.captured_at, r.released_at, r.meta
		FROM billing.reservations r
		LEFT JOIN billing.ledger_entries l
		       ON l.ref_type = 'reservation' AND l.ref_id = r.id AND l.entry_type = 'reservation_finalize'
		WHERE r.status = $1 AND l.id IS NULL
		ORDER BY r.created_at ASC
		LIMIT $2`,
		types.ReservationFinalized, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find finalized reservations missing ledger: %w", err)
	}
	defer rows.Close()

	var out []*reservation.Reservation
	for rows.Next() {
		res, err := scanReservationRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*reservation.Reservation, error) {
	var res reservation.Reservation
	err := row.Scan(
		&res.ID, &res.Identity, &res.ActionCode, &res.Cost, &res.Class, &res.Status, &res.JobRef,
		&res.CreatedAt, &res.ExpiresAt, &res.CapturedAt, &res.ReleasedAt, &res.Meta,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func scanReservationRows(rows *sql.Rows) (*reservation.Reservation, error) {
	return scanReservation(rows)
}
