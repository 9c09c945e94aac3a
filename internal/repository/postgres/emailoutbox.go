package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/emailoutbox"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/logger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/postgres"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

type emailOutboxRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewEmailOutboxRepository(db *postgres.DB, log *logger.Logger) emailoutbox.Repository {
	return &emailOutboxRepository{db: db, logger: log}
}

func (r *emailOutboxRepository) Enqueue(ctx context.Context, in emailoutbox.EnqueueInput) (*emailoutbox.Entry, error) {
	q := r.db.Querier(ctx)
	id := in.ID
	if id == "" {
		id = types.GenerateUUIDWithPrefix(types.UUIDPrefixEmailOutbox)
	}
	maxAttempts := in.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 5
	}

	row := q.QueryRowContext(ctx, `
		INSERT INTO billing.email_outbox
			(id, to_address, template, payload, status, attempts, max_attempts, identity_id, purchase_id, is_admin_alert, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $9, now())
		RETURNING id, to_address, template, payload, status, attempts, max_attempts, last_error,
		          identity_id, purchase_id, is_admin_alert, created_at, sent_at`,
		id, in.To, in.Template, in.Payload, types.EmailOutboxPending, maxAttempts, in.Identity, in.Purchase, in.IsAdminAlert,
	)
	return scanOutboxEntry(row)
}

func (r *emailOutboxRepository) ClaimPendingBatch(ctx context.Context, limit int) ([]*emailoutbox.Entry, error) {
	q := r.db.Querier(ctx)
	rows, err := q.QueryContext(ctx, `
		SELECT id, to_address, template, payload, status, attempts, max_attempts, last_error,
		       identity_id, purchase_id, is_admin_alert, created_at, sent_at
		FROM billing.email_outbox
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`,
		types.EmailOutboxPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending outbox batch: %w", err)
	}
	defer rows.Close()

	var out []*emailoutbox.Entry
	for rows.Next() {
		e, err := scanOutboxEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *emailOutboxRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	q := r.db.Querier(ctx)
	_, err := q.ExecContext(ctx, `UPDATE billing.email_outbox SET status = $1, sent_at = $2 WHERE id = $3`,
		types.EmailOutboxSent, sentAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox entry sent: %w", err)
	}
	return nil
}

func (r *emailOutboxRepository) MarkAttemptFailed(ctx context.Context, id string, lastErr string) (*emailoutbox.Entry, error) {
	q := r.db.Querier(ctx)
	row := q.QueryRowContext(ctx, `
		UPDATE billing.email_outbox
		SET attempts = attempts + 1,
		    last_error = $1,
		    status = CASE WHEN attempts + 1 >= max_attempts THEN $2 ELSE status END
		WHERE id = $3
		RETURNING id, to_address, template, payload, status, attempts, max_attempts, last_error,
		          identity_id, purchase_id, is_admin_alert, created_at, sent_at`,
		lastErr, types.EmailOutboxFailed, id,
	)
	return scanOutboxEntry(row)
}

func scanOutboxEntry(row rowScanner) (*emailoutbox.Entry, error) {
	var e emailoutbox.Entry
	err := row.Scan(
		&e.ID, &e.To, &e.Template, &e.Payload, &e.Status, &e.Attempts, &e.MaxAttempts, &e.LastError,
		&e.Identity, &e.Purchase, &e.IsAdminAlert, &e.CreatedAt, &e.SentAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
