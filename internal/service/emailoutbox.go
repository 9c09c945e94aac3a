package service

import (
	"context"
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/emailoutbox"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/email"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

// EmailOutboxService dispatches the durable outbound-email queue.
type EmailOutboxService interface {
	// DispatchBatch claims up to limit pending rows and attempts to send
	// each. Returns the number sent successfully.
	DispatchBatch(ctx context.Context, limit int) (int, error)
}

type emailOutboxService struct {
	ServiceParams
}

func NewEmailOutboxService(params ServiceParams) EmailOutboxService {
	return &emailOutboxService{ServiceParams: params}
}

// DispatchBatch claims a batch FOR UPDATE SKIP LOCKED and processes it to
// completion inside the same transaction — the repository's claim never
// flips status off `pending` by itself, so the row lock is what stops a
// second concurrent worker from claiming the same entries; releasing it
// before dispatch would defeat SKIP LOCKED entirely.
func (s *emailOutboxService) DispatchBatch(ctx context.Context, limit int) (int, error) {
	sent := 0
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		batch, err := s.EmailOutboxRepo.ClaimPendingBatch(ctx, limit)
		if err != nil {
			return err
		}
		for _, entry := range batch {
			if s.dispatchOne(ctx, entry) {
				sent++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return sent, nil
}

func (s *emailOutboxService) dispatchOne(ctx context.Context, entry *emailoutbox.Entry) bool {
	subject, body, err := s.Email.Render(entry.Template, entry.Payload)
	if err == nil {
		err = s.Sender.Send(ctx, entry.To, subject, body)
	}

	if err == nil {
		sentAt := time.Now().UTC()
		if markErr := s.EmailOutboxRepo.MarkSent(ctx, entry.ID, sentAt); markErr != nil {
			s.Logger.Errorw("failed to mark email sent", "outbox_id", entry.ID, "error", markErr)
			return false
		}
		if entry.Purchase != nil {
			if updErr := s.PurchaseRepo.UpdateEmailStatus(ctx, *entry.Purchase, types.EmailOutboxSent); updErr != nil {
				s.Logger.Errorw("failed to mirror email status onto purchase", "purchase_id", *entry.Purchase, "error", updErr)
			}
		}
		return true
	}

	s.Logger.Warnw("email dispatch failed", "outbox_id", entry.ID, "template", entry.Template, "error", err)

	failed, markErr := s.EmailOutboxRepo.MarkAttemptFailed(ctx, entry.ID, err.Error())
	if markErr != nil {
		s.Logger.Errorw("failed to record email attempt failure", "outbox_id", entry.ID, "error", markErr)
		return false
	}

	if entry.Purchase != nil && failed.Status == types.EmailOutboxFailed {
		if updErr := s.PurchaseRepo.UpdateEmailStatus(ctx, *entry.Purchase, types.EmailOutboxFailed); updErr != nil {
			s.Logger.Errorw("failed to mirror email status onto purchase", "purchase_id", *entry.Purchase, "error", updErr)
		}
	}

	// Recursion guard: only a non-admin
	// entry's terminal failure enqueues an admin_alert, and admin_alert
	// failures never enqueue further alerts.
	if failed.Status == types.EmailOutboxFailed && !entry.IsAdminAlert {
		s.enqueueFailureAlert(ctx, entry, err)
	}

	return false
}

func (s *emailOutboxService) enqueueFailureAlert(ctx context.Context, entry *emailoutbox.Entry, sendErr error) {
	_, enqueueErr := s.EmailOutboxRepo.Enqueue(ctx, emailoutbox.EnqueueInput{
		ID:           types.GenerateUUIDWithPrefix(types.UUIDPrefixEmailOutbox),
		To:           s.Config.Email.AdminAlertAddress,
		Template:     email.TemplateAdminAlert,
		Payload:      types.JSONMap{"outbox_id": entry.ID, "template": entry.Template, "error": sendErr.Error()},
		MaxAttempts:  3,
		IsAdminAlert: true,
	})
	if enqueueErr != nil {
		s.Logger.Errorw("failed to enqueue admin alert for outbox failure", "outbox_id", entry.ID, "error", enqueueErr)
	}
}
