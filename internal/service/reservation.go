package service

import (
	"context"
	"time"

	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/ledger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/reservation"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/pricing"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

// ReserveResult is reserve's return shape.
type ReserveResult struct {
	Reservation *reservation.Reservation
	Balance     int64
	Reserved    int64
	Available   int64
	Replayed    bool
}

// FinalizeResult is finalize's return shape.
type FinalizeResult struct {
	Reservation         *reservation.Reservation
	WasAlreadyFinalized bool
	WasAlreadyReleased  bool
	NotFound            bool
	NewBalance          int64
}

// ReleaseResult is release's return shape.
type ReleaseResult struct {
	Reservation         *reservation.Reservation
	WasAlreadyReleased  bool
	WasAlreadyFinalized bool
	NotFound            bool
}

// ReservationService holds credits against an in-flight job without
// debiting the ledger until the job completes.
type ReservationService interface {
	Reserve(ctx context.Context, identity, actionKey, jobRef string, meta types.JSONMap) (*ReserveResult, error)
	Finalize(ctx context.Context, reservationID string) (*FinalizeResult, error)
	Release(ctx context.Context, reservationID, reason string) (*ReleaseResult, error)
	SweepExpired(ctx context.Context) (int, error)
}

type reservationService struct {
	ServiceParams
}

func NewReservationService(params ServiceParams) ReservationService {
	return &reservationService{ServiceParams: params}
}

// Reserve places a hold in a single transaction: idempotent replay
// check, wallet and held-set locks, available-balance check, job
// placeholder, then the hold row.
func (s *reservationService) Reserve(ctx context.Context, identity, actionKey, jobRef string, meta types.JSONMap) (*ReserveResult, error) {
	canonical, cost, class, err := pricing.Resolve(actionKey)
	if err != nil {
		return nil, err
	}

	var result *ReserveResult
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if existing, findErr := s.ReservationRepo.FindActiveHeld(ctx, identity, jobRef, canonical); findErr == nil {
			balance, reserved, available, balErr := s.balanceSnapshot(ctx, identity, class)
			if balErr != nil {
				return balErr
			}
			result = &ReserveResult{Reservation: existing, Balance: balance, Reserved: reserved, Available: available, Replayed: true}
			return nil
		} else if !ierr.IsNotFound(findErr) {
			return findErr
		}

		balance, lockErr := s.WalletRepo.LockBalance(ctx, identity, string(class))
		if lockErr != nil {
			return lockErr
		}

		held, lockErr := s.ReservationRepo.LockHeldForClass(ctx, identity, string(class))
		if lockErr != nil {
			return lockErr
		}
		var reserved int64
		for _, h := range held {
			reserved += h.Cost
		}

		available := balance - reserved
		if available < cost {
			return ierr.NewError("insufficient credits").
				WithHintf("insufficient %s credits", class).
				WithReportableDetails(map[string]any{
					"required":  cost,
					"balance":   balance,
					"reserved":  reserved,
					"available": available,
					"class":     string(class),
				}).
				Mark(ierr.ErrInsufficientFunds)
		}

		if jobErr := s.Jobs.EnsurePlaceholder(ctx, jobRef); jobErr != nil {
			return jobErr
		}

		expiresAt := time.Now().UTC().Add(s.Config.Reservation.HoldTTL)
		created, createErr := s.ReservationRepo.Create(ctx, reservation.CreateInput{
			Identity:   identity,
			ActionCode: canonical,
			Cost:       cost,
			Class:      class,
			JobRef:     jobRef,
			ExpiresAt:  expiresAt,
			Meta:       meta,
		})
		if createErr != nil {
			return createErr
		}

		// Linking the job row's reservation_id back to the new
		// reservation is a write to the generation
		// subsystem's own job table, which this core has no interface
		// method for — jobs.Provider only reads status and ensures the
		// placeholder. The generation subsystem is expected to read the
		// reservation id back off this result itself.
		result = &ReserveResult{
			Reservation: created,
			Balance:     balance,
			Reserved:    reserved + cost,
			Available:   available - cost,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *reservationService) balanceSnapshot(ctx context.Context, identity string, class types.CreditClass) (balance, reserved, available int64, err error) {
	w, err := s.WalletRepo.EnsureExists(ctx, identity)
	if err != nil {
		return 0, 0, 0, err
	}
	balance = balanceForClass(w, class)
	reserved, err = s.ReservationRepo.Reserved(ctx, identity, string(class))
	if err != nil {
		return 0, 0, 0, err
	}
	return balance, reserved, balance - reserved, nil
}

// Finalize converts a held reservation into a ledger debit.
func (s *reservationService) Finalize(ctx context.Context, reservationID string) (*FinalizeResult, error) {
	var result *FinalizeResult
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		r, lockErr := s.ReservationRepo.LockByID(ctx, reservationID)
		if ierr.IsNotFound(lockErr) {
			result = &FinalizeResult{NotFound: true}
			return nil
		}
		if lockErr != nil {
			return lockErr
		}

		switch r.Status {
		case types.ReservationFinalized:
			result = &FinalizeResult{Reservation: r, WasAlreadyFinalized: true}
			return nil
		case types.ReservationReleased:
			result = &FinalizeResult{Reservation: r, WasAlreadyReleased: true}
			return nil
		}

		capturedAt := time.Now().UTC()
		if markErr := s.ReservationRepo.MarkFinalized(ctx, r.ID, capturedAt); markErr != nil {
			return markErr
		}
		r.Status = types.ReservationFinalized
		r.CapturedAt = &capturedAt

		_, appendErr := s.LedgerRepo.Append(ctx, ledger.AppendInput{
			Identity:  r.Identity,
			EntryType: types.LedgerEntryReservationFinalize,
			Delta:     -r.Cost,
			Class:     r.Class,
			RefType:   "reservation",
			RefID:     r.ID,
		})
		if ierr.IsDuplicateRef(appendErr) {
			result = &FinalizeResult{Reservation: r, WasAlreadyFinalized: true}
			return nil
		}
		if appendErr != nil {
			return appendErr
		}

		w, getErr := s.WalletRepo.Get(ctx, r.Identity)
		if getErr != nil {
			return getErr
		}
		result = &FinalizeResult{Reservation: r, NewBalance: balanceForClass(w, r.Class)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Release discards a held reservation without touching the ledger.
func (s *reservationService) Release(ctx context.Context, reservationID, reason string) (*ReleaseResult, error) {
	var result *ReleaseResult
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		r, lockErr := s.ReservationRepo.LockByID(ctx, reservationID)
		if ierr.IsNotFound(lockErr) {
			result = &ReleaseResult{NotFound: true}
			return nil
		}
		if lockErr != nil {
			return lockErr
		}

		switch r.Status {
		case types.ReservationReleased:
			result = &ReleaseResult{Reservation: r, WasAlreadyReleased: true}
			return nil
		case types.ReservationFinalized:
			result = &ReleaseResult{Reservation: r, WasAlreadyFinalized: true}
			return nil
		}

		releasedAt := time.Now().UTC()
		if markErr := s.ReservationRepo.MarkReleased(ctx, r.ID, releasedAt, reason); markErr != nil {
			return markErr
		}
		r.Status = types.ReservationReleased
		r.ReleasedAt = &releasedAt

		result = &ReleaseResult{Reservation: r}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SweepExpired releases every held reservation past its expiry. Safe
// to call concurrently: each row transition is idempotent.
func (s *reservationService) SweepExpired(ctx context.Context) (int, error) {
	return s.ReservationRepo.SweepExpired(ctx, time.Now().UTC())
}
