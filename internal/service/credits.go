package service

import (
	"context"
	"fmt"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/ledger"
	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/pricing"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

// ChargeResult is charge's return shape.
type ChargeResult struct {
	NewBalance int64
	Charged    int64
	Idempotent bool
}

// ChargeService debits credits in a single step, for actions that have no
// reserve/finalize hold phase.
type ChargeService interface {
	Charge(ctx context.Context, identity, actionKey, jobID, upstreamID string, meta types.JSONMap) (*ChargeResult, error)
}

type chargeService struct {
	ServiceParams
}

func NewChargeService(params ServiceParams) ChargeService {
	return &chargeService{ServiceParams: params}
}

func chargeRefID(identity, canonicalAction, jobID string) string {
	return fmt.Sprintf("%s:%s:%s", identity, canonicalAction, jobID)
}

// Charge resolves the action, ensures the wallet
// row exists, and append a single debit under the charge ref group's
// partial unique index keyed on (identity, action, job).
func (s *chargeService) Charge(ctx context.Context, identity, actionKey, jobID, upstreamID string, meta types.JSONMap) (*ChargeResult, error) {
	canonical, cost, class, err := pricing.Resolve(actionKey)
	if err != nil {
		return nil, err
	}

	refID := chargeRefID(identity, canonical, jobID)

	var result *ChargeResult
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if _, findErr := s.WalletRepo.EnsureExists(ctx, identity); findErr != nil {
			return findErr
		}

		entryMeta := types.JSONMap{"job_id": jobID}
		if upstreamID != "" {
			entryMeta["upstream_id"] = upstreamID
		}
		for k, v := range meta {
			entryMeta[k] = v
		}

		_, appendErr := s.LedgerRepo.Append(ctx, ledger.AppendInput{
			Identity:  identity,
			EntryType: types.LedgerEntryCharge,
			Delta:     -cost,
			Class:     class,
			RefType:   "charge",
			RefID:     refID,
			Meta:      entryMeta,
		})
		if ierr.IsDuplicateRef(appendErr) {
			existing, findErr := s.LedgerRepo.FindByRef(ctx, "charge", refID, string(types.LedgerEntryCharge))
			if findErr != nil {
				return findErr
			}
			w, getErr := s.WalletRepo.Get(ctx, identity)
			if getErr != nil {
				return getErr
			}
			result = &ChargeResult{NewBalance: balanceForClass(w, class), Charged: -existing.Amount, Idempotent: true}
			return nil
		}
		if appendErr != nil {
			return appendErr
		}

		w, getErr := s.WalletRepo.Get(ctx, identity)
		if getErr != nil {
			return getErr
		}
		result = &ChargeResult{NewBalance: balanceForClass(w, class), Charged: cost}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
