package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/reconciliation"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

// InMemoryReconciliationStore mirrors reconciliationRepository (internal/
// repository/postgres/reconciliation.go), including RecordFix's ON
// CONFLICT DO NOTHING semantics against the (provider, payment_id,
// fix_type) unique index.
type InMemoryReconciliationStore struct {
	mu     sync.Mutex
	runs   map[string]*reconciliation.Run
	fixes  map[string]*reconciliation.Fix // keyed by provider|payment_id|fix_type
	byID   map[string]*reconciliation.Fix
	repairs []*reconciliation.WalletRepair
}

func NewInMemoryReconciliationStore() *InMemoryReconciliationStore {
	return &InMemoryReconciliationStore{
		runs:  make(map[string]*reconciliation.Run),
		fixes: make(map[string]*reconciliation.Fix),
		byID:  make(map[string]*reconciliation.Fix),
	}
}

func (s *InMemoryReconciliationStore) CreateRun(ctx context.Context, mode string, startedAt time.Time) (*reconciliation.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := &reconciliation.Run{
		ID:        types.GenerateUUIDWithPrefix(types.UUIDPrefixReconRun),
		Mode:      mode,
		StartedAt: startedAt,
	}
	s.runs[run.ID] = run
	return run, nil
}

func (s *InMemoryReconciliationStore) CompleteRun(ctx context.Context, runID string, finishedAt time.Time, checksRun, fixesApplied, critical int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("reconciliation run not found: %s", runID)
	}
	run.FinishedAt = &finishedAt
	run.ChecksRun = checksRun
	run.FixesApplied = fixesApplied
	run.Critical = critical
	return nil
}

func fixKey(provider, paymentID, fixType string) string {
	return provider + "|" + paymentID + "|" + fixType
}

func (s *InMemoryReconciliationStore) RecordFix(ctx context.Context, in reconciliation.FixInput) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fixKey(in.Provider, in.PaymentID, in.FixType)
	if _, exists := s.fixes[key]; exists {
		return false, nil
	}

	id := in.ID
	if id == "" {
		id = types.GenerateUUIDWithPrefix(types.UUIDPrefixReconFix)
	}
	fix := &reconciliation.Fix{
		ID:        id,
		RunID:     in.RunID,
		FixType:   in.FixType,
		Provider:  in.Provider,
		PaymentID: in.PaymentID,
		Identity:  in.Identity,
		Detail:    in.Detail,
		Applied:   in.Applied,
		CreatedAt: time.Now().UTC(),
	}
	s.fixes[key] = fix
	s.byID[fix.ID] = fix
	return true, nil
}

func (s *InMemoryReconciliationStore) RecordWalletRepair(ctx context.Context, in reconciliation.WalletRepairInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := in.ID
	if id == "" {
		id = types.GenerateUUIDWithPrefix(types.UUIDPrefixWalletRepair)
	}
	s.repairs = append(s.repairs, &reconciliation.WalletRepair{
		ID:         id,
		Identity:   in.Identity,
		Class:      in.Class,
		OldBalance: in.OldBalance,
		NewBalance: in.NewBalance,
		Drift:      in.NewBalance - in.OldBalance,
		Reason:     in.Reason,
		Trigger:    in.Trigger,
		CreatedAt:  time.Now().UTC(),
	})
	return nil
}

func (s *InMemoryReconciliationStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = make(map[string]*reconciliation.Run)
	s.fixes = make(map[string]*reconciliation.Fix)
	s.byID = make(map[string]*reconciliation.Fix)
	s.repairs = nil
}
