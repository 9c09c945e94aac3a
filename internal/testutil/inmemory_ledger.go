package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/ledger"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/wallet"
	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

// InMemoryLedgerStore mirrors ledgerRepository's balance-lock-and-append
// logic (internal/repository/postgres/ledger.go) without SQL: a mutex
// stands in for the row lock, and a (ref_type, ref_id, ref_group) map
// stands in for the partial unique index.
type InMemoryLedgerStore struct {
	mu      sync.Mutex
	entries map[string]*ledger.Entry
	byRef   map[string]*ledger.Entry // key: refType|refID|refGroup

	wallets *InMemoryWalletStore
}

func NewInMemoryLedgerStore(wallets *InMemoryWalletStore) *InMemoryLedgerStore {
	return &InMemoryLedgerStore{
		entries: make(map[string]*ledger.Entry),
		byRef:   make(map[string]*ledger.Entry),
		wallets: wallets,
	}
}

func refKey(refType, refID string, group types.RefGroup) string {
	return refType + "|" + refID + "|" + string(group)
}

func (s *InMemoryLedgerStore) Append(ctx context.Context, in ledger.AppendInput) (*ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group := in.EntryType.RefGroup()
	if group != types.RefGroupUngrouped {
		key := refKey(in.RefType, in.RefID, group)
		if _, exists := s.byRef[key]; exists {
			return nil, ierr.WithError(fmt.Errorf("duplicate ledger ref")).
				WithMessage("duplicate ledger ref").
				Mark(ierr.ErrDuplicateRef)
		}
	}

	var entry *ledger.Entry
	err := s.wallets.WithWalletLock(in.Identity, func(w *wallet.Wallet) error {
		current := w.BalanceGeneral
		if in.Class == types.CreditClassVideo {
			current = w.BalanceVideo
		}

		resulting := current + in.Delta
		walletBalance := resulting
		if in.EntryType.FloorsWalletAtZero() && walletBalance < 0 {
			walletBalance = 0
		} else if resulting < 0 && !in.EntryType.AllowsNegativeBalance() {
			return ierr.NewError("insufficient credits").
				WithHintf("insufficient %s credits", in.Class).
				WithReportableDetails(map[string]any{
					"required": -in.Delta,
					"balance":  current,
					"class":    string(in.Class),
				}).
				Mark(ierr.ErrInsufficientFunds)
		}

		entry = &ledger.Entry{
			ID:        types.GenerateUUIDWithPrefix(types.UUIDPrefixLedgerEntry),
			Identity:  in.Identity,
			EntryType: in.EntryType,
			Amount:    in.Delta,
			Class:     in.Class,
			RefType:   in.RefType,
			RefID:     in.RefID,
			Meta:      in.Meta,
		}

		if in.Class == types.CreditClassVideo {
			w.BalanceVideo = walletBalance
		} else {
			w.BalanceGeneral = walletBalance
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.entries[entry.ID] = entry
	if group != types.RefGroupUngrouped {
		s.byRef[refKey(in.RefType, in.RefID, group)] = entry
	}
	return entry, nil
}

func (s *InMemoryLedgerStore) Sum(ctx context.Context, identity string, class string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum int64
	for _, e := range s.entries {
		if e.Identity == identity && string(e.Class) == class {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (s *InMemoryLedgerStore) FindByRef(ctx context.Context, refType, refID string, entryTypes ...string) (*ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.RefType != refType || e.RefID != refID {
			continue
		}
		for _, t := range entryTypes {
			if string(e.EntryType) == t {
				return e, nil
			}
		}
	}
	return nil, ierr.Wrap(ierr.ErrNotFound, "LEDGER_ENTRY_NOT_FOUND", "no ledger entry for ref")
}

func (s *InMemoryLedgerStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*ledger.Entry)
	s.byRef = make(map[string]*ledger.Entry)
}
