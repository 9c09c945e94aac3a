package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/wallet"
	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
)

// InMemoryWalletStore mirrors walletRepository (internal/repository/
// postgres/wallet.go). The mutex stands in for the row-level FOR UPDATE
// lock every mutator in the real repository takes.
type InMemoryWalletStore struct {
	mu      sync.Mutex
	wallets map[string]*wallet.Wallet

	// ledger is wired in by the test suite after both stores are built,
	// since ListMismatched needs to compare against ledger sums the way
	// the real repository's UNION query does.
	ledger *InMemoryLedgerStore
}

func NewInMemoryWalletStore() *InMemoryWalletStore {
	return &InMemoryWalletStore{wallets: make(map[string]*wallet.Wallet)}
}

// SetLedger wires the ledger store ListMismatched reads from.
func (s *InMemoryWalletStore) SetLedger(l *InMemoryLedgerStore) {
	s.ledger = l
}

func (s *InMemoryWalletStore) EnsureExists(ctx context.Context, identityID string) (*wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.wallets[identityID]; ok {
		cp := *w
		return &cp, nil
	}
	w := &wallet.Wallet{IdentityID: identityID, UpdatedAt: time.Now().UTC()}
	s.wallets[identityID] = w
	cp := *w
	return &cp, nil
}

func (s *InMemoryWalletStore) Get(ctx context.Context, identityID string) (*wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[identityID]
	if !ok {
		return nil, ierr.Wrap(ierr.ErrNotFound, "WALLET_NOT_FOUND", "wallet not found for identity "+identityID)
	}
	cp := *w
	return &cp, nil
}

// WithWalletLock is InMemoryLedgerStore.Append's stand-in for the real
// repository's `SELECT balance_%s ... FOR UPDATE`: it is the single lock
// both Append and Recompute/LockBalance serialise on for a given identity,
// mirroring that in Postgres they contend for the same physical row.
func (s *InMemoryWalletStore) WithWalletLock(identityID string, fn func(w *wallet.Wallet) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[identityID]
	if !ok {
		return ierr.Wrap(ierr.ErrNotFound, "WALLET_NOT_FOUND", "wallet not found for identity "+identityID)
	}
	return fn(w)
}

func (s *InMemoryWalletStore) LockBalance(ctx context.Context, identityID string, class string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[identityID]
	if !ok {
		return 0, ierr.Wrap(ierr.ErrNotFound, "WALLET_NOT_FOUND", "wallet not found for identity "+identityID)
	}
	if class == "video" {
		return w.BalanceVideo, nil
	}
	return w.BalanceGeneral, nil
}

func (s *InMemoryWalletStore) Recompute(ctx context.Context, identityID string, class string, ledgerSum int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[identityID]
	if !ok {
		return 0, false, ierr.Wrap(ierr.ErrNotFound, "WALLET_NOT_FOUND", "wallet not found for identity "+identityID)
	}

	var old int64
	if class == "video" {
		old = w.BalanceVideo
	} else {
		old = w.BalanceGeneral
	}
	if old == ledgerSum {
		return old, false, nil
	}

	if class == "video" {
		w.BalanceVideo = ledgerSum
	} else {
		w.BalanceGeneral = ledgerSum
	}
	w.UpdatedAt = time.Now().UTC()
	return old, true, nil
}

func (s *InMemoryWalletStore) ListMismatched(ctx context.Context, limit int) ([]wallet.Mismatch, error) {
	// Snapshot under the wallet lock, then release it before calling into
	// the ledger store — Append takes ledger.mu then wallet.mu (via
	// WithWalletLock), so holding wallet.mu while acquiring ledger.mu here
	// would invert that order and risk deadlocking against a concurrent
	// Append.
	s.mu.Lock()
	type bal struct {
		general, video int64
	}
	snapshot := make(map[string]bal, len(s.wallets))
	for id, w := range s.wallets {
		snapshot[id] = bal{general: w.BalanceGeneral, video: w.BalanceVideo}
	}
	s.mu.Unlock()

	var out []wallet.Mismatch
	for id, b := range snapshot {
		for _, class := range []string{"general", "video"} {
			walletSum := b.general
			if class == "video" {
				walletSum = b.video
			}
			ledgerSum, _ := s.ledger.Sum(ctx, id, class)
			if walletSum != ledgerSum {
				out = append(out, wallet.Mismatch{IdentityID: id, Class: class, WalletSum: walletSum, LedgerSum: ledgerSum})
				if len(out) >= limit {
					return out, nil
				}
			}
		}
	}
	return out, nil
}

func (s *InMemoryWalletStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets = make(map[string]*wallet.Wallet)
}
