package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/purchase"
	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

// InMemoryPurchaseStore mirrors purchaseRepository (internal/repository/
// postgres/purchase.go).
type InMemoryPurchaseStore struct {
	mu        sync.Mutex
	purchases map[string]*purchase.Purchase
	byPayment map[string]string // provider|provider_payment_id -> id

	ledger *InMemoryLedgerStore
}

func NewInMemoryPurchaseStore() *InMemoryPurchaseStore {
	return &InMemoryPurchaseStore{
		purchases: make(map[string]*purchase.Purchase),
		byPayment: make(map[string]string),
	}
}

func (s *InMemoryPurchaseStore) SetLedger(l *InMemoryLedgerStore) {
	s.ledger = l
}

func paymentKey(provider, providerPaymentID string) string {
	return provider + "|" + providerPaymentID
}

func (s *InMemoryPurchaseStore) Create(ctx context.Context, in purchase.CreateInput) (*purchase.Purchase, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := paymentKey(in.Provider, in.ProviderPaymentID)
	if id, exists := s.byPayment[key]; exists {
		return s.purchases[id], false, nil
	}

	p := &purchase.Purchase{
		ID:                in.ID,
		Identity:          in.Identity,
		PlanCode:          in.PlanCode,
		Provider:          in.Provider,
		ProviderPaymentID: in.ProviderPaymentID,
		AmountMoney:       in.AmountMoney,
		Currency:          in.Currency,
		CreditsGranted:    in.CreditsGranted,
		CreditClass:       in.CreditClass,
		Status:            types.PurchaseStatusCompleted,
		EmailStatus:       types.EmailOutboxPending,
		PaidAt:            &in.PaidAt,
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	s.purchases[p.ID] = p
	s.byPayment[key] = p.ID
	return p, true, nil
}

func (s *InMemoryPurchaseStore) FindByProviderPaymentID(ctx context.Context, provider, providerPaymentID string) (*purchase.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPayment[paymentKey(provider, providerPaymentID)]
	if !ok {
		return nil, ierr.Wrap(ierr.ErrNotFound, "PURCHASE_NOT_FOUND", "purchase not found")
	}
	return s.purchases[id], nil
}

func (s *InMemoryPurchaseStore) FindByID(ctx context.Context, id string) (*purchase.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.purchases[id]
	if !ok {
		return nil, ierr.Wrap(ierr.ErrNotFound, "PURCHASE_NOT_FOUND", "purchase not found: "+id)
	}
	return p, nil
}

func (s *InMemoryPurchaseStore) UpdateStatus(ctx context.Context, id string, status types.PurchaseStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.purchases[id]
	if !ok {
		return ierr.Wrap(ierr.ErrNotFound, "PURCHASE_NOT_FOUND", "purchase not found: "+id)
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryPurchaseStore) UpdateEmailStatus(ctx context.Context, id string, status types.EmailOutboxStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.purchases[id]
	if !ok {
		return ierr.Wrap(ierr.ErrNotFound, "PURCHASE_NOT_FOUND", "purchase not found: "+id)
	}
	p.EmailStatus = status
	return nil
}

func (s *InMemoryPurchaseStore) ListCompletedSince(ctx context.Context, since time.Time) ([]*purchase.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*purchase.Purchase
	for _, p := range s.purchases {
		if p.Status == types.PurchaseStatusCompleted && p.PaidAt != nil && !p.PaidAt.Before(since) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryPurchaseStore) ListMissingLedgerEntry(ctx context.Context, limit int) ([]*purchase.Purchase, error) {
	s.mu.Lock()
	var candidates []*purchase.Purchase
	for _, p := range s.purchases {
		if p.Status == types.PurchaseStatusCompleted {
			candidates = append(candidates, p)
		}
	}
	s.mu.Unlock()

	var out []*purchase.Purchase
	for _, p := range candidates {
		if _, err := s.ledger.FindByRef(ctx, "purchase", p.ID, string(types.LedgerEntryPurchaseCredit)); ierr.IsNotFound(err) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryPurchaseStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purchases = make(map[string]*purchase.Purchase)
	s.byPayment = make(map[string]string)
}
