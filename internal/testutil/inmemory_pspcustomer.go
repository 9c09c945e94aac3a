package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/pspcustomer"
	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
)

// InMemoryPSPCustomerStore mirrors the pspcustomer repository's upsert-once
// memoisation semantics.
type InMemoryPSPCustomerStore struct {
	mu        sync.Mutex
	customers map[string]*pspcustomer.Customer // identity|provider -> customer
}

func NewInMemoryPSPCustomerStore() *InMemoryPSPCustomerStore {
	return &InMemoryPSPCustomerStore{customers: make(map[string]*pspcustomer.Customer)}
}

func customerKey(identityID, provider string) string {
	return identityID + "|" + provider
}

func (s *InMemoryPSPCustomerStore) Get(ctx context.Context, identityID, provider string) (*pspcustomer.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[customerKey(identityID, provider)]
	if !ok {
		return nil, ierr.Wrap(ierr.ErrNotFound, "PSP_CUSTOMER_NOT_FOUND", "no psp customer for "+identityID)
	}
	return c, nil
}

func (s *InMemoryPSPCustomerStore) Upsert(ctx context.Context, identityID, provider, customerID string) (*pspcustomer.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := customerKey(identityID, provider)
	if existing, ok := s.customers[key]; ok {
		return existing, nil
	}
	c := &pspcustomer.Customer{
		IdentityID: identityID,
		Provider:   provider,
		CustomerID: customerID,
		CreatedAt:  time.Now().UTC(),
	}
	s.customers[key] = c
	return c, nil
}

func (s *InMemoryPSPCustomerStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers = make(map[string]*pspcustomer.Customer)
}
