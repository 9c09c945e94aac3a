package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/subscription"
	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

// InMemorySubscriptionStore mirrors subscriptionRepository (internal/
// repository/postgres/subscription.go).
type InMemorySubscriptionStore struct {
	mu     sync.Mutex
	subs   map[string]*subscription.Subscription
	cycles map[string]*subscription.Cycle // keyed by subscription_id|period_start
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		subs:   make(map[string]*subscription.Subscription),
		cycles: make(map[string]*subscription.Cycle),
	}
}

func cycleKey(subscriptionID string, periodStart time.Time) string {
	return subscriptionID + "|" + periodStart.UTC().Format(time.RFC3339)
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, in subscription.CreateInput) (*subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	sub := &subscription.Subscription{
		ID:                 in.ID,
		Identity:           in.Identity,
		PlanCode:           in.PlanCode,
		Status:             in.Status,
		Provider:           in.Provider,
		FirstPaymentID:     in.FirstPaymentID,
		ProviderCustomerID: in.ProviderCustomerID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	s.subs[sub.ID] = sub
	return sub, nil
}

func (s *InMemorySubscriptionStore) FindByID(ctx context.Context, id string) (*subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, ierr.Wrap(ierr.ErrNotFound, "SUBSCRIPTION_NOT_FOUND", "subscription not found: "+id)
	}
	return sub, nil
}

func (s *InMemorySubscriptionStore) FindByFirstPaymentID(ctx context.Context, paymentID string) (*subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.FirstPaymentID != nil && *sub.FirstPaymentID == paymentID {
			return sub, nil
		}
	}
	return nil, ierr.Wrap(ierr.ErrNotFound, "SUBSCRIPTION_NOT_FOUND", "no subscription for first payment "+paymentID)
}

func (s *InMemorySubscriptionStore) FindByProviderSubscriptionID(ctx context.Context, providerSubID string) (*subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.ProviderSubscriptionID != nil && *sub.ProviderSubscriptionID == providerSubID {
			return sub, nil
		}
	}
	return nil, ierr.Wrap(ierr.ErrNotFound, "SUBSCRIPTION_NOT_FOUND", "no subscription for provider id "+providerSubID)
}

func (s *InMemorySubscriptionStore) FindOccupying(ctx context.Context, identity string) (*subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.Identity == identity && sub.Status.IsOccupying() {
			return sub, nil
		}
	}
	return nil, ierr.Wrap(ierr.ErrNotFound, "SUBSCRIPTION_NOT_FOUND", "no occupying subscription for "+identity)
}

func (s *InMemorySubscriptionStore) FindPendingPayment(ctx context.Context, identity string) (*subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.Identity == identity && sub.Status == types.SubscriptionPendingPayment {
			return sub, nil
		}
	}
	return nil, ierr.Wrap(ierr.ErrNotFound, "SUBSCRIPTION_NOT_FOUND", "no pending-payment subscription for "+identity)
}

func (s *InMemorySubscriptionStore) FindCurrent(ctx context.Context, identity string, asOf time.Time) (*subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *subscription.Subscription
	for _, sub := range s.subs {
		if sub.Identity != identity {
			continue
		}
		stillCancelledAccess := sub.Status == types.SubscriptionCancelled && sub.CurrentPeriodEnd.After(asOf)
		if !sub.Status.IsOccupying() && !stillCancelledAccess {
			continue
		}
		if latest == nil || sub.CreatedAt.After(latest.CreatedAt) {
			latest = sub
		}
	}
	if latest == nil {
		return nil, ierr.Wrap(ierr.ErrNotFound, "SUBSCRIPTION_NOT_FOUND", "no current subscription for "+identity)
	}
	return latest, nil
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub.ID]; !ok {
		return ierr.Wrap(ierr.ErrNotFound, "SUBSCRIPTION_NOT_FOUND", "subscription not found: "+sub.ID)
	}
	sub.UpdatedAt = time.Now().UTC()
	s.subs[sub.ID] = sub
	return nil
}

func (s *InMemorySubscriptionStore) FindDueForCredit(ctx context.Context, asOf time.Time, limit int) ([]*subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*subscription.Subscription
	for _, sub := range s.subs {
		if sub.Status == types.SubscriptionActive && !sub.NextCreditDate.After(asOf) {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextCreditDate.Before(out[j].NextCreditDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemorySubscriptionStore) FindCancelledPastPeriodEnd(ctx context.Context, asOf time.Time, limit int) ([]*subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*subscription.Subscription
	for _, sub := range s.subs {
		if sub.Status == types.SubscriptionCancelled && sub.CurrentPeriodEnd.Before(asOf) {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CurrentPeriodEnd.Before(out[j].CurrentPeriodEnd) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemorySubscriptionStore) CreateCycle(ctx context.Context, in subscription.CreateCycleInput) (*subscription.Cycle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := cycleKey(in.Subscription, in.PeriodStart)
	if existing, ok := s.cycles[key]; ok {
		return existing, false, nil
	}
	c := &subscription.Cycle{
		ID:                in.ID,
		Subscription:      in.Subscription,
		PeriodStart:       in.PeriodStart,
		PeriodEnd:         in.PeriodEnd,
		CreditsGranted:    in.CreditsGranted,
		GrantedAt:         time.Now().UTC(),
		ProviderPaymentID: in.ProviderPaymentID,
		PaymentStatus:     in.PaymentStatus,
	}
	s.cycles[key] = c
	return c, true, nil
}

func (s *InMemorySubscriptionStore) FindCycle(ctx context.Context, subscriptionID string, periodStart time.Time) (*subscription.Cycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cycles[cycleKey(subscriptionID, periodStart)]
	if !ok {
		return nil, ierr.Wrap(ierr.ErrNotFound, "CYCLE_NOT_FOUND", "no cycle for subscription "+subscriptionID)
	}
	return c, nil
}

func (s *InMemorySubscriptionStore) FindCycleByProviderPaymentID(ctx context.Context, subscriptionID, providerPaymentID string) (*subscription.Cycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cycles {
		if c.Subscription == subscriptionID && c.ProviderPaymentID != nil && *c.ProviderPaymentID == providerPaymentID {
			return c, nil
		}
	}
	return nil, ierr.Wrap(ierr.ErrNotFound, "CYCLE_NOT_FOUND", "no cycle for payment "+providerPaymentID)
}

func (s *InMemorySubscriptionStore) ListCyclesBetween(ctx context.Context, subscriptionID string, from, to time.Time) ([]*subscription.Cycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*subscription.Cycle
	for _, c := range s.cycles {
		if c.Subscription == subscriptionID && !c.PeriodStart.Before(from) && c.PeriodStart.Before(to) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodStart.Before(out[j].PeriodStart) })
	return out, nil
}

func (s *InMemorySubscriptionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = make(map[string]*subscription.Subscription)
	s.cycles = make(map[string]*subscription.Cycle)
}
