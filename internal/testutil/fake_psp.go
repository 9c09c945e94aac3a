package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/psp"
)

// FakePSPAdapter is a controllable double for psp.Adapter. Tests drive PSP
// state by calling SetPaymentStatus/SetMandate directly rather than going
// through a real checkout flow, mirroring how the webhook handler only
// ever learns about PSP state via FetchPayment.
type FakePSPAdapter struct {
	mu sync.Mutex

	customers     map[string]string            // identity -> customer id
	mandates      map[string]string            // customer -> mandate id
	payments      map[string]*psp.Payment      // payment id -> payment
	subscriptions map[string]bool              // subscription id -> active
	seq           int

	// FailNext, when set, is returned by the next call to any
	// payment- or subscription-creating method and then cleared.
	FailNext error
}

func NewFakePSPAdapter() *FakePSPAdapter {
	return &FakePSPAdapter{
		customers:     make(map[string]string),
		mandates:      make(map[string]string),
		payments:      make(map[string]*psp.Payment),
		subscriptions: make(map[string]bool),
	}
}

func (f *FakePSPAdapter) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s_%d", prefix, f.seq)
}

func (f *FakePSPAdapter) CreateOneOffPayment(ctx context.Context, amount decimal.Decimal, currency, description, redirectURL, webhookURL string, metadata map[string]string) (*psp.CheckoutResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailNext != nil {
		err := f.FailNext
		f.FailNext = nil
		return nil, err
	}
	id := f.nextID("tr")
	f.payments[id] = &psp.Payment{
		ID:       id,
		Status:   psp.PaymentOpen,
		Type:     psp.PaymentTypeOneOff,
		Amount:   amount,
		Currency: currency,
		Metadata: metadata,
	}
	return &psp.CheckoutResult{PaymentID: id, CheckoutURL: "https://fake-psp.test/checkout/" + id}, nil
}

func (f *FakePSPAdapter) CreateFirstSequencePayment(ctx context.Context, customerID string, amount decimal.Decimal, currency, redirectURL, webhookURL string, metadata map[string]string) (*psp.CheckoutResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailNext != nil {
		err := f.FailNext
		f.FailNext = nil
		return nil, err
	}
	id := f.nextID("tr")
	f.payments[id] = &psp.Payment{
		ID:           id,
		Status:       psp.PaymentOpen,
		Type:         psp.PaymentTypeSubscriptionFirst,
		Amount:       amount,
		Currency:     currency,
		CustomerID:   customerID,
		Metadata:     metadata,
		SequenceType: "first",
	}
	return &psp.CheckoutResult{PaymentID: id, CheckoutURL: "https://fake-psp.test/checkout/" + id}, nil
}

func (f *FakePSPAdapter) GetOrCreateCustomer(ctx context.Context, identityID, email string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.customers[identityID]; ok {
		return id, nil
	}
	id := f.nextID("cst")
	f.customers[identityID] = id
	return id, nil
}

func (f *FakePSPAdapter) GetValidMandate(ctx context.Context, customerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mandates[customerID], nil
}

// SetMandate lets a test establish a mandate without going through a real
// first-sequence payment webhook.
func (f *FakePSPAdapter) SetMandate(customerID, mandateID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mandates[customerID] = mandateID
}

func (f *FakePSPAdapter) CreateSubscription(ctx context.Context, customerID, mandateID, interval string, amount decimal.Decimal, currency, webhookURL string, metadata map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailNext != nil {
		err := f.FailNext
		f.FailNext = nil
		return "", err
	}
	id := f.nextID("sub")
	f.subscriptions[id] = true
	return id, nil
}

func (f *FakePSPAdapter) CancelSubscription(ctx context.Context, customerID, subscriptionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subscriptions[subscriptionID]; !ok {
		return false, nil
	}
	f.subscriptions[subscriptionID] = false
	return true, nil
}

func (f *FakePSPAdapter) FetchPayment(ctx context.Context, paymentID string) (*psp.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("psp: payment not found: %s", paymentID)
	}
	return p, nil
}

func (f *FakePSPAdapter) ListPayments(ctx context.Context, since time.Time) ([]*psp.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*psp.Payment
	for _, p := range f.payments {
		if p.PaidAt != nil && !p.PaidAt.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

// SetPaymentStatus is the test-side equivalent of the PSP side effecting a
// status transition — call it, then invoke the webhook handler/ingestor
// the same way a real webhook delivery would.
func (f *FakePSPAdapter) SetPaymentStatus(paymentID string, status psp.PaymentStatus, paidAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[paymentID]
	if !ok {
		return
	}
	p.Status = status
	if status == psp.PaymentPaid {
		p.PaidAt = &paidAt
	}
}

// AddRecurringPayment seeds a subscription_recurring payment directly,
// since recurring charges are PSP-initiated and have no creation call on
// this interface.
func (f *FakePSPAdapter) AddRecurringPayment(subscriptionID, customerID string, amount decimal.Decimal, currency string, status psp.PaymentStatus, paidAt time.Time, metadata map[string]string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID("tr")
	f.payments[id] = &psp.Payment{
		ID:             id,
		Status:         status,
		Type:           psp.PaymentTypeSubscriptionRecurring,
		Amount:         amount,
		Currency:       currency,
		CustomerID:     customerID,
		SubscriptionID: subscriptionID,
		Metadata:       metadata,
		PaidAt:         &paidAt,
		SequenceType:   "recurring",
	}
	return id
}

func (f *FakePSPAdapter) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customers = make(map[string]string)
	f.mandates = make(map[string]string)
	f.payments = make(map[string]*psp.Payment)
	f.subscriptions = make(map[string]bool)
	f.seq = 0
}
