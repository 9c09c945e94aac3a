package dto

import "time"

// ReserveRequest is POST /api/billing/reserve's body.
type ReserveRequest struct {
	ActionKey string `json:"action_key" binding:"required"`
	JobID     string `json:"job_id" binding:"required"`
}

type ReservationView struct {
	ID         string    `json:"id"`
	ActionCode string    `json:"action_code"`
	Cost       int64     `json:"cost"`
	CreditClass string   `json:"credit_class"`
	Status     string    `json:"status"`
	JobRef     string    `json:"job_ref"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type ReserveResponse struct {
	Reservation ReservationView `json:"reservation"`
	Balance     int64           `json:"balance"`
	Reserved    int64           `json:"reserved"`
	Available   int64           `json:"available"`
	Idempotent  bool            `json:"idempotent"`
}

// CheckoutRequest is both POST /api/billing/checkout and
// POST /api/billing/subscriptions/checkout's body.
type CheckoutRequest struct {
	PlanCode string `json:"plan_code" binding:"required"`
	Email    string `json:"email,omitempty"`
}

type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	PaymentID   string `json:"payment_id,omitempty"`
}

// ConfirmResponse is GET /api/billing/confirm's body: a post-redirect,
// idempotent read of whatever record the webhook already settled.
type ConfirmResponse struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Kind      string `json:"kind"` // "purchase" | "subscription"
}

// SubscriptionStatusResponse is GET /api/billing/subscriptions/status's
// body.
type SubscriptionStatusResponse struct {
	Subscribed bool             `json:"subscribed"`
	PlanCode   string           `json:"plan_code,omitempty"`
	Status     string           `json:"status,omitempty"`
	Billing    *BillingView     `json:"billing,omitempty"`
	TierPerks  []string         `json:"tier_perks,omitempty"`
}

type BillingView struct {
	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end"`
	NextPaymentDate    *time.Time `json:"next_payment_date,omitempty"`
	MandateStatus      string     `json:"mandate_status"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
}

type CancelSubscriptionResponse struct {
	Status      string    `json:"status"`
	CancelledAt time.Time `json:"cancelled_at"`
}
