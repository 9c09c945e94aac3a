package types

// CreditClass partitions balances and ledger sums. General covers images
// and 3D generation; video is the more expensive video-generation class.
type CreditClass string

const (
	CreditClassGeneral CreditClass = "general"
	CreditClassVideo   CreditClass = "video"
)

func (c CreditClass) Valid() bool {
	return c == CreditClassGeneral || c == CreditClassVideo
}

// LedgerEntryType enumerates the closed set of ledger entry kinds.
type LedgerEntryType string

const (
	LedgerEntryPurchaseCredit       LedgerEntryType = "purchase_credit"
	LedgerEntryReservationFinalize  LedgerEntryType = "reservation_finalize"
	LedgerEntryReservationHold      LedgerEntryType = "reservation_hold" // unused in practice, kept for the allow-negative set
	LedgerEntryRefund               LedgerEntryType = "refund"
	LedgerEntryChargeback           LedgerEntryType = "chargeback"
	LedgerEntryAdminAdjust          LedgerEntryType = "admin_adjust"
	LedgerEntrySignupGrant          LedgerEntryType = "signup_grant"
	LedgerEntrySubscriptionGrant    LedgerEntryType = "subscription_grant"
	LedgerEntryCharge               LedgerEntryType = "charge"
)

// allowNegativeBalance is the explicit set of entry types that may drive
// a wallet balance negative without an insufficient-credits failure.
var allowNegativeBalance = map[LedgerEntryType]bool{
	LedgerEntryReservationHold: true,
	LedgerEntryAdminAdjust:     true,
}

func (t LedgerEntryType) AllowsNegativeBalance() bool {
	return allowNegativeBalance[t]
}

// floorsWalletAtZero is the set of entry types whose wallet-cache update
// clamps to zero instead of going negative, even though the ledger entry
// itself records the full, unclamped delta. A revocation never claws back
// more than the user still has; the resulting ledger/wallet drift is
// exactly what reconciliation's wallet-vs-ledger check lists.
var floorsWalletAtZero = map[LedgerEntryType]bool{
	LedgerEntryRefund:     true,
	LedgerEntryChargeback: true,
}

func (t LedgerEntryType) FloorsWalletAtZero() bool {
	return floorsWalletAtZero[t]
}

// RefGroup buckets ledger entry types into the partial-unique-index
// families used for idempotency.
type RefGroup string

const (
	RefGroupGrant     RefGroup = "grant"     // purchase_credit, subscription_grant
	RefGroupRevoke    RefGroup = "revoke"    // refund, chargeback
	RefGroupFinalize  RefGroup = "finalize"  // reservation_finalize
	RefGroupCharge    RefGroup = "charge"    // charge, per (identity, action, job)
	RefGroupUngrouped RefGroup = ""          // entry types with no idempotency requirement
)

func (t LedgerEntryType) RefGroup() RefGroup {
	switch t {
	case LedgerEntryPurchaseCredit, LedgerEntrySubscriptionGrant:
		return RefGroupGrant
	case LedgerEntryRefund, LedgerEntryChargeback:
		return RefGroupRevoke
	case LedgerEntryReservationFinalize:
		return RefGroupFinalize
	case LedgerEntryCharge:
		return RefGroupCharge
	default:
		return RefGroupUngrouped
	}
}

// ReservationStatus is the hold lifecycle: held is the only live state,
// finalized and released are absorbing.
type ReservationStatus string

const (
	ReservationHeld      ReservationStatus = "held"
	ReservationFinalized ReservationStatus = "finalized"
	ReservationReleased  ReservationStatus = "released"
)

// PurchaseStatus is the one-time payment lifecycle.
type PurchaseStatus string

const (
	PurchaseStatusPending      PurchaseStatus = "pending"
	PurchaseStatusCompleted    PurchaseStatus = "completed"
	PurchaseStatusRefunded     PurchaseStatus = "refunded"
	PurchaseStatusChargedBack  PurchaseStatus = "charged_back"
)

// SubscriptionStatus is the recurring-plan state machine.
type SubscriptionStatus string

const (
	SubscriptionPendingPayment SubscriptionStatus = "pending_payment"
	SubscriptionActive         SubscriptionStatus = "active"
	SubscriptionPastDue        SubscriptionStatus = "past_due"
	SubscriptionCancelled      SubscriptionStatus = "cancelled"
	SubscriptionSuspended      SubscriptionStatus = "suspended"
	SubscriptionExpired        SubscriptionStatus = "expired"
)

// IsOccupying reports whether a subscription in this status counts toward
// the at-most-one-occupying-subscription-per-identity rule.
func (s SubscriptionStatus) IsOccupying() bool {
	return s == SubscriptionActive || s == SubscriptionPendingPayment || s == SubscriptionPastDue
}

// BillingCadence distinguishes monthly-billed from yearly-billed plans;
// both grant credits on the same monthly cycle.
type BillingCadence string

const (
	BillingCadenceMonthly BillingCadence = "monthly"
	BillingCadenceYearly  BillingCadence = "yearly"
)

// EmailOutboxStatus is the outbox dispatch lifecycle.
type EmailOutboxStatus string

const (
	EmailOutboxPending EmailOutboxStatus = "pending"
	EmailOutboxSent    EmailOutboxStatus = "sent"
	EmailOutboxFailed  EmailOutboxStatus = "failed"
)

// PSPPaymentStatus lists the provider-reported payment statuses. The
// purchase ingestor and subscription engine dispatch on psp.PaymentStatus,
// which carries the same values.
type PSPPaymentStatus string

const (
	PSPPaymentOpen         PSPPaymentStatus = "open"
	PSPPaymentPending      PSPPaymentStatus = "pending"
	PSPPaymentPaid         PSPPaymentStatus = "paid"
	PSPPaymentFailed       PSPPaymentStatus = "failed"
	PSPPaymentCanceled     PSPPaymentStatus = "canceled"
	PSPPaymentExpired      PSPPaymentStatus = "expired"
	PSPPaymentRefunded     PSPPaymentStatus = "refunded"
	PSPPaymentChargedBack  PSPPaymentStatus = "charged_back"
)

// PSPPaymentType distinguishes a mandate-establishing first payment from a
// recurring subscription payment and a plain one-off purchase.
type PSPPaymentType string

const (
	PSPPaymentTypeOneOff          PSPPaymentType = "one_off"
	PSPPaymentTypeSubscriptionFirst PSPPaymentType = "subscription_first"
	PSPPaymentTypeSubscriptionRecurring PSPPaymentType = "subscription_recurring"
)
