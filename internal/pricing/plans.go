package pricing

import (
	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

// PurchasePlan describes a one-time credit pack.
type PurchasePlan struct {
	Code         string
	Credits      int64
	Class        types.CreditClass
	PriceCents   int64 // GBP minor units
	Priority     bool
}

// SubscriptionPlan describes a recurring plan. CreditsPerMonth is the
// monthly grant regardless of cadence. PriceCents is
// the amount charged at checkout (monthly) or renewal (yearly), in GBP
// minor units.
type SubscriptionPlan struct {
	Code            string
	CreditsPerMonth int64
	Class           types.CreditClass
	Cadence         types.BillingCadence
	PriceCents      int64
}

var purchasePlans = map[string]PurchasePlan{
	"starter_250":       {"starter_250", 250, types.CreditClassGeneral, 799, false},
	"creator_900":       {"creator_900", 900, types.CreditClassGeneral, 1999, false},
	"studio_2200":       {"studio_2200", 2200, types.CreditClassGeneral, 3799, true},
	"video_starter_300": {"video_starter_300", 300, types.CreditClassVideo, 999, false},
	"video_creator_900": {"video_creator_900", 900, types.CreditClassVideo, 2999, false},
	"video_studio_2000": {"video_studio_2000", 2000, types.CreditClassVideo, 5999, true},
}

// Prices are GBP, stored in minor units.
var subscriptionPlans = map[string]SubscriptionPlan{
	"starter_monthly": {"starter_monthly", 120, types.CreditClassGeneral, types.BillingCadenceMonthly, 599},
	"creator_monthly": {"creator_monthly", 300, types.CreditClassGeneral, types.BillingCadenceMonthly, 1499},
	"studio_monthly":  {"studio_monthly", 700, types.CreditClassGeneral, types.BillingCadenceMonthly, 2999},
	"starter_yearly":  {"starter_yearly", 100, types.CreditClassGeneral, types.BillingCadenceYearly, 6999},
	"creator_yearly":  {"creator_yearly", 300, types.CreditClassGeneral, types.BillingCadenceYearly, 14999},
	"studio_yearly":   {"studio_yearly", 700, types.CreditClassGeneral, types.BillingCadenceYearly, 29999},
}

// PurchasePlanGrant returns the credits and class a one-time plan code
// grants. Fail-closed: unknown plan codes return ErrUnknownPlan.
func PurchasePlanGrant(planCode string) (credits int64, class types.CreditClass, err error) {
	p, ok := purchasePlans[planCode]
	if !ok {
		return 0, "", ierr.Wrap(ierr.ErrUnknownPlan, ierr.CodeUnknownPlan, "unknown purchase plan: "+planCode)
	}
	return p.Credits, p.Class, nil
}

func PurchasePlanByCode(planCode string) (PurchasePlan, error) {
	p, ok := purchasePlans[planCode]
	if !ok {
		return PurchasePlan{}, ierr.Wrap(ierr.ErrUnknownPlan, ierr.CodeUnknownPlan, "unknown purchase plan: "+planCode)
	}
	return p, nil
}

func SubscriptionPlanByCode(planCode string) (SubscriptionPlan, error) {
	p, ok := subscriptionPlans[planCode]
	if !ok {
		return SubscriptionPlan{}, ierr.Wrap(ierr.ErrUnknownPlan, ierr.CodeUnknownPlan, "unknown subscription plan: "+planCode)
	}
	return p, nil
}

// TierPerks returns the perks a subscription plan's tier unlocks, shown
// on the subscription status endpoint. Unknown plan codes get no perks
// rather than an error — the status endpoint is a display read.
func TierPerks(planCode string) []string {
	switch {
	case len(planCode) >= 6 && planCode[:6] == "studio":
		return []string{"priority_queue", "early_access"}
	case len(planCode) >= 7 && planCode[:7] == "creator":
		return []string{"standard_queue", "early_access"}
	case len(planCode) >= 7 && planCode[:7] == "starter":
		return []string{"standard_queue"}
	default:
		return nil
	}
}

// SubscriptionPlanGrant returns the monthly credit grant and class for a
// subscription plan code, regardless of its billing cadence.
func SubscriptionPlanGrant(planCode string) (creditsPerMonth int64, class types.CreditClass, err error) {
	p, err := SubscriptionPlanByCode(planCode)
	if err != nil {
		return 0, "", err
	}
	return p.CreditsPerMonth, p.Class, nil
}
