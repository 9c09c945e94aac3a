package stripe

import "github.com/shopspring/decimal"

// toCents converts a decimal major-unit amount to Stripe's minor-unit
// integer representation. Every currency this adapter targets is two-decimal, so *100 is exact.
func toCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
