package types

import "github.com/google/uuid"

// ID prefixes, so entity
// kind is recognisable at a glance in logs and support tickets.
const (
	UUIDPrefixWallet          = "wallet"
	UUIDPrefixLedgerEntry     = "ledger"
	UUIDPrefixReservation     = "resv"
	UUIDPrefixPurchase        = "pur"
	UUIDPrefixSubscription    = "sub"
	UUIDPrefixSubscriptionCyc = "subcyc"
	UUIDPrefixEmailOutbox     = "email"
	UUIDPrefixWalletRepair    = "repair"
	UUIDPrefixReconRun        = "reconrun"
	UUIDPrefixReconFix        = "reconfix"
	UUIDPrefixPSPCustomer     = "pspcust"
)

// GenerateUUID returns a fresh random UUID string.
func GenerateUUID() string {
	return uuid.New().String()
}

// GenerateUUIDWithPrefix returns "<prefix>_<uuid>": the prefix, an
// underscore, then a UUIDv4.
func GenerateUUIDWithPrefix(prefix string) string {
	return prefix + "_" + uuid.New().String()
}
