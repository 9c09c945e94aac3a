package service

import (
	"context"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/wallet"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

// WalletService is the read-facing view of a wallet: cached balance,
// currently-held reservations, and what's left to spend.
type WalletService interface {
	GetBalances(ctx context.Context, identity string, class types.CreditClass) (*wallet.Balances, error)
}

type walletService struct {
	ServiceParams
}

func NewWalletService(params ServiceParams) WalletService {
	return &walletService{ServiceParams: params}
}

// GetBalances ensures the wallet row exists (first-touch identities have
// none yet), then composes the cached balance with the unlocked reserved
// sum. This is a read path — it takes no lock, so it can race a concurrent
// reserve/finalize by one in-flight reservation; that's acceptable for a
// balance display.
func (s *walletService) GetBalances(ctx context.Context, identity string, class types.CreditClass) (*wallet.Balances, error) {
	w, err := s.WalletRepo.EnsureExists(ctx, identity)
	if err != nil {
		return nil, err
	}

	reserved, err := s.ReservationRepo.Reserved(ctx, identity, string(class))
	if err != nil {
		return nil, err
	}

	balance := balanceForClass(w, class)

	return &wallet.Balances{
		Balance:   balance,
		Reserved:  reserved,
		Available: balance - reserved,
	}, nil
}
