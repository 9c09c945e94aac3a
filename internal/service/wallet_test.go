package service_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/service"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/testutil"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

type WalletServiceSuite struct {
	testutil.BaseServiceTestSuite
	svc service.WalletService
}

func TestWalletService(t *testing.T) {
	suite.Run(t, new(WalletServiceSuite))
}

func (s *WalletServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.svc = service.NewWalletService(s.ServiceParams())
}

func (s *WalletServiceSuite) TestFirstTouchIdentityGetsZeroWallet() {
	balances, err := s.svc.GetBalances(s.GetContext(), "user_new", types.CreditClassGeneral)
	s.NoError(err)
	s.Equal(int64(0), balances.Balance)
	s.Equal(int64(0), balances.Reserved)
	s.Equal(int64(0), balances.Available)
}

func (s *WalletServiceSuite) TestAvailableSubtractsHeldReservations() {
	s.SeedCredits("user_1", types.CreditClassGeneral, 100)

	reservationSvc := service.NewReservationService(s.ServiceParams())
	_, err := reservationSvc.Reserve(s.GetContext(), "user_1", "image_generate", "j1", nil)
	s.Require().NoError(err)

	balances, err := s.svc.GetBalances(s.GetContext(), "user_1", types.CreditClassGeneral)
	s.NoError(err)
	s.Equal(int64(100), balances.Balance)
	s.Equal(int64(5), balances.Reserved)
	s.Equal(int64(95), balances.Available)
}

func (s *WalletServiceSuite) TestClassesAreIndependent() {
	s.SeedCredits("user_1", types.CreditClassGeneral, 100)
	s.SeedCredits("user_1", types.CreditClassVideo, 200)

	general, err := s.svc.GetBalances(s.GetContext(), "user_1", types.CreditClassGeneral)
	s.NoError(err)
	s.Equal(int64(100), general.Balance)

	video, err := s.svc.GetBalances(s.GetContext(), "user_1", types.CreditClassVideo)
	s.NoError(err)
	s.Equal(int64(200), video.Balance)
}
