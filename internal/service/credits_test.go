package service_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/service"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/testutil"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

type ChargeServiceSuite struct {
	testutil.BaseServiceTestSuite
	svc service.ChargeService
}

func TestChargeService(t *testing.T) {
	suite.Run(t, new(ChargeServiceSuite))
}

func (s *ChargeServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.svc = service.NewChargeService(s.ServiceParams())
}

func (s *ChargeServiceSuite) TestChargeDebitsImmediately() {
	s.SeedCredits("user_1", types.CreditClassGeneral, 100)

	result, err := s.svc.Charge(s.GetContext(), "user_1", "image_generate", "job_1", "", nil)
	s.NoError(err)
	s.Equal(int64(95), result.NewBalance)
	s.Equal(int64(5), result.Charged)
	s.False(result.Idempotent)

	sum, err := s.GetStores().LedgerRepo.Sum(s.GetContext(), "user_1", "general")
	s.NoError(err)
	s.Equal(int64(95), sum)
}

func (s *ChargeServiceSuite) TestChargeIsIdempotentPerJob() {
	s.SeedCredits("user_1", types.CreditClassGeneral, 100)

	_, err := s.svc.Charge(s.GetContext(), "user_1", "image_generate", "job_1", "", nil)
	s.NoError(err)

	replay, err := s.svc.Charge(s.GetContext(), "user_1", "image_generate", "job_1", "", nil)
	s.NoError(err)
	s.True(replay.Idempotent)
	s.Equal(int64(95), replay.NewBalance)
	s.Equal(int64(5), replay.Charged)

	sum, err := s.GetStores().LedgerRepo.Sum(s.GetContext(), "user_1", "general")
	s.NoError(err)
	s.Equal(int64(95), sum)
}

func (s *ChargeServiceSuite) TestChargeDistinctJobsDebitSeparately() {
	s.SeedCredits("user_1", types.CreditClassGeneral, 100)

	_, err := s.svc.Charge(s.GetContext(), "user_1", "image_generate", "job_1", "", nil)
	s.NoError(err)
	result, err := s.svc.Charge(s.GetContext(), "user_1", "image_generate", "job_2", "", nil)
	s.NoError(err)
	s.Equal(int64(90), result.NewBalance)
}

func (s *ChargeServiceSuite) TestChargeInsufficientCredits() {
	s.SeedCredits("user_1", types.CreditClassGeneral, 3)

	_, err := s.svc.Charge(s.GetContext(), "user_1", "image_generate", "job_1", "", nil)
	s.Error(err)
	s.True(ierr.IsInsufficientFunds(err))
}

func (s *ChargeServiceSuite) TestChargeUnknownAction() {
	s.SeedCredits("user_1", types.CreditClassGeneral, 100)

	_, err := s.svc.Charge(s.GetContext(), "user_1", "nonsense", "job_1", "", nil)
	s.True(ierr.IsUnknownAction(err))
}
