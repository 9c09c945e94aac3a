package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/reservation"
	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/service"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/testutil"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

type ReservationServiceSuite struct {
	testutil.BaseServiceTestSuite
	svc service.ReservationService
}

func TestReservationService(t *testing.T) {
	suite.Run(t, new(ReservationServiceSuite))
}

func (s *ReservationServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.svc = service.NewReservationService(s.ServiceParams())
}

func (s *ReservationServiceSuite) TestColdReserveHoldsWithoutDebit() {
	s.SeedCredits("user_1", types.CreditClassGeneral, 100)

	result, err := s.svc.Reserve(s.GetContext(), "user_1", "image_generate", "j1", nil)
	s.NoError(err)
	s.False(result.Replayed)
	s.Equal(types.ReservationHeld, result.Reservation.Status)
	s.Equal(int64(5), result.Reservation.Cost)
	s.Equal(int64(100), result.Balance)
	s.Equal(int64(5), result.Reserved)
	s.Equal(int64(95), result.Available)

	// A hold never touches the ledger.
	sum, err := s.GetStores().LedgerRepo.Sum(s.GetContext(), "user_1", "general")
	s.NoError(err)
	s.Equal(int64(100), sum)
}

func (s *ReservationServiceSuite) TestReserveIsIdempotentPerJob() {
	s.SeedCredits("user_1", types.CreditClassGeneral, 100)

	first, err := s.svc.Reserve(s.GetContext(), "user_1", "image_generate", "j1", nil)
	s.NoError(err)

	second, err := s.svc.Reserve(s.GetContext(), "user_1", "image_generate", "j1", nil)
	s.NoError(err)
	s.True(second.Replayed)
	s.Equal(first.Reservation.ID, second.Reservation.ID)
	s.Equal(int64(5), second.Reserved)
	s.Equal(int64(95), second.Available)
}

func (s *ReservationServiceSuite) TestReserveResolvesAliases() {
	s.SeedCredits("user_1", types.CreditClassGeneral, 100)

	result, err := s.svc.Reserve(s.GetContext(), "user_1", "text-to-3d-preview", "j1", nil)
	s.NoError(err)
	s.Equal("text_to_3d_generate", result.Reservation.ActionCode)
	s.Equal(int64(20), result.Reservation.Cost)
}

func (s *ReservationServiceSuite) TestReserveUnknownActionFailsClosed() {
	s.SeedCredits("user_1", types.CreditClassGeneral, 100)

	_, err := s.svc.Reserve(s.GetContext(), "user_1", "mystery_action", "j1", nil)
	s.Error(err)
	s.True(ierr.IsUnknownAction(err))
}

func (s *ReservationServiceSuite) TestReserveInsufficientCredits() {
	s.SeedCredits("user_1", types.CreditClassGeneral, 3)

	_, err := s.svc.Reserve(s.GetContext(), "user_1", "image_generate", "j1", nil)
	s.Error(err)
	s.True(ierr.IsInsufficientFunds(err))

	details := ierr.ReportableDetails(err)
	s.EqualValues(5, details["required"])
	s.EqualValues(3, details["balance"])
	s.EqualValues(3, details["available"])
	s.Equal("general", details["class"])
}

func (s *ReservationServiceSuite) TestReserveCountsExistingHoldsAgainstAvailable() {
	s.SeedCredits("user_1", types.CreditClassGeneral, 25)

	_, err := s.svc.Reserve(s.GetContext(), "user_1", "text_to_3d_generate", "j1", nil) // 20
	s.NoError(err)

	// 5 credits left available; a 20-credit hold must be refused even
	// though the cached balance is still 25.
	_, err = s.svc.Reserve(s.GetContext(), "user_1", "text_to_3d_generate", "j2", nil)
	s.True(ierr.IsInsufficientFunds(err))

	result, err := s.svc.Reserve(s.GetContext(), "user_1", "image_generate", "j3", nil) // 5
	s.NoError(err)
	s.Equal(int64(0), result.Available)
}

func (s *ReservationServiceSuite) TestFinalizeDebitsExactlyOnce() {
	s.SeedCredits("user_1", types.CreditClassGeneral, 100)

	reserved, err := s.svc.Reserve(s.GetContext(), "user_1", "image_generate", "j1", nil)
	s.NoError(err)

	result, err := s.svc.Finalize(s.GetContext(), reserved.Reservation.ID)
	s.NoError(err)
	s.False(result.WasAlreadyFinalized)
	s.Equal(int64(95), result.NewBalance)
	s.Equal(types.ReservationFinalized, result.Reservation.Status)
	s.NotNil(result.Reservation.CapturedAt)

	sum, err := s.GetStores().LedgerRepo.Sum(s.GetContext(), "user_1", "general")
	s.NoError(err)
	s.Equal(int64(95), sum)

	held, err := s.GetStores().ReservationRepo.Reserved(s.GetContext(), "user_1", "general")
	s.NoError(err)
	s.Equal(int64(0), held)

	// Replayed finalize: flag set, no second debit.
	again, err := s.svc.Finalize(s.GetContext(), reserved.Reservation.ID)
	s.NoError(err)
	s.True(again.WasAlreadyFinalized)

	sum, err = s.GetStores().LedgerRepo.Sum(s.GetContext(), "user_1", "general")
	s.NoError(err)
	s.Equal(int64(95), sum)
}

func (s *ReservationServiceSuite) TestReleaseRestoresAvailability() {
	s.SeedCredits("user_1", types.CreditClassGeneral, 100)

	reserved, err := s.svc.Reserve(s.GetContext(), "user_1", "image_generate", "j1", nil)
	s.NoError(err)

	result, err := s.svc.Release(s.GetContext(), reserved.Reservation.ID, "failed")
	s.NoError(err)
	s.Equal(types.ReservationReleased, result.Reservation.Status)

	// Credits come back by the hold disappearing from the reserved sum —
	// no ledger write.
	sum, err := s.GetStores().LedgerRepo.Sum(s.GetContext(), "user_1", "general")
	s.NoError(err)
	s.Equal(int64(100), sum)

	held, err := s.GetStores().ReservationRepo.Reserved(s.GetContext(), "user_1", "general")
	s.NoError(err)
	s.Equal(int64(0), held)

	// The terminal states are absorbing: finalize after
	// release is an idempotent no-op, not an error.
	fin, err := s.svc.Finalize(s.GetContext(), reserved.Reservation.ID)
	s.NoError(err)
	s.True(fin.WasAlreadyReleased)

	sum, err = s.GetStores().LedgerRepo.Sum(s.GetContext(), "user_1", "general")
	s.NoError(err)
	s.Equal(int64(100), sum)
}

func (s *ReservationServiceSuite) TestFinalizeUnknownReservation() {
	result, err := s.svc.Finalize(s.GetContext(), "resv-does-not-exist")
	s.NoError(err)
	s.True(result.NotFound)
}

func (s *ReservationServiceSuite) TestSweepExpiredReleasesOnlyPastHolds() {
	s.SeedCredits("user_1", types.CreditClassGeneral, 100)

	now := time.Now().UTC()
	_, err := s.GetStores().ReservationRepo.Create(s.GetContext(), reservation.CreateInput{
		Identity:   "user_1",
		ActionCode: "image_generate",
		Cost:       5,
		Class:      types.CreditClassGeneral,
		JobRef:     "j_old",
		ExpiresAt:  now.Add(-time.Minute),
	})
	s.NoError(err)

	live, err := s.svc.Reserve(s.GetContext(), "user_1", "image_generate", "j_live", nil)
	s.NoError(err)

	swept, err := s.svc.SweepExpired(s.GetContext())
	s.NoError(err)
	s.Equal(1, swept)

	held, err := s.GetStores().ReservationRepo.Reserved(s.GetContext(), "user_1", "general")
	s.NoError(err)
	s.Equal(live.Reservation.Cost, held)

	// Re-running the sweep is a no-op.
	swept, err = s.svc.SweepExpired(s.GetContext())
	s.NoError(err)
	s.Equal(0, swept)
}

func (s *ReservationServiceSuite) TestVideoClassIsSeparate() {
	s.SeedCredits("user_1", types.CreditClassGeneral, 100)
	s.SeedCredits("user_1", types.CreditClassVideo, 70)

	result, err := s.svc.Reserve(s.GetContext(), "user_1", "video_text_generate_4s_720p", "j1", nil)
	s.NoError(err)
	s.Equal(types.CreditClassVideo, result.Reservation.Class)
	s.Equal(int64(70), result.Reservation.Cost)
	s.Equal(int64(0), result.Available)

	// General availability is untouched by a video hold.
	generalHeld, err := s.GetStores().ReservationRepo.Reserved(s.GetContext(), "user_1", "general")
	s.NoError(err)
	s.Equal(int64(0), generalHeld)
}
