package service_test

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/service"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/testutil"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

// ReservationConcurrencySuite stresses the never-overspend property:
// no interleaving of concurrent reserves may hold more than
// the balance. Transactions run on a SerializingTxRunner, the fake-side
// stand-in for the wallet row lock Postgres serialises reserves on.
type ReservationConcurrencySuite struct {
	testutil.BaseServiceTestSuite
	svc service.ReservationService
}

func TestReservationConcurrency(t *testing.T) {
	suite.Run(t, new(ReservationConcurrencySuite))
}

func (s *ReservationConcurrencySuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := s.ServiceParams()
	params.DB = testutil.NewSerializingTxRunner()
	s.svc = service.NewReservationService(params)
}

func (s *ReservationConcurrencySuite) TestConcurrentReservesNeverOverspend() {
	const balance = 100
	const cost = 5 // image_generate
	const attempts = 40

	s.SeedCredits("user_1", types.CreditClassGeneral, balance)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	refused := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond)

			_, err := s.svc.Reserve(s.GetContext(), "user_1", "image_generate", fmt.Sprintf("job_%d", n), nil)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				granted++
			case ierr.IsInsufficientFunds(err):
				refused++
			default:
				s.Failf("unexpected reserve error", "%v", err)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(balance/cost, granted)
	s.Equal(attempts-balance/cost, refused)

	held, err := s.GetStores().ReservationRepo.Reserved(s.GetContext(), "user_1", "general")
	s.NoError(err)
	s.LessOrEqual(held, int64(balance))
	s.Equal(int64(balance), held)

	// The ledger never moved: holds are not debits.
	sum, err := s.GetStores().LedgerRepo.Sum(s.GetContext(), "user_1", "general")
	s.NoError(err)
	s.Equal(int64(balance), sum)
}

func (s *ReservationConcurrencySuite) TestConcurrentReplaysOfSameJobShareOneHold() {
	s.SeedCredits("user_1", types.CreditClassGeneral, 100)

	var wg sync.WaitGroup
	ids := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.svc.Reserve(s.GetContext(), "user_1", "image_generate", "j1", nil)
			if err == nil {
				ids <- result.Reservation.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	s.Len(seen, 1)

	held, err := s.GetStores().ReservationRepo.Reserved(s.GetContext(), "user_1", "general")
	s.NoError(err)
	s.Equal(int64(5), held)
}
