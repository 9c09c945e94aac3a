package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/reservation"
	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

// InMemoryReservationStore mirrors reservationRepository (internal/
// repository/postgres/reservation.go).
type InMemoryReservationStore struct {
	mu           sync.Mutex
	reservations map[string]*reservation.Reservation

	// ledger is wired in by the test suite after both stores are built,
	// since FindFinalizedMissingLedger needs the same LEFT JOIN-equivalent
	// lookup the real repository's SQL performs.
	ledger *InMemoryLedgerStore
}

func NewInMemoryReservationStore() *InMemoryReservationStore {
	return &InMemoryReservationStore{reservations: make(map[string]*reservation.Reservation)}
}

func (s *InMemoryReservationStore) SetLedger(l *InMemoryLedgerStore) {
	s.ledger = l
}

func (s *InMemoryReservationStore) FindActiveHeld(ctx context.Context, identity, jobRef, actionCode string) (*reservation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, r := range s.reservations {
		if r.Identity == identity && r.JobRef == jobRef && r.ActionCode == actionCode &&
			r.Status == types.ReservationHeld && r.ExpiresAt.After(now) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ierr.Wrap(ierr.ErrNotFound, "RESERVATION_NOT_FOUND", "no active held reservation")
}

func (s *InMemoryReservationStore) LockHeldForClass(ctx context.Context, identity string, class string) ([]*reservation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	var out []*reservation.Reservation
	for _, r := range s.reservations {
		if r.Identity == identity && string(r.Class) == class && r.Status == types.ReservationHeld && r.ExpiresAt.After(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *InMemoryReservationStore) Create(ctx context.Context, in reservation.CreateInput) (*reservation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &reservation.Reservation{
		ID:         types.GenerateUUIDWithPrefix(types.UUIDPrefixReservation),
		Identity:   in.Identity,
		ActionCode: in.ActionCode,
		Cost:       in.Cost,
		Class:      in.Class,
		Status:     types.ReservationHeld,
		JobRef:     in.JobRef,
		CreatedAt:  time.Now().UTC(),
		ExpiresAt:  in.ExpiresAt,
		Meta:       in.Meta,
	}
	s.reservations[r.ID] = r
	cp := *r
	return &cp, nil
}

func (s *InMemoryReservationStore) LockByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, ierr.Wrap(ierr.ErrNotFound, "RESERVATION_NOT_FOUND", "reservation not found: "+id)
	}
	return r, nil
}

func (s *InMemoryReservationStore) MarkFinalized(ctx context.Context, id string, capturedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return ierr.Wrap(ierr.ErrNotFound, "RESERVATION_NOT_FOUND", "reservation not found: "+id)
	}
	r.Status = types.ReservationFinalized
	r.CapturedAt = &capturedAt
	return nil
}

func (s *InMemoryReservationStore) MarkReleased(ctx context.Context, id string, releasedAt time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return ierr.Wrap(ierr.ErrNotFound, "RESERVATION_NOT_FOUND", "reservation not found: "+id)
	}
	r.Status = types.ReservationReleased
	r.ReleasedAt = &releasedAt
	if r.Meta == nil {
		r.Meta = types.JSONMap{}
	}
	r.Meta["reason"] = reason
	return nil
}

func (s *InMemoryReservationStore) Reserved(ctx context.Context, identity string, class string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	var sum int64
	for _, r := range s.reservations {
		if r.Identity == identity && string(r.Class) == class && r.Status == types.ReservationHeld && r.ExpiresAt.After(now) {
			sum += r.Cost
		}
	}
	return sum, nil
}

func (s *InMemoryReservationStore) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.reservations {
		if r.Status == types.ReservationHeld && r.ExpiresAt.Before(now) {
			r.Status = types.ReservationReleased
			r.ReleasedAt = &now
			if r.Meta == nil {
				r.Meta = types.JSONMap{}
			}
			r.Meta["reason"] = "expired"
			n++
		}
	}
	return n, nil
}

func (s *InMemoryReservationStore) FindStaleHeld(ctx context.Context, cutoff time.Time, limit int) ([]*reservation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*reservation.Reservation
	for _, r := range s.reservations {
		if r.Status == types.ReservationHeld && r.CreatedAt.Before(cutoff) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryReservationStore) FindFinalizedMissingLedger(ctx context.Context, limit int) ([]*reservation.Reservation, error) {
	s.mu.Lock()
	var candidates []*reservation.Reservation
	for _, r := range s.reservations {
		if r.Status == types.ReservationFinalized {
			candidates = append(candidates, r)
		}
	}
	s.mu.Unlock()

	var out []*reservation.Reservation
	for _, r := range candidates {
		if _, err := s.ledger.FindByRef(ctx, "reservation", r.ID, string(types.LedgerEntryReservationFinalize)); ierr.IsNotFound(err) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryReservationStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations = make(map[string]*reservation.Reservation)
}
