package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/domain/emailoutbox"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/types"
)

// InMemoryEmailOutboxStore mirrors emailOutboxRepository (internal/
// repository/postgres/emailoutbox.go). ClaimPendingBatch has no real
// SKIP LOCKED here; it's a single-process fake, so there's no concurrent
// claimant to skip.
type InMemoryEmailOutboxStore struct {
	mu      sync.Mutex
	entries map[string]*emailoutbox.Entry
}

func NewInMemoryEmailOutboxStore() *InMemoryEmailOutboxStore {
	return &InMemoryEmailOutboxStore{entries: make(map[string]*emailoutbox.Entry)}
}

func (s *InMemoryEmailOutboxStore) Enqueue(ctx context.Context, in emailoutbox.EnqueueInput) (*emailoutbox.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := in.ID
	if id == "" {
		id = types.GenerateUUIDWithPrefix(types.UUIDPrefixEmailOutbox)
	}
	maxAttempts := in.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 5
	}

	e := &emailoutbox.Entry{
		ID:           id,
		To:           in.To,
		Template:     in.Template,
		Payload:      in.Payload,
		Status:       types.EmailOutboxPending,
		MaxAttempts:  maxAttempts,
		Identity:     in.Identity,
		Purchase:     in.Purchase,
		IsAdminAlert: in.IsAdminAlert,
		CreatedAt:    time.Now().UTC(),
	}
	s.entries[e.ID] = e
	return e, nil
}

func (s *InMemoryEmailOutboxStore) ClaimPendingBatch(ctx context.Context, limit int) ([]*emailoutbox.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*emailoutbox.Entry
	for _, e := range s.entries {
		if e.Status == types.EmailOutboxPending {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryEmailOutboxStore) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil
	}
	e.Status = types.EmailOutboxSent
	e.SentAt = &sentAt
	return nil
}

func (s *InMemoryEmailOutboxStore) MarkAttemptFailed(ctx context.Context, id string, lastErr string) (*emailoutbox.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	e.Attempts++
	e.LastError = &lastErr
	if e.Attempts >= e.MaxAttempts {
		e.Status = types.EmailOutboxFailed
	}
	return e, nil
}

func (s *InMemoryEmailOutboxStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*emailoutbox.Entry)
}
