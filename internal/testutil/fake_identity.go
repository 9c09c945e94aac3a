package testutil

import (
	"context"
	"net/http"
	"sync"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/identity"
)

// FakeIdentityProvider is a controllable double for identity.Provider.
// Tests register identities and set Current directly rather than parsing
// real session tokens.
type FakeIdentityProvider struct {
	mu         sync.Mutex
	identities map[string]*identity.Identity
	byEmail    map[string]string // email -> identity id

	// Current is returned by CurrentIdentity regardless of the request,
	// since this fake has no real session layer to decode.
	Current *identity.Identity
}

func NewFakeIdentityProvider() *FakeIdentityProvider {
	return &FakeIdentityProvider{
		identities: make(map[string]*identity.Identity),
		byEmail:    make(map[string]string),
	}
}

func (f *FakeIdentityProvider) Register(id *identity.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identities[id.ID] = id
	if id.Email != "" {
		f.byEmail[id.Email] = id.ID
	}
}

func (f *FakeIdentityProvider) CurrentIdentity(ctx context.Context, r *http.Request) (*identity.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Current == nil {
		return nil, http.ErrNoCookie
	}
	return f.Current, nil
}

func (f *FakeIdentityProvider) AttachEmailIfMissing(ctx context.Context, identityID, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, taken := f.byEmail[email]; taken {
		return false, nil
	}
	id, ok := f.identities[identityID]
	if !ok {
		id = &identity.Identity{ID: identityID}
		f.identities[identityID] = id
	}
	if id.Email != "" {
		return false, nil
	}
	id.Email = email
	f.byEmail[email] = identityID
	return true, nil
}

func (f *FakeIdentityProvider) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identities = make(map[string]*identity.Identity)
	f.byEmail = make(map[string]string)
	f.Current = nil
}
