// Package identity is the external identity/session collaborator. The
// core never issues or deletes identities — it only reads the
// current caller and, once, attaches a verified email discovered from a
// purchase.
package identity

import (
	"context"
	"net/http"
)

// Identity is the subset of identity-service state the core needs.
type Identity struct {
	ID            string
	Email         string
	EmailVerified bool
}

// Provider is implemented by whatever issues sessions in the surrounding
// platform; the core only ever depends on this interface.
type Provider interface {
	// CurrentIdentity resolves the caller of an HTTP request.
	CurrentIdentity(ctx context.Context, r *http.Request) (*Identity, error)

	// AttachEmailIfMissing sets an identity's email only if it has none
	// and no other identity already holds it. Returns false (not an
	// error) when either guard blocks the attach — the purchase ingestor
	// treats that as "leave it as metadata only".
	AttachEmailIfMissing(ctx context.Context, identityID, email string) (bool, error)
}
