package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/httpclient"
)

// HTTPProvider is the concrete Provider backed by the platform's own
// identity service, reached over the same generic httpclient.Client the
// job adapter uses.
type HTTPProvider struct {
	client  httpclient.Client
	baseURL string
	apiKey  string
}

func NewHTTPProvider(client httpclient.Client, baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{client: client, baseURL: baseURL, apiKey: apiKey}
}

func (p *HTTPProvider) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.apiKey}
}

func (p *HTTPProvider) CurrentIdentity(ctx context.Context, r *http.Request) (*Identity, error) {
	session := r.Header.Get("Authorization")

	resp, err := p.client.Send(ctx, &httpclient.Request{
		Method:  http.MethodGet,
		URL:     p.baseURL + "/internal/identities/current",
		Headers: map[string]string{"Authorization": session},
	})
	if err != nil {
		return nil, err
	}

	var out Identity
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("identity: decode current identity: %w", err)
	}
	return &out, nil
}

func (p *HTTPProvider) AttachEmailIfMissing(ctx context.Context, identityID, email string) (bool, error) {
	payload, err := json.Marshal(map[string]string{"identity_id": identityID, "email": email})
	if err != nil {
		return false, err
	}

	resp, err := p.client.Send(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     p.baseURL + "/internal/identities/attach-email",
		Headers: p.headers(),
		Body:    payload,
	})
	if err != nil {
		return false, err
	}

	var out struct {
		Attached bool `json:"attached"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return false, fmt.Errorf("identity: decode attach-email response: %w", err)
	}
	return out.Attached, nil
}
