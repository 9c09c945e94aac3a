package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	ierr "github.com/DimaVasiliu/timrx-3d-print-sub000/internal/errors"
	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/httpclient"
)

// HTTPProvider is the concrete Provider backed by the generation
// subsystem's own job service.
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

func (p *HTTPProvider) GetJob(ctx context.Context, jobID string) (*Job, error) {
	resp, err := p.client.Send(ctx, &httpclient.Request{
		Method:  http.MethodGet,
		URL:     p.baseURL + "/internal/jobs/" + jobID,
		Headers: p.headers(),
	})
	if err != nil {
		// The stale-holds reconciliation check treats a vanished job the
		// same as a terminally failed one; it needs the distinction
		// surfaced as a marked not-found.
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, ierr.Wrap(ierr.ErrNotFound, "JOB_NOT_FOUND", "job not found: "+jobID)
		}
		return nil, err
	}

	var out Job
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("jobs: decode job %s: %w", jobID, err)
	}
	return &out, nil
}

func (p *HTTPProvider) SetJobStatus(ctx context.Context, jobID, status string) error {
	payload, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return err
	}
	_, err = p.client.Send(ctx, &httpclient.Request{
		Method:  http.MethodPatch,
		URL:     p.baseURL + "/internal/jobs/" + jobID + "/status",
		Headers: p.headers(),
		Body:    payload,
	})
	return err
}

func (p *HTTPProvider) EnsurePlaceholder(ctx context.Context, jobID string) error {
	payload, err := json.Marshal(map[string]string{"job_id": jobID, "status": StatusQueued})
	if err != nil {
		return err
	}
	_, err = p.client.Send(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     p.baseURL + "/internal/jobs/ensure-placeholder",
		Headers: p.headers(),
		Body:    payload,
	})
	return err
}
