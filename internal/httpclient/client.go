// Package httpclient is the generic outbound HTTP boundary the identity
// and job collaborator adapters talk through.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

type Response struct {
	StatusCode int
	Body       []byte
	Headers    map[string]string
}

type Client interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

type DefaultClient struct {
	client *http.Client
}

func NewDefaultClient() Client {
	return &DefaultClient{client: &http.Client{Timeout: 10 * time.Second}}
}

func (c *DefaultClient) Send(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string)
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	out := &Response{StatusCode: resp.StatusCode, Body: respBody, Headers: headers}
	if resp.StatusCode >= 400 {
		// The response is returned alongside the error so adapters can
		// dispatch on the status (404 -> not found, etc).
		return out, fmt.Errorf("httpclient: %s %s returned %d: %s", req.Method, req.URL, resp.StatusCode, string(respBody))
	}

	return out, nil
}
