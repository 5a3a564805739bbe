package feeds

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPStrategy fetches a JSON feed document over HTTP, e.g. a load-test
// summary published to a gist or an artifact bucket.
type HTTPStrategy struct {
	url         string
	token       string
	requiredKey string
	httpClient  *http.Client
}

type HTTPOption func(*HTTPStrategy)

// WithToken sends the token as a bearer Authorization header.
func WithToken(token string) HTTPOption {
	return func(s *HTTPStrategy) { s.token = token }
}

// WithRequiredKey rejects documents that lack the named top-level object.
func WithRequiredKey(key string) HTTPOption {
	return func(s *HTTPStrategy) { s.requiredKey = key }
}

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPStrategy) { s.httpClient = c }
}

func NewHTTPStrategy(url string, timeout time.Duration, opts ...HTTPOption) *HTTPStrategy {
	s := &HTTPStrategy{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPStrategy) Fetch(ctx context.Context) (Payload, error) {
	body, err := get(ctx, s.httpClient, s.url, s.token)
	if err != nil {
		return nil, err
	}
	p, err := decodePayload(bytes.NewReader(body), s.requiredKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.url, err)
	}
	return p, nil
}

// get performs an authenticated GET and returns the body of a 2xx response.
func get(ctx context.Context, client *http.Client, url, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/javascript, */*")
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	return body, nil
}
