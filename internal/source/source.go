// Package source provides the news source adapters. Each adapter negotiates
// one provider's query shape and normalizes its records into news.Item.
// Adapters skip malformed records silently; a transport-level failure
// (timeout, non-2xx) is the only error an adapter returns.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/beacon/internal/news"
)

// DefaultTimeout applies when an adapter is built without one.
const DefaultTimeout = 20 * time.Second

// Adapter is the capability every news source implements.
type Adapter interface {
	// Name identifies the source in logs and run stats.
	Name() string

	// FetchRecent returns up to limit normalized items. Per-record
	// malformation is skipped; only transport failures return an error.
	FetchRecent(ctx context.Context, limit int) ([]news.Item, error)
}

// newHTTPClient builds the outbound client shared by all adapters, with
// otel instrumentation on the transport.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// getJSON performs a GET and decodes the 2xx response body into out.
func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, truncateBody(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncateBody(body []byte) string {
	const max = 256
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}

// clampLimit bounds a requested record count to the provider's page size.
func clampLimit(limit, min, max int) int {
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

// rawPayload converts one raw provider record into the JSON-safe archival
// payload stored next to the normalized fields.
func rawPayload(raw json.RawMessage) map[string]any {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return news.JSONSafeMap(m)
}
