// Package httpclient provides small generic helpers for JSON REST calls.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// StatusError is returned when the upstream responds with a status code
// outside the allowed set.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// GetResource performs a GET against baseURL+endpoint and decodes the JSON
// body into T. Responses with a status code not in allowedStatuses yield a
// *StatusError.
func GetResource[T any](ctx context.Context, client *http.Client, baseURL, endpoint string, allowedStatuses []int) (T, error) {
	var zero T

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+endpoint, nil)
	if err != nil {
		return zero, fmt.Errorf("couldn't create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return zero, fmt.Errorf("couldn't perform request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("couldn't read response: %w", err)
	}

	allowed := false
	for _, status := range allowedStatuses {
		if resp.StatusCode == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return zero, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}

	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return zero, fmt.Errorf("couldn't decode response: %w", err)
	}
	return result, nil
}

// GetResourceQuery is GetResource with URL query parameters.
func GetResourceQuery[T any](ctx context.Context, client *http.Client, baseURL, endpoint string, query url.Values, allowedStatuses []int) (T, error) {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return GetResource[T](ctx, client, baseURL, endpoint, allowedStatuses)
}
