// Package transport is the JSON-over-HTTP plumbing shared by the inference providers.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kiranshivaraju/aigrader/pkg/textnorm"
)

const (
	// DefaultTimeout bounds a single HTTP exchange. Callers bound the whole task with ctx.
	DefaultTimeout = 10 * time.Minute

	maxErrorBody = 1 << 16
	maxReplyBody = 8 << 20
)

// ErrEmptyReply is returned when a provider answered 2xx without any text.
var ErrEmptyReply = errors.New("provider returned an empty reply")

// StatusError is returned for a non-2xx provider response.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether the provider might succeed if asked again later.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// NewClient returns an HTTP client for provider calls.
func NewClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

// PostJSON sends in as a JSON body to url and decodes the JSON response into out.
func PostJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building %s request: %w", provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Body:       textnorm.Truncate(string(bytes.TrimSpace(raw)), 500),
		}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReplyBody)).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", provider, err)
	}
	return nil
}
