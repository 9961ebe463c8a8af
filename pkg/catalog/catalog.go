// Package catalog holds the plumbing shared by the remote catalogue clients
// (books and radio stations): JSON GET requests, status-code errors, and
// transport-failure classification compatible with [paginate.Kind].
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/MrWong99/fluentforge/pkg/paginate"
)

// userAgent is sent with every catalogue request.
const userAgent = "fluentforge/1.0"

// Breaker guards outgoing calls. *resilience.CircuitBreaker satisfies it.
type Breaker interface {
	Execute(fn func() error) error
}

// passThrough is the Breaker used when none is configured.
type passThrough struct{}

func (passThrough) Execute(fn func() error) error { return fn() }

// NoBreaker returns a Breaker that always runs fn.
func NoBreaker() Breaker { return passThrough{} }

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

// ClientError reports whether the status is in the 4xx range.
func (e *StatusError) ClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// GetJSON issues a GET request to url and decodes the JSON body into v. The
// call runs inside b. Transport failures are wrapped with
// [paginate.ErrNetwork]; so are rejections by an open breaker.
func GetJSON(ctx context.Context, client *http.Client, b Breaker, url string, v any) error {
	if b == nil {
		b = passThrough{}
	}
	var (
		called  bool
		respErr error
	)
	err := b.Execute(func() error {
		called = true
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", paginate.ErrNetwork, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, resp.Body)
			se := &StatusError{URL: url, StatusCode: resp.StatusCode}
			if se.ClientError() {
				respErr = se
				return nil
			}
			return se
		}

		// Client errors and malformed bodies are not outages; keep them out
		// of the breaker's failure count.
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			respErr = fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
	if err != nil && !called {
		// The breaker refused the call.
		return fmt.Errorf("%w: %w", paginate.ErrNetwork, err)
	}
	if err != nil {
		return err
	}
	return respErr
}
