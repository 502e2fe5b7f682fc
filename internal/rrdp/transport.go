package rrdp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Getter is the single transport primitive the fetcher needs: one GET bounded
// by the client's configured timeout.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// StatusError reports an HTTP exchange that produced a response but still
// failed: a non-2xx status, or a body read failure after a nominally
// successful status.
type StatusError struct {
	URL        string
	StatusCode int
	Cause      error
}

func (e *StatusError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("GET %s: status %d: %v", e.URL, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return e.Cause }

// Is2xx reports whether the response status was nominally successful.
func (e *StatusError) Is2xx() bool {
	return e.StatusCode >= 200 && e.StatusCode <= 299
}

// maxResponseBytes caps downloads. Production snapshots run to a few hundred
// megabytes; anything past the cap is a broken or hostile publisher.
const maxResponseBytes = 1 << 30

// HTTPGetter is the production transport: net/http with a single total
// timeout per request.
type HTTPGetter struct {
	client *http.Client
	ua     string
}

// NewHTTPGetter returns a transport whose every GET is bounded by timeout.
func NewHTTPGetter(timeout time.Duration) *HTTPGetter {
	return &HTTPGetter{
		client: &http.Client{Timeout: timeout},
		ua:     "rrdp-mirror/1.0",
	}
}

// Get fetches url and returns the full response body.
func (g *HTTPGetter) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", g.ua)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Error("failed to close response body", "url", url, "err", closeErr)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		// The status line said success but the body never arrived intact.
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Cause: err}
	}
	return body, nil
}

// IsTimeout reports whether err carries a structured timeout signal, either
// from the transport or from a context deadline. The fetcher never inspects
// error strings to detect timeouts.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
