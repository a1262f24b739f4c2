// Package outbound is the shared HTTP client for third-party JSON APIs.
package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// ErrTransient marks failures worth retrying later: timeouts, connection
// errors and 5xx responses.
var ErrTransient = errors.New("transient upstream failure")

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 2 << 10

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// Unwrap lets errors.Is(err, ErrTransient) match 5xx responses.
func (e *StatusError) Unwrap() error {
	if e.Code >= 500 {
		return ErrTransient
	}
	return nil
}

// Client wraps an *http.Client with a bounded timeout.
type Client struct {
	*http.Client
}

// New returns a client whose requests give up after timeout.
func New(timeout time.Duration) *Client {
	return &Client{Client: &http.Client{Timeout: timeout}}
}

// DoJSON sends in (if non-nil) as a JSON body and decodes a JSON response into
// out (if non-nil).
func (c *Client) DoJSON(ctx context.Context, method, url string, headers map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request for %s: %w", url, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := c.send(req)
	if err != nil {
		return err
	}
	defer closeBody(res)

	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}

// Do sends a prepared request and returns the response when it is 2xx. The
// caller closes the body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.send(req)
}

// Download fetches url and returns the whole body.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	res, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(res)

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrTransient, url, err)
	}
	return data, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	res, err := c.Client.Do(req)
	if err != nil {
		if isTransient(err) {
			return nil, fmt.Errorf("%w: %s %s: %v", ErrTransient, req.Method, req.URL.Redacted(), err)
		}
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		defer closeBody(res)
		b, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, &StatusError{Method: req.Method, URL: req.URL.Redacted(), Code: res.StatusCode, Body: string(b)}
	}
	return res, nil
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func closeBody(res *http.Response) {
	if err := res.Body.Close(); err != nil {
		slog.Warn("Failed to close response body.", "error", err)
	}
}
