package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ════════════════════════════════════════════════════════════════════
// Outbound HTTP
// ════════════════════════════════════════════════════════════════════

// DefaultTimeout bounds outbound calls whose context carries no deadline.
const DefaultTimeout = 5 * time.Second

// maxBody caps how much of a response body is read.
const maxBody = 16 << 20

// UserAgent is sent on every outbound request.
var UserAgent = "creditpulse/1.0"

// HTTPClient is the shared client. Tests may swap it.
var HTTPClient = &http.Client{Timeout: 30 * time.Second}

// DoGet issues a GET and returns the body and status code. Non-2xx
// statuses are returned with a nil error so callers can map them.
func DoGet(ctx context.Context, url string, headers map[string]string) ([]byte, int, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	return do(ctx, req, headers)
}

// DoPostJSON marshals payload and POSTs it as application/json.
func DoPostJSON(ctx context.Context, url string, payload any, headers map[string]string) ([]byte, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return do(ctx, req, headers)
}

func do(ctx context.Context, req *http.Request, headers map[string]string) ([]byte, int, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}
	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}
