package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPChecker drives the status endpoint of a running server.
type HTTPChecker struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ Checker = (*HTTPChecker)(nil)

func NewHTTPChecker(baseURL, checkToken string, timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPChecker{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   checkToken,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPChecker) Check(ctx context.Context, transactionID string) (*Status, error) {
	endpoint := c.baseURL + "/api/v1/payments/" + url.PathEscape(transactionID) + "/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &Status{Found: false, Status: "not_found"}, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("check endpoint: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	st := &Status{Found: true}
	if err := json.Unmarshal(raw, st); err != nil {
		return nil, fmt.Errorf("decode check response: %w", err)
	}
	return st, nil
}
