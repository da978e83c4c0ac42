// Package feed fetches batches of inbound signal events from HTTP JSON endpoints.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxBodyBytes = 16 << 20

type Client struct {
	url        string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("feed error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, url string, timeout time.Duration) *Client {
	if httpClient == nil {
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		url:        strings.TrimSpace(url),
		httpClient: httpClient,
	}
}

func (c *Client) URL() string {
	if c == nil {
		return ""
	}
	return c.url
}

// Fetch returns the raw response body of a GET against the feed URL.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	if c == nil || c.url == "" {
		return nil, fmt.Errorf("feed url is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, &APIError{Status: resp.StatusCode, Body: snippet}
	}
	return body, nil
}
