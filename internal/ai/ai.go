// Package ai talks to the drawing assistant service: it interprets a
// captured selection and can redraw it as a replacement image.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client calls the assistant HTTP service. The zero value is not usable;
// construct it with NewClient.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the assistant at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Analyze sends a PNG capture and returns the assistant's interpretation,
// a short sentence describing what the selection depicts.
func (c *Client) Analyze(ctx context.Context, png []byte) (string, error) {
	body, err := c.post(ctx, "/analyze", png)
	if err != nil {
		return "", fmt.Errorf("ai: analyze: %w", err)
	}
	var resp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("ai: analyze: decode response: %w", err)
	}
	if resp.Message == "" {
		return "", fmt.Errorf("ai: analyze: empty response")
	}
	return resp.Message, nil
}

// Improve sends a PNG capture and returns a redrawn PNG meant to replace
// the captured shapes on the board.
func (c *Client) Improve(ctx context.Context, png []byte) ([]byte, error) {
	body, err := c.post(ctx, "/improve", png)
	if err != nil {
		return nil, fmt.Errorf("ai: improve: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("ai: improve: empty image")
	}
	return body, nil
}

func (c *Client) post(ctx context.Context, path string, png []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(png))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/png")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
