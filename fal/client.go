package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://fal.run/fal-ai/bytedance/seedream/v4"

	// Generation can take minutes; a timed-out call is fatal to the
	// interaction, never retried.
	requestTimeout = 300 * time.Second
)

// Image is one generated image in an API response.
type Image struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

// Result is the parsed response of a generation or edit call. Images may be
// empty or absent on a 2xx response; that is a degenerate result, not an
// error, and Raw keeps the body for diagnosis.
type Result struct {
	Images []Image
	Seed   int64
	Raw    string
}

// Client calls the fal.run Seedream v4 endpoints.
type Client struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

// NewClient creates a new Seedream client.
func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:  apiKey,
		BaseURL: defaultBaseURL,
		Client:  &http.Client{Timeout: requestTimeout},
	}
}

// WithKey returns a copy of the client using a different API key. Used when a
// session carries its own key instead of the configured one.
func (c *Client) WithKey(apiKey string) *Client {
	cc := *c
	cc.APIKey = apiKey
	return &cc
}

// Generate sends a text-to-image request.
func (c *Client) Generate(ctx context.Context, req GenerationRequest) (*Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, &ConfigError{Reason: "prompt is required"}
	}
	return c.post(ctx, c.BaseURL+"/text-to-image", buildPayload(req, nil))
}

// Edit sends an edit request with one or more source image URLs.
func (c *Client) Edit(ctx context.Context, req EditRequest) (*Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, &ConfigError{Reason: "prompt is required"}
	}
	if len(req.ImageURLs) == 0 {
		return nil, &ConfigError{Reason: "at least one source image URL is required"}
	}
	return c.post(ctx, c.BaseURL+"/edit", buildPayload(req.GenerationRequest, req.ImageURLs))
}

func (c *Client) post(ctx context.Context, url string, payload apiPayload) (*Result, error) {
	if c.APIKey == "" {
		return nil, &ConfigError{Reason: "API key is not set"}
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("fal: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("fal: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+c.APIKey)

	// The key is deliberately absent from all log lines.
	log.Printf("Calling fal.run: %s", url)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	log.Printf("fal.run responded with status %d", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var apiResp struct {
		Images []Image `json:"images"`
		Seed   int64   `json:"seed"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("fal: failed to decode response: %w", err)
	}

	return &Result{Images: apiResp.Images, Seed: apiResp.Seed, Raw: string(respBody)}, nil
}
