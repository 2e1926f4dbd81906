// Package titles generates session titles from prompt text.
package titles

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

const maxResponseBytes = 64 << 10

// HTTPGenerator asks a title service for a title. It POSTs {"prompt": ...}
// and expects {"title": ...} back.
type HTTPGenerator struct {
	URL       string
	AuthToken string
	Client    *http.Client
}

// NewHTTPGenerator creates an HTTPGenerator with a bounded client timeout.
func NewHTTPGenerator(url, token string, timeout time.Duration) *HTTPGenerator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPGenerator{
		URL:       url,
		AuthToken: token,
		Client:    &http.Client{Timeout: timeout},
	}
}

type titleRequest struct {
	Prompt string `json:"prompt"`
}

type titleResponse struct {
	Title string `json:"title"`
	Error string `json:"error,omitempty"`
}

// GenerateTitle implements orchestrator.TitleGenerator.
func (g *HTTPGenerator) GenerateTitle(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(titleRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("encode title request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build title request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+g.AuthToken)
	}

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("title request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read title response: %w", err)
	}

	var out titleResponse
	if err := json.Unmarshal(data, &out); err != nil && resp.StatusCode == http.StatusOK {
		return "", fmt.Errorf("decode title response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != "" {
			return "", fmt.Errorf("title service: %s (%d)", out.Error, resp.StatusCode)
		}
		return "", fmt.Errorf("title service returned %d", resp.StatusCode)
	}

	title := strings.TrimSpace(out.Title)
	if title == "" {
		return "", fmt.Errorf("title service returned an empty title")
	}
	return title, nil
}
