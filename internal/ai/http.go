package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxResponseSize caps how much of a reply body is read (1MB).
const maxResponseSize = 1024 * 1024

// doJSONPost performs a JSON POST request and unmarshals the response.
// This is a shared helper for HTTP-based LLM clients (Ollama, LM Studio).
// Transport failures and non-200 replies are Unavailable; an undecodable
// body is InvalidResponse.
func doJSONPost[T any](ctx context.Context, client *http.Client, provider, url string, request any) (*T, error) {
	reqBody, err := json.Marshal(request)
	if err != nil {
		return nil, invalidResponse(provider, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, unavailable(provider, fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, unavailable(provider, fmt.Errorf("API call failed: %w", err))
	}
	if resp == nil {
		return nil, unavailable(provider, fmt.Errorf("API call returned nil response"))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, unavailable(provider, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &SummarizerError{
			Kind:       Unavailable,
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(body), 200)),
		}
	}

	if len(body) > maxResponseSize {
		return nil, invalidResponse(provider, fmt.Errorf("response too large (max: %d bytes)", maxResponseSize))
	}

	var response T
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, invalidResponse(provider, fmt.Errorf("failed to unmarshal response: %w", err))
	}

	return &response, nil
}

// getJSON performs a GET request and unmarshals the response.
func getJSON[T any](ctx context.Context, client *http.Client, url string) (*T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response T
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &response, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
