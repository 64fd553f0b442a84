package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAISource lists models from an OpenAI-compatible endpoint.
type OpenAISource struct {
	provider string
	baseURL  string
	apiKey   string
	client   *http.Client
}

// NewOpenAISource creates a discovery client for an OpenAI-style endpoint.
// baseURL should be like "https://api.openai.com"
func NewOpenAISource(provider, baseURL, apiKey string) *OpenAISource {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	// Remove trailing slash if present
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &OpenAISource{
		provider: provider,
		baseURL:  baseURL,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// ListAgents fetches the model catalogue.
func (o *OpenAISource) ListAgents(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/v1/models", o.baseURL), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Provider: o.provider,
			Message:  strings.TrimSpace(string(respBody)),
			Code:     resp.StatusCode,
		}
	}

	var result openaiModelsResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	names := make([]string, 0, len(result.Data))
	for _, m := range result.Data {
		if m.ID != "" {
			names = append(names, m.ID)
		}
	}
	return names, nil
}

// Name returns the provider id.
func (o *OpenAISource) Name() string {
	return o.provider
}

// API response structures

type openaiModelsResponse struct {
	Object string             `json:"object"`
	Data   []openaiModelEntry `json:"data"`
}

type openaiModelEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}
