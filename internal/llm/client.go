// Package llm is the boundary to the chat-completions endpoint that authors
// the report text. All failure modes collapse into a generation error so the
// controller can treat them uniformly as retryable.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"astro-report-backend/config"
	"astro-report-backend/internal/apperr"
)

// Message mirrors the chat message structure of the completions API.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Result is the authored report plus the extracted short summary.
type Result struct {
	CoreIdentity string
	Report       string
}

// Client performs HTTP requests to an OpenAI-compatible completions endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient constructs a completions client from config.
func NewClient(cfg *config.LLMConfig) *Client {
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// GenerateReport sends the prompt and parses the authored report out of the
// completion. Network errors, non-2xx statuses and empty content all map to a
// generation error.
func (c *Client) GenerateReport(ctx context.Context, input PromptInput) (*Result, error) {
	req := chatCompletionRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildUserPrompt(input)},
		},
		Temperature: 0.7,
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeGeneration, "encode completion request", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeGeneration, "build completion request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeGeneration, "completion request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, apperr.Wrap(apperr.CodeGeneration,
			fmt.Sprintf("completion failed: status=%d body=%s", resp.StatusCode, string(body)), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeGeneration, "read completion response", err)
	}

	var out chatCompletionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperr.Wrap(apperr.CodeGeneration, "decode completion response", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return nil, apperr.New(apperr.CodeGeneration, "completion returned empty content")
	}

	content := out.Choices[0].Message.Content
	return &Result{
		CoreIdentity: ExtractCoreIdentity(content),
		Report:       content,
	}, nil
}
