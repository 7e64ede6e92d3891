package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/satyrpress/satyr/pkg/secrets"
)

// openaiClient speaks the OpenAI chat completions API. OpenAI caches long
// stable prompt prefixes automatically and reports the hit count, so the
// system prompt needs no explicit cache marker.
type openaiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newOpenAI(httpClient *http.Client) (*openaiClient, error) {
	key, err := apiKey(secrets.OpenAIAPIKey)
	if err != nil {
		return nil, err
	}
	base := os.Getenv("OPENAI_BASE_URL")
	if base == "" {
		base = "https://api.openai.com"
	}
	return &openaiClient{baseURL: base, apiKey: key, http: httpClient}, nil
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens        int `json:"prompt_tokens"`
		CompletionTokens    int `json:"completion_tokens"`
		PromptTokensDetails struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"prompt_tokens_details"`
	} `json:"usage"`
}

func (c *openaiClient) complete(ctx context.Context, model string, req Request) (Completion, error) {
	var messages []openaiMessage
	if req.System != "" {
		messages = append(messages, openaiMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, openaiMessage{Role: "user", Content: req.Prompt})

	raw, err := json.Marshal(openaiRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("failed to encode openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return Completion{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Completion{}, fmt.Errorf("openai request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Completion{}, &apiError{
			Provider: "openai",
			Status:   resp.StatusCode,
			Body:     readErrorBody(resp.Body),
		}
	}

	var decoded openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Completion{}, fmt.Errorf("failed to decode openai response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return Completion{}, fmt.Errorf("openai response has no choices")
	}

	return Completion{
		Text: decoded.Choices[0].Message.Content,
		Usage: Usage{
			InputTokens:     decoded.Usage.PromptTokens,
			OutputTokens:    decoded.Usage.CompletionTokens,
			CacheReadTokens: decoded.Usage.PromptTokensDetails.CachedTokens,
		},
	}, nil
}
