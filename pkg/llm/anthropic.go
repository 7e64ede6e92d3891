package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/satyrpress/satyr/pkg/secrets"
)

const anthropicVersion = "2023-06-01"

// anthropicClient speaks the Anthropic Messages API. System prompts are
// sent as a cacheable block, so stages with a stable system prompt pay
// full input price once per cache window.
type anthropicClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newAnthropic(httpClient *http.Client) (*anthropicClient, error) {
	key, err := apiKey(secrets.AnthropicAPIKey)
	if err != nil {
		return nil, err
	}
	base := os.Getenv("ANTHROPIC_BASE_URL")
	if base == "" {
		base = "https://api.anthropic.com"
	}
	return &anthropicClient{baseURL: base, apiKey: key, http: httpClient}, nil
}

type anthropicSystemBlock struct {
	Type         string          `json:"type"`
	Text         string          `json:"text"`
	CacheControl json.RawMessage `json:"cache_control,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string                 `json:"model"`
	MaxTokens   int                    `json:"max_tokens"`
	Temperature float64                `json:"temperature"`
	System      []anthropicSystemBlock `json:"system,omitempty"`
	Messages    []anthropicMessage     `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens              int `json:"input_tokens"`
		OutputTokens             int `json:"output_tokens"`
		CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
		CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	} `json:"usage"`
}

func (c *anthropicClient) complete(ctx context.Context, model string, req Request) (Completion, error) {
	body := anthropicRequest{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
	}
	if req.System != "" {
		body.System = []anthropicSystemBlock{{
			Type:         "text",
			Text:         req.System,
			CacheControl: json.RawMessage(`{"type":"ephemeral"}`),
		}}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return Completion{}, fmt.Errorf("failed to encode anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/messages", bytes.NewReader(raw))
	if err != nil {
		return Completion{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Completion{}, fmt.Errorf("anthropic request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Completion{}, &apiError{
			Provider: "anthropic",
			Status:   resp.StatusCode,
			Body:     readErrorBody(resp.Body),
		}
	}

	var decoded anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Completion{}, fmt.Errorf("failed to decode anthropic response: %w", err)
	}

	var text strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return Completion{
		Text: text.String(),
		Usage: Usage{
			InputTokens:         decoded.Usage.InputTokens,
			OutputTokens:        decoded.Usage.OutputTokens,
			CacheCreationTokens: decoded.Usage.CacheCreationInputTokens,
			CacheReadTokens:     decoded.Usage.CacheReadInputTokens,
		},
	}, nil
}

// readErrorBody captures a bounded slice of an error response for logs.
func readErrorBody(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 2048))
	return strings.TrimSpace(string(raw))
}
