// Package openai provides an OpenAI-compatible LLM provider implementation.
//
// It targets the plain chat completions endpoint over raw HTTP, which
// provides better compatibility with OpenAI-compatible APIs (Azure, local
// models) than a fully SDK-managed client would.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/openai/openai-go"

	"github.com/altamira-dev/webpilot/pkg/llm"
	"github.com/altamira-dev/webpilot/pkg/types"
)

const (
	// DefaultBaseURL is the default OpenAI API base URL
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when no model is configured
	DefaultModel = "gpt-4o"

	// defaultTimeout bounds a single completion call
	defaultTimeout = 2 * time.Minute
)

// Provider implements the llm.Provider interface for OpenAI-compatible APIs.
type Provider struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	config     llm.GenerationConfig
}

// ProviderOption is a function that configures a Provider.
type ProviderOption func(*Provider)

// WithConfig sets the generation configuration.
func WithConfig(config llm.GenerationConfig) ProviderOption {
	return func(p *Provider) {
		p.config = config
	}
}

// WithBaseURL sets a custom base URL for OpenAI-compatible APIs.
// This enables using Azure OpenAI, local models, or other compatible services.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// NewProvider creates a new OpenAI provider with the given API key.
//
// If apiKey is empty, it will attempt to read from the OPENAI_API_KEY
// environment variable. If baseURL is not provided via WithBaseURL, the
// OPENAI_BASE_URL environment variable is consulted before the default.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (provide via parameter or OPENAI_API_KEY environment variable)")
	}

	p := &Provider{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    DefaultBaseURL,
		config:     llm.GenerationConfig{Model: DefaultModel},
	}

	// Apply options (may override baseURL via WithBaseURL)
	for _, opt := range opts {
		opt(p)
	}

	// If baseURL wasn't set by options, check environment variable
	if p.baseURL == DefaultBaseURL {
		if envBaseURL := os.Getenv("OPENAI_BASE_URL"); envBaseURL != "" {
			p.baseURL = envBaseURL
		}
	}
	if p.config.Model == "" {
		p.config.Model = DefaultModel
	}

	return p, nil
}

// Complete sends the instructions and history to the chat completions
// endpoint and returns the reply text.
func (p *Provider) Complete(ctx context.Context, instructions string, history []*types.Turn) (string, error) {
	messages := convertHistory(instructions, history)

	reqBody := map[string]interface{}{
		"model":    p.config.Model,
		"messages": messages,
	}
	if p.config.Temperature > 0 {
		reqBody["temperature"] = p.config.Temperature
	}
	if p.config.MaxOutputTokens > 0 {
		reqBody["max_tokens"] = p.config.MaxOutputTokens
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no completion returned")
	}

	return completion.Choices[0].Message.Content, nil
}

// Reset discards provider-side conversation state. The chat completions
// endpoint is stateless per request, so there is nothing to tear down.
func (p *Provider) Reset() {}

// Model returns the configured model name.
func (p *Provider) Model() string {
	return p.config.Model
}

// GetBaseURL returns the base URL being used.
func (p *Provider) GetBaseURL() string {
	return p.baseURL
}

// convertHistory maps instructions and turns into OpenAI message params.
// Image items are embedded as base64 data URLs so screenshot feedback
// reaches multimodal models; structured blobs travel as plain text.
func convertHistory(instructions string, history []*types.Turn) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	if instructions != "" {
		messages = append(messages, openai.SystemMessage(instructions))
	}

	for _, turn := range history {
		switch turn.Role {
		case types.RoleSystem:
			messages = append(messages, openai.SystemMessage(turn.Text()))
		case types.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Text()))
		default:
			if turn.HasMedia() {
				messages = append(messages, openai.UserMessage(convertParts(turn)))
			} else {
				messages = append(messages, openai.UserMessage(turn.Text()))
			}
		}
	}

	return messages
}

// convertParts maps a mixed-content turn to content parts.
func convertParts(turn *types.Turn) []openai.ChatCompletionContentPartUnionParam {
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(turn.Items))
	for _, item := range turn.Items {
		switch item.Kind {
		case types.ContentText:
			if item.Text != "" {
				parts = append(parts, openai.TextContentPart(item.Text))
			}
		case types.ContentImage:
			dataURL := fmt.Sprintf("data:%s;base64,%s", item.MIME, base64.StdEncoding.EncodeToString(item.Data))
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: dataURL,
			}))
		case types.ContentJSON:
			if item.Raw != "" {
				parts = append(parts, openai.TextContentPart(item.Raw))
			}
		}
	}
	return parts
}
