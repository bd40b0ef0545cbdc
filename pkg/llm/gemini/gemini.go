// Package gemini provides a Gemini LLM provider implementation backed by
// the google.golang.org/genai SDK.
package gemini

import (
	"context"
	"fmt"
	"os"
	"time"

	"google.golang.org/genai"

	"github.com/altamira-dev/webpilot/pkg/llm"
	"github.com/altamira-dev/webpilot/pkg/types"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-2.0-flash"

	// defaultTimeout bounds a single completion call.
	defaultTimeout = 2 * time.Minute
)

// Provider implements the llm.Provider interface for the Gemini API.
// Conversations are stateless on the wire: every call carries the full
// history, so Reset has nothing to discard beyond bookkeeping.
type Provider struct {
	client  *genai.Client
	config  llm.GenerationConfig
	timeout time.Duration
}

// ProviderOption is a function that configures a Provider.
type ProviderOption func(*Provider)

// WithConfig sets the generation configuration, including the model and
// safety thresholds passed through to the API unmodified.
func WithConfig(config llm.GenerationConfig) ProviderOption {
	return func(p *Provider) {
		p.config = config
	}
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(timeout time.Duration) ProviderOption {
	return func(p *Provider) {
		p.timeout = timeout
	}
}

// NewProvider creates a new Gemini provider with the given API key.
//
// If apiKey is empty, it will attempt to read from the GEMINI_API_KEY
// environment variable.
func NewProvider(ctx context.Context, apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (provide via parameter or GEMINI_API_KEY environment variable)")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	p := &Provider{
		client:  client,
		config:  llm.GenerationConfig{Model: DefaultModel},
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.config.Model == "" {
		p.config.Model = DefaultModel
	}

	return p, nil
}

// Complete sends the instructions and history to the model and returns its
// reply text.
func (p *Provider) Complete(ctx context.Context, instructions string, history []*types.Turn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	contents := convertHistory(history)
	if len(contents) == 0 {
		return "", fmt.Errorf("no content to send")
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.config.Model, contents, p.generateConfig(instructions))
	if err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty completion")
	}
	return text, nil
}

// Reset discards provider-side conversation state. The Gemini API is
// stateless per request, so there is nothing to tear down.
func (p *Provider) Reset() {}

// Model returns the configured model name.
func (p *Provider) Model() string {
	return p.config.Model
}

// generateConfig builds the request configuration, passing configured
// safety thresholds through unmodified.
func (p *Provider) generateConfig(instructions string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if instructions != "" {
		config.SystemInstruction = genai.NewContentFromText(instructions, genai.RoleUser)
	}
	if p.config.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(p.config.Temperature))
	}
	if p.config.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(p.config.MaxOutputTokens)
	}
	for category, threshold := range p.config.SafetyThresholds {
		config.SafetySettings = append(config.SafetySettings, &genai.SafetySetting{
			Category:  genai.HarmCategory(category),
			Threshold: genai.HarmBlockThreshold(threshold),
		})
	}

	return config
}

// convertHistory maps conversation turns to Gemini contents. System turns
// are folded into the user role since Gemini carries instructions
// separately; image items become inline byte parts so the model sees
// screenshots taken earlier in the task.
func convertHistory(history []*types.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		role := genai.RoleUser
		if turn.Role == types.RoleAssistant {
			role = genai.RoleModel
		}

		parts := make([]*genai.Part, 0, len(turn.Items))
		for _, item := range turn.Items {
			switch item.Kind {
			case types.ContentText:
				if item.Text != "" {
					parts = append(parts, genai.NewPartFromText(item.Text))
				}
			case types.ContentImage:
				parts = append(parts, genai.NewPartFromBytes(item.Data, item.MIME))
			case types.ContentJSON:
				if item.Raw != "" {
					parts = append(parts, genai.NewPartFromText(item.Raw))
				}
			}
		}
		if len(parts) == 0 {
			continue
		}

		contents = append(contents, genai.NewContentFromParts(parts, genai.Role(role)))
	}
	return contents
}
