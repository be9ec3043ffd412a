// Package assist is the AI assistance gateway: a thin orchestration layer
// that asks a text-completion provider to rewrite scripted templates around
// user-supplied text, or to validate ambiguous input. Scripted handling is
// always the default; any provider failure degrades to the unmodified
// scripted text and never blocks a turn.
package assist

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Completion is one provider response with its token accounting.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Provider is the external text-completion collaborator.
type Provider interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
}

// GeminiProvider implements Provider using Google's Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a Gemini-backed provider.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{client: client, model: model}, nil
}

// Model returns the configured model name.
func (p *GeminiProvider) Model() string { return p.model }

// Complete sends one prompt and returns the text plus token counts.
func (p *GeminiProvider) Complete(ctx context.Context, prompt string) (Completion, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), nil)
	if err != nil {
		return Completion{}, fmt.Errorf("Gemini completion failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return Completion{}, fmt.Errorf("Gemini returned an empty completion")
	}

	c := Completion{Text: text}
	if resp.UsageMetadata != nil {
		c.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		c.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return c, nil
}
