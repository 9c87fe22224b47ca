// Package llm provides text generation backends for the reply bot.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider implements Generator using Google GenAI Gemini.
type GeminiProvider struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// GeminiConfig holds configuration for the Gemini provider.
type GeminiConfig struct {
	APIKey      string // If empty, uses GOOGLE_API_KEY env var
	Model       string // e.g., "gemini-2.5-flash-lite"
	Temperature float32
	MaxTokens   int32
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = os.Getenv("GOOGLE_MODEL")
	}
	if model == "" {
		model = DefaultModel
	}

	var genCfg *genai.GenerateContentConfig
	if cfg.Temperature > 0 || cfg.MaxTokens > 0 {
		genCfg = &genai.GenerateContentConfig{}
		if cfg.Temperature > 0 {
			genCfg.Temperature = genai.Ptr(cfg.Temperature)
		}
		if cfg.MaxTokens > 0 {
			genCfg.MaxOutputTokens = cfg.MaxTokens
		}
	}

	return &GeminiProvider{
		client: client,
		model:  model,
		config: genCfg,
	}, nil
}

// Generate produces a response from Gemini.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	return p.GenerateWithConfig(ctx, prompt, p.config)
}

// GenerateWithConfig produces a response with custom generation config.
func (p *GeminiProvider) GenerateWithConfig(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response from gemini")
	}

	return contentText(resp.Candidates[0].Content), nil
}

// Model returns the model name.
func (p *GeminiProvider) Model() string {
	return p.model
}

func contentText(content *genai.Content) string {
	if content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
