package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// ModelProvider adapts an agent-kit model.LLM to the Generator interface.
type ModelProvider struct {
	llm model.LLM
}

// NewModelProvider wraps m.
func NewModelProvider(m model.LLM) *ModelProvider {
	return &ModelProvider{llm: m}
}

// Generate sends a single user turn and concatenates the non-partial response text.
func (p *ModelProvider) Generate(ctx context.Context, prompt string) (string, error) {
	req := &model.LLMRequest{
		Model: p.llm.Name(),
		Contents: []*genai.Content{
			genai.NewContentFromText(prompt, genai.RoleUser),
		},
		Config: &genai.GenerateContentConfig{},
	}

	var b strings.Builder
	for resp, err := range p.llm.GenerateContent(ctx, req, false) {
		if err != nil {
			return "", fmt.Errorf("%s generate failed: %w", p.llm.Name(), err)
		}
		if resp == nil || resp.Partial {
			continue
		}
		if resp.ErrorCode != "" {
			return "", fmt.Errorf("%s generate failed: %s: %s", p.llm.Name(), resp.ErrorCode, resp.ErrorMessage)
		}
		b.WriteString(contentText(resp.Content))
	}
	if b.Len() == 0 {
		return "", errors.New("no response from " + p.llm.Name())
	}
	return b.String(), nil
}

// Model returns the wrapped model's name.
func (p *ModelProvider) Model() string {
	return p.llm.Name()
}
