package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash-lite"

// Generator produces a text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Model reports a fixed name for function-backed generators.
func (f GeneratorFunc) Model() string { return "func" }

// Options select and tune the generator built by NewGenerator.
type Options struct {
	Backend     string // genai | adk
	Model       string
	APIKeys     []string
	Temperature float32
	Timeout     time.Duration
	MaxRetries  int
	Logger      logrus.FieldLogger
	OnCall      CallRecorder
}

// NewGenerator builds one backend per API key, chains them in a KeyRing, and
// wraps the ring with per-call timeouts and retries.
func NewGenerator(ctx context.Context, opts Options) (Generator, error) {
	if len(opts.APIKeys) == 0 {
		return nil, fmt.Errorf("at least one API key is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	backends := make([]Generator, 0, len(opts.APIKeys))
	for i, key := range opts.APIKeys {
		g, err := newBackend(ctx, opts, model, key)
		if err != nil {
			return nil, fmt.Errorf("api key %d: %w", i+1, err)
		}
		backends = append(backends, g)
	}

	ring := NewKeyRing(backends, opts.Logger)
	ring.OnCall = opts.OnCall
	return NewRetrying(ring, RetryOptions{
		Timeout:    opts.Timeout,
		MaxRetries: opts.MaxRetries,
		Logger:     opts.Logger,
	}), nil
}

func newBackend(ctx context.Context, opts Options, model, key string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", "genai":
		return NewGeminiProvider(ctx, GeminiConfig{APIKey: key, Model: model, Temperature: opts.Temperature})
	case "adk":
		m, err := gemini.NewModel(ctx, model, &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create adk gemini model: %w", err)
		}
		return NewModelProvider(m), nil
	default:
		return nil, fmt.Errorf("unsupported llm backend: %s", opts.Backend)
	}
}
