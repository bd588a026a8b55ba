package analysis

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider names a hosted or local model family reachable through
// langchaingo.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogleAI  Provider = "googleai"
	ProviderOllama    Provider = "ollama"
)

const defaultOllamaURL = "http://localhost:11434"

// LangchainConfig configures the API-based backend.
type LangchainConfig struct {
	Provider    Provider
	APIKey      string
	BaseURL     string // custom endpoint for openai-compatible servers and ollama
	Model       string
	MaxTokens   int
	Temperature float64
}

// Langchain answers analysis requests through a langchaingo model.
type Langchain struct {
	llm         llms.Model
	provider    Provider
	maxTokens   int
	temperature float64
}

// NewLangchain builds the configured provider's client. Credential problems
// surface here as *BackendUnavailableError.
func NewLangchain(ctx context.Context, cfg LangchainConfig) (*Langchain, error) {
	log.Debug().
		Str("provider", string(cfg.Provider)).
		Str("model", cfg.Model).
		Msg("Creating langchain analysis backend")

	var model llms.Model
	var err error

	switch cfg.Provider {
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithToken(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err = openai.New(opts...)

	case ProviderAnthropic:
		opts := []anthropic.Option{anthropic.WithToken(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, anthropic.WithModel(cfg.Model))
		}
		model, err = anthropic.New(opts...)

	case ProviderGoogleAI:
		opts := []googleai.Option{googleai.WithAPIKey(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, googleai.WithDefaultModel(cfg.Model))
		}
		if cfg.MaxTokens > 0 {
			opts = append(opts, googleai.WithDefaultMaxTokens(cfg.MaxTokens))
		}
		model, err = googleai.New(ctx, opts...)

	case ProviderOllama:
		base := cfg.BaseURL
		if base == "" {
			base = defaultOllamaURL
		}
		opts := []ollama.Option{ollama.WithServerURL(base)}
		if cfg.Model != "" {
			opts = append(opts, ollama.WithModel(cfg.Model))
		}
		model, err = ollama.New(opts...)

	default:
		return nil, fmt.Errorf("unsupported analysis provider: %q", cfg.Provider)
	}

	if err != nil {
		return nil, &BackendUnavailableError{
			Backend: "langchain/" + string(cfg.Provider),
			Err:     fmt.Errorf("failed to create %s model: %w", cfg.Provider, err),
		}
	}

	return &Langchain{
		llm:         model,
		provider:    cfg.Provider,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (b *Langchain) Name() string {
	return "langchain/" + string(b.provider)
}

// Analyze generates a completion for the request. With OnChunk set the
// provider streams; the full answer is still returned at the end.
func (b *Langchain) Analyze(ctx context.Context, req Request) (string, error) {
	var callOpts []llms.CallOption
	if b.temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(b.temperature))
	}
	if b.maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(b.maxTokens))
	}
	if req.OnChunk != nil {
		callOpts = append(callOpts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) > 0 {
				req.OnChunk(string(chunk))
			}
			return nil
		}))
	}

	answer, err := llms.GenerateFromSinglePrompt(ctx, b.llm, req.FullPrompt(), callOpts...)
	if err != nil {
		return "", &BackendUnavailableError{Backend: b.Name(), Err: err}
	}
	return answer, nil
}
