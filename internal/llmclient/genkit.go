package llmclient

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/openai/openai-go/option"

	"github.com/greywatch/sentinel/internal/config"
)

// GenkitProvider is the genkit-backed Provider. It supports both a
// hosted Gemini model and a generic OpenAI-compatible endpoint,
// matching the two shapes config.LLMConfig distinguishes.
type GenkitProvider struct {
	app   *genkit.Genkit
	model string
}

// NewGenkitProvider initializes genkit with the plugin matching cfg's
// provider and registers modelName as the default model.
func NewGenkitProvider(ctx context.Context, cfg config.LLMConfig, modelName string) (*GenkitProvider, error) {
	switch cfg.Provider {
	case "gemini":
		app := genkit.Init(ctx,
			genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: cfg.APIKey}),
			genkit.WithDefaultModel(fmt.Sprintf("googleai/%s", modelName)),
		)
		return &GenkitProvider{app: app, model: fmt.Sprintf("googleai/%s", modelName)}, nil
	default:
		// "openai" and "generic" both ride the OpenAI-compatible plugin;
		// a base-URL override points it at any compatible endpoint.
		plugin := &openai.OpenAI{APIKey: cfg.APIKey}
		if cfg.BaseURL != "" {
			plugin.Opts = append(plugin.Opts, option.WithBaseURL(cfg.BaseURL))
		}
		app := genkit.Init(ctx,
			genkit.WithPlugins(plugin),
			genkit.WithDefaultModel(fmt.Sprintf("openai/%s", modelName)),
		)
		return &GenkitProvider{app: app, model: fmt.Sprintf("openai/%s", modelName)}, nil
	}
}

// Complete implements Provider.
func (p *GenkitProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, jsonMode bool, maxTokens int, temperature float64) (string, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(p.model),
		ai.WithSystem(systemPrompt),
		ai.WithPrompt(userPrompt),
		ai.WithConfig(&ai.GenerationCommonConfig{
			MaxOutputTokens: maxTokens,
			Temperature:     temperature,
		}),
	}
	if jsonMode {
		opts = append(opts, ai.WithOutputFormat(ai.OutputFormatJSON))
	}

	resp, err := genkit.Generate(ctx, p.app, opts...)
	if err != nil {
		return "", fmt.Errorf("llmclient: generate failed: %w", err)
	}
	return resp.Text(), nil
}
