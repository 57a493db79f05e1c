// Package llmclient is the shared completion-service abstraction used
// by the entity extractor, briefing generator, and period report
// builder. Any genkit-registered model — hosted (Gemini) or a generic
// OpenAI-compatible endpoint — can sit behind the one Provider
// interface.
package llmclient

import "context"

// Provider is the opaque completion service. jsonMode constrains the
// response to a single JSON object.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, jsonMode bool, maxTokens int, temperature float64) (string, error)
}
