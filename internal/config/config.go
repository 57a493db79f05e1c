// Package config loads process-wide settings from the environment.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config is the top-level process configuration. godotenv.Load is
// best-effort: a missing .env file is not an error, since production
// deployments set the environment directly.
type Config struct {
	LLM LLMConfig
	NVD NVDConfig

	// Out-of-core collaborators: their absence disables the capability
	// rather than failing startup.
	ResendAPIKey string
	JWTSecret    string
	FrontendURL  string
}

// LLMConfig configures the completion service used by the entity,
// briefing and report stages: a hosted model ("gemini"/"openai") or a
// generic OpenAI-compatible endpoint.
type LLMConfig struct {
	Provider string // "gemini", "openai", or "generic"
	APIKey   string
	BaseURL  string // applied when set and Provider is not "gemini"
	Format   string // "openai", "ollama", "raw"

	ModelFast  string // batched, cheap calls: entity/signal extraction
	ModelSmart string // single, higher-stakes calls: briefings, reports
}

// NVDConfig configures the vulnerability-database client. APIKey is
// optional; its absence drops the rate limiter's window capacity from
// 50 to 5.
type NVDConfig struct {
	APIKey  string
	Timeout time.Duration
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load reads configuration from the environment, loading a .env file
// first if one is present in the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		LLM: LLMConfig{
			Provider:   getEnvOrDefault("LLM_PROVIDER", "openai"),
			APIKey:     os.Getenv("OPENAI_API_KEY"),
			BaseURL:    os.Getenv("LLM_BASE_URL"),
			Format:     getEnvOrDefault("LLM_FORMAT", "openai"),
			ModelFast:  getEnvOrDefault("LLM_MODEL_FAST", "gpt-4o-mini"),
			ModelSmart: getEnvOrDefault("LLM_MODEL_SMART", "gpt-4o"),
		},
		NVD: NVDConfig{
			APIKey:  os.Getenv("NVD_API_KEY"),
			Timeout: 15 * time.Second,
		},
		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		FrontendURL:  os.Getenv("FRONTEND_URL"),
	}, nil
}
