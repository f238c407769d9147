package providers

import (
	"fmt"
	"strings"

	"github.com/vizlab-ai/vizchat/internal/agent"
	"github.com/vizlab-ai/vizchat/internal/config"
)

// supportedProviders enumerates the providers Select can construct. "aws"
// is an alias for bedrock.
var supportedProviders = []string{"openai", "bedrock", "aws"}

// Select constructs the LLM provider named by the configuration. Selection
// happens once at startup and fails fast: a misconfigured provider is a
// fatal error, not something to limp along with.
func Select(cfg config.ProviderConfig) (agent.LLMProvider, error) {
	switch strings.ToLower(cfg.Name) {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY is not set")
		}
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
		}), nil

	case "bedrock", "aws":
		if cfg.AWSAccessKeyID == "" {
			return nil, fmt.Errorf("bedrock provider selected but AWS_ACCESS_KEY_ID is not set")
		}
		if cfg.AWSSecretAccessKey == "" {
			return nil, fmt.Errorf("bedrock provider selected but AWS_SECRET_ACCESS_KEY is not set")
		}
		return NewBedrockProvider(BedrockConfig{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			DefaultModel:    cfg.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported provider %q (supported: %s)",
			cfg.Name, strings.Join(supportedProviders, ", "))
	}
}
