package embeddings

import (
	"context"
	"os"
	"strconv"
	"strings"
)

// Provider defines a simple embeddings provider interface.
// Implementations should be concurrency-safe.
type Provider interface {
	// Name returns the provider name (e.g., "openai", "ollama").
	Name() string
	// Dimensions returns the embedding dimensionality this provider produces.
	Dimensions() int
	// Embed returns one embedding per input string.
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// NewFromEnv constructs a provider based on environment variables.
// EMBEDDINGS_PROVIDER: "openai", "ollama", "bedrock", or empty for disabled.
// A nil provider is valid: writes skip embedding and semantic search fails
// fast. EMBEDDINGS_RPS adds client-side rate limiting when set.
func NewFromEnv() Provider {
	name := strings.ToLower(strings.TrimSpace(os.Getenv("EMBEDDINGS_PROVIDER")))
	var p Provider
	switch name {
	case "openai":
		p = newOpenAIFromEnv()
	case "ollama":
		p = newOllamaFromEnv()
	case "bedrock", "titan", "aws":
		p = newBedrockFromEnv()
	default:
		return nil
	}
	if p == nil {
		return nil
	}
	if rps, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv("EMBEDDINGS_RPS")), 64); err == nil && rps > 0 {
		burst := 1
		if b, err := strconv.Atoi(strings.TrimSpace(os.Getenv("EMBEDDINGS_BURST"))); err == nil && b > 0 {
			burst = b
		}
		p = WithRateLimit(p, rps, burst)
	}
	return p
}
