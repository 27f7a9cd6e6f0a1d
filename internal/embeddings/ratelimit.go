package embeddings

import (
	"context"

	"golang.org/x/time/rate"
)

// rateLimitedProvider wraps a Provider with a client-side token bucket so
// bursts of write-time embedding calls cannot exhaust upstream quotas.
type rateLimitedProvider struct {
	base    Provider
	limiter *rate.Limiter
}

// WithRateLimit caps Embed calls at rps requests per second with the given
// burst. Waiting respects the caller's context deadline.
func WithRateLimit(base Provider, rps float64, burst int) Provider {
	if base == nil || rps <= 0 {
		return base
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimitedProvider{base: base, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (p *rateLimitedProvider) Name() string    { return p.base.Name() }
func (p *rateLimitedProvider) Dimensions() int { return p.base.Dimensions() }

func (p *rateLimitedProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.base.Embed(ctx, inputs)
}
