package embedder

import (
	"fmt"
	"strings"

	"github.com/dshills/repoindex/internal/config"
	"go.uber.org/zap"
)

// NewProvider builds the provider named by cfg.Provider
func NewProvider(cfg config.Embedding) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI, "":
		base := cfg.BaseURL
		if base == "" {
			base = DefaultOpenAIBaseURL
		}
		return NewHTTPProvider(ProviderOpenAI, base, cfg.APIKey, cfg.Timeout)
	case ProviderJina:
		base := cfg.BaseURL
		if base == "" || base == DefaultOpenAIBaseURL {
			base = DefaultJinaBaseURL
		}
		return NewHTTPProvider(ProviderJina, base, cfg.APIKey, cfg.Timeout)
	case ProviderLocal:
		return NewLocalProvider(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrNoProviderEnabled, cfg.Provider)
	}
}

// New creates a Client from configuration
func New(cfg config.Embedding, logger *zap.Logger) (*Client, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel(cfg.Provider)
	}

	dim := cfg.Dimension
	if strings.EqualFold(cfg.Provider, ProviderLocal) && dim == 0 {
		dim = LocalDimension
	}

	return NewClient(provider, Options{
		Model:       model,
		Dimension:   dim,
		BatchSize:   cfg.BatchSize,
		Parallelism: cfg.Parallelism,
		RateLimit:   cfg.RateLimit,
		CacheSize:   cfg.CacheSize,
		Retry: RetryConfig{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.BaseDelay,
			MaxDelay:   cfg.MaxDelay,
			Multiplier: BackoffMultiplier,
			Jitter:     BackoffJitter,
		},
	}, logger), nil
}

// DefaultModel returns the model used when none is configured
func DefaultModel(provider string) string {
	switch strings.ToLower(provider) {
	case ProviderJina:
		return DefaultJinaModel
	case ProviderLocal:
		return DefaultLocalModel
	default:
		return DefaultOpenAIModel
	}
}
