package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openreceipts/shelfmatch/internal/common"
	"github.com/openreceipts/shelfmatch/internal/service"
)

// Service wraps an embedding Client with caching, rate limiting, and
// retries. It satisfies the matcher's Embedder interface.
type Service struct {
	client      Client
	cache       *vectorCache
	rateLimiter *rateLimiter
	logger      *slog.Logger
	retryOpts   service.RetryOptions
	timeout     time.Duration
}

// NewService creates an embedding service for the configured provider.
// Provider "none" (or empty) disables embeddings entirely: the returned
// service is nil and callers fall back to the non-embedding strategies.
func NewService(cfg Config, logger *slog.Logger) (*Service, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return nil, nil
	case "openai":
		client, err := newOpenAIClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding client: %w", err)
		}
		return newService(client, cfg, logger), nil
	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider: %s", common.ErrInvalidConfig, cfg.Provider)
	}
}

func newService(client Client, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Service{
		client:      client,
		cache:       newVectorCache(cfg.CacheSize, cfg.CacheTTL),
		rateLimiter: newRateLimiter(cfg.RateLimit),
		logger:      logger,
		retryOpts:   retryOpts,
		timeout:     timeout,
	}
}

// Embed returns the embedding vector for the given text, serving repeats
// from the cache. Provider failures surface as ErrEmbeddingUnavailable so
// callers can degrade instead of aborting.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if vector, found := s.cache.get(key); found {
		s.logger.Debug("embedding cache hit", "text", text)
		return vector, nil
	}

	if err := s.rateLimiter.wait(ctx); err != nil {
		return nil, err
	}

	var vector []float32
	err := common.WithRetry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		var embedErr error
		vector, embedErr = s.client.Embed(callCtx, text)
		return embedErr
	}, s.retryOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrEmbeddingUnavailable, err)
	}

	s.cache.set(key, vector)
	return vector, nil
}

// Close stops the cache and rate limiter goroutines.
func (s *Service) Close() {
	s.cache.Close()
	s.rateLimiter.Close()
}

// cacheKey normalizes text so trivially different spellings share an entry.
func cacheKey(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
