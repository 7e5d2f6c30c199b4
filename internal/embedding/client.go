package embedding

import (
	"context"
	"time"
)

// Client defines the interface for embedding providers.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config holds configuration for the embedding service.
type Config struct {
	Provider       string
	APIKey         string
	Model          string
	BaseURL        string
	MaxRetries     int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
	CacheTTL       time.Duration
	CacheSize      int
	RateLimit      int
}
