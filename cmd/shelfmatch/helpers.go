package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/viper"

	"github.com/openreceipts/shelfmatch/internal/brand"
	"github.com/openreceipts/shelfmatch/internal/config"
	"github.com/openreceipts/shelfmatch/internal/embedding"
	"github.com/openreceipts/shelfmatch/internal/engine"
	"github.com/openreceipts/shelfmatch/internal/match"
	"github.com/openreceipts/shelfmatch/internal/review"
	"github.com/openreceipts/shelfmatch/internal/selection"
	"github.com/openreceipts/shelfmatch/internal/service"
	"github.com/openreceipts/shelfmatch/internal/storage"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	// Get database path from config
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/shelfmatch/shelfmatch.db"
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	// Initialize storage
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// newEmbedder creates the embedding service from configuration. Both
// returns are nil when no provider is configured; matching then runs on
// the non-embedding strategies alone.
func newEmbedder() (*embedding.Service, error) {
	cfg := embedding.Config{
		Provider:       viper.GetString("embedding.provider"),
		Model:          viper.GetString("embedding.model"),
		BaseURL:        viper.GetString("embedding.base_url"),
		MaxRetries:     viper.GetInt("embedding.max_retries"),
		RetryDelay:     viper.GetDuration("embedding.retry_delay"),
		RequestTimeout: viper.GetDuration("embedding.request_timeout"),
		CacheTTL:       viper.GetDuration("embedding.cache_ttl"),
		CacheSize:      viper.GetInt("embedding.cache_size"),
		RateLimit:      viper.GetInt("embedding.rate_limit"),
	}

	// Check viper first, then environment variable
	apiKey := viper.GetString("embedding.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	cfg.APIKey = apiKey

	return embedding.NewService(cfg, slog.Default())
}

// pipeline bundles the matching collaborators shared between the match,
// rematch, and selection commands.
type pipeline struct {
	scorer    *brand.Scorer
	generator *match.Generator
	resolver  *selection.Resolver
	queue     *review.Manager
}

func newPipeline(store service.Storage) (*pipeline, error) {
	scorer, err := brand.NewDefaultScorer()
	if err != nil {
		return nil, fmt.Errorf("failed to load brand alias table: %w", err)
	}

	// The embedder must stay a nil interface when embeddings are
	// disabled; assigning a nil *Service would defeat the strategies'
	// nil checks.
	var embedder match.Embedder
	embedSvc, err := newEmbedder()
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding service: %w", err)
	}
	if embedSvc != nil {
		embedder = embedSvc
	}

	genCfg := match.DefaultGeneratorConfig()
	if v := viper.GetFloat64("matching.recall_threshold"); v > 0 {
		genCfg.RecallThreshold = v
	}
	generator := match.NewGenerator(store, embedder, genCfg)

	return &pipeline{
		scorer:    scorer,
		generator: generator,
		resolver:  selection.NewResolver(store, generator, scorer, slog.Default()),
		queue:     review.NewManager(store, slog.Default()),
	}, nil
}

// newMatcher assembles the full matching engine over the given store. A
// nil prompter sends ambiguous items to the review queue instead of
// prompting.
func newMatcher(store service.Storage, prompter engine.Prompter) (*engine.Matcher, error) {
	parts, err := newPipeline(store)
	if err != nil {
		return nil, err
	}

	ranker := match.NewRanker(parts.scorer, match.DefaultRankerConfig())

	cfg := engine.DefaultConfig()
	cfg.Selection = selectionConfig()
	if v := viper.GetInt("matching.chunk_size"); v > 0 {
		cfg.ChunkSize = v
	}

	return engine.New(store, parts.generator, ranker, parts.resolver, parts.queue, prompter, cfg, slog.Default()), nil
}

// selectionConfig returns the proposal bounds with any config overrides.
func selectionConfig() selection.Config {
	cfg := selection.DefaultConfig()
	if v := viper.GetFloat64("matching.min_similarity"); v > 0 {
		cfg.MinSimilarity = v
	}
	if v := viper.GetInt("matching.max_options"); v > 0 {
		cfg.MaxOptions = v
	}
	return cfg
}

// newReviewQueue builds just the review queue manager, for commands that
// do not need the full engine.
func newReviewQueue(store service.Storage) *review.Manager {
	return review.NewManager(store, slog.Default())
}

// reviewerID resolves who to record on queue state transitions.
func reviewerID(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "reviewer"
}

// newProgressBar builds the standard import progress bar.
func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stdout),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan][bold]%s[reset]", description)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}
