package embedding

import (
	"context"
	"log/slog"

	"github.com/habiliai/memoryd/config"
	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/internal/mylog"
	"github.com/habiliai/memoryd/internal/retry"
	"github.com/jcooky/go-din"
)

// Embedder turns texts into vectors of a fixed dimension, one per text and in
// the same order.
type Embedder interface {
	Embed(ctx context.Context, texts ...string) ([][]float32, error)
	Dimensions() int
}

// EmbedOne is a convenience for single-text callers.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, errors.Mark(errors.Errorf("expected 1 embedding, got %d", len(vectors)), errors.ErrProvider)
	}
	return vectors[0], nil
}

// New assembles the configured provider behind the cache and retry layers.
func New(conf *config.EmbeddingConfig, memConf *config.MemoryConfig, logger *slog.Logger) (Embedder, error) {
	var base Embedder
	switch conf.Provider {
	case config.EmbeddingProviderOpenAI:
		base = NewOpenAIEmbedder(conf.APIKey, conf.BaseURL, conf.Model, conf.Dimensions)
	case config.EmbeddingProviderLocal:
		base = NewLocalEmbedder(conf.Dimensions)
	default:
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "unknown embedding provider %q", conf.Provider)
	}

	var e Embedder = NewRetryingEmbedder(base, retry.Policy{
		Attempts: memConf.RetryAttempts,
		Backoff:  memConf.RetryBackoff,
		Timeout:  memConf.CallTimeout,
	})
	if conf.CacheSize > 0 {
		cached, err := NewCachedEmbedder(e, conf.Model, int64(conf.CacheSize))
		if err != nil {
			return nil, err
		}
		e = cached
	}

	logger.Info("embedder ready", "provider", conf.Provider, "model", conf.Model, "dimensions", conf.Dimensions)
	return e, nil
}

func init() {
	din.RegisterT(func(c *din.Container) (Embedder, error) {
		logger := din.MustGet[*slog.Logger](c, mylog.Key)
		conf := din.MustGetT[*config.EmbeddingConfig](c)
		memConf := din.MustGetT[*config.MemoryConfig](c)

		e, err := New(conf, memConf, logger)
		if err != nil {
			return nil, err
		}
		if closer, ok := e.(interface{ Close() }); ok {
			c.RegisterOnShutdown(func(_ context.Context) { closer.Close() })
		}
		return e, nil
	})
}
