package store

import (
	"context"
	"log/slog"

	"github.com/habiliai/memoryd/config"
	"github.com/habiliai/memoryd/embedding"
	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/internal/db"
	"github.com/habiliai/memoryd/internal/llm"
	"github.com/habiliai/memoryd/internal/mylog"
	"github.com/habiliai/memoryd/internal/retry"
	"github.com/jcooky/go-din"
	"gorm.io/gorm"
)

// NewVectorStore opens the configured system of record. gormDB backs the
// sqlite backend and may be nil for the others.
func NewVectorStore(ctx context.Context, conf *config.MemoryConfig, gormDB *gorm.DB, dimensions int) (VectorStore, error) {
	switch conf.VectorBackend {
	case config.VectorBackendPgvector:
		return NewPgVectorStore(ctx, conf.DatabaseURL, dimensions)
	case config.VectorBackendMemory:
		return NewMemoryVectorStore(dimensions), nil
	case config.VectorBackendSqlite:
		return NewSqliteVectorStore(ctx, gormDB, dimensions)
	default:
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "unknown vector backend %q", conf.VectorBackend)
	}
}

// NewGraphStore opens the configured graph backend and its extractor.
func NewGraphStore(ctx context.Context, conf *config.MemoryConfig, llmConf *config.LLMConfig, gormDB *gorm.DB) (GraphStore, GraphExtractor, error) {
	var extractor GraphExtractor = RuleGraphExtractor{}
	if conf.GraphExtractor == config.GraphExtractorLLM {
		completer, err := llm.New(llmConf)
		if err != nil {
			return nil, nil, err
		}
		if completer == nil {
			return nil, nil, errors.Wrapf(errors.ErrInvalidConfig, "llm graph extractor needs LLM_PROVIDER openai or anthropic")
		}
		extractor = NewLLMGraphExtractor(completer)
	}

	switch conf.GraphBackend {
	case config.GraphBackendNeo4j:
		graph, err := NewNeo4jGraphStore(ctx, conf.Neo4jURI, conf.Neo4jUser, conf.Neo4jPassword, conf.Neo4jDatabase)
		return graph, extractor, err
	default:
		graph, err := NewGormGraphStore(ctx, gormDB)
		return graph, extractor, err
	}
}

func init() {
	din.RegisterT(func(c *din.Container) (*Adapter, error) {
		logger := din.MustGet[*slog.Logger](c, mylog.Key)
		conf := din.MustGetT[*config.MemoryConfig](c)
		embedder := din.MustGetT[embedding.Embedder](c)
		gormDB := din.MustGet[*gorm.DB](c, db.Key)

		vector, err := NewVectorStore(c, conf, gormDB, embedder.Dimensions())
		if err != nil {
			return nil, err
		}

		opts := []AdapterOption{
			WithLogger(logger),
			WithRetryPolicy(retry.Policy{
				Attempts: conf.RetryAttempts,
				Backoff:  conf.RetryBackoff,
				Timeout:  conf.CallTimeout,
			}),
		}
		if conf.GraphEnabled {
			graph, extractor, err := NewGraphStore(c, conf, din.MustGetT[*config.LLMConfig](c), gormDB)
			if err != nil {
				_ = vector.Close()
				return nil, err
			}
			opts = append(opts, WithGraph(graph, extractor))

			if conf.OutboxEnabled {
				outbox, err := NewGormOutbox(c, gormDB)
				if err != nil {
					_ = vector.Close()
					return nil, err
				}
				opts = append(opts, WithOutbox(outbox))
			}
		}

		adapter := NewAdapter(vector, opts...)
		logger.Info("memory store ready",
			"vector", conf.VectorBackend,
			"graph", conf.GraphEnabled,
			"graph_backend", conf.GraphBackend,
		)

		c.RegisterOnShutdown(func(ctx context.Context) {
			if err := adapter.Close(ctx); err != nil {
				logger.Warn("failed to close memory store", "err", err)
			}
		})
		return adapter, nil
	})
}
