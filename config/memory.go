package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/habiliai/memoryd/errors"
	"github.com/jcooky/go-din"
)

const (
	VectorBackendSqlite   = "sqlite"
	VectorBackendPgvector = "pgvector"
	VectorBackendMemory   = "memory"

	GraphBackendNeo4j  = "neo4j"
	GraphBackendSqlite = "sqlite"

	GraphExtractorRules = "rules"
	GraphExtractorLLM   = "llm"
)

type MemoryConfig struct {
	// UserID scopes records written without an explicit user
	// Default: demo-user
	UserID string `env:"USER_ID" yaml:"userId"`

	// DataDir holds the embedded databases
	// Default: ~/.memoryd
	DataDir string `env:"DATA_DIR" yaml:"dataDir"`

	// VectorBackend selects the system of record: sqlite, pgvector or memory
	// Default: sqlite
	VectorBackend string `env:"VECTOR_BACKEND" yaml:"vectorBackend"`

	// SqlitePath overrides the sqlite database file
	// Default: <DataDir>/memories.db
	SqlitePath string `env:"SQLITE_PATH" yaml:"sqlitePath"`

	// DatabaseURL is the postgres DSN used by the pgvector backend
	DatabaseURL string `env:"DATABASE_URL" yaml:"databaseUrl"`

	// Graph memory mirrors entities and relations of every record
	// Default: false
	GraphEnabled   bool   `env:"GRAPH_ENABLED" yaml:"graphEnabled"`
	GraphBackend   string `env:"GRAPH_BACKEND" yaml:"graphBackend"`
	GraphExtractor string `env:"GRAPH_EXTRACTOR" yaml:"graphExtractor"`
	Neo4jURI       string `env:"NEO4J_URI" yaml:"neo4jUri"`
	Neo4jUser      string `env:"NEO4J_USER" yaml:"neo4jUser"`
	Neo4jPassword  string `env:"NEO4J_PASSWORD" yaml:"neo4jPassword"`
	Neo4jDatabase  string `env:"NEO4J_DATABASE" yaml:"neo4jDatabase"`

	// OutboxEnabled records failed graph mirroring for later reconciliation
	// Default: true
	OutboxEnabled bool `env:"OUTBOX_ENABLED" yaml:"outboxEnabled"`

	// SearchLimit is the default number of search results
	// Default: 10
	SearchLimit int `env:"SEARCH_LIMIT" yaml:"searchLimit"`

	// SearchIncludeRestricted makes restricted:* records visible to search
	// unless a caller opts out
	// Default: false
	SearchIncludeRestricted bool `env:"SEARCH_INCLUDE_RESTRICTED" yaml:"searchIncludeRestricted"`

	// Retry settings for embedding and vector store calls
	RetryAttempts int           `env:"RETRY_ATTEMPTS" yaml:"retryAttempts"`
	RetryBackoff  time.Duration `env:"RETRY_BACKOFF" yaml:"retryBackoff"`

	// CallTimeout bounds every single external call
	// Default: 30s
	CallTimeout time.Duration `env:"CALL_TIMEOUT" yaml:"callTimeout"`
}

func NewMemoryConfig() *MemoryConfig {
	return &MemoryConfig{
		UserID:         "demo-user",
		DataDir:        "~/.memoryd",
		VectorBackend:  VectorBackendSqlite,
		GraphBackend:   GraphBackendSqlite,
		GraphExtractor: GraphExtractorRules,
		Neo4jURI:       "neo4j://localhost:7687",
		Neo4jUser:      "neo4j",
		Neo4jDatabase:  "neo4j",
		OutboxEnabled:  true,
		SearchLimit:    10,
		RetryAttempts:  3,
		RetryBackoff:   200 * time.Millisecond,
		CallTimeout:    30 * time.Second,
	}
}

func (c *MemoryConfig) Validate() error {
	switch c.VectorBackend {
	case VectorBackendSqlite, VectorBackendMemory:
	case VectorBackendPgvector:
		if c.DatabaseURL == "" {
			return errors.Wrapf(errors.ErrInvalidConfig, "DATABASE_URL is required for the pgvector backend")
		}
	default:
		return errors.Wrapf(errors.ErrInvalidConfig, "unknown vector backend %q", c.VectorBackend)
	}

	if c.GraphEnabled {
		switch c.GraphBackend {
		case GraphBackendNeo4j:
			if c.Neo4jURI == "" {
				return errors.Wrapf(errors.ErrInvalidConfig, "NEO4J_URI is required for the neo4j graph backend")
			}
		case GraphBackendSqlite:
		default:
			return errors.Wrapf(errors.ErrInvalidConfig, "unknown graph backend %q", c.GraphBackend)
		}
		if c.GraphExtractor != GraphExtractorRules && c.GraphExtractor != GraphExtractorLLM {
			return errors.Wrapf(errors.ErrInvalidConfig, "unknown graph extractor %q", c.GraphExtractor)
		}
	}

	if c.UserID == "" {
		return errors.Wrapf(errors.ErrInvalidConfig, "USER_ID must not be empty")
	}
	if c.SearchLimit <= 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "search limit must be positive")
	}
	if c.RetryAttempts < 1 {
		return errors.Wrapf(errors.ErrInvalidConfig, "retry attempts must be at least 1")
	}

	return nil
}

// ResolvedDataDir expands a leading ~ to the user's home directory.
func (c *MemoryConfig) ResolvedDataDir() string {
	if strings.HasPrefix(c.DataDir, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(c.DataDir, "~"))
		}
	}
	return c.DataDir
}

func (c *MemoryConfig) ResolvedSqlitePath() string {
	if c.SqlitePath != "" {
		return c.SqlitePath
	}
	return filepath.Join(c.ResolvedDataDir(), "memories.db")
}

func init() {
	din.RegisterT(func(c *din.Container) (*MemoryConfig, error) {
		conf := NewMemoryConfig()
		if err := resolveConfig(conf, "memory", c.Env == din.EnvTest); err != nil {
			return nil, err
		}
		return conf, conf.Validate()
	})
}
