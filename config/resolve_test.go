package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/habiliai/memoryd/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfigFromEnv(t *testing.T) {
	t.Setenv("USER_ID", "alice")
	t.Setenv("GRAPH_ENABLED", "true")
	t.Setenv("SEARCH_LIMIT", "25")
	t.Setenv("RETRY_BACKOFF", "1s")

	conf := NewMemoryConfig()
	require.NoError(t, resolveConfig(conf, "memory", true))

	assert.Equal(t, "alice", conf.UserID)
	assert.True(t, conf.GraphEnabled)
	assert.Equal(t, 25, conf.SearchLimit)
	assert.Equal(t, time.Second, conf.RetryBackoff)
	// untouched defaults survive
	assert.Equal(t, VectorBackendSqlite, conf.VectorBackend)
	assert.Equal(t, 30*time.Second, conf.CallTimeout)
}

func TestResolveConfigYamlSectionThenEnv(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "memoryd.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(`
memory:
  userId: from-file
  vectorBackend: memory
  searchLimit: 3
server:
  port: 9999
`), 0o600))
	t.Setenv(FileEnv, filename)
	t.Setenv("SEARCH_LIMIT", "7")

	conf := NewMemoryConfig()
	require.NoError(t, resolveConfig(conf, "memory", true))
	assert.Equal(t, "from-file", conf.UserID)
	assert.Equal(t, VectorBackendMemory, conf.VectorBackend)
	assert.Equal(t, 7, conf.SearchLimit)

	server := NewServerConfig()
	require.NoError(t, resolveConfig(server, "server", true))
	assert.Equal(t, 9999, server.Port)
}

func TestMemoryConfigValidate(t *testing.T) {
	conf := NewMemoryConfig()
	require.NoError(t, conf.Validate())

	conf.VectorBackend = VectorBackendPgvector
	err := conf.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))

	conf = NewMemoryConfig()
	conf.GraphEnabled = true
	conf.GraphBackend = "dgraph"
	assert.Error(t, conf.Validate())
}

func TestLLMConfigKey(t *testing.T) {
	conf := NewLLMConfig()
	require.NoError(t, conf.Validate())

	conf.Provider = LLMProviderAnthropic
	assert.Error(t, conf.Validate())

	conf.AnthropicAPIKey = "sk-ant"
	require.NoError(t, conf.Validate())
	assert.Equal(t, "sk-ant", conf.Key())
	assert.Equal(t, "claude-3-5-haiku-latest", conf.ModelName())
}

func TestResolvedSqlitePath(t *testing.T) {
	conf := NewMemoryConfig()
	conf.DataDir = "/var/lib/memoryd"
	assert.Equal(t, "/var/lib/memoryd/memories.db", conf.ResolvedSqlitePath())

	conf.SqlitePath = "/tmp/x.db"
	assert.Equal(t, "/tmp/x.db", conf.ResolvedSqlitePath())
}
