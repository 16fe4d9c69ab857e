package db_test

import (
	"path/filepath"
	"testing"

	"github.com/habiliai/memoryd/config"
	"github.com/habiliai/memoryd/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	conf := config.NewMemoryConfig()
	conf.SqlitePath = "/data/m.db"
	assert.Equal(t, "/data/m.db", db.DSN(conf))

	conf.VectorBackend = config.VectorBackendPgvector
	conf.DatabaseURL = "postgres://localhost/memoryd"
	assert.Equal(t, "postgres://localhost/memoryd", db.DSN(conf))
	assert.True(t, db.IsPostgres(db.DSN(conf)))

	conf.VectorBackend = config.VectorBackendMemory
	assert.Equal(t, ":memory:", db.DSN(conf))
}

func TestOpenSqliteWithVec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "memories.db")
	gdb, err := db.OpenDB(path)
	require.NoError(t, err)
	defer db.CloseDB(gdb)

	var vecVersion string
	require.NoError(t, gdb.Raw("SELECT vec_version()").Row().Scan(&vecVersion))
	assert.NotEmpty(t, vecVersion)
	assert.FileExists(t, path)
}
