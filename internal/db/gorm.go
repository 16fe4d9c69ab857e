package db

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/habiliai/memoryd/config"
	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/internal/mylog"
	"github.com/jcooky/go-din"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Key = din.NewRandomName()

	loadVecOnce sync.Once
)

// IsPostgres reports whether dsn points at postgres rather than a sqlite file.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// SqliteDSN renders the connection string used for every sqlite file.
func SqliteDSN(path string) string {
	if path == ":memory:" {
		return "file::memory:?cache=shared&_foreign_keys=on"
	}
	return fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL&_foreign_keys=on", path)
}

// OpenDB opens postgres DSNs with the postgres driver and anything else as a
// sqlite file with sqlite-vec loaded.
func OpenDB(dsn string) (*gorm.DB, error) {
	conf := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if IsPostgres(dsn) {
		db, err := gorm.Open(postgres.Open(dsn), conf)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return db, nil
	}

	loadVecOnce.Do(sqlite_vec.Auto)
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create sqlite directory for %s", dsn)
		}
	}
	db, err := gorm.Open(sqlite.Open(SqliteDSN(dsn)), conf)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open sqlite database at %s", dsn)
	}
	return db, nil
}

func CloseDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrapf(err, "failed to get db")
	}
	if err := sqlDB.Close(); err != nil {
		return errors.Wrapf(err, "failed to close db")
	}

	return nil
}

// AutoMigrate creates the tables of the given models.
func AutoMigrate(ctx context.Context, db *gorm.DB, models ...any) error {
	return errors.WithStack(db.WithContext(ctx).AutoMigrate(models...))
}

func DSN(conf *config.MemoryConfig) string {
	switch conf.VectorBackend {
	case config.VectorBackendPgvector:
		return conf.DatabaseURL
	case config.VectorBackendMemory:
		return ":memory:"
	default:
		return conf.ResolvedSqlitePath()
	}
}

func init() {
	din.Register(Key, func(c *din.Container) (any, error) {
		logger := din.MustGet[*slog.Logger](c, mylog.Key)
		conf := din.MustGetT[*config.MemoryConfig](c)

		dsn := DSN(conf)
		db, err := OpenDB(dsn)
		if err != nil {
			return nil, err
		}
		logger.Info("database opened", "postgres", IsPostgres(dsn))

		c.RegisterOnShutdown(func(_ context.Context) {
			if err := CloseDB(db); err != nil {
				logger.Warn("failed to close database", "err", err)
			}
		})

		return db, nil
	})
}
