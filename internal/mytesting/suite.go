package mytesting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/habiliai/memoryd/internal/db"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// Suite is the base for package test suites. It embeds a per-test context so
// the suite itself can be passed wherever a context.Context is expected.
type Suite struct {
	suite.Suite
	context.Context

	Cancel context.CancelFunc
}

func (s *Suite) SetupTest() {
	root, err := projectRoot()
	s.Require().NoError(err, "Failed to find project root")

	// tests run offline with the local embedder and rule classifier, so .env.test is optional
	if envFile := filepath.Join(root, ".env.test"); fileExists(envFile) {
		s.Require().NoError(godotenv.Load(envFile))
	}

	s.Context, s.Cancel = context.WithCancel(context.TODO())
}

func (s *Suite) TearDownTest() {
	s.Cancel()
}

// OpenDB opens a sqlite database with the vec extension in the test's temp
// dir. It is closed when the test ends.
func (s *Suite) OpenDB(name string) *gorm.DB {
	gormDB, err := db.OpenDB(filepath.Join(s.T().TempDir(), name))
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.CloseDB(gormDB) })
	return gormDB
}

// Clock returns a clock that starts at start and advances by step on every
// read. A zero step freezes it.
func Clock(start time.Time, step time.Duration) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func projectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to get caller information")
	}

	for dir := filepath.Dir(filename); ; {
		if fileExists(filepath.Join(dir, "go.mod")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found above %s", filepath.Dir(filename))
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
