package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/habiliai/memoryd/internal/db"
	"github.com/habiliai/memoryd/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func relationTriples(relations []store.Relation) []string {
	out := make([]string, 0, len(relations))
	for _, r := range relations {
		out = append(out, r.Source+" "+r.Relation+" "+r.Target)
	}
	return out
}

func graphBackends() map[string]func(t *testing.T) store.GraphStore {
	backends := map[string]func(t *testing.T) store.GraphStore{
		"memory": func(t *testing.T) store.GraphStore {
			return store.NewMemoryGraphStore()
		},
		"gorm": func(t *testing.T) store.GraphStore {
			gormDB, err := db.OpenDB(filepath.Join(t.TempDir(), "graph.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.CloseDB(gormDB) })

			s, err := store.NewGormGraphStore(context.Background(), gormDB)
			require.NoError(t, err)
			return s
		},
	}
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		backends["neo4j"] = func(t *testing.T) store.GraphStore {
			s, err := store.NewNeo4jGraphStore(context.Background(), uri, os.Getenv("NEO4J_USER"), os.Getenv("NEO4J_PASSWORD"), os.Getenv("NEO4J_DATABASE"))
			require.NoError(t, err)
			require.NoError(t, s.DeleteAll(context.Background(), "graph-test"))
			t.Cleanup(func() {
				_ = s.DeleteAll(context.Background(), "graph-test")
				_ = s.Close(context.Background())
			})
			return s
		}
	}
	return backends
}

func TestGraphStores(t *testing.T) {
	extract := func(t *testing.T, text string) *store.Graph {
		g, err := store.RuleGraphExtractor{}.Extract(context.Background(), text)
		require.NoError(t, err)
		return g
	}

	for name, open := range graphBackends() {
		t.Run(name, func(t *testing.T) {
			t.Run("UpsertReplacesContribution", func(t *testing.T) {
				ctx := context.Background()
				s := open(t)

				require.NoError(t, s.Upsert(ctx, "graph-test", "r1", extract(t, "I live in Seattle.")))
				require.NoError(t, s.Upsert(ctx, "graph-test", "r1", extract(t, "I live in Portland.")))

				relations, err := s.Relations(ctx, "graph-test")
				require.NoError(t, err)
				assert.Equal(t, []string{"user lives_in portland"}, relationTriples(relations))
				assert.Equal(t, "r1", relations[0].RecordID)
			})

			t.Run("DeleteByRecordPrunesOrphans", func(t *testing.T) {
				ctx := context.Background()
				s := open(t)

				require.NoError(t, s.Upsert(ctx, "graph-test", "r1", extract(t, "I live in Seattle.")))
				require.NoError(t, s.Upsert(ctx, "graph-test", "r2", extract(t, "I work at Acme.")))

				require.NoError(t, s.DeleteByRecord(ctx, "r1"))
				relations, err := s.Relations(ctx, "graph-test")
				require.NoError(t, err)
				assert.Equal(t, []string{"user works_at acme"}, relationTriples(relations))

				switch gs := s.(type) {
				case *store.MemoryGraphStore:
					entities := gs.Entities("graph-test")
					assert.Equal(t, []string{"r2"}, entities["user"])
					assert.NotContains(t, entities, "seattle")
				case *store.GormGraphStore:
					n, err := gs.EntityCount(ctx, "graph-test")
					require.NoError(t, err)
					assert.EqualValues(t, 2, n)
				}

				require.NoError(t, s.DeleteByRecord(ctx, "r2"))
				relations, err = s.Relations(ctx, "graph-test")
				require.NoError(t, err)
				assert.Empty(t, relations)
			})

			t.Run("DeleteAllIsScopedToUser", func(t *testing.T) {
				ctx := context.Background()
				s := open(t)

				require.NoError(t, s.Upsert(ctx, "graph-test", "r1", extract(t, "I live in Seattle.")))
				require.NoError(t, s.Upsert(ctx, "graph-test-other", "r2", extract(t, "I live in Busan.")))

				require.NoError(t, s.DeleteAll(ctx, "graph-test"))
				relations, err := s.Relations(ctx, "graph-test")
				require.NoError(t, err)
				assert.Empty(t, relations)

				relations, err = s.Relations(ctx, "graph-test-other")
				require.NoError(t, err)
				assert.Equal(t, []string{"user lives_in busan"}, relationTriples(relations))
				require.NoError(t, s.DeleteAll(ctx, "graph-test-other"))
			})
		})
	}
}

func TestRuleGraphExtractor(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"I live in Seattle.", []string{"user lives_in seattle"}},
		{"Prefers concise answers", []string{"user prefers concise answers"}},
		{"I work at Acme Corp and I like hiking", []string{"user works_at acme corp", "user likes hiking"}},
		{"Loves Go and Kubernetes", []string{"user likes go"}},
		{"Met Alice at the Berlin office", []string{"user mentions alice", "user mentions berlin"}},
		{"nothing to see here", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			g, err := store.RuleGraphExtractor{}.Extract(context.Background(), tt.text)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, relationTriples(g.Relations))
			if len(tt.want) > 0 {
				assert.Contains(t, g.Entities, store.Entity{Name: "user", Type: "person"})
			}
		})
	}
}

func TestGraphNormalize(t *testing.T) {
	g := (&store.Graph{
		Relations: []store.Relation{
			{Source: "User", Relation: "Lives In", Target: " Seattle. "},
			{Source: "user", Relation: "lives-in", Target: "seattle"},
			{Source: "user", Relation: "knows", Target: "user"},
			{Source: "", Relation: "x", Target: "y"},
		},
	}).Normalize()

	assert.Equal(t, []string{"user lives_in seattle"}, relationTriples(g.Relations))
	assert.Len(t, g.Entities, 2)
	assert.True(t, (&store.Graph{}).IsEmpty())
}
