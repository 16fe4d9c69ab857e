package store

import (
	"context"
	"strings"

	"github.com/habiliai/memoryd/internal/stringutils"
	"github.com/samber/lo"
)

type (
	Entity struct {
		Name string `json:"name" jsonschema:"description=lower-case canonical name such as 'user' or 'seattle'"`
		Type string `json:"type" jsonschema:"description=entity kind such as person location organization preference"`
	}

	Relation struct {
		Source   string `json:"source" jsonschema:"description=name of the source entity"`
		Relation string `json:"relation" jsonschema:"description=snake_case verb phrase such as lives_in"`
		Target   string `json:"target" jsonschema:"description=name of the target entity"`
		RecordID string `json:"record_id,omitempty" jsonschema:"-"`
		UserID   string `json:"user_id,omitempty" jsonschema:"-"`
	}

	Graph struct {
		Entities  []Entity   `json:"entities"`
		Relations []Relation `json:"relations"`
	}

	// GraphStore mirrors entities and relations of records. Every entity
	// carries the set of record ids it was extracted from and every relation
	// the single record id it came from.
	GraphStore interface {
		// Upsert replaces whatever recordID contributed before with g.
		Upsert(ctx context.Context, userID, recordID string, g *Graph) error
		// DeleteByRecord removes relations of the records and entities left
		// without any provenance.
		DeleteByRecord(ctx context.Context, recordIDs ...string) error
		// DeleteAll wipes one user's graph, or everything when userID is empty.
		DeleteAll(ctx context.Context, userID string) error
		Relations(ctx context.Context, userID string) ([]Relation, error)
		Close(ctx context.Context) error
	}

	// GraphExtractor derives a graph from one memory statement.
	GraphExtractor interface {
		Extract(ctx context.Context, text string) (*Graph, error)
	}
)

// Normalize canonicalizes names, drops empty or duplicate items and makes
// sure every relation endpoint exists as an entity.
func (g *Graph) Normalize() *Graph {
	out := &Graph{}
	seen := map[string]int{}
	addEntity := func(e Entity) {
		e.Name = canonicalName(e.Name)
		e.Type = strings.ToLower(strings.TrimSpace(e.Type))
		if e.Name == "" {
			return
		}
		if e.Type == "" {
			e.Type = "thing"
		}
		if idx, ok := seen[e.Name]; ok {
			if out.Entities[idx].Type == "thing" {
				out.Entities[idx].Type = e.Type
			}
			return
		}
		seen[e.Name] = len(out.Entities)
		out.Entities = append(out.Entities, e)
	}

	for _, e := range g.Entities {
		addEntity(e)
	}
	for _, r := range g.Relations {
		r.Source = canonicalName(r.Source)
		r.Target = canonicalName(r.Target)
		r.Relation = strings.ReplaceAll(stringutils.Slug(r.Relation), "-", "_")
		if r.Source == "" || r.Target == "" || r.Relation == "" || r.Source == r.Target {
			continue
		}
		addEntity(Entity{Name: r.Source})
		addEntity(Entity{Name: r.Target})
		out.Relations = append(out.Relations, r)
	}
	out.Relations = lo.UniqBy(out.Relations, func(r Relation) string {
		return r.Source + "\x00" + r.Relation + "\x00" + r.Target
	})

	return out
}

func (g *Graph) IsEmpty() bool {
	return g == nil || (len(g.Entities) == 0 && len(g.Relations) == 0)
}

func canonicalName(s string) string {
	return strings.ToLower(stringutils.CollapseSpace(strings.Trim(s, " \t\n.,;:!?\"'")))
}
