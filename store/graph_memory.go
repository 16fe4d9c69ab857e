package store

import (
	"context"
	"sort"
	"sync"
)

type (
	// MemoryGraphStore is an in-process graph used by tests and ephemeral runs.
	MemoryGraphStore struct {
		mu        sync.RWMutex
		entities  map[string]*graphNode
		relations []Relation
	}

	graphNode struct {
		Entity
		userID  string
		sources map[string]struct{}
	}
)

var _ GraphStore = (*MemoryGraphStore)(nil)

func NewMemoryGraphStore() *MemoryGraphStore {
	return &MemoryGraphStore{entities: map[string]*graphNode{}}
}

func (s *MemoryGraphStore) Upsert(_ context.Context, userID, recordID string, g *Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteByRecord(map[string]struct{}{recordID: {}})
	for _, e := range g.Entities {
		key := userID + "\x00" + e.Name
		node, ok := s.entities[key]
		if !ok {
			node = &graphNode{Entity: e, userID: userID, sources: map[string]struct{}{}}
			s.entities[key] = node
		}
		node.sources[recordID] = struct{}{}
	}
	for _, r := range g.Relations {
		r.RecordID = recordID
		r.UserID = userID
		s.relations = append(s.relations, r)
	}
	return nil
}

func (s *MemoryGraphStore) DeleteByRecord(_ context.Context, recordIDs ...string) error {
	ids := make(map[string]struct{}, len(recordIDs))
	for _, id := range recordIDs {
		ids[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteByRecord(ids)
	return nil
}

func (s *MemoryGraphStore) deleteByRecord(ids map[string]struct{}) {
	kept := s.relations[:0]
	for _, r := range s.relations {
		if _, ok := ids[r.RecordID]; !ok {
			kept = append(kept, r)
		}
	}
	s.relations = kept

	for key, node := range s.entities {
		for id := range ids {
			delete(node.sources, id)
		}
		if len(node.sources) == 0 {
			delete(s.entities, key)
		}
	}
}

func (s *MemoryGraphStore) DeleteAll(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if userID == "" {
		s.entities = map[string]*graphNode{}
		s.relations = nil
		return nil
	}
	for key, node := range s.entities {
		if node.userID == userID {
			delete(s.entities, key)
		}
	}
	kept := s.relations[:0]
	for _, r := range s.relations {
		if r.UserID != userID {
			kept = append(kept, r)
		}
	}
	s.relations = kept
	return nil
}

func (s *MemoryGraphStore) Relations(_ context.Context, userID string) ([]Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Relation
	for _, r := range s.relations {
		if userID == "" || r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Entities lists entity names with their provenance, sorted by name.
func (s *MemoryGraphStore) Entities(userID string) map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string][]string{}
	for _, node := range s.entities {
		if userID != "" && node.userID != userID {
			continue
		}
		for id := range node.sources {
			out[node.Name] = append(out[node.Name], id)
		}
		sort.Strings(out[node.Name])
	}
	return out
}

func (s *MemoryGraphStore) Close(context.Context) error { return nil }
