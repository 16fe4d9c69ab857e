package store

import (
	"context"
	"slices"
	"sync"

	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/record"
	"gonum.org/v1/gonum/mat"
)

type (
	// MemoryVectorStore keeps everything in process. Scores are cosine
	// similarities computed with gonum.
	MemoryVectorStore struct {
		mu         sync.RWMutex
		dimensions int
		entries    map[string]*vectorEntry
	}

	vectorEntry struct {
		rec       *record.Record
		embedding []float32
	}
)

var _ VectorStore = (*MemoryVectorStore)(nil)

func NewMemoryVectorStore(dimensions int) *MemoryVectorStore {
	return &MemoryVectorStore{
		dimensions: dimensions,
		entries:    make(map[string]*vectorEntry),
	}
}

func (s *MemoryVectorStore) Upsert(_ context.Context, rec *record.Record, embedding []float32) error {
	if len(embedding) != s.dimensions {
		return errors.Validationf("embedding has %d dimensions, store expects %d", len(embedding), s.dimensions)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[rec.ID] = &vectorEntry{rec: rec.Clone(), embedding: slices.Clone(embedding)}
	return nil
}

func (s *MemoryVectorStore) Get(_ context.Context, id string) (*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, errors.NotFoundf("memory %s", id)
	}
	return e.rec.Clone(), nil
}

func (s *MemoryVectorStore) List(_ context.Context, filter Filter) ([]*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*record.Record, 0, len(s.entries))
	for _, e := range s.entries {
		if filter.Match(e.rec) {
			records = append(records, e.rec.Clone())
		}
	}
	SortNewestFirst(records)
	return records, nil
}

func (s *MemoryVectorStore) Search(_ context.Context, embedding []float32, k int, filter Filter) ([]record.Scored, error) {
	if len(embedding) != s.dimensions {
		return nil, errors.Validationf("query embedding has %d dimensions, store expects %d", len(embedding), s.dimensions)
	}
	if k <= 0 {
		return []record.Scored{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []*vectorEntry
	for _, e := range s.entries {
		if filter.Match(e.rec) {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return []record.Scored{}, nil
	}

	queryVec := make([]float64, s.dimensions)
	for i, v := range embedding {
		queryVec[i] = float64(v)
	}
	data := make([]float64, len(candidates)*s.dimensions)
	for i, e := range candidates {
		for j, v := range e.embedding {
			data[i*s.dimensions+j] = float64(v)
		}
	}

	queryVector := mat.NewVecDense(s.dimensions, queryVec)
	matrix := mat.NewDense(len(candidates), s.dimensions, data)

	var dots mat.VecDense
	dots.MulVec(matrix, queryVector)

	queryNorm := mat.Norm(queryVector, 2)
	results := make([]record.Scored, 0, len(candidates))
	for i, e := range candidates {
		score := 0.0
		if rowNorm := mat.Norm(matrix.RowView(i), 2); rowNorm > 0 && queryNorm > 0 {
			score = dots.AtVec(i) / (rowNorm * queryNorm)
		}
		results = append(results, record.Scored{Record: e.rec.Clone(), Score: score})
	}

	SortScored(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *MemoryVectorStore) Delete(_ context.Context, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.entries, id)
	}
	return nil
}

func (s *MemoryVectorStore) DeleteAll(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, e := range s.entries {
		if userID == "" || e.rec.UserID == userID {
			ids = append(ids, id)
			delete(s.entries, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *MemoryVectorStore) Close() error { return nil }
