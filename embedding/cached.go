package embedding

import (
	"context"
	"slices"

	"github.com/dgraph-io/ristretto"
	"github.com/habiliai/memoryd/errors"
)

// CachedEmbedder memoizes vectors per model and text. Only misses reach the
// wrapped embedder, in a single batch.
type CachedEmbedder struct {
	Embedder
	model string
	cache *ristretto.Cache
}

func NewCachedEmbedder(inner Embedder, model string, maxEntries int64) (*CachedEmbedder, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		// every vector costs 1 so MaxCost is an entry count
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create embedding cache")
	}
	return &CachedEmbedder{Embedder: inner, model: model, cache: cache}, nil
}

func (e *CachedEmbedder) Embed(ctx context.Context, texts ...string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	var (
		missTexts []string
		missIdx   []int
	)
	for i, text := range texts {
		if v, ok := e.cache.Get(e.key(text)); ok {
			embeddings[i] = slices.Clone(v.([]float32))
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return embeddings, nil
	}

	fresh, err := e.Embedder.Embed(ctx, missTexts...)
	if err != nil {
		return nil, err
	}
	for j, vec := range fresh {
		embeddings[missIdx[j]] = vec
		e.cache.Set(e.key(missTexts[j]), slices.Clone(vec), 1)
	}
	e.cache.Wait()

	return embeddings, nil
}

func (e *CachedEmbedder) Close() {
	e.cache.Close()
}

func (e *CachedEmbedder) key(text string) string {
	return e.model + "\x00" + text
}
