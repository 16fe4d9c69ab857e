package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/habiliai/memoryd/internal/stringutils"
)

// LocalEmbedder is a deterministic bag-of-words embedder using signed feature
// hashing over lightly stemmed tokens.
type LocalEmbedder struct {
	dimensions int
}

var _ Embedder = (*LocalEmbedder)(nil)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {},
	"by": {}, "do": {}, "doe": {}, "does": {}, "for": {}, "from": {}, "has": {}, "have": {},
	"he": {}, "her": {}, "his": {}, "i": {}, "in": {}, "is": {}, "it": {}, "its": {},
	"me": {}, "my": {}, "of": {}, "on": {}, "or": {}, "she": {}, "that": {}, "the": {},
	"their": {}, "they": {}, "this": {}, "to": {}, "user": {}, "was": {}, "were": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "who": {}, "why": {}, "how": {},
	"with": {}, "you": {}, "your": {}, "am": {},
}

func NewLocalEmbedder(dimensions int) *LocalEmbedder {
	return &LocalEmbedder{dimensions: dimensions}
}

func (e *LocalEmbedder) Dimensions() int { return e.dimensions }

func (e *LocalEmbedder) Embed(ctx context.Context, texts ...string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embeddings[i] = e.embed(text)
	}
	return embeddings, nil
}

func (e *LocalEmbedder) embed(text string) []float32 {
	vec := make([]float64, e.dimensions)
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		tokens = []string{stringutils.Normalize(text)}
	}
	for _, token := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimensions))
		if sum>>63 == 1 {
			vec[idx] -= 1
		} else {
			vec[idx] += 1
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, e.dimensions)
	if norm == 0 {
		return out
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

// Tokenize lower-cases, splits on non-alphanumerics, drops stopwords and
// strips common English suffixes.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := stopwords[f]; ok {
			continue
		}
		tokens = append(tokens, stem(f))
	}
	return tokens
}

func stem(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "sses"):
		return w[:len(w)-2]
	case len(w) > 5 && strings.HasSuffix(w, "ing"):
		return w[:len(w)-3]
	case len(w) > 4 && strings.HasSuffix(w, "ed"):
		return w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}
