package embedding

import (
	"context"
	"sort"
	"strings"

	"github.com/habiliai/memoryd/errors"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

type OpenAIEmbedder struct {
	client     openai.Client
	model      string
	dimensions int
}

var _ Embedder = (*OpenAIEmbedder)(nil)

func NewOpenAIEmbedder(apiKey, baseURL, model string, dimensions int) *OpenAIEmbedder {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIEmbedder{
		client:     openai.NewClient(opts...),
		model:      model,
		dimensions: dimensions,
	}
}

func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts ...string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          openai.EmbeddingModel(e.model),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	// only the text-embedding-3 family accepts a custom dimension
	if strings.HasPrefix(e.model, "text-embedding-3") {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, errors.WrapKindf(err, errors.ErrProvider, "failed to embed %d texts with %s", len(texts), e.model)
	}
	if len(resp.Data) != len(texts) {
		return nil, errors.Mark(errors.Errorf("embedding provider returned %d vectors for %d texts", len(resp.Data), len(texts)), errors.ErrProvider)
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	embeddings := make([][]float32, len(data))
	for i, d := range data {
		if len(d.Embedding) != e.dimensions {
			return nil, errors.Mark(errors.Errorf("embedding has %d dimensions, expected %d", len(d.Embedding), e.dimensions), errors.ErrProvider)
		}
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		embeddings[i] = vec
	}

	return embeddings, nil
}
