package llm_test

import (
	"context"
	"testing"

	"github.com/habiliai/memoryd/config"
	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCompleter string

func (s staticCompleter) Complete(context.Context, llm.Request) (string, error) {
	return string(s), nil
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, llm.ExtractJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":{"b":2}}`, llm.ExtractJSON(`Sure! {"a":{"b":2}} hope this helps`))
	assert.Equal(t, "", llm.ExtractJSON("no json here"))
}

func TestCompleteJSON(t *testing.T) {
	var out struct {
		Namespace string `json:"namespace"`
	}
	require.NoError(t, llm.CompleteJSON(t.Context(), staticCompleter(`{"namespace":"profile_bio"}`), llm.Request{}, &out))
	assert.Equal(t, "profile_bio", out.Namespace)

	err := llm.CompleteJSON(t.Context(), staticCompleter("I cannot help"), llm.Request{}, &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProvider))
}

func TestSchemaIsInlined(t *testing.T) {
	type item struct {
		Index int    `json:"index" jsonschema:"description=statement index"`
		Name  string `json:"name"`
	}
	type payload struct {
		Items []item `json:"items"`
	}

	schema := llm.Schema(&payload{})
	assert.Contains(t, schema, `"items"`)
	assert.Contains(t, schema, "statement index")
	assert.NotContains(t, schema, "$ref")
}

func TestRenderWithSprig(t *testing.T) {
	tmpl := llm.MustTemplate("t", `{{ .Items | join ", " | upper }}`)
	out, err := llm.Render(tmpl, map[string]any{"Items": []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "A, B", out)
}

func TestNewRulesProviderHasNoCompleter(t *testing.T) {
	c, err := llm.New(config.NewLLMConfig())
	require.NoError(t, err)
	assert.Nil(t, c)
}
