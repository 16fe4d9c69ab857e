package extraction_test

import (
	"context"
	"strings"
	"testing"

	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/extraction"
	"github.com/habiliai/memoryd/internal/llm"
	"github.com/habiliai/memoryd/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedCompleter struct {
	replies map[string]string
	prompts []string
}

func (c *scriptedCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	c.prompts = append(c.prompts, req.Prompt)
	for marker, reply := range c.replies {
		if strings.Contains(req.Prompt, marker) {
			return reply, nil
		}
	}
	return "", errors.Mark(errors.New("no scripted reply"), errors.ErrProvider)
}

func TestRuleClassifierRoute(t *testing.T) {
	tests := map[string]record.Namespace{
		"I live in Seattle.":                "profile_bio",
		"I prefer concise answers.":         "interaction_style",
		"You should always cite sources.":   "project_seed",
		"Always ask before deleting files.": "project_seed",
		"I'm building Memoryd in Go.":       "project_context:memoryd",
		"Working on a side project":         "project_context:general",
		"I was diagnosed with ADHD.":        "restricted:health",
		"My salary is 100k":                 "restricted:finance",
	}

	statements := make([]string, 0, len(tests))
	for s := range tests {
		statements = append(statements, s)
	}
	routes, err := extraction.RuleClassifier{}.Route(context.Background(), statements)
	require.NoError(t, err)
	for i, s := range statements {
		assert.Equal(t, tests[s], routes[i], s)
	}
}

func TestRuleClassifierAnnotate(t *testing.T) {
	ctx := context.Background()

	got, err := extraction.RuleClassifier{}.Annotate(ctx, "profile_bio", []string{"I live in Seattle.", "Has a dog"})
	require.NoError(t, err)
	assert.Equal(t, []extraction.Annotation{
		{Category: "location", Confidence: 0.7},
		{Category: "family", Confidence: 0.7},
	}, got)

	got, err = extraction.RuleClassifier{}.Annotate(ctx, "restricted:health", []string{"I was diagnosed with ADHD."})
	require.NoError(t, err)
	assert.Equal(t, "health", got[0].Category)
	assert.True(t, got[0].Sensitive)
}

func TestLLMClassifier(t *testing.T) {
	ctx := context.Background()
	completer := &scriptedCompleter{replies: map[string]string{
		"Classify each statement": "```json\n" + `{"routes": [
			{"index": 0, "namespace": "profile_bio"},
			{"index": 1, "namespace": "project_context", "topic": "Memory Daemon"},
			{"index": 2, "namespace": "profile_bio"}
		]}` + "\n```",
		`filed under the namespace "project_context:memory-daemon"`: `{"annotations": [
			{"index": 0, "category": "project", "confidence": 1.7, "sensitive": false}
		]}`,
	}}
	sut := extraction.NewLLMClassifier(completer)

	routes, err := sut.Route(ctx, []string{"Lives in Seattle", "Builds a memory daemon", "Takes medication every morning"})
	require.NoError(t, err)
	assert.Equal(t, []record.Namespace{"profile_bio", "project_context:memory-daemon", "restricted:health"}, routes)
	assert.Contains(t, completer.prompts[0], `"Builds a memory daemon"`)
	assert.Contains(t, completer.prompts[0], "interaction_style")

	annotations, err := sut.Annotate(ctx, "project_context:memory-daemon", []string{"Builds a memory daemon"})
	require.NoError(t, err)
	assert.Equal(t, []extraction.Annotation{{Category: "project", Confidence: 1}}, annotations)

	_, err = sut.Annotate(ctx, "profile_bio", []string{"Lives in Seattle"})
	assert.ErrorIs(t, err, errors.ErrProvider)
}

func TestLLMClassifierRejectsIncompleteRouting(t *testing.T) {
	completer := &scriptedCompleter{replies: map[string]string{
		"Classify each statement": `{"routes": [{"index": 0, "namespace": "profile_bio"}]}`,
	}}

	_, err := extraction.NewLLMClassifier(completer).Route(context.Background(), []string{"Lives in Seattle", "Likes tea"})
	assert.ErrorIs(t, err, errors.ErrProvider)
}

func TestSensitiveTopic(t *testing.T) {
	topic, ok := extraction.SensitiveTopic("Allergic to peanuts")
	assert.True(t, ok)
	assert.Equal(t, "health", topic)

	topic, ok = extraction.SensitiveTopic("Has a mortgage on the house")
	assert.True(t, ok)
	assert.Equal(t, "finance", topic)

	_, ok = extraction.SensitiveTopic("Lives in Seattle")
	assert.False(t, ok)
}
