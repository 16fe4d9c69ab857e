package record_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNamespace(t *testing.T) {
	valid := []string{
		"profile_bio",
		"interaction_style",
		"project_seed",
		"project_context:clara-app",
		"restricted:health",
	}
	for _, s := range valid {
		ns, err := record.ParseNamespace(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, ns.String())
	}

	invalid := []string{
		"",
		"Profile_Bio",
		"hobbies",
		"profile_bio:extra",
		"project_context",
		"restricted:",
		"restricted:a:b",
		"project_context:Has Space",
		":health",
	}
	for _, s := range invalid {
		_, err := record.ParseNamespace(s)
		require.Error(t, err, s)
		assert.True(t, errors.Is(err, errors.ErrValidation), s)
	}
}

func TestScoped(t *testing.T) {
	ns, err := record.Scoped(record.ProjectContext, "Clara App")
	require.NoError(t, err)
	assert.Equal(t, record.Namespace("project_context:clara-app"), ns)
	assert.Equal(t, "clara-app", ns.Topic())

	ns, err = record.Scoped(record.Restricted, "")
	require.NoError(t, err)
	assert.Equal(t, record.Namespace("restricted:general"), ns)
	assert.True(t, ns.IsRestricted())

	ns, err = record.Scoped(record.ProfileBio, "ignored")
	require.NoError(t, err)
	assert.Equal(t, record.Namespace("profile_bio"), ns)

	_, err = record.Scoped("hobbies", "x")
	assert.Error(t, err)
}

func TestNamespaceFileName(t *testing.T) {
	ns := record.MustParseNamespace("project_context:clara-app")
	assert.Equal(t, "project_context__clara-app", ns.FileName())

	back, err := record.NamespaceFromFileName(ns.FileName())
	require.NoError(t, err)
	assert.Equal(t, ns, back)
}

func TestNewDerivesStableIDFromContent(t *testing.T) {
	now := time.Now()
	a, err := record.New("u1", record.ProfileBio, "I live in Seattle.", record.Metadata{}, now)
	require.NoError(t, err)
	b, err := record.New("u1", record.ProfileBio, "  i live in   seattle ", record.Metadata{}, now)
	require.NoError(t, err)
	c, err := record.New("u2", record.ProfileBio, "I live in Seattle.", record.Metadata{}, now)
	require.NoError(t, err)

	assert.Equal(t, a.Hash, b.Hash)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, a.Hash, c.Hash)
	assert.NotEqual(t, a.ID, c.ID)
}

func TestNewForcesSensitiveForRestricted(t *testing.T) {
	r, err := record.New("u1", "restricted:health", "Takes medication daily", record.Metadata{Sensitive: false}, time.Now())
	require.NoError(t, err)
	assert.True(t, r.Metadata.Sensitive)

	r.Metadata.Sensitive = false
	assert.Error(t, r.Validate())
}

func TestNewRejectsInvalidInput(t *testing.T) {
	_, err := record.New("u1", "profile_bio", "   ", record.Metadata{}, time.Now())
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = record.New("u1", "bogus", "text", record.Metadata{}, time.Now())
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = record.New("u1", "profile_bio", "text", record.Metadata{Confidence: 1.5}, time.Now())
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestSetTextKeepsIdentityAndMetadata(t *testing.T) {
	created := time.Now().Add(-time.Hour)
	r, err := record.New("u1", "restricted:health", "Has asthma", record.Metadata{Category: "health", Confidence: 0.9}, created)
	require.NoError(t, err)
	id := r.ID

	require.NoError(t, r.SetText("Has mild asthma", time.Now()))
	assert.Equal(t, id, r.ID)
	assert.Equal(t, "Has mild asthma", r.Text)
	assert.Equal(t, record.Hash("Has mild asthma"), r.Hash)
	assert.True(t, r.Metadata.Sensitive)
	assert.Equal(t, "health", r.Metadata.Category)
	assert.True(t, r.UpdatedAt.After(r.CreatedAt))
}

func TestMetadataExtensionBounds(t *testing.T) {
	m := record.Metadata{Extra: map[string]any{"sensitive": "no"}}
	assert.Error(t, m.Validate())

	m = record.Metadata{Extra: map[string]any{"Bad-Key": 1}}
	assert.Error(t, m.Validate())

	m = record.Metadata{Extra: map[string]any{}}
	for i := range record.MaxExtraFields + 1 {
		m.Extra[string(rune('a'+i))] = i
	}
	assert.Error(t, m.Validate())
}

func TestMetadataJSONFlattensExtensions(t *testing.T) {
	m := record.Metadata{
		Category:   "location",
		Confidence: 0.8,
		Source:     record.SourceBootstrap,
		Bootstrap:  true,
		Extra:      map[string]any{"origin": "profile"},
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "profile", raw["origin"])
	assert.Equal(t, "location", raw["category"])
	assert.Equal(t, true, raw["bootstrap"])

	var back record.Metadata
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m, back)
}
