package extraction_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/extraction"
	"github.com/habiliai/memoryd/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactRoundTrip(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	ns := record.MustParseNamespace("project_context:memoryd")

	rec, err := record.New("u1", ns, "Uses sqlite-vec", record.Metadata{Category: "project", Confidence: 0.8, Bootstrap: true, Extra: map[string]any{"origin": "profile"}}, now)
	require.NoError(t, err)

	path, err := extraction.WriteArtifact(dir, extraction.NewArtifact(ns, "u1", []*record.Record{rec}, now))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "project_context__memoryd.yaml"), path)

	artifacts, err := extraction.ReadArtifacts(dir)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	a := artifacts[0]
	assert.Equal(t, ns, a.Namespace)
	assert.True(t, now.Equal(a.GeneratedAt))
	require.Len(t, a.Records, 1)
	assert.Equal(t, rec.Hash, a.Records[0].Hash)
	assert.Equal(t, rec.Metadata, record.MetadataFromMap(a.Records[0].Metadata))

	hashes, err := extraction.ArtifactHashes(dir, "u1")
	require.NoError(t, err)
	assert.Contains(t, hashes, rec.Hash)

	hashes, err = extraction.ArtifactHashes(dir, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, hashes)
}

func TestReadArtifactsIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unknown.yaml"), []byte("x: 1"), 0o644))

	artifacts, err := extraction.ReadArtifacts(dir)
	require.NoError(t, err)
	assert.Empty(t, artifacts)

	missing, err := extraction.ReadArtifacts(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, missing)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "profile_bio.yaml"), []byte("records: [unclosed"), 0o644))
	_, err = extraction.ReadArtifacts(dir)
	assert.ErrorIs(t, err, errors.ErrValidation)
}
