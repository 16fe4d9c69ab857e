package extraction

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/record"
	"github.com/samber/lo"
)

const artifactExt = ".yaml"

type (
	// Artifact is the per-namespace file written by every extraction run.
	Artifact struct {
		Namespace   record.Namespace `yaml:"namespace"`
		UserID      string           `yaml:"user_id"`
		GeneratedAt time.Time        `yaml:"generated_at"`
		Records     []ArtifactRecord `yaml:"records"`
	}

	ArtifactRecord struct {
		ID       string         `yaml:"id"`
		Hash     string         `yaml:"hash"`
		Text     string         `yaml:"text"`
		Metadata map[string]any `yaml:"metadata"`
	}
)

func NewArtifact(ns record.Namespace, userID string, records []*record.Record, now time.Time) *Artifact {
	return &Artifact{
		Namespace:   ns,
		UserID:      userID,
		GeneratedAt: now.UTC(),
		Records: lo.Map(records, func(r *record.Record, _ int) ArtifactRecord {
			return ArtifactRecord{ID: r.ID, Hash: r.Hash, Text: r.Text, Metadata: r.Metadata.ToMap()}
		}),
	}
}

func ArtifactPath(dir string, ns record.Namespace) string {
	return filepath.Join(dir, ns.FileName()+artifactExt)
}

// WriteArtifact replaces the artifact of a.Namespace in dir.
func WriteArtifact(dir string, a *Artifact) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create artifacts directory %s", dir)
	}
	data, err := yaml.Marshal(a)
	if err != nil {
		return "", errors.Wrapf(err, "failed to marshal artifact of %s", a.Namespace)
	}

	path := ArtifactPath(dir, a.Namespace)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "failed to write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", errors.Wrapf(err, "failed to replace %s", path)
	}
	return path, nil
}

func ReadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read artifact %s", path)
	}
	var a Artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, errors.Wrapf(errors.ErrValidation, "malformed artifact %s: %v", path, err)
	}
	return &a, nil
}

// ReadArtifacts loads every artifact in dir. A missing directory is empty.
func ReadArtifacts(dir string) ([]*Artifact, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to read artifacts directory %s", dir)
	}

	var artifacts []*Artifact
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), artifactExt) {
			continue
		}
		if _, err := record.NamespaceFromFileName(strings.TrimSuffix(entry.Name(), artifactExt)); err != nil {
			continue
		}
		a, err := ReadArtifact(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}

// ArtifactHashes collects the hashes already emitted for userID.
func ArtifactHashes(dir, userID string) (map[string]struct{}, error) {
	artifacts, err := ReadArtifacts(dir)
	if err != nil {
		return nil, err
	}
	hashes := map[string]struct{}{}
	for _, a := range artifacts {
		if a.UserID != userID {
			continue
		}
		for _, r := range a.Records {
			hashes[r.Hash] = struct{}{}
		}
	}
	return hashes, nil
}
