package extraction

import (
	"context"
	"os"

	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/record"
	"github.com/samber/lo"
)

type (
	// Store is the write side the apply mode needs; memory.Service implements it.
	Store interface {
		Hashes(ctx context.Context, userID string) (map[string]struct{}, error)
		Import(ctx context.Context, records []*record.Record) (int, error)
		Purge(ctx context.Context, userID string, ns record.Namespace) (int, error)
	}

	RunOptions struct {
		UserID       string
		Profile      string
		ArtifactsDir string
		// Apply writes new records through the store; otherwise only
		// artifacts are emitted.
		Apply bool
		// Force regenerates every namespace present in the profile and
		// replaces what earlier runs produced for it.
		Force bool
	}

	Report struct {
		*Result
		Artifacts []string
		Written   int
		Purged    int
	}
)

// Run executes one bootstrap: extract, optionally replace and write records,
// then emit artifacts. store may be nil in dry-run mode.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions, store Store) (*Report, error) {
	if opts.Apply && store == nil {
		return nil, errors.Errorf("apply mode needs a store")
	}

	var (
		existing map[string]struct{}
		err      error
	)
	if opts.Apply {
		existing, err = store.Hashes(ctx, opts.UserID)
	} else {
		existing, err = ArtifactHashes(opts.ArtifactsDir, opts.UserID)
	}
	if err != nil {
		return nil, err
	}

	result, err := p.Extract(ctx, opts.UserID, opts.Profile, existing, opts.Force)
	if err != nil {
		return nil, err
	}
	report := &Report{Result: result}

	if opts.Apply {
		for _, ns := range result.Namespaces() {
			if opts.Force {
				n, err := store.Purge(ctx, opts.UserID, ns)
				if err != nil {
					return report, errors.Wrapf(err, "failed to replace %s", ns)
				}
				report.Purged += n
			}
			written, err := store.Import(ctx, result.Records[ns])
			report.Written += written
			if err != nil {
				return report, errors.Wrapf(err, "failed to write %s", ns)
			}
			p.logger.Info("namespace written", "namespace", ns, "records", written)
		}
	}

	for _, ns := range result.Namespaces() {
		records := result.Records[ns]
		if !opts.Force {
			prior, err := p.priorRecords(opts, ns)
			if err != nil {
				return report, err
			}
			records = append(prior, records...)
		}

		path, err := WriteArtifact(opts.ArtifactsDir, NewArtifact(ns, opts.UserID, lo.UniqBy(records, func(r *record.Record) string { return r.Hash }), p.now()))
		if err != nil {
			return report, err
		}
		report.Artifacts = append(report.Artifacts, path)
	}

	return report, nil
}

// priorRecords reloads what an earlier run emitted for ns so an incremental
// run extends the artifact instead of truncating it.
func (p *Pipeline) priorRecords(opts RunOptions, ns record.Namespace) ([]*record.Record, error) {
	path := ArtifactPath(opts.ArtifactsDir, ns)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	a, err := ReadArtifact(path)
	if err != nil {
		return nil, err
	}
	if a.UserID != opts.UserID {
		return nil, nil
	}

	records := make([]*record.Record, 0, len(a.Records))
	for _, r := range a.Records {
		rec, err := record.New(opts.UserID, ns, r.Text, record.MetadataFromMap(r.Metadata), a.GeneratedAt)
		if err != nil {
			p.logger.Warn("dropping invalid artifact record", "namespace", ns, "id", r.ID, "err", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
