package store

import (
	"context"
	"log/slog"

	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/internal/mylog"
	"github.com/habiliai/memoryd/internal/retry"
	"github.com/habiliai/memoryd/record"
)

type (
	// Adapter writes records to the vector store, which is authoritative, and
	// mirrors them into the optional graph store on a best-effort basis.
	// Graph failures are logged and queued in the outbox, never returned.
	Adapter struct {
		vector    VectorStore
		graph     GraphStore
		extractor GraphExtractor
		outbox    Outbox
		logger    *slog.Logger
		retry     retry.Policy
	}

	AdapterOption func(*Adapter)

	ReconcileReport struct {
		Processed int
		Succeeded int
		Failed    int
	}
)

// WithGraph mirrors every write into graph, using extractor to pull relations.
func WithGraph(graph GraphStore, extractor GraphExtractor) AdapterOption {
	return func(a *Adapter) {
		a.graph = graph
		a.extractor = extractor
	}
}

// WithOutbox queues failed graph operations for Reconcile.
func WithOutbox(outbox Outbox) AdapterOption {
	return func(a *Adapter) { a.outbox = outbox }
}

func WithLogger(logger *slog.Logger) AdapterOption {
	return func(a *Adapter) { a.logger = logger }
}

func WithRetryPolicy(p retry.Policy) AdapterOption {
	return func(a *Adapter) { a.retry = p }
}

// NewAdapter wraps vector. Graph memory stays off unless WithGraph is given.
func NewAdapter(vector VectorStore, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		vector:    vector,
		extractor: RuleGraphExtractor{},
		logger:    mylog.Discard(),
		retry:     retry.Policy{Attempts: 1},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GraphEnabled reports whether writes are mirrored into a graph store.
func (a *Adapter) GraphEnabled() bool { return a.graph != nil }

// Write upserts rec and its embedding. A vector store failure aborts the write.
func (a *Adapter) Write(ctx context.Context, rec *record.Record, embedding []float32) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := retry.Do(ctx, a.retry, func(ctx context.Context) error {
		return a.vector.Upsert(ctx, rec, embedding)
	}); err != nil {
		return errors.Wrapf(err, "failed to write memory %s", rec.ID)
	}

	a.mirror(ctx, rec)
	return nil
}

// Get returns the record with id or an ErrNotFound error.
func (a *Adapter) Get(ctx context.Context, id string) (rec *record.Record, err error) {
	err = retry.Do(ctx, a.retry, func(ctx context.Context) error {
		rec, err = a.vector.Get(ctx, id)
		return err
	})
	return
}

// List returns the records matching filter, newest first.
func (a *Adapter) List(ctx context.Context, filter Filter) (records []*record.Record, err error) {
	err = retry.Do(ctx, a.retry, func(ctx context.Context) error {
		records, err = a.vector.List(ctx, filter)
		return err
	})
	return
}

// Search returns up to k records by decreasing similarity, newest first on ties.
func (a *Adapter) Search(ctx context.Context, embedding []float32, k int, filter Filter) (results []record.Scored, err error) {
	err = retry.Do(ctx, a.retry, func(ctx context.Context) error {
		results, err = a.vector.Search(ctx, embedding, k, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	SortScored(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Delete removes the records from the vector store, then cascades to the
// graph provenance of those ids.
func (a *Adapter) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := retry.Do(ctx, a.retry, func(ctx context.Context) error {
		return a.vector.Delete(ctx, ids...)
	}); err != nil {
		return errors.Wrapf(err, "failed to delete %d memories", len(ids))
	}

	if a.graph != nil {
		if err := a.graph.DeleteByRecord(ctx, ids...); err != nil {
			for _, id := range ids {
				a.graphFailed(ctx, OpSync, id, "", err)
			}
		}
	}
	return nil
}

// DeleteAll wipes one user's records, or everything when userID is empty, and
// returns how many records were removed.
func (a *Adapter) DeleteAll(ctx context.Context, userID string) (int, error) {
	var ids []string
	if err := retry.Do(ctx, a.retry, func(ctx context.Context) error {
		var err error
		ids, err = a.vector.DeleteAll(ctx, userID)
		return err
	}); err != nil {
		return 0, errors.Wrapf(err, "failed to delete memories")
	}

	if a.graph != nil {
		if err := a.graph.DeleteAll(ctx, userID); err != nil {
			a.graphFailed(ctx, OpDeleteAll, "", userID, err)
		}
	}
	return len(ids), nil
}

// Relations exposes the mirrored graph; nil when graph memory is off.
func (a *Adapter) Relations(ctx context.Context, userID string) ([]Relation, error) {
	if a.graph == nil {
		return nil, nil
	}
	return a.graph.Relations(ctx, userID)
}

// Reconcile replays queued graph work. Entries that fail again stay queued
// with their attempt count raised.
func (a *Adapter) Reconcile(ctx context.Context, limit int) (ReconcileReport, error) {
	var report ReconcileReport
	if a.outbox == nil || a.graph == nil {
		return report, nil
	}

	entries, err := a.outbox.Pending(ctx, limit)
	if err != nil {
		return report, err
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Processed++

		err := a.replay(ctx, entry)
		if err == nil {
			report.Succeeded++
			if err := a.outbox.Complete(ctx, entry.ID); err != nil {
				return report, err
			}
			continue
		}

		report.Failed++
		a.logger.Warn("graph reconciliation failed", "op", entry.Op, "id", entry.RecordID, "attempts", entry.Attempts+1, "err", err)
		if err := a.outbox.Fail(ctx, entry.ID, err); err != nil {
			return report, err
		}
	}

	return report, nil
}

func (a *Adapter) replay(ctx context.Context, entry *OutboxEntry) error {
	switch entry.Op {
	case OpDeleteAll:
		return a.graph.DeleteAll(ctx, entry.UserID)
	case OpSync:
		rec, err := a.vector.Get(ctx, entry.RecordID)
		if errors.Is(err, errors.ErrNotFound) {
			return a.graph.DeleteByRecord(ctx, entry.RecordID)
		} else if err != nil {
			return err
		}
		g, err := a.extractor.Extract(ctx, rec.Text)
		if err != nil {
			return err
		} else if g == nil {
			g = &Graph{}
		}
		return a.graph.Upsert(ctx, rec.UserID, rec.ID, g)
	default:
		return errors.Errorf("unknown outbox op %q", entry.Op)
	}
}

// Close releases the graph store and then the vector store.
func (a *Adapter) Close(ctx context.Context) error {
	var err error
	if a.graph != nil {
		err = a.graph.Close(ctx)
	}
	if verr := a.vector.Close(); verr != nil {
		return verr
	}
	return err
}

func (a *Adapter) mirror(ctx context.Context, rec *record.Record) {
	if a.graph == nil {
		return
	}

	g, err := a.extractor.Extract(ctx, rec.Text)
	if err == nil && g == nil {
		g = &Graph{}
	}
	if err != nil {
		a.graphFailed(ctx, OpSync, rec.ID, rec.UserID, err)
		return
	}
	if err := a.graph.Upsert(ctx, rec.UserID, rec.ID, g); err != nil {
		a.graphFailed(ctx, OpSync, rec.ID, rec.UserID, err)
		return
	}
	a.logger.Debug("memory mirrored to graph", "id", rec.ID, "entities", len(g.Entities), "relations", len(g.Relations))
}

func (a *Adapter) graphFailed(ctx context.Context, op OutboxOp, recordID, userID string, cause error) {
	cause = errors.Mark(cause, errors.ErrGraphStore)
	a.logger.Warn("graph store lagging behind vector store", "op", op, "id", recordID, "user", userID, "err", cause)
	if a.outbox == nil {
		return
	}
	if err := a.outbox.Enqueue(context.WithoutCancel(ctx), op, recordID, userID, cause); err != nil {
		a.logger.Error("failed to record graph work for reconciliation", "op", op, "id", recordID, "err", err)
	}
}
