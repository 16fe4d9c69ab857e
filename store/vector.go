package store

import (
	"context"
	"sort"
	"strings"

	"github.com/habiliai/memoryd/record"
)

type (
	// VectorStore is the system of record: existence, listing and ranked
	// retrieval. Upsert is last-write-wins per id.
	VectorStore interface {
		Upsert(ctx context.Context, rec *record.Record, embedding []float32) error
		Get(ctx context.Context, id string) (*record.Record, error)
		List(ctx context.Context, filter Filter) ([]*record.Record, error)
		Search(ctx context.Context, embedding []float32, k int, filter Filter) ([]record.Scored, error)
		Delete(ctx context.Context, ids ...string) error
		// DeleteAll removes every record of userID, or everything when userID
		// is empty, and returns the removed ids.
		DeleteAll(ctx context.Context, userID string) ([]string, error)
		Close() error
	}

	Filter struct {
		UserID            string
		Namespace         record.Namespace
		Base              string
		Hash              string
		Bootstrap         *bool
		ExcludeRestricted bool
	}
)

func (f Filter) IsZero() bool {
	return f == Filter{}
}

func (f Filter) Match(r *record.Record) bool {
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.Namespace != "" && r.Namespace != f.Namespace {
		return false
	}
	if f.Base != "" && r.Namespace.Base() != f.Base {
		return false
	}
	if f.Hash != "" && r.Hash != f.Hash {
		return false
	}
	if f.Bootstrap != nil && r.Metadata.Bootstrap != *f.Bootstrap {
		return false
	}
	if f.ExcludeRestricted && r.Namespace.IsRestricted() {
		return false
	}
	return true
}

// SortScored orders by score descending, newest created_at first on ties.
func SortScored(results []record.Scored) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return strings.Compare(results[i].ID, results[j].ID) < 0
	})
}

// SortNewestFirst orders records by created_at descending.
func SortNewestFirst(records []*record.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
}
