package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/internal/db"
	"github.com/habiliai/memoryd/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormOutbox(t *testing.T) {
	ctx := context.Background()
	gormDB, err := db.OpenDB(filepath.Join(t.TempDir(), "outbox.db"))
	require.NoError(t, err)
	defer db.CloseDB(gormDB)

	outbox, err := store.NewGormOutbox(ctx, gormDB)
	require.NoError(t, err)

	require.NoError(t, outbox.Enqueue(ctx, store.OpSync, "r1", "u1", errors.New("first")))
	require.NoError(t, outbox.Enqueue(ctx, store.OpDeleteAll, "", "u1", errors.New("wipe")))
	require.NoError(t, outbox.Enqueue(ctx, store.OpSync, "r1", "u1", errors.New("second")))

	n, err := outbox.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	entries, err := outbox.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, store.OpDeleteAll, entries[0].Op)
	assert.Equal(t, store.OpSync, entries[1].Op)
	assert.Equal(t, "second", entries[1].LastError)

	require.NoError(t, outbox.Fail(ctx, entries[1].ID, errors.New("third")))
	require.NoError(t, outbox.Complete(ctx, entries[0].ID))

	entries, err = outbox.Pending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "r1", entries[0].RecordID)
	assert.Equal(t, 1, entries[0].Attempts)
	assert.Equal(t, "third", entries[0].LastError)
}
