package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/internal/mytesting"
	"github.com/habiliai/memoryd/internal/retry"
	"github.com/habiliai/memoryd/record"
	"github.com/habiliai/memoryd/store"
	storetest "github.com/habiliai/memoryd/store/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type AdapterTestSuite struct {
	mytesting.Suite

	vector *store.MemoryVectorStore
	graph  *storetest.GraphStoreMock
	outbox *store.GormOutbox
	sut    *store.Adapter
}

func (s *AdapterTestSuite) SetupTest() {
	s.Suite.SetupTest()

	var err error
	s.outbox, err = store.NewGormOutbox(s, s.OpenDB("outbox.db"))
	s.Require().NoError(err)

	s.vector = store.NewMemoryVectorStore(3)
	s.graph = &storetest.GraphStoreMock{}
	s.sut = store.NewAdapter(s.vector,
		store.WithGraph(s.graph, store.RuleGraphExtractor{}),
		store.WithOutbox(s.outbox),
		store.WithRetryPolicy(retry.Policy{Attempts: 2}),
	)
}

func (s *AdapterTestSuite) pending() []*store.OutboxEntry {
	entries, err := s.outbox.Pending(s, 100)
	s.Require().NoError(err)
	return entries
}

func (s *AdapterTestSuite) TestWriteMirrorsToGraph() {
	rec := newRecord(s.T(), "u1", "profile_bio", "I live in Seattle.", 0)
	s.graph.On("Upsert", mock.Anything, "u1", rec.ID, mock.MatchedBy(func(g *store.Graph) bool {
		return len(g.Relations) == 1 && g.Relations[0].Target == "seattle"
	})).Return(nil).Once()

	s.Require().NoError(s.sut.Write(s, rec, []float32{1, 0, 0}))

	got, err := s.sut.Get(s, rec.ID)
	s.Require().NoError(err)
	s.Equal(rec.Text, got.Text)
	s.Empty(s.pending())
	s.graph.AssertExpectations(s.T())
}

func (s *AdapterTestSuite) TestGraphFailureDoesNotFailWrite() {
	rec := newRecord(s.T(), "u1", "profile_bio", "I live in Seattle.", 0)
	s.graph.On("Upsert", mock.Anything, "u1", rec.ID, mock.Anything).Return(errors.New("neo4j unavailable")).Twice()

	s.Require().NoError(s.sut.Write(s, rec, []float32{1, 0, 0}))
	s.Require().NoError(s.sut.Write(s, rec, []float32{1, 0, 0}))

	results, err := s.sut.Search(s, []float32{1, 0, 0}, 5, store.Filter{})
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.Equal(rec.ID, results[0].ID)

	// repeated failures for one record collapse into one entry
	entries := s.pending()
	s.Require().Len(entries, 1)
	s.Equal(store.OpSync, entries[0].Op)
	s.Equal(rec.ID, entries[0].RecordID)
	s.Contains(entries[0].LastError, "neo4j unavailable")
}

func (s *AdapterTestSuite) TestReconcileReplaysOutbox() {
	kept := newRecord(s.T(), "u1", "profile_bio", "I live in Seattle.", time.Hour)
	gone := newRecord(s.T(), "u1", "interaction_style", "Prefers concise answers", 0)

	s.graph.On("Upsert", mock.Anything, "u1", mock.Anything, mock.Anything).Return(errors.New("down")).Twice()
	s.Require().NoError(s.sut.Write(s, kept, []float32{1, 0, 0}))
	s.Require().NoError(s.sut.Write(s, gone, []float32{0, 1, 0}))

	s.graph.On("DeleteByRecord", mock.Anything, []string{gone.ID}).Return(errors.New("down")).Once()
	s.Require().NoError(s.sut.Delete(s, gone.ID))
	s.graph.On("DeleteAll", mock.Anything, "u2").Return(errors.New("down")).Once()
	n, err := s.sut.DeleteAll(s, "u2")
	s.Require().NoError(err)
	s.Zero(n)
	s.Len(s.pending(), 3)

	// the graph is back: kept is mirrored, gone loses its provenance
	s.graph.On("Upsert", mock.Anything, "u1", kept.ID, mock.Anything).Return(nil).Once()
	s.graph.On("DeleteByRecord", mock.Anything, []string{gone.ID}).Return(nil).Once()
	s.graph.On("DeleteAll", mock.Anything, "u2").Return(nil).Once()

	report, err := s.sut.Reconcile(s, 100)
	s.Require().NoError(err)
	s.Equal(store.ReconcileReport{Processed: 3, Succeeded: 3}, report)
	s.Empty(s.pending())
	s.graph.AssertExpectations(s.T())
}

func (s *AdapterTestSuite) TestReconcileKeepsFailedEntries() {
	rec := newRecord(s.T(), "u1", "profile_bio", "I live in Seattle.", 0)
	s.graph.On("Upsert", mock.Anything, "u1", rec.ID, mock.Anything).Return(errors.New("down"))
	s.Require().NoError(s.sut.Write(s, rec, []float32{1, 0, 0}))

	report, err := s.sut.Reconcile(s, 100)
	s.Require().NoError(err)
	s.Equal(store.ReconcileReport{Processed: 1, Failed: 1}, report)

	entries := s.pending()
	s.Require().Len(entries, 1)
	s.Equal(1, entries[0].Attempts)
}

func (s *AdapterTestSuite) TestDeleteCascadesToGraph() {
	rec := newRecord(s.T(), "u1", "profile_bio", "I live in Seattle.", 0)
	s.graph.On("Upsert", mock.Anything, "u1", rec.ID, mock.Anything).Return(nil).Once()
	s.graph.On("DeleteByRecord", mock.Anything, []string{rec.ID}).Return(nil).Once()

	s.Require().NoError(s.sut.Write(s, rec, []float32{1, 0, 0}))
	s.Require().NoError(s.sut.Delete(s, rec.ID))

	_, err := s.sut.Get(s, rec.ID)
	s.ErrorIs(err, errors.ErrNotFound)
	s.Empty(s.pending())
	s.graph.AssertExpectations(s.T())
}

func (s *AdapterTestSuite) TestWriteRejectsInvalidRecord() {
	rec := newRecord(s.T(), "u1", "profile_bio", "I live in Seattle.", 0)
	rec.UserID = ""

	s.ErrorIs(s.sut.Write(s, rec, []float32{1, 0, 0}), errors.ErrValidation)
	s.graph.AssertNotCalled(s.T(), "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *AdapterTestSuite) TestVectorFailureIsFatal() {
	rec := newRecord(s.T(), "u1", "profile_bio", "I live in Seattle.", 0)

	err := s.sut.Write(s, rec, []float32{1, 0})
	s.ErrorIs(err, errors.ErrValidation)
	s.graph.AssertNotCalled(s.T(), "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAdapter(t *testing.T) {
	suite.Run(t, new(AdapterTestSuite))
}

func TestAdapterWithoutGraph(t *testing.T) {
	ctx := context.Background()
	sut := store.NewAdapter(store.NewMemoryVectorStore(3))

	rec, err := record.New("u1", record.MustParseNamespace("profile_bio"), "Lives in Seattle", record.Metadata{}, time.Now())
	require.NoError(t, err)
	require.NoError(t, sut.Write(ctx, rec, []float32{1, 0, 0}))
	assert.False(t, sut.GraphEnabled())

	relations, err := sut.Relations(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, relations)

	report, err := sut.Reconcile(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, report.Processed)

	n, err := sut.DeleteAll(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
