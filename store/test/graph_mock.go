package storetest

import (
	"context"

	"github.com/habiliai/memoryd/store"
	"github.com/stretchr/testify/mock"
)

type GraphStoreMock struct {
	mock.Mock
}

func (m *GraphStoreMock) Upsert(ctx context.Context, userID, recordID string, g *store.Graph) error {
	args := m.Called(ctx, userID, recordID, g)
	return args.Error(0)
}

func (m *GraphStoreMock) DeleteByRecord(ctx context.Context, recordIDs ...string) error {
	args := m.Called(ctx, recordIDs)
	return args.Error(0)
}

func (m *GraphStoreMock) DeleteAll(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *GraphStoreMock) Relations(ctx context.Context, userID string) ([]store.Relation, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]store.Relation), args.Error(1)
}

func (m *GraphStoreMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var _ store.GraphStore = (*GraphStoreMock)(nil)
