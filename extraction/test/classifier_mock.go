package extractiontest

import (
	"context"

	"github.com/habiliai/memoryd/extraction"
	"github.com/habiliai/memoryd/record"
	"github.com/stretchr/testify/mock"
)

type ClassifierMock struct {
	mock.Mock
}

func (m *ClassifierMock) Route(ctx context.Context, statements []string) ([]record.Namespace, error) {
	args := m.Called(ctx, statements)
	return args.Get(0).([]record.Namespace), args.Error(1)
}

func (m *ClassifierMock) Annotate(ctx context.Context, ns record.Namespace, statements []string) ([]extraction.Annotation, error) {
	args := m.Called(ctx, ns, statements)
	return args.Get(0).([]extraction.Annotation), args.Error(1)
}

var _ extraction.Classifier = (*ClassifierMock)(nil)
