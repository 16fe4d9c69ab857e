package errors_test

import (
	"context"
	"testing"

	"github.com/habiliai/memoryd/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkKeepsCauseAndKind(t *testing.T) {
	cause := context.DeadlineExceeded
	err := errors.WrapKindf(cause, errors.ErrProvider, "failed to embed %d texts", 2)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProvider))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, errors.ErrProvider, errors.Kind(err))
	assert.Equal(t, "failed to embed 2 texts: context deadline exceeded", err.Error())
}

func TestMarkNil(t *testing.T) {
	assert.NoError(t, errors.Mark(nil, errors.ErrStore))
	assert.NoError(t, errors.WrapKindf(nil, errors.ErrStore, "failed to list memories"))
}

func TestKind(t *testing.T) {
	assert.Equal(t, errors.ErrNotFound, errors.Kind(errors.NotFoundf("memory %s", "abc")))
	assert.Equal(t, errors.ErrValidation, errors.Kind(errors.Validationf("bad namespace %q", "x")))
	assert.Nil(t, errors.Kind(errors.New("plain")))
}
