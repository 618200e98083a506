package warehouse

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imisexport/internal/apperr"
)

func TestRegisterAndNew(t *testing.T) {
	t.Parallel()

	Register("fake-registry", func(_ context.Context, cfg Config) (Repository, error) {
		return newFakeRepo(), nil
	})

	repo, err := New(context.Background(), Config{Kind: "fake-registry"})
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.Contains(t, ListKinds(), "fake-registry")
}

func TestNewUnsupported(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Kind: "oracle"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConfig))
	assert.Contains(t, err.Error(), `"oracle"`)
}

func TestNewFactoryError(t *testing.T) {
	t.Parallel()

	Register("fake-broken", func(context.Context, Config) (Repository, error) {
		return nil, errors.New("connection refused")
	})
	_, err := New(context.Background(), Config{Kind: "fake-broken"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPublish))
	assert.Contains(t, err.Error(), "connection refused")
}
