package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buddy-ai/buddyai/pkg/logger"
)

// fakeEmbedder maps known texts to fixed vectors.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, model, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func newTestStore(t *testing.T, emb *fakeEmbedder) *Store {
	t.Helper()
	return NewStore(emb, "test-embed", t.TempDir(), "test-collection", logger.NewNop())
}

func TestNotReadyBeforeInit(t *testing.T) {
	s := newTestStore(t, &fakeEmbedder{})

	assert.False(t, s.Ready())
	assert.ErrorIs(t, s.Save(context.Background(), "hello"), ErrNotReady)
	_, err := s.Retrieve(context.Background(), "hello", 3)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestInitIsIdempotent(t *testing.T) {
	s := newTestStore(t, &fakeEmbedder{})

	require.NoError(t, s.Init())
	require.NoError(t, s.Init())
	assert.True(t, s.Ready())
	assert.Equal(t, 0, s.Len())
}

func TestSaveAndRetrieveNearest(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"cats are great":     {1, 0, 0},
		"dogs bark loudly":   {0, 1, 0},
		"i like felines":     {0.9, 0.1, 0},
		"tell me about cats": {1, 0.05, 0},
	}}
	s := newTestStore(t, emb)
	require.NoError(t, s.Init())

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "cats are great"))
	require.NoError(t, s.Save(ctx, "dogs bark loudly"))
	require.NoError(t, s.Save(ctx, "i like felines"))
	assert.Equal(t, 3, s.Len())

	got, err := s.Retrieve(ctx, "tell me about cats", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"cats are great", "i like felines"}, got)
}

func TestRetrieveReturnsAtMostAvailable(t *testing.T) {
	s := newTestStore(t, &fakeEmbedder{})
	require.NoError(t, s.Init())
	require.NoError(t, s.Save(context.Background(), "only one"))

	got, err := s.Retrieve(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"only one"}, got)
}

func TestSaveEmbedderFailure(t *testing.T) {
	s := newTestStore(t, &fakeEmbedder{err: errors.New("embedder down")})
	require.NoError(t, s.Init())

	err := s.Save(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestCollectionPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"remember me": {1, 0, 0},
	}}

	s := NewStore(emb, "test-embed", dir, "test-collection", logger.NewNop())
	require.NoError(t, s.Init())
	require.NoError(t, s.Save(context.Background(), "remember me"))

	reopened := NewStore(emb, "test-embed", dir, "test-collection", logger.NewNop())
	require.NoError(t, reopened.Init())
	assert.Equal(t, 1, reopened.Len())

	got, err := reopened.Retrieve(context.Background(), "remember me", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"remember me"}, got)
}
