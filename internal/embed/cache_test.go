package embed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLRUEmbedder_OnlyMissesReachInner(t *testing.T) {
	rec := &recordingEmbedder{vectors: map[string][]float32{
		"p1": {1, 0},
		"p2": {0, 1},
		"p3": {1, 1},
	}}
	cached := WrapLRUCache(rec, 16, time.Minute)

	out, err := cached.Embed(context.Background(), []string{"p1", "p2"})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1, 0}, {0, 1}}, out)
	require.Len(t, rec.calls, 1)

	out, err = cached.Embed(context.Background(), []string{"p2", "p3", "p1"})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{0, 1}, {1, 1}, {1, 0}}, out)
	require.Len(t, rec.calls, 2)
	require.Equal(t, []string{"p3"}, rec.calls[1])
}

func TestLRUEmbedder_CachedVectorIsIsolated(t *testing.T) {
	rec := &recordingEmbedder{vectors: map[string][]float32{"p1": {1, 0}}}
	cached := WrapLRUCache(rec, 16, time.Minute)

	out, err := cached.Embed(context.Background(), []string{"p1"})
	require.NoError(t, err)
	out[0][0] = 42

	out, err = cached.Embed(context.Background(), []string{"p1"})
	require.NoError(t, err)
	require.Equal(t, []float32{1, 0}, out[0])
}

func TestWrapLRUCache_DisabledPassthrough(t *testing.T) {
	rec := &recordingEmbedder{}
	require.Equal(t, IEmbedder(rec), WrapLRUCache(rec, 0, time.Minute))
	require.Equal(t, IEmbedder(rec), WrapLRUCache(rec, 16, 0))
}
