package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shopmind/recembed/internal/embed"
	"github.com/shopmind/recembed/internal/model"
)

type memoryEmbeddingSaver struct {
	saved map[string]*model.ProductEmbedding
	stale []model.Product
}

func newMemoryEmbeddingSaver() *memoryEmbeddingSaver {
	return &memoryEmbeddingSaver{saved: map[string]*model.ProductEmbedding{}}
}

func (m *memoryEmbeddingSaver) Save(ctx context.Context, emb *model.ProductEmbedding) error {
	m.saved[emb.ProductID] = emb
	return nil
}

func (m *memoryEmbeddingSaver) ListStaleProducts(ctx context.Context, limit int) ([]model.Product, error) {
	if limit < len(m.stale) {
		return m.stale[:limit], nil
	}
	return m.stale, nil
}

type memoryProductSaver struct {
	saved map[string]model.Product
}

func newMemoryProductSaver() *memoryProductSaver {
	return &memoryProductSaver{saved: map[string]model.Product{}}
}

func (m *memoryProductSaver) Upsert(ctx context.Context, product *model.Product) error {
	m.saved[product.ID] = *product
	return nil
}

type fakeTextEmbedder struct {
	calls []string
}

func (f *fakeTextEmbedder) Name() string { return "fake-text" }

func (f *fakeTextEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	return []float32{9, 9}, nil
}

func TestSyncService_SyncProducts(t *testing.T) {
	saver := newMemoryEmbeddingSaver()
	embedder := embed.NewStaticEmbedder(map[string][]float32{
		"p1": {1, 0},
		"p2": {0, 1},
	})
	svc := NewSyncService(saver, newMemoryProductSaver(), embedder, nil, "m1")

	synced, err := svc.SyncProducts(context.Background(), []model.Product{
		{ID: "p1", Title: "One"},
		{ID: "p2", Title: "Two"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, synced)
	require.Equal(t, []float32{1, 0}, saver.saved["p1"].Embedding)
	require.Equal(t, "m1", saver.saved["p1"].ModelVersion)
}

func TestSyncService_ColdStartFallsBackToTitle(t *testing.T) {
	saver := newMemoryEmbeddingSaver()
	embedder := embed.NewStaticEmbedder(map[string][]float32{"p1": {1, 0}})
	text := &fakeTextEmbedder{}
	svc := NewSyncService(saver, newMemoryProductSaver(), embedder, text, "m1")

	synced, err := svc.SyncProducts(context.Background(), []model.Product{
		{ID: "p1", Title: "Known"},
		{ID: "p-new", Title: "Brand New Gadget"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, synced)
	require.Equal(t, []string{"Brand New Gadget"}, text.calls)
	require.Equal(t, []float32{9, 9}, saver.saved["p-new"].Embedding)
}

func TestSyncService_ColdStartSkippedWithoutTextEmbedder(t *testing.T) {
	saver := newMemoryEmbeddingSaver()
	embedder := embed.NewStaticEmbedder(map[string][]float32{"p1": {1, 0}})
	svc := NewSyncService(saver, newMemoryProductSaver(), embedder, nil, "m1")

	synced, err := svc.SyncProducts(context.Background(), []model.Product{
		{ID: "p1", Title: "Known"},
		{ID: "p-new", Title: "Unknown"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, synced)
	require.NotContains(t, saver.saved, "p-new")
}

func TestSyncService_SyncStale(t *testing.T) {
	saver := newMemoryEmbeddingSaver()
	saver.stale = []model.Product{{ID: "p1", Title: "One"}}
	embedder := embed.NewStaticEmbedder(map[string][]float32{"p1": {1, 0}})
	svc := NewSyncService(saver, newMemoryProductSaver(), embedder, nil, "m1")

	synced, err := svc.SyncStale(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, synced)
}

func TestSyncService_ImportCatalog(t *testing.T) {
	saver := newMemoryEmbeddingSaver()
	products := newMemoryProductSaver()
	embedder := embed.NewStaticEmbedder(map[string][]float32{
		"p1": {1, 0},
		"p2": {0, 1},
	})
	svc := NewSyncService(saver, products, embedder, nil, "m1")

	synced, err := svc.ImportCatalog(context.Background(), []model.Product{
		{ID: "p1", Title: "One", Category: "a"},
		{ID: "p2", Title: "Two", Category: "b"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, synced)
	require.Len(t, products.saved, 2)
	require.NotZero(t, products.saved["p1"].Mtime)
	require.Contains(t, saver.saved, "p2")
}
