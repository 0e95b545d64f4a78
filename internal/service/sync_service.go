package service

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/shopmind/recembed/internal/embed"
	"github.com/shopmind/recembed/internal/model"
	appErr "github.com/shopmind/recembed/internal/pkg/errors"
)

// EmbeddingSaver is the write side of the embedding repository.
type EmbeddingSaver interface {
	Save(ctx context.Context, emb *model.ProductEmbedding) error
	ListStaleProducts(ctx context.Context, limit int) ([]model.Product, error)
}

// ProductSaver is the write side of the catalog repository.
type ProductSaver interface {
	Upsert(ctx context.Context, product *model.Product) error
}

// SyncService keeps stored product embeddings current. Products known to
// the trained model go through the id embedder in one batch; products the
// model has never seen fall back to a text embedding of their catalog
// title when a text embedder is configured.
type SyncService struct {
	embeddings   EmbeddingSaver
	products     ProductSaver
	embedder     embed.IEmbedder
	textEmbedder embed.ITextEmbedder
	modelVersion string
}

func NewSyncService(embeddings EmbeddingSaver, products ProductSaver, embedder embed.IEmbedder, textEmbedder embed.ITextEmbedder, modelVersion string) *SyncService {
	return &SyncService{
		embeddings:   embeddings,
		products:     products,
		embedder:     embedder,
		textEmbedder: textEmbedder,
		modelVersion: modelVersion,
	}
}

// ImportCatalog upserts catalog rows and embeds them in one pass.
func (s *SyncService) ImportCatalog(ctx context.Context, products []model.Product) (int, error) {
	now := time.Now().UnixMilli()
	for i := range products {
		if products[i].Ctime == 0 {
			products[i].Ctime = now
		}
		products[i].Mtime = now
		if err := s.products.Upsert(ctx, &products[i]); err != nil {
			return 0, err
		}
	}
	return s.SyncProducts(ctx, products)
}

// SyncProducts embeds the given products through the configured embedder and
// persists the vectors. Returns the number of products synced.
func (s *SyncService) SyncProducts(ctx context.Context, products []model.Product) (int, error) {
	return s.SyncProductsWith(ctx, s.embedder, s.modelVersion, products)
}

// SyncProductsWith embeds the products through a specific embedder, tagging
// the saved vectors with the given model version. The training service uses
// it right after a deploy to pull vectors from the fresh endpoint.
func (s *SyncService) SyncProductsWith(ctx context.Context, embedder embed.IEmbedder, modelVersion string, products []model.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}
	logger := logutil.GetLogger(ctx).With(zap.Int("products", len(products)))

	ids := make([]string, 0, len(products))
	for _, product := range products {
		ids = append(ids, product.ID)
	}
	// the batch call is all-or-nothing, so one unknown id fails the whole
	// batch; fall back to per-product resolution in that case
	dict, err := embed.EmbedAll(ctx, ids, embedder)
	if err != nil && !appErr.IsNotFound(err) {
		logger.Error("batch embed failed", zap.Error(err))
		return 0, err
	}
	if dict == nil {
		dict = map[string][]float32{}
	}

	synced := 0
	now := time.Now().UnixMilli()
	for _, product := range products {
		vec, ok := dict[product.ID]
		if !ok {
			vec, err = s.embedOne(ctx, embedder, product)
			if err != nil {
				logger.Warn("embed product failed",
					zap.String("product_id", product.ID), zap.Error(err))
				continue
			}
		}
		item := &model.ProductEmbedding{
			ProductID:    product.ID,
			Embedding:    vec,
			ModelVersion: modelVersion,
			Mtime:        now,
		}
		if err := s.embeddings.Save(ctx, item); err != nil {
			logger.Error("save embedding failed", zap.String("product_id", product.ID), zap.Error(err))
			return synced, err
		}
		synced++
	}
	logger.Info("embeddings synced", zap.Int("synced", synced))
	return synced, nil
}

// SyncStale embeds products whose stored vector is missing or out of date.
func (s *SyncService) SyncStale(ctx context.Context, batch int) (int, error) {
	if batch <= 0 {
		batch = 200
	}
	stale, err := s.embeddings.ListStaleProducts(ctx, batch)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}
	return s.SyncProducts(ctx, stale)
}

func (s *SyncService) embedOne(ctx context.Context, embedder embed.IEmbedder, product model.Product) ([]float32, error) {
	single, err := embed.EmbedAll(ctx, []string{product.ID}, embedder)
	if err == nil {
		return single[product.ID], nil
	}
	if !appErr.IsNotFound(err) {
		return nil, err
	}
	if s.textEmbedder == nil {
		return nil, appErr.ErrUnavailable
	}
	return s.textEmbedder.EmbedText(ctx, product.Title)
}
