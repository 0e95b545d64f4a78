package service

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/shopmind/recembed/internal/knn"
	"github.com/shopmind/recembed/internal/model"
	appErr "github.com/shopmind/recembed/internal/pkg/errors"
)

// EmbeddingStore is the slice of the embedding repository the recommender
// needs.
type EmbeddingStore interface {
	Get(ctx context.Context, productID string) (*model.ProductEmbedding, error)
	Snapshot(ctx context.Context) (map[string][]float32, error)
	NearestByVector(ctx context.Context, vec []float32, limit int) ([]model.ProductEmbedding, []float64, error)
}

// TitleResolver maps product ids to display titles.
type TitleResolver interface {
	GetTitles(ctx context.Context, ids []string) (map[string]string, error)
}

type Recommendation struct {
	ProductID string  `json:"product_id"`
	Title     string  `json:"title"`
	Distance  float64 `json:"distance"`
}

type RecommendService struct {
	embeddings    EmbeddingStore
	products      TitleResolver
	maxCandidates int
}

func NewRecommendService(embeddings EmbeddingStore, products TitleResolver, maxCandidates int) *RecommendService {
	return &RecommendService{
		embeddings:    embeddings,
		products:      products,
		maxCandidates: maxCandidates,
	}
}

// Recommend finds the nearest neighbor of queryID within an explicit
// candidate set. The query product is excluded from the candidates here, at
// the call site; the retriever itself has no exclusion policy.
func (s *RecommendService) Recommend(ctx context.Context, queryID string, candidateIDs []string) (*Recommendation, error) {
	if len(candidateIDs) == 0 {
		return nil, fmt.Errorf("%w: empty candidate set", appErr.ErrInvalid)
	}
	if s.maxCandidates > 0 && len(candidateIDs) > s.maxCandidates {
		return nil, fmt.Errorf("%w: candidate set exceeds limit of %d", appErr.ErrInvalid, s.maxCandidates)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("query_id", queryID), zap.Int("candidates", len(candidateIDs)))

	filtered := make([]string, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		if id == queryID {
			continue
		}
		filtered = append(filtered, id)
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("%w: no candidates besides the query product", appErr.ErrInvalid)
	}

	dict, err := s.dictionaryFor(ctx, append([]string{queryID}, filtered...))
	if err != nil {
		return nil, err
	}
	bestID, distance, err := knn.Nearest(queryID, filtered, dict)
	if err != nil {
		return nil, err
	}
	logger.Debug("nearest neighbor found", zap.String("best_id", bestID), zap.Float64("distance", distance))

	titles, err := s.products.GetTitles(ctx, []string{bestID})
	if err != nil {
		logger.Error("resolve titles failed", zap.Error(err))
		return nil, err
	}
	return &Recommendation{ProductID: bestID, Title: titles[bestID], Distance: distance}, nil
}

// SimilarToProduct ranks the whole stored catalog against one product. The
// heavy lifting happens inside Postgres; the query product itself is
// dropped from the result.
func (s *RecommendService) SimilarToProduct(ctx context.Context, productID string, k int) ([]Recommendation, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", appErr.ErrInvalid)
	}
	queryEmb, err := s.embeddings.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	// over-fetch by one to absorb the self-match
	items, distances, err := s.embeddings.NearestByVector(ctx, queryEmb.Embedding, k+1)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.ProductID == productID {
			continue
		}
		ids = append(ids, item.ProductID)
	}
	titles, err := s.products.GetTitles(ctx, ids)
	if err != nil {
		return nil, err
	}
	results := make([]Recommendation, 0, k)
	for i, item := range items {
		if item.ProductID == productID {
			continue
		}
		results = append(results, Recommendation{
			ProductID: item.ProductID,
			Title:     titles[item.ProductID],
			Distance:  distances[i],
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// TopWithin ranks an explicit candidate set and returns up to k neighbors,
// self-match excluded.
func (s *RecommendService) TopWithin(ctx context.Context, queryID string, candidateIDs []string, k int) ([]Recommendation, error) {
	if s.maxCandidates > 0 && len(candidateIDs) > s.maxCandidates {
		return nil, fmt.Errorf("%w: candidate set exceeds limit of %d", appErr.ErrInvalid, s.maxCandidates)
	}
	filtered := make([]string, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		if id == queryID {
			continue
		}
		filtered = append(filtered, id)
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("%w: no candidates besides the query product", appErr.ErrInvalid)
	}
	dict, err := s.dictionaryFor(ctx, append([]string{queryID}, filtered...))
	if err != nil {
		return nil, err
	}
	ranked, err := knn.TopK(queryID, filtered, dict, k)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(ranked))
	for _, result := range ranked {
		ids = append(ids, result.ID)
	}
	titles, err := s.products.GetTitles(ctx, ids)
	if err != nil {
		return nil, err
	}
	results := make([]Recommendation, 0, len(ranked))
	for _, result := range ranked {
		results = append(results, Recommendation{
			ProductID: result.ID,
			Title:     titles[result.ID],
			Distance:  result.Distance,
		})
	}
	return results, nil
}

// candidate sets larger than this load the full snapshot instead of
// issuing per-id queries
const snapshotThreshold = 256

func (s *RecommendService) dictionaryFor(ctx context.Context, ids []string) (map[string][]float32, error) {
	if len(ids) > snapshotThreshold {
		return s.dictionaryFromSnapshot(ctx, ids)
	}
	dict := make(map[string][]float32, len(ids))
	for _, id := range ids {
		if _, ok := dict[id]; ok {
			continue
		}
		emb, err := s.embeddings.Get(ctx, id)
		if err != nil {
			if appErr.IsNotFound(err) {
				return nil, fmt.Errorf("%w: no embedding for %q", appErr.ErrNotFound, id)
			}
			return nil, err
		}
		dict[id] = emb.Embedding
	}
	return dict, nil
}

func (s *RecommendService) dictionaryFromSnapshot(ctx context.Context, ids []string) (map[string][]float32, error) {
	snapshot, err := s.embeddings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	dict := make(map[string][]float32, len(ids))
	for _, id := range ids {
		vec, ok := snapshot[id]
		if !ok {
			return nil, fmt.Errorf("%w: no embedding for %q", appErr.ErrNotFound, id)
		}
		dict[id] = vec
	}
	return dict, nil
}
