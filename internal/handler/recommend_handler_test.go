package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/shopmind/recembed/internal/handler"
	"github.com/shopmind/recembed/internal/model"
	appErr "github.com/shopmind/recembed/internal/pkg/errors"
	"github.com/shopmind/recembed/internal/pkg/jwt"
	"github.com/shopmind/recembed/internal/service"
)

type stubEmbeddingStore struct {
	vectors map[string][]float32
}

func (s *stubEmbeddingStore) Get(ctx context.Context, productID string) (*model.ProductEmbedding, error) {
	vec, ok := s.vectors[productID]
	if !ok {
		return nil, fmt.Errorf("%w: embedding %s", appErr.ErrNotFound, productID)
	}
	return &model.ProductEmbedding{ProductID: productID, Embedding: vec}, nil
}

func (s *stubEmbeddingStore) Snapshot(ctx context.Context) (map[string][]float32, error) {
	return s.vectors, nil
}

func (s *stubEmbeddingStore) NearestByVector(ctx context.Context, vec []float32, limit int) ([]model.ProductEmbedding, []float64, error) {
	return nil, nil, appErr.ErrInternal
}

type stubRunStore struct{}

func (stubRunStore) Create(ctx context.Context, run *model.TrainingRun) error {
	return appErr.ErrInternal
}

func (stubRunStore) UpdateState(ctx context.Context, id, state, endpointName, failReason string) error {
	return appErr.ErrNotFound
}

func (stubRunStore) Get(ctx context.Context, id string) (*model.TrainingRun, error) {
	return nil, appErr.ErrNotFound
}

func (stubRunStore) ListServingBefore(ctx context.Context, cutoff int64) ([]model.TrainingRun, error) {
	return nil, nil
}

type stubTitleResolver struct{}

func (stubTitleResolver) GetTitles(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		out[id] = "title of " + id
	}
	return out, nil
}

func setupRouter(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := &stubEmbeddingStore{vectors: map[string][]float32{
		"query": {0, 0},
		"close": {1, 0},
		"far":   {0, 5},
	}}
	recommendService := service.NewRecommendService(store, stubTitleResolver{}, 100)

	engine := gin.New()
	group := engine.Group("/api/v1")
	handler.RegisterRoutes(group, handler.RouterDeps{
		Recommend: handler.NewRecommendHandler(recommendService, 10, 100),
		Catalog:   handler.NewCatalogHandler(nil),
		Admin:     handler.NewAdminHandler(service.NewTrainingService(nil, nil, stubRunStore{}, nil), nil, nil),
		JWTSecret: []byte("test-secret"),
	})
	return engine
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestRecommendEndpoint(t *testing.T) {
	router := setupRouter(t)

	resp := postJSON(t, router, "/api/v1/recommend", map[string]interface{}{
		"product_id":    "query",
		"candidate_ids": []string{"close", "far"},
	}, "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"close"`)
	require.Contains(t, resp.Body.String(), "title of close")
}

func TestRecommendEndpoint_BadRequest(t *testing.T) {
	router := setupRouter(t)

	resp := postJSON(t, router, "/api/v1/recommend", map[string]interface{}{
		"product_id": "query",
	}, "")
	require.Contains(t, resp.Body.String(), "candidate_ids")
}

func TestRecommendEndpoint_UnknownProduct(t *testing.T) {
	router := setupRouter(t)

	resp := postJSON(t, router, "/api/v1/recommend", map[string]interface{}{
		"product_id":    "query",
		"candidate_ids": []string{"ghost"},
	}, "")
	require.Contains(t, resp.Body.String(), "not found")
}

func TestAdminRoutesRequireToken(t *testing.T) {
	router := setupRouter(t)

	resp := postJSON(t, router, "/api/v1/admin/training", map[string]string{}, "")
	require.Contains(t, resp.Body.String(), "authorization")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/training/some-run", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Contains(t, rec.Body.String(), "invalid token")
}

func TestAdminRoutesAcceptValidToken(t *testing.T) {
	router := setupRouter(t)

	token, err := jwt.GenerateToken("tester", "admin", []byte("test-secret"), time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/training/some-run", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.NotContains(t, rec.Body.String(), "invalid token")
	require.Contains(t, rec.Body.String(), "not found")
}
