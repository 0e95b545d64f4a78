package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shopmind/recembed/internal/pkg/errcode"
	"github.com/shopmind/recembed/internal/pkg/response"
	"github.com/shopmind/recembed/internal/service"
)

type RecommendHandler struct {
	recommend *service.RecommendService
	defaultK  int
	maxK      int
}

func NewRecommendHandler(recommend *service.RecommendService, defaultK, maxK int) *RecommendHandler {
	return &RecommendHandler{recommend: recommend, defaultK: defaultK, maxK: maxK}
}

type recommendRequest struct {
	ProductID    string   `json:"product_id"`
	CandidateIDs []string `json:"candidate_ids"`
	K            int      `json:"k"`
}

// Recommend ranks an explicit candidate set against a query product.
// With k omitted or 1 the response carries the single nearest neighbor.
func (h *RecommendHandler) Recommend(c *gin.Context) {
	var req recommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.ProductID == "" || len(req.CandidateIDs) == 0 {
		response.Error(c, errcode.ErrInvalid, "product_id and candidate_ids are required")
		return
	}
	if req.K <= 1 {
		best, err := h.recommend.Recommend(c.Request.Context(), req.ProductID, req.CandidateIDs)
		if err != nil {
			handleError(c, err)
			return
		}
		response.Success(c, gin.H{"results": []service.Recommendation{*best}})
		return
	}
	if req.K > h.maxK {
		response.Error(c, errcode.ErrInvalid, "k exceeds limit")
		return
	}
	results, err := h.recommend.TopWithin(c.Request.Context(), req.ProductID, req.CandidateIDs, req.K)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"results": results})
}

// Similar ranks the whole stored catalog against one product.
func (h *RecommendHandler) Similar(c *gin.Context) {
	productID := c.Param("id")
	k := h.defaultK
	if raw := c.Query("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, errcode.ErrInvalid, "invalid k")
			return
		}
		k = parsed
	}
	if k > h.maxK {
		response.Error(c, errcode.ErrInvalid, "k exceeds limit")
		return
	}
	results, err := h.recommend.SimilarToProduct(c.Request.Context(), productID, k)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"product_id": productID, "results": results})
}
