package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shopmind/recembed/internal/pkg/errcode"
	"github.com/shopmind/recembed/internal/pkg/response"
	"github.com/shopmind/recembed/internal/repo"
)

type CatalogHandler struct {
	products *repo.ProductRepo
}

func NewCatalogHandler(products *repo.ProductRepo) *CatalogHandler {
	return &CatalogHandler{products: products}
}

func (h *CatalogHandler) Get(c *gin.Context) {
	product, err := h.products.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, product)
}

func (h *CatalogHandler) List(c *gin.Context) {
	limit := 50
	offset := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			response.Error(c, errcode.ErrInvalid, "invalid limit")
			return
		}
		limit = parsed
	}
	if raw := c.Query("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.Error(c, errcode.ErrInvalid, "invalid offset")
			return
		}
		offset = parsed
	}
	products, err := h.products.List(c.Request.Context(), c.Query("category"), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"products": products})
}
