package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shopmind/recembed/internal/middleware"
)

type RouterDeps struct {
	Recommend *RecommendHandler
	Catalog   *CatalogHandler
	Admin     *AdminHandler
	JWTSecret []byte
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/recommend", deps.Recommend.Recommend)
	api.GET("/products", deps.Catalog.List)
	api.GET("/products/:id", deps.Catalog.Get)
	api.GET("/products/:id/similar", deps.Recommend.Similar)

	adminGroup := api.Group("/admin")
	adminGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	adminGroup.Use(middleware.RateLimit(time.Second))
	adminGroup.POST("/training", deps.Admin.StartTraining)
	adminGroup.GET("/training/:id", deps.Admin.GetRun)
	adminGroup.DELETE("/training/:id", deps.Admin.Teardown)
	adminGroup.POST("/catalog", deps.Admin.ImportCatalog)
}
