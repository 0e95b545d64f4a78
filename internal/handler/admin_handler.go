package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/shopmind/recembed/internal/dataset"
	"github.com/shopmind/recembed/internal/datastore"
	"github.com/shopmind/recembed/internal/pkg/errcode"
	"github.com/shopmind/recembed/internal/pkg/response"
	"github.com/shopmind/recembed/internal/platform"
	"github.com/shopmind/recembed/internal/service"
)

type AdminHandler struct {
	training *service.TrainingService
	sync     *service.SyncService
	store    datastore.Store
}

func NewAdminHandler(training *service.TrainingService, sync *service.SyncService, store datastore.Store) *AdminHandler {
	return &AdminHandler{training: training, sync: sync, store: store}
}

type startTrainingRequest struct {
	PurchasesKey   string               `json:"purchases_key"`
	CatalogKey     string               `json:"catalog_key"`
	HyperParams    platform.HyperParams `json:"hyper_params"`
	NegPerPositive int                  `json:"neg_per_positive"`
	TrainFrac      float64              `json:"train_frac"`
	ValFrac        float64              `json:"val_frac"`
	Seed           int64                `json:"seed"`
	Deploy         bool                 `json:"deploy"`
}

// StartTraining kicks off a run from CSVs already uploaded to the dataset
// store. The call blocks until the run reaches a terminal state; operators
// submit with a generous client timeout or use the CLI.
func (h *AdminHandler) StartTraining(c *gin.Context) {
	var req startTrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.PurchasesKey == "" || req.CatalogKey == "" {
		response.Error(c, errcode.ErrInvalid, "purchases_key and catalog_key are required")
		return
	}
	if req.HyperParams.EncDim == 0 {
		req.HyperParams = platform.DefaultHyperParams()
	}

	purchasesFile, err := h.store.Open(c.Request.Context(), req.PurchasesKey)
	if err != nil {
		handleError(c, err)
		return
	}
	defer purchasesFile.Close()
	purchases, err := dataset.LoadPurchases(purchasesFile)
	if err != nil {
		handleError(c, err)
		return
	}
	catalogFile, err := h.store.Open(c.Request.Context(), req.CatalogKey)
	if err != nil {
		handleError(c, err)
		return
	}
	defer catalogFile.Close()
	catalog, err := dataset.LoadCatalog(catalogFile)
	if err != nil {
		handleError(c, err)
		return
	}

	run, err := h.training.Train(c.Request.Context(), service.TrainRequest{
		Purchases:      purchases,
		Catalog:        catalog,
		HyperParams:    req.HyperParams,
		NegPerPositive: req.NegPerPositive,
		TrainFrac:      req.TrainFrac,
		ValFrac:        req.ValFrac,
		Seed:           req.Seed,
		Deploy:         req.Deploy,
	})
	if err != nil {
		if run != nil {
			response.Error(c, errcode.ErrTrainingFailed, "training failed: "+run.FailReason)
			return
		}
		handleError(c, err)
		return
	}
	response.Success(c, run)
}

func (h *AdminHandler) GetRun(c *gin.Context) {
	run, err := h.training.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, run)
}

func (h *AdminHandler) Teardown(c *gin.Context) {
	if err := h.training.Teardown(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

type importCatalogRequest struct {
	CatalogKey string `json:"catalog_key"`
}

// ImportCatalog upserts an uploaded catalog CSV and embeds every product.
func (h *AdminHandler) ImportCatalog(c *gin.Context) {
	var req importCatalogRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CatalogKey == "" {
		response.Error(c, errcode.ErrInvalid, "catalog_key is required")
		return
	}
	catalogFile, err := h.store.Open(c.Request.Context(), req.CatalogKey)
	if err != nil {
		handleError(c, err)
		return
	}
	defer catalogFile.Close()
	catalog, err := dataset.LoadCatalog(catalogFile)
	if err != nil {
		handleError(c, err)
		return
	}
	synced, err := h.sync.ImportCatalog(c.Request.Context(), catalog)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"imported": len(catalog), "synced": synced})
}
