package model

type ProductEmbedding struct {
	ProductID    string    `json:"product_id"`
	Embedding    []float32 `json:"embedding"`
	ModelVersion string    `json:"model_version"`
	Mtime        int64     `json:"mtime"`
}
