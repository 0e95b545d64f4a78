package repo

import (
	"context"
	"database/sql"

	"github.com/pgvector/pgvector-go"

	"github.com/shopmind/recembed/internal/model"
	appErr "github.com/shopmind/recembed/internal/pkg/errors"
)

type EmbeddingRepo struct {
	db *sql.DB
}

func NewEmbeddingRepo(db *sql.DB) *EmbeddingRepo {
	return &EmbeddingRepo{db: db}
}

func (r *EmbeddingRepo) Save(ctx context.Context, emb *model.ProductEmbedding) error {
	const query = `
		INSERT INTO product_embeddings (product_id, embedding, model_version, mtime)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			model_version = EXCLUDED.model_version,
			mtime = EXCLUDED.mtime
	`
	_, err := r.db.ExecContext(ctx, query,
		emb.ProductID,
		pgvector.NewVector(emb.Embedding),
		emb.ModelVersion,
		emb.Mtime,
	)
	return err
}

func (r *EmbeddingRepo) Get(ctx context.Context, productID string) (*model.ProductEmbedding, error) {
	const query = `
		SELECT product_id, embedding, model_version, mtime
		FROM product_embeddings
		WHERE product_id = $1
	`
	row := r.db.QueryRowContext(ctx, query, productID)
	var item model.ProductEmbedding
	var embedding pgvector.Vector
	if err := row.Scan(&item.ProductID, &embedding, &item.ModelVersion, &item.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	item.Embedding = embedding.Slice()
	return &item, nil
}

// Snapshot loads every stored embedding into an in-memory dictionary, the
// form the retriever works on.
func (r *EmbeddingRepo) Snapshot(ctx context.Context) (map[string][]float32, error) {
	const query = `SELECT product_id, embedding FROM product_embeddings`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	dict := make(map[string][]float32)
	for rows.Next() {
		var productID string
		var embedding pgvector.Vector
		if err := rows.Scan(&productID, &embedding); err != nil {
			return nil, err
		}
		dict[productID] = embedding.Slice()
	}
	return dict, rows.Err()
}

// NearestByVector runs the catalog-wide neighbor query inside Postgres,
// ordered by L2 distance. The in-process retriever handles explicit
// candidate sets; this path serves "against the whole catalog" requests.
func (r *EmbeddingRepo) NearestByVector(ctx context.Context, vec []float32, limit int) ([]model.ProductEmbedding, []float64, error) {
	const query = `
		SELECT product_id, embedding, model_version, mtime, embedding <-> $1 AS distance
		FROM product_embeddings
		ORDER BY embedding <-> $1
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, pgvector.NewVector(vec), limit)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var items []model.ProductEmbedding
	var distances []float64
	for rows.Next() {
		var item model.ProductEmbedding
		var embedding pgvector.Vector
		var distance float64
		if err := rows.Scan(&item.ProductID, &embedding, &item.ModelVersion, &item.Mtime, &distance); err != nil {
			return nil, nil, err
		}
		item.Embedding = embedding.Slice()
		items = append(items, item)
		distances = append(distances, distance)
	}
	return items, distances, rows.Err()
}

// ListStaleProducts returns products whose embedding is missing or older
// than the product row, the resync job's work queue.
func (r *EmbeddingRepo) ListStaleProducts(ctx context.Context, limit int) ([]model.Product, error) {
	const query = `
		SELECT p.id, p.title, p.category, p.ctime, p.mtime
		FROM products p
		LEFT JOIN product_embeddings e ON p.id = e.product_id
		WHERE e.product_id IS NULL OR p.mtime > e.mtime
		ORDER BY p.mtime DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []model.Product
	for rows.Next() {
		var product model.Product
		if err := rows.Scan(&product.ID, &product.Title, &product.Category, &product.Ctime, &product.Mtime); err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}
