package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/shopmind/recembed/internal/model"
	"github.com/shopmind/recembed/internal/pkg/dbutil"
	appErr "github.com/shopmind/recembed/internal/pkg/errors"
)

type ProductRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) *ProductRepo {
	return &ProductRepo{db: db}
}

func (r *ProductRepo) Upsert(ctx context.Context, product *model.Product) error {
	const query = `
		INSERT INTO products (id, title, category, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			mtime = EXCLUDED.mtime
	`
	_, err := r.db.ExecContext(ctx, query,
		product.ID, product.Title, product.Category, product.Ctime, product.Mtime)
	return err
}

func (r *ProductRepo) Get(ctx context.Context, id string) (*model.Product, error) {
	where := map[string]interface{}{"id": id}
	sqlStr, args, err := builder.BuildSelect("products", where, []string{"id", "title", "category", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var product model.Product
	if err := row.Scan(&product.ID, &product.Title, &product.Category, &product.Ctime, &product.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// GetTitles resolves identifiers to catalog titles. Missing products are
// simply absent from the result; the caller decides whether that matters.
func (r *ProductRepo) GetTitles(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	where := map[string]interface{}{"id in": ids}
	sqlStr, args, err := builder.BuildSelect("products", where, []string{"id", "title"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	titles := make(map[string]string, len(ids))
	for rows.Next() {
		var id, title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, err
		}
		titles[id] = title
	}
	return titles, rows.Err()
}

func (r *ProductRepo) List(ctx context.Context, category string, limit, offset int) ([]model.Product, error) {
	where := map[string]interface{}{"_orderby": "id asc"}
	if category != "" {
		where["category"] = category
	}
	if limit > 0 {
		if offset < 0 {
			offset = 0
		}
		where["_limit"] = []uint{uint(offset), uint(limit)}
	}
	sqlStr, args, err := builder.BuildSelect("products", where, []string{"id", "title", "category", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := make([]model.Product, 0)
	for rows.Next() {
		var product model.Product
		if err := rows.Scan(&product.ID, &product.Title, &product.Category, &product.Ctime, &product.Mtime); err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}
