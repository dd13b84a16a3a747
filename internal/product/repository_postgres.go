package product

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

const (
	productColumns = `id, rev, name, slug, category, description, price, opening_stock, stock_out, image, created_at, updated_at`

	listProductsQuery = `
		SELECT ` + productColumns + `
		FROM products
		WHERE ($1 = '' OR category = $1)
		ORDER BY name
	`
	getProductByIDQuery = `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = $1
	`
	snapshotQuery = `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = ANY($1::text[])
	`
	insertProductQuery = `
		INSERT INTO products (id, rev, name, slug, category, description, price, opening_stock, stock_out, image, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
		RETURNING ` + productColumns
	restockQuery = `
		UPDATE products
		SET opening_stock = $2, rev = $3, updated_at = $4
		WHERE id = $1
		RETURNING ` + productColumns
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (Product, error) {
	var (
		p                          Product
		slug, category, desc, image sql.NullString
	)
	err := row.Scan(&p.ID, &p.Rev, &p.Name, &slug, &category, &desc, &p.Price, &p.OpeningStock, &p.StockOut, &image, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	p.Slug, p.Category, p.Description, p.Image = slug.String, category.String, desc.String, image.String
	return p, nil
}

func (r *PostgresRepository) List(ctx context.Context, category string) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, listProductsQuery, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, getProductByIDQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *PostgresRepository) Snapshot(ctx context.Context, ids []string) (map[string]Product, error) {
	out := make(map[string]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, snapshotQuery, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Create(ctx context.Context, p Product) (Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	row := r.db.QueryRowContext(ctx, insertProductQuery,
		p.ID, NewRev(), p.Name, p.Slug, p.Category, p.Description, p.Price, p.OpeningStock, p.StockOut, p.Image, now)
	return scanProduct(row)
}

func (r *PostgresRepository) SetOpeningStock(ctx context.Context, id string, openingStock int) (Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, restockQuery, id, openingStock, NewRev(), time.Now().UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}
