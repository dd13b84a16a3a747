package promo

import (
	"context"
	"database/sql"
	"errors"
)

type PostgresRepository struct {
	db *sql.DB
}

const (
	promoColumns = `code, active, discount_percentage, free_shipping, min_order_amount, first_order_only, featured, created_at, updated_at`

	getPromoQuery      = `SELECT ` + promoColumns + ` FROM promo_codes WHERE code = $1`
	featuredPromoQuery = `SELECT ` + promoColumns + ` FROM promo_codes WHERE featured AND active LIMIT 1`
	clearFeaturedQuery = `UPDATE promo_codes SET featured = false, updated_at = now() WHERE featured AND code <> $1`
	upsertPromoQuery   = `
		INSERT INTO promo_codes (code, active, discount_percentage, free_shipping, min_order_amount, first_order_only, featured, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())
		ON CONFLICT (code) DO UPDATE SET
			active = EXCLUDED.active,
			discount_percentage = EXCLUDED.discount_percentage,
			free_shipping = EXCLUDED.free_shipping,
			min_order_amount = EXCLUDED.min_order_amount,
			first_order_only = EXCLUDED.first_order_only,
			featured = EXCLUDED.featured,
			updated_at = now()
		RETURNING ` + promoColumns
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanCode(row interface{ Scan(...any) error }) (Code, error) {
	var c Code
	err := row.Scan(&c.Code, &c.Active, &c.DiscountPercentage, &c.FreeShipping, &c.MinOrderAmount, &c.FirstOrderOnly, &c.Featured, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Code{}, ErrNotFound
	}
	return c, err
}

func (r *PostgresRepository) Get(ctx context.Context, code string) (Code, error) {
	return scanCode(r.db.QueryRowContext(ctx, getPromoQuery, Normalize(code)))
}

func (r *PostgresRepository) Featured(ctx context.Context) (Code, error) {
	return scanCode(r.db.QueryRowContext(ctx, featuredPromoQuery))
}

func (r *PostgresRepository) Upsert(ctx context.Context, c Code) (Code, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Code{}, err
	}
	defer tx.Rollback()

	if c.Featured {
		if _, err := tx.ExecContext(ctx, clearFeaturedQuery, c.Code); err != nil {
			return Code{}, err
		}
	}
	saved, err := scanCode(tx.QueryRowContext(ctx, upsertPromoQuery,
		c.Code, c.Active, c.DiscountPercentage, c.FreeShipping, c.MinOrderAmount, c.FirstOrderOnly, c.Featured))
	if err != nil {
		return Code{}, err
	}
	if err := tx.Commit(); err != nil {
		return Code{}, err
	}
	return saved, nil
}
