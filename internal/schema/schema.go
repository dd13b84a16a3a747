// Package schema creates the tables the storefront needs when they are missing.
package schema

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		rev TEXT NOT NULL,
		name TEXT NOT NULL,
		slug TEXT,
		category TEXT,
		description TEXT,
		price BIGINT NOT NULL CHECK (price >= 0),
		opening_stock INT NOT NULL DEFAULT 0,
		stock_out INT NOT NULL DEFAULT 0 CHECK (stock_out >= 0),
		image TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS products_category_idx ON products (category)`,

	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		order_number TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL,
		alternative_phone TEXT,
		address TEXT NOT NULL,
		district TEXT NOT NULL,
		city TEXT NOT NULL,
		notes TEXT,
		items JSONB NOT NULL DEFAULT '[]',
		subtotal BIGINT NOT NULL,
		discount_amount BIGINT NOT NULL DEFAULT 0,
		discount_label TEXT,
		promo_code TEXT,
		shipping_cost BIGINT NOT NULL DEFAULT 0,
		total BIGINT NOT NULL,
		email_sent BOOLEAN NOT NULL DEFAULT false,
		idempotency_key TEXT UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS orders_phone_created_idx ON orders (phone, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS orders_email_idx ON orders (email)`,

	`CREATE TABLE IF NOT EXISTS promo_codes (
		code TEXT PRIMARY KEY,
		active BOOLEAN NOT NULL DEFAULT true,
		discount_percentage INT NOT NULL DEFAULT 0 CHECK (discount_percentage BETWEEN 0 AND 100),
		free_shipping BOOLEAN NOT NULL DEFAULT false,
		min_order_amount BIGINT NOT NULL DEFAULT 0,
		first_order_only BOOLEAN NOT NULL DEFAULT false,
		featured BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS promo_codes_one_featured ON promo_codes (featured) WHERE featured`,

	`CREATE TABLE IF NOT EXISTS subscribers (
		email TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Ensure applies every statement in order. All statements are idempotent.
func Ensure(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
