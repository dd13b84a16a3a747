package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wichananm65/pantry-shop-backend/internal/product"
)

type PostgresRepository struct {
	db        *sql.DB
	now       func() time.Time
	newNumber func() string
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:        db,
		now:       func() time.Time { return time.Now().UTC() },
		newNumber: NewNumber,
	}
}

const (
	orderColumns = `id, order_number, status, payment_status, payment_method,
		first_name, last_name, email, phone, alternative_phone,
		address, district, city, notes, items,
		subtotal, discount_amount, discount_label, promo_code, shipping_cost, total,
		email_sent, idempotency_key, created_at, updated_at`

	insertOrderQuery = `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$24)`

	// the rev guard and the availability check make this a no-op when
	// anything touched the product since it was read.
	reserveStockQuery = `
		UPDATE products
		SET stock_out = stock_out + $3, rev = $4, updated_at = $5
		WHERE id = $1 AND rev = $2 AND opening_stock - stock_out >= $3`

	releaseStockQuery = `
		UPDATE products
		SET stock_out = GREATEST(stock_out - $2, 0), rev = $3, updated_at = $4
		WHERE id = $1`

	recentDuplicateQuery = `
		SELECT ` + orderColumns + ` FROM orders
		WHERE phone = $1 AND total = $2 AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT 1`
	byIdempotencyKeyQuery = `SELECT ` + orderColumns + ` FROM orders WHERE idempotency_key = $1`
	byNumberQuery         = `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`
	byNumberForUpdate     = byNumberQuery + ` FOR UPDATE`
	countActiveQuery      = `
		SELECT count(*) FROM orders
		WHERE status <> 'cancelled'
		  AND ((email = $1 AND $1 <> '') OR (phone = $2 AND $2 <> ''))`
	listOrdersQuery = `
		SELECT ` + orderColumns + ` FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	setStatusQuery = `
		UPDATE orders SET status = $2, updated_at = $3
		WHERE order_number = $1
		RETURNING ` + orderColumns
	// a single conditional write so that concurrent confirmations claim the
	// email exactly once.
	markPaidQuery = `
		UPDATE orders
		SET status = CASE WHEN status = 'pending' THEN 'processing' ELSE status END,
			payment_status = 'paid', email_sent = true, updated_at = $2
		WHERE order_number = $1
		  AND payment_method = 'card'
		  AND status <> 'cancelled'
		  AND NOT (payment_status = 'paid' AND email_sent)
		RETURNING ` + orderColumns
	setPaymentStatusQuery = `
		UPDATE orders SET payment_status = $2, updated_at = $3
		WHERE order_number = $1
		RETURNING ` + orderColumns
)

const uniqueViolation = "23505"

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (Order, error) {
	var o Order
	var altPhone, notes, label, promoCode, idemKey sql.NullString
	var items []byte
	var status, paymentStatus, paymentMethod string
	err := row.Scan(&o.ID, &o.Number, &status, &paymentStatus, &paymentMethod,
		&o.Customer.FirstName, &o.Customer.LastName, &o.Customer.Email, &o.Customer.Phone, &altPhone,
		&o.Shipping.Address, &o.Shipping.District, &o.Shipping.City, &notes, &items,
		&o.Subtotal, &o.DiscountAmount, &label, &promoCode, &o.ShippingCost, &o.Total,
		&o.EmailSent, &idemKey, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.Status, o.PaymentStatus, o.PaymentMethod = Status(status), PaymentStatus(paymentStatus), PaymentMethod(paymentMethod)
	o.Customer.AlternativePhone = altPhone.String
	o.Shipping.Notes = notes.String
	o.DiscountLabel = label.String
	o.PromoCode = promoCode.String
	o.IdempotencyKey = idemKey.String
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return Order{}, fmt.Errorf("decode items of %s: %w", o.Number, err)
	}
	return o, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var errNumberTaken = errors.New("order number taken")

func (r *PostgresRepository) Place(ctx context.Context, o Order) (Order, error) {
	o.ID = uuid.NewString()
	o.Status = StatusPending
	o.PaymentStatus = PaymentPending
	for i := 0; i < numberAttempts; i++ {
		o.Number = r.newNumber()
		placed, err := r.place(ctx, o)
		if errors.Is(err, errNumberTaken) {
			continue
		}
		return placed, err
	}
	return Order{}, ErrNumberExhausted
}

func (r *PostgresRepository) place(ctx context.Context, o Order) (Order, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return Order{}, err
	}
	now := r.now()
	o.CreatedAt, o.UpdatedAt = now, now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Order{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, insertOrderQuery,
		o.ID, o.Number, o.Status, o.PaymentStatus, o.PaymentMethod,
		o.Customer.FirstName, o.Customer.LastName, o.Customer.Email, o.Customer.Phone, nullable(o.Customer.AlternativePhone),
		o.Shipping.Address, o.Shipping.District, o.Shipping.City, nullable(o.Shipping.Notes), items,
		o.Subtotal, o.DiscountAmount, nullable(o.DiscountLabel), nullable(o.PromoCode), o.ShippingCost, o.Total,
		o.EmailSent, nullable(o.IdempotencyKey), now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.ConstraintName {
			case "orders_order_number_key":
				return Order{}, errNumberTaken
			case "orders_idempotency_key_key":
				return Order{}, ErrDuplicateKey
			}
		}
		return Order{}, err
	}

	for _, ch := range o.StockChanges() {
		res, err := tx.ExecContext(ctx, reserveStockQuery, ch.ProductID, ch.Rev, ch.Quantity, product.NewRev(), now)
		if err != nil {
			return Order{}, err
		}
		if n, err := res.RowsAffected(); err != nil {
			return Order{}, err
		} else if n != 1 {
			return Order{}, ErrStockConflict
		}
	}

	if err := tx.Commit(); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *PostgresRepository) FindRecentDuplicate(ctx context.Context, phone string, total int64, since time.Time) (Order, error) {
	return scanOrder(r.db.QueryRowContext(ctx, recentDuplicateQuery, phone, total, since))
}

func (r *PostgresRepository) GetByIdempotencyKey(ctx context.Context, key string) (Order, error) {
	if key == "" {
		return Order{}, ErrNotFound
	}
	return scanOrder(r.db.QueryRowContext(ctx, byIdempotencyKeyQuery, key))
}

func (r *PostgresRepository) CountActiveByContact(ctx context.Context, email, phone string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, countActiveQuery, email, phone).Scan(&n)
	return n, err
}

func (r *PostgresRepository) GetByNumber(ctx context.Context, number string) (Order, error) {
	return scanOrder(r.db.QueryRowContext(ctx, byNumberQuery, number))
}

func (r *PostgresRepository) List(ctx context.Context, f ListFilter) ([]Order, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, listOrdersQuery, string(f.Status), limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, number string, to Status) (Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Order{}, err
	}
	defer tx.Rollback()

	current, err := scanOrder(tx.QueryRowContext(ctx, byNumberForUpdate, number))
	if err != nil {
		return Order{}, err
	}
	if err := CheckTransition(current.Status, to); err != nil {
		return Order{}, err
	}
	if current.Status == to {
		return current, tx.Commit()
	}

	now := r.now()
	if to == StatusCancelled {
		for _, it := range current.Items {
			if _, err := tx.ExecContext(ctx, releaseStockQuery, it.ProductID, it.Quantity, product.NewRev(), now); err != nil {
				return Order{}, err
			}
		}
	}
	updated, err := scanOrder(tx.QueryRowContext(ctx, setStatusQuery, number, to, now))
	if err != nil {
		return Order{}, err
	}
	if err := tx.Commit(); err != nil {
		return Order{}, err
	}
	return updated, nil
}

func (r *PostgresRepository) MarkPaid(ctx context.Context, number string) (Order, bool, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, markPaidQuery, number, r.now()))
	if err == nil {
		return o, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Order{}, false, err
	}
	// nothing matched: the order is missing, not a card order, cancelled or
	// already confirmed
	o, err = r.GetByNumber(ctx, number)
	if err != nil {
		return Order{}, false, err
	}
	if o.PaymentMethod != PaymentCard {
		return Order{}, false, ErrNotCardPayment
	}
	if o.Status == StatusCancelled {
		return Order{}, false, ErrReopenForbidden
	}
	return o, false, nil
}

func (r *PostgresRepository) UpdatePaymentStatus(ctx context.Context, number string, ps PaymentStatus) (Order, error) {
	return scanOrder(r.db.QueryRowContext(ctx, setPaymentStatusQuery, number, ps, r.now()))
}
