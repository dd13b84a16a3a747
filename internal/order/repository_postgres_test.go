package order

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderColumnNames = []string{
	"id", "order_number", "status", "payment_status", "payment_method",
	"first_name", "last_name", "email", "phone", "alternative_phone",
	"address", "district", "city", "notes", "items",
	"subtotal", "discount_amount", "discount_label", "promo_code", "shipping_cost", "total",
	"email_sent", "idempotency_key", "created_at", "updated_at",
}

func orderRows(number string, status Status, ps PaymentStatus, emailSent bool) *sqlmock.Rows {
	return orderRowsFor(number, PaymentCard, status, ps, emailSent)
}

func orderRowsFor(number string, method PaymentMethod, status Status, ps PaymentStatus, emailSent bool) *sqlmock.Rows {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	items := []byte(`[{"productId":"p1","productName":"Wood-apple jam","quantity":2,"unitPrice":1200,"rev":"r1"}]`)
	return sqlmock.NewRows(orderColumnNames).AddRow(
		"o-1", number, string(status), string(ps), string(method),
		"Nimal", "Perera", "nimal@example.com", "0771234567", nil,
		"12 Galle Rd", "Colombo", "Kollupitiya", nil, items,
		2400, 0, nil, nil, 350, 2750,
		emailSent, nil, now, now,
	)
}

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	repo := NewPostgresRepository(db)
	repo.now = func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }
	return repo, mock, db
}

func sampleOrder() Order {
	return Order{
		PaymentMethod: PaymentCOD,
		Customer:      Customer{FirstName: "Nimal", LastName: "Perera", Email: "nimal@example.com", Phone: "0771234567"},
		Shipping:      Shipping{Address: "12 Galle Rd", District: "Colombo", City: "Kollupitiya"},
		Items: []LineItem{
			{ProductID: "p1", Quantity: 2, UnitPrice: 1200, Rev: "r1"},
			{ProductID: "p2", Quantity: 1, UnitPrice: 900, Rev: "r2"},
		},
		Subtotal: 3300,
		Total:    3650,
	}
}

func TestPostgresPlace_CommitsOrderAndStock(t *testing.T) {
	repo, mock, db := newMockRepo(t)
	defer db.Close()
	repo.newNumber = func() string { return "ORD-123456" }

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE products").WithArgs("p1", "r1", 2, sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE products").WithArgs("p2", "r2", 1, sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	o, err := repo.Place(context.Background(), sampleOrder())
	require.NoError(t, err)
	assert.Equal(t, "ORD-123456", o.Number)
	assert.Equal(t, StatusPending, o.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPlace_RevisionMissRollsBack(t *testing.T) {
	repo, mock, db := newMockRepo(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE products").WithArgs("p1", "r1", 2, sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE products").WithArgs("p2", "r2", 1, sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Place(context.Background(), sampleOrder())
	assert.ErrorIs(t, err, ErrStockConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPlace_RegeneratesTakenNumber(t *testing.T) {
	repo, mock, db := newMockRepo(t)
	defer db.Close()
	numbers := []string{"ORD-000001", "ORD-000002"}
	repo.newNumber = func() string {
		n := numbers[0]
		numbers = numbers[1:]
		return n
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE products").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE products").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	o, err := repo.Place(context.Background(), sampleOrder())
	require.NoError(t, err)
	assert.Equal(t, "ORD-000002", o.Number)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPlace_DuplicateIdempotencyKey(t *testing.T) {
	repo, mock, db := newMockRepo(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "orders_idempotency_key_key"})
	mock.ExpectRollback()

	o := sampleOrder()
	o.IdempotencyKey = "key-1"
	_, err := repo.Place(context.Background(), o)
	assert.ErrorIs(t, err, ErrDuplicateKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateStatus_CancelReleasesStock(t *testing.T) {
	repo, mock, db := newMockRepo(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs("ORD-123456").WillReturnRows(orderRows("ORD-123456", StatusProcessing, PaymentPaid, true))
	mock.ExpectExec("GREATEST\\(stock_out - \\$2, 0\\)").WithArgs("p1", 2, sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("UPDATE orders SET status").WithArgs("ORD-123456", "cancelled", sqlmock.AnyArg()).
		WillReturnRows(orderRows("ORD-123456", StatusCancelled, PaymentPaid, true))
	mock.ExpectCommit()

	o, err := repo.UpdateStatus(context.Background(), "ORD-123456", StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	require.Len(t, o.Items, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateStatus_CancelledIsFinal(t *testing.T) {
	repo, mock, db := newMockRepo(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs("ORD-123456").WillReturnRows(orderRows("ORD-123456", StatusCancelled, PaymentPending, false))
	mock.ExpectRollback()

	_, err := repo.UpdateStatus(context.Background(), "ORD-123456", StatusProcessing)
	assert.ErrorIs(t, err, ErrReopenForbidden)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkPaid(t *testing.T) {
	repo, mock, db := newMockRepo(t)
	defer db.Close()

	mock.ExpectQuery("UPDATE orders").WithArgs("ORD-123456", sqlmock.AnyArg()).
		WillReturnRows(orderRows("ORD-123456", StatusProcessing, PaymentPaid, true))
	o, changed, err := repo.MarkPaid(context.Background(), "ORD-123456")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusProcessing, o.Status)

	// second call matches nothing and falls back to a plain read
	mock.ExpectQuery("UPDATE orders").WithArgs("ORD-123456", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(orderColumnNames))
	mock.ExpectQuery("FROM orders WHERE order_number = ").WithArgs("ORD-123456").
		WillReturnRows(orderRows("ORD-123456", StatusProcessing, PaymentPaid, true))
	_, changed, err = repo.MarkPaid(context.Background(), "ORD-123456")
	require.NoError(t, err)
	assert.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkPaid_CashOnDelivery(t *testing.T) {
	repo, mock, db := newMockRepo(t)
	defer db.Close()

	mock.ExpectQuery("UPDATE orders").WithArgs("ORD-123456", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(orderColumnNames))
	mock.ExpectQuery("FROM orders WHERE order_number = ").WithArgs("ORD-123456").
		WillReturnRows(orderRowsFor("ORD-123456", PaymentCOD, StatusPending, PaymentPending, true))
	_, changed, err := repo.MarkPaid(context.Background(), "ORD-123456")
	assert.ErrorIs(t, err, ErrNotCardPayment)
	assert.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCountActiveByContact(t *testing.T) {
	repo, mock, db := newMockRepo(t)
	defer db.Close()

	mock.ExpectQuery("SELECT count").WithArgs("nimal@example.com", "0771234567").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	n, err := repo.CountActiveByContact(context.Background(), "nimal@example.com", "0771234567")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
