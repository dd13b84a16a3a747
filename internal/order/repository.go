package order

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wichananm65/pantry-shop-backend/internal/product"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrStockConflict     = errors.New("stock changed since the snapshot was read")
	ErrDuplicateKey      = errors.New("an order with this idempotency key already exists")
	ErrReopenForbidden   = errors.New("a cancelled order cannot be reopened")
	ErrInvalidTransition = errors.New("order status cannot move backwards")
	ErrNumberExhausted   = errors.New("could not allocate a unique order number")
	ErrNotCardPayment    = errors.New("only card orders are confirmed through the gateway")
)

const numberAttempts = 5

type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

type Repository interface {
	// Place stores o and increments stock-out for every line in one atomic
	// step. Any revision mismatch or oversell fails the whole write with
	// ErrStockConflict. ID, Number and timestamps are assigned here.
	Place(ctx context.Context, o Order) (Order, error)
	// FindRecentDuplicate returns the newest order with the same phone and
	// total created at or after since, or ErrNotFound.
	FindRecentDuplicate(ctx context.Context, phone string, total int64, since time.Time) (Order, error)
	GetByIdempotencyKey(ctx context.Context, key string) (Order, error)
	CountActiveByContact(ctx context.Context, email, phone string) (int, error)
	GetByNumber(ctx context.Context, number string) (Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
	// UpdateStatus applies the status machine. Cancelling gives every
	// line's quantity back to its product in the same step.
	UpdateStatus(ctx context.Context, number string, to Status) (Order, error)
	// MarkPaid flips a pending payment to paid and claims the confirmation
	// email. changed is false when a previous call already did so.
	MarkPaid(ctx context.Context, number string) (o Order, changed bool, err error)
	UpdatePaymentStatus(ctx context.Context, number string, ps PaymentStatus) (Order, error)
}

// StockLedger is the part of the product store the in-memory order
// repository writes through.
type StockLedger interface {
	ReserveStock(changes []product.StockChange) error
	ReleaseStock(productID string, quantity int)
}

type InMemoryRepository struct {
	mu        sync.Mutex
	byNumber  map[string]Order
	stock     StockLedger
	now       func() time.Time
	newNumber func() string
}

func NewInMemoryRepository(stock StockLedger) *InMemoryRepository {
	return &InMemoryRepository{
		byNumber:  make(map[string]Order),
		stock:     stock,
		now:       func() time.Time { return time.Now().UTC() },
		newNumber: NewNumber,
	}
}

// SetClock replaces the time source, used by tests that walk through the
// duplicate window.
func (r *InMemoryRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *InMemoryRepository) Place(ctx context.Context, o Order) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o.IdempotencyKey != "" {
		for _, existing := range r.byNumber {
			if existing.IdempotencyKey == o.IdempotencyKey {
				return Order{}, ErrDuplicateKey
			}
		}
	}
	number := ""
	for i := 0; i < numberAttempts; i++ {
		candidate := r.newNumber()
		if _, taken := r.byNumber[candidate]; !taken {
			number = candidate
			break
		}
	}
	if number == "" {
		return Order{}, ErrNumberExhausted
	}

	if err := r.stock.ReserveStock(o.StockChanges()); err != nil {
		if errors.Is(err, product.ErrStockConflict) {
			return Order{}, ErrStockConflict
		}
		return Order{}, err
	}

	now := r.now()
	o.ID = uuid.NewString()
	o.Number = number
	o.Status = StatusPending
	o.PaymentStatus = PaymentPending
	o.CreatedAt, o.UpdatedAt = now, now
	o.Items = append([]LineItem(nil), o.Items...)
	r.byNumber[number] = o
	return o, nil
}

func (r *InMemoryRepository) FindRecentDuplicate(ctx context.Context, phone string, total int64, since time.Time) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var (
		found Order
		ok    bool
	)
	for _, o := range r.byNumber {
		if o.Customer.Phone != phone || o.Total != total || o.CreatedAt.Before(since) {
			continue
		}
		if !ok || o.CreatedAt.After(found.CreatedAt) {
			found, ok = o, true
		}
	}
	if !ok {
		return Order{}, ErrNotFound
	}
	return found, nil
}

func (r *InMemoryRepository) GetByIdempotencyKey(ctx context.Context, key string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.byNumber {
		if key != "" && o.IdempotencyKey == key {
			return o, nil
		}
	}
	return Order{}, ErrNotFound
}

func (r *InMemoryRepository) CountActiveByContact(ctx context.Context, email, phone string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.byNumber {
		if o.Status == StatusCancelled {
			continue
		}
		if (email != "" && o.Customer.Email == email) || (phone != "" && o.Customer.Phone == phone) {
			n++
		}
	}
	return n, nil
}

func (r *InMemoryRepository) GetByNumber(ctx context.Context, number string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.byNumber[number]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (r *InMemoryRepository) List(ctx context.Context, f ListFilter) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Order, 0, len(r.byNumber))
	for _, o := range r.byNumber {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset >= len(out) {
		return []Order{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *InMemoryRepository) UpdateStatus(ctx context.Context, number string, to Status) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.byNumber[number]
	if !ok {
		return Order{}, ErrNotFound
	}
	if err := CheckTransition(o.Status, to); err != nil {
		return Order{}, err
	}
	if o.Status == to {
		return o, nil
	}
	if to == StatusCancelled {
		for _, it := range o.Items {
			r.stock.ReleaseStock(it.ProductID, it.Quantity)
		}
	}
	o.Status = to
	o.UpdatedAt = r.now()
	r.byNumber[number] = o
	return o, nil
}

func (r *InMemoryRepository) MarkPaid(ctx context.Context, number string) (Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.byNumber[number]
	if !ok {
		return Order{}, false, ErrNotFound
	}
	if o.PaymentMethod != PaymentCard {
		return Order{}, false, ErrNotCardPayment
	}
	if o.Status == StatusCancelled {
		return Order{}, false, ErrReopenForbidden
	}
	if o.PaymentStatus == PaymentPaid && o.EmailSent {
		return o, false, nil
	}
	if o.Status == StatusPending {
		o.Status = StatusProcessing
	}
	o.PaymentStatus = PaymentPaid
	o.EmailSent = true
	o.UpdatedAt = r.now()
	r.byNumber[number] = o
	return o, true, nil
}

func (r *InMemoryRepository) UpdatePaymentStatus(ctx context.Context, number string, ps PaymentStatus) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.byNumber[number]
	if !ok {
		return Order{}, ErrNotFound
	}
	o.PaymentStatus = ps
	o.UpdatedAt = r.now()
	r.byNumber[number] = o
	return o, nil
}
