package product

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("product not found")
	ErrStockConflict = errors.New("product changed since it was read")
)

type Repository interface {
	List(ctx context.Context, category string) ([]Product, error)
	GetByID(ctx context.Context, id string) (Product, error)
	// Snapshot reads the current state of the given products straight from
	// the store. Missing ids are simply absent from the returned map.
	Snapshot(ctx context.Context, ids []string) (map[string]Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	// SetOpeningStock is the administrative restock edit.
	SetOpeningStock(ctx context.Context, id string, openingStock int) (Product, error)
}

// InMemoryRepository is used for tests and local scenarios. It also acts as
// the stock ledger for the in-memory order repository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Product
	now     func() time.Time
}

func NewInMemoryRepository(seed []Product) *InMemoryRepository {
	r := &InMemoryRepository{
		storage: make(map[string]Product, len(seed)),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, p := range seed {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.Rev == "" {
			p.Rev = NewRev()
		}
		r.storage[p.ID] = p
	}
	return r
}

func (r *InMemoryRepository) List(ctx context.Context, category string) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Product, 0, len(r.storage))
	for _, p := range r.storage {
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.storage[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (r *InMemoryRepository) Snapshot(ctx context.Context, ids []string) (map[string]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Product, len(ids))
	for _, id := range ids {
		if p, ok := r.storage[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (r *InMemoryRepository) Create(ctx context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := r.now()
	p.Rev = NewRev()
	p.CreatedAt, p.UpdatedAt = now, now
	r.storage[p.ID] = p
	return p, nil
}

func (r *InMemoryRepository) SetOpeningStock(ctx context.Context, id string, openingStock int) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.storage[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	p.OpeningStock = openingStock
	p.Rev = NewRev()
	p.UpdatedAt = r.now()
	r.storage[id] = p
	return p, nil
}

// ReserveStock applies every change or none of them. A change fails when
// the product is gone, its revision moved on, or it would oversell.
func (r *InMemoryRepository) ReserveStock(changes []StockChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ch := range changes {
		p, ok := r.storage[ch.ProductID]
		if !ok || p.Rev != ch.Rev || p.Available() < ch.Quantity {
			return ErrStockConflict
		}
	}
	now := r.now()
	for _, ch := range changes {
		p := r.storage[ch.ProductID]
		p.StockOut += ch.Quantity
		p.Rev = NewRev()
		p.UpdatedAt = now
		r.storage[ch.ProductID] = p
	}
	return nil
}

// ReleaseStock gives quantity back to a product, never taking stock-out
// below zero. Deleted products are ignored.
func (r *InMemoryRepository) ReleaseStock(productID string, quantity int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.storage[productID]
	if !ok {
		return
	}
	p.StockOut -= quantity
	if p.StockOut < 0 {
		p.StockOut = 0
	}
	p.Rev = NewRev()
	p.UpdatedAt = r.now()
	r.storage[productID] = p
}
