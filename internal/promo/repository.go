package promo

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNotFound = errors.New("promo code not found")

type Repository interface {
	Get(ctx context.Context, code string) (Code, error)
	// Upsert creates or replaces a code. Saving a featured code clears the
	// flag on every other code in the same write.
	Upsert(ctx context.Context, c Code) (Code, error)
	Featured(ctx context.Context) (Code, error)
}

type InMemoryRepository struct {
	mu    sync.RWMutex
	codes map[string]Code
}

func NewInMemoryRepository(seed []Code) *InMemoryRepository {
	r := &InMemoryRepository{codes: make(map[string]Code, len(seed))}
	for _, c := range seed {
		c.Code = Normalize(c.Code)
		r.codes[c.Code] = c
	}
	return r
}

func (r *InMemoryRepository) Get(ctx context.Context, code string) (Code, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codes[Normalize(code)]
	if !ok {
		return Code{}, ErrNotFound
	}
	return c, nil
}

func (r *InMemoryRepository) Upsert(ctx context.Context, c Code) (Code, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := r.codes[c.Code]; ok {
		c.CreatedAt = existing.CreatedAt
	} else {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Featured {
		for k, other := range r.codes {
			if other.Featured && k != c.Code {
				other.Featured = false
				r.codes[k] = other
			}
		}
	}
	r.codes[c.Code] = c
	return c, nil
}

func (r *InMemoryRepository) Featured(ctx context.Context) (Code, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.codes {
		if c.Featured && c.Active {
			return c, nil
		}
	}
	return Code{}, ErrNotFound
}
