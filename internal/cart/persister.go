package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("cart not found")

// Persister stores cart state by session id.
type Persister interface {
	Load(ctx context.Context, id string) (State, error)
	Save(ctx context.Context, id string, s State) error
}

// MemoryPersister is used for tests and local runs without Redis.
type MemoryPersister struct {
	mu    sync.RWMutex
	carts map[string]State
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{carts: make(map[string]State)}
}

func (p *MemoryPersister) Load(ctx context.Context, id string) (State, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.carts[id]
	if !ok {
		return State{}, ErrNotFound
	}
	return s.clone(), nil
}

func (p *MemoryPersister) Save(ctx context.Context, id string, s State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.carts[id] = s.clone()
	return nil
}

const DefaultTTL = 7 * 24 * time.Hour

// RedisPersister keeps each cart as a JSON string that expires after ttl
// without activity.
type RedisPersister struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisPersister(client redis.UniversalClient, ttl time.Duration) *RedisPersister {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisPersister{client: client, prefix: "cart:", ttl: ttl}
}

func (p *RedisPersister) Load(ctx context.Context, id string) (State, error) {
	raw, err := p.client.Get(ctx, p.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, ErrNotFound
	}
	if err != nil {
		return State{}, fmt.Errorf("load cart %s: %w", id, err)
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return State{}, fmt.Errorf("decode cart %s: %w", id, err)
	}
	return s, nil
}

func (p *RedisPersister) Save(ctx context.Context, id string, s State) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode cart %s: %w", id, err)
	}
	if err := p.client.Set(ctx, p.prefix+id, raw, p.ttl).Err(); err != nil {
		return fmt.Errorf("save cart %s: %w", id, err)
	}
	return nil
}
