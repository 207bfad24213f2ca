package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"clipstore/internal/domain"
	"clipstore/internal/models"

	"golang.org/x/time/rate"
)

// MemoryEntityRepository keeps encoded records in process memory. Records are stored
// as JSON so callers never share pointers with the store.
type MemoryEntityRepository struct {
	mu      sync.RWMutex
	records map[string][]byte
	keys    *keyedMutex
}

func NewMemoryEntityRepository() *MemoryEntityRepository {
	return &MemoryEntityRepository{
		records: make(map[string][]byte),
		keys:    newKeyedMutex(),
	}
}

func (r *MemoryEntityRepository) Get(ctx context.Context, kind models.Kind, id int64) (*models.Entity, error) {
	r.mu.RLock()
	data, ok := r.records[kind.Key(id)]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decodeEntity(kind, data)
}

func (r *MemoryEntityRepository) Save(ctx context.Context, e *models.Entity) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}
	r.mu.Lock()
	r.records[e.Key()] = data
	r.mu.Unlock()
	return nil
}

func (r *MemoryEntityRepository) Create(ctx context.Context, e *models.Entity) (bool, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return false, fmt.Errorf("failed to marshal entity: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[e.Key()]; exists {
		return false, nil
	}
	r.records[e.Key()] = data
	return true, nil
}

func (r *MemoryEntityRepository) Update(ctx context.Context, kind models.Kind, id int64, mutate domain.Mutator) (*models.Entity, error) {
	key := kind.Key(id)
	r.keys.Lock(key)
	defer r.keys.Unlock(key)

	e, err := r.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrNotFound
	}
	if err := mutate(e); err != nil {
		return nil, err
	}
	e.ID, e.Kind = id, kind
	if err := r.Save(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *MemoryEntityRepository) Delete(ctx context.Context, kind models.Kind, id int64) error {
	r.mu.Lock()
	delete(r.records, kind.Key(id))
	r.mu.Unlock()
	return nil
}

func (r *MemoryEntityRepository) List(ctx context.Context, kind models.Kind) ([]*models.Entity, error) {
	prefix := string(kind) + ":"

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.Entity, 0)
	for key, data := range r.records {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		e, err := decodeEntity(kind, data)
		if err != nil {
			continue
		}
		result = append(result, e)
	}
	sortByID(result)
	return result, nil
}

func (r *MemoryEntityRepository) Ping(ctx context.Context) error {
	return nil
}

// MemoryRateLimiter approximates the fixed window with a token bucket per chat:
// limit tokens refilled evenly over window.
type MemoryRateLimiter struct {
	limiters sync.Map
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{}
}

func (l *MemoryRateLimiter) CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error) {
	return l.getLimiter(chatID, limit, window).Allow(), nil
}

func (l *MemoryRateLimiter) getLimiter(chatID int64, limit int, window time.Duration) *rate.Limiter {
	if v, ok := l.limiters.Load(chatID); ok {
		if lim, ok := v.(*rate.Limiter); ok {
			return lim
		}
	}

	if limit <= 0 {
		limit = 1
	}
	every := window / time.Duration(limit)
	lim := rate.NewLimiter(rate.Every(every), limit)
	actual, _ := l.limiters.LoadOrStore(chatID, lim)
	return actual.(*rate.Limiter)
}
