package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"clipstore/internal/config"
	"clipstore/internal/domain"
	"clipstore/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound = errors.New("entity not found")
	ErrConflict = errors.New("entity changed concurrently")
)

const (
	maxUpdateRetries = 8
	scanBatch        = 100
)

type RedisEntityRepository struct {
	client *redis.Client
	logger *zerolog.Logger
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisEntityRepository(client *redis.Client, logger *zerolog.Logger) *RedisEntityRepository {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &RedisEntityRepository{
		client: client,
		logger: logger,
	}
}

func (r *RedisEntityRepository) Get(ctx context.Context, kind models.Kind, id int64) (*models.Entity, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	key := kind.Key(id)
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s from redis: %w", key, err)
	}
	return decodeEntity(kind, val)
}

func (r *RedisEntityRepository) Save(ctx context.Context, e *models.Entity) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}
	if err := r.client.Set(ctx, e.Key(), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s in redis: %w", e.Key(), err)
	}
	return nil
}

// Create stores e only if no record with its key exists yet.
func (r *RedisEntityRepository) Create(ctx context.Context, e *models.Entity) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return false, fmt.Errorf("failed to marshal entity: %w", err)
	}
	created, err := r.client.SetNX(ctx, e.Key(), data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to create %s in redis: %w", e.Key(), err)
	}
	return created, nil
}

// Update applies mutate under WATCH and retries when another writer got in between.
func (r *RedisEntityRepository) Update(ctx context.Context, kind models.Kind, id int64, mutate domain.Mutator) (*models.Entity, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	key := kind.Key(id)

	var updated *models.Entity
	txf := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		e, err := decodeEntity(kind, val)
		if err != nil {
			return err
		}
		if err := mutate(e); err != nil {
			return err
		}
		e.ID, e.Kind = id, kind

		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal entity: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			updated = e
		}
		return err
	}

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return updated, nil
		case errors.Is(err, redis.TxFailedErr):
			r.logger.Debug().Str("key", key).Int("attempt", attempt+1).Msg("Optimistic update conflict, retrying")
			continue
		case errors.Is(err, ErrNotFound):
			return nil, err
		default:
			return nil, fmt.Errorf("failed to update %s: %w", key, err)
		}
	}
	return nil, fmt.Errorf("update %s: %w", key, ErrConflict)
}

func (r *RedisEntityRepository) Delete(ctx context.Context, kind models.Kind, id int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, kind.Key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s from redis: %w", kind.Key(id), err)
	}
	return nil
}

// List returns every record of the namespace ordered by id. Values that cannot be
// decoded are logged and skipped.
func (r *RedisEntityRepository) List(ctx context.Context, kind models.Kind) ([]*models.Entity, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	var keys []string
	iter := r.client.Scan(ctx, 0, kind.Pattern(), scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", kind.Pattern(), err)
	}

	result := make([]*models.Entity, 0, len(keys))
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		values, err := r.client.MGet(ctx, keys[start:end]...).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s records: %w", kind, err)
		}
		for i, v := range values {
			s, ok := v.(string)
			if !ok {
				continue // удален между SCAN и MGET
			}
			e, err := decodeEntity(kind, []byte(s))
			if err != nil {
				r.logger.Warn().Err(err).Str("key", keys[start+i]).Msg("Skipping undecodable record")
				continue
			}
			result = append(result, e)
		}
	}

	sortByID(result)
	return result, nil
}

func (r *RedisEntityRepository) Ping(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return Ping(ctx, r.client)
}

type RedisRateLimiter struct {
	client *redis.Client
}

func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{client: client}
}

// CheckRateLimit counts messages per chat in a fixed window.
func (r *RedisRateLimiter) CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("rate_limit:%d", chatID)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return count <= int64(limit), nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}

func decodeEntity(kind models.Kind, data []byte) (*models.Entity, error) {
	var e models.Entity
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", kind, err)
	}
	e.Kind = kind
	return &e, nil
}

func sortByID(list []*models.Entity) {
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
}
