package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/Plugin-billing-service/internal/domain"
	"github.com/Dhoini/Plugin-billing-service/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	catalogKey = "billing:catalog"

	// DefaultCatalogTTL TTL для кэша каталога
	DefaultCatalogTTL = 15 * time.Minute
)

// NewRedisClient создает клиента Redis и проверяет соединение
func NewRedisClient(ctx context.Context, addr, password string, db int, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", addr)
	return client, nil
}

// RedisCacheRepository кэширует каталог продуктов Stripe в Redis
type RedisCacheRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCacheRepository создает новый экземпляр Redis репозитория
func NewRedisCacheRepository(client redis.UniversalClient, ttl time.Duration, log *logger.Logger) *RedisCacheRepository {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	return &RedisCacheRepository{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

// CacheCatalog кэширует каталог
func (r *RedisCacheRepository) CacheCatalog(ctx context.Context, products []domain.Product) error {
	data, err := json.Marshal(products)
	if err != nil {
		r.log.Errorw("Failed to marshal catalog for caching", "error", err)
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}

	if err := r.client.Set(ctx, catalogKey, data, r.ttl).Err(); err != nil {
		r.log.Errorw("Failed to cache catalog in Redis", "error", err)
		return fmt.Errorf("failed to cache catalog: %w", err)
	}

	r.log.Debugw("Catalog cached successfully", "products", len(products), "ttl", r.ttl)
	return nil
}

// GetCachedCatalog получает каталог из кэша; (nil, nil), если его там нет
func (r *RedisCacheRepository) GetCachedCatalog(ctx context.Context) ([]domain.Product, error) {
	data, err := r.client.Get(ctx, catalogKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.log.Debugw("Catalog not found in cache")
			return nil, nil
		}
		r.log.Errorw("Error getting catalog from Redis", "error", err)
		return nil, fmt.Errorf("failed to get catalog from cache: %w", err)
	}

	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		r.log.Errorw("Failed to unmarshal cached catalog, dropping it", "error", err)
		// Поврежденное значение удаляем
		if delErr := r.invalidateCatalog(ctx); delErr != nil {
			return nil, fmt.Errorf("failed to unmarshal cached catalog: %w", errors.Join(err, delErr))
		}
		return nil, fmt.Errorf("failed to unmarshal cached catalog: %w", err)
	}

	r.log.Debugw("Catalog retrieved from cache", "products", len(products))
	return products, nil
}

// invalidateCatalog удаляет каталог из кэша
func (r *RedisCacheRepository) invalidateCatalog(ctx context.Context) error {
	if err := r.client.Del(ctx, catalogKey).Err(); err != nil {
		r.log.Errorw("Failed to invalidate catalog cache", "error", err)
		return fmt.Errorf("failed to invalidate catalog cache: %w", err)
	}
	r.log.Debugw("Catalog cache invalidated")
	return nil
}
