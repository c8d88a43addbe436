package credential

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Dhoini/Plugin-billing-service/internal/metrics"
	"github.com/Dhoini/Plugin-billing-service/internal/remote"
	"github.com/Dhoini/Plugin-billing-service/pkg/logger"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultCacheTTL время жизни набора ключей в кэше
	DefaultCacheTTL = 10 * time.Minute
	// DefaultMinRefreshInterval минимальный интервал между внеплановыми обновлениями
	DefaultMinRefreshInterval = 30 * time.Second
	// DefaultFetchTimeout ограничивает общую загрузку набора ключей
	DefaultFetchTimeout = 30 * time.Second
)

// Executor выполняет HTTP вызовы к провайдеру идентификации
type Executor interface {
	Execute(ctx context.Context, req remote.Request) (*remote.Response, error)
}

// KeySetURL возвращает адрес набора ключей провайдера
func KeySetURL(providerDomain string) string {
	return "https://" + providerDomain + "/.well-known/jwks.json"
}

type keySetEntry struct {
	set       jwk.Set
	fetchedAt time.Time
}

// KeySetCache хранит наборы ключей по домену провайдера
type KeySetCache struct {
	exec       Executor
	ttl        time.Duration
	minRefresh time.Duration
	fetchLimit time.Duration
	urlFor     func(providerDomain string) string
	now        func() time.Time
	metrics    metrics.CredentialMetrics
	log        *logger.Logger

	mu      sync.RWMutex
	entries map[string]keySetEntry
	group   singleflight.Group
}

// KeySetOption настраивает KeySetCache
type KeySetOption func(*KeySetCache)

// WithCacheTTL задает время жизни записи
func WithCacheTTL(ttl time.Duration) KeySetOption {
	return func(c *KeySetCache) { c.ttl = ttl }
}

// WithMinRefreshInterval ограничивает частоту внеплановых обновлений
func WithMinRefreshInterval(d time.Duration) KeySetOption {
	return func(c *KeySetCache) { c.minRefresh = d }
}

// WithFetchTimeout ограничивает время общей загрузки набора ключей
func WithFetchTimeout(d time.Duration) KeySetOption {
	return func(c *KeySetCache) {
		if d > 0 {
			c.fetchLimit = d
		}
	}
}

// WithKeySetURL подменяет построение адреса набора ключей
func WithKeySetURL(fn func(providerDomain string) string) KeySetOption {
	return func(c *KeySetCache) { c.urlFor = fn }
}

// WithCredentialMetrics подключает метрики
func WithCredentialMetrics(m metrics.CredentialMetrics) KeySetOption {
	return func(c *KeySetCache) {
		if m != nil {
			c.metrics = m
		}
	}
}

// NewKeySetCache создает кэш наборов ключей
func NewKeySetCache(exec Executor, log *logger.Logger, opts ...KeySetOption) *KeySetCache {
	c := &KeySetCache{
		exec:       exec,
		ttl:        DefaultCacheTTL,
		minRefresh: DefaultMinRefreshInterval,
		fetchLimit: DefaultFetchTimeout,
		urlFor:     KeySetURL,
		now:        time.Now,
		metrics:    metrics.NopCredentialMetrics(),
		log:        log,
		entries:    make(map[string]keySetEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get возвращает набор ключей из кэша или загружает его
func (c *KeySetCache) Get(ctx context.Context, providerDomain string) (jwk.Set, error) {
	if entry, ok := c.lookup(providerDomain); ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.set, nil
	}
	return c.load(ctx, providerDomain)
}

// Refresh загружает набор ключей заново, если последняя загрузка была
// раньше minRefresh. Второй результат сообщает, был ли набор обновлен.
func (c *KeySetCache) Refresh(ctx context.Context, providerDomain string) (jwk.Set, bool, error) {
	if entry, ok := c.lookup(providerDomain); ok && c.now().Sub(entry.fetchedAt) < c.minRefresh {
		return entry.set, false, nil
	}
	set, err := c.load(ctx, providerDomain)
	if err != nil {
		return nil, false, err
	}
	return set, true, nil
}

func (c *KeySetCache) lookup(providerDomain string) (keySetEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[providerDomain]
	return entry, ok
}

// load загружает набор ключей один раз для всех одновременных вызывающих.
// Загрузка не зависит от отмены контекста отдельного вызывающего,
// каждый вызывающий ждет ее не дольше своего ctx.
func (c *KeySetCache) load(ctx context.Context, providerDomain string) (jwk.Set, error) {
	ch := c.group.DoChan(providerDomain, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchLimit)
		defer cancel()

		set, err := c.fetch(fetchCtx, providerDomain)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[providerDomain] = keySetEntry{set: set, fetchedAt: c.now()}
		c.mu.Unlock()
		return set, nil
	})

	select {
	case <-ctx.Done():
		return nil, newError(KindServiceUnavailable, "wait for key set of %s: %w", providerDomain, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(jwk.Set), nil
	}
}

func (c *KeySetCache) fetch(ctx context.Context, providerDomain string) (jwk.Set, error) {
	url := c.urlFor(providerDomain)
	resp, err := c.exec.Execute(ctx, remote.Request{Method: http.MethodGet, URL: url})
	if err != nil {
		if remote.StatusCode(err) != 0 {
			c.metrics.IncKeySetFetch(providerDomain, "bad_gateway")
			return nil, newError(KindBadGateway, "fetch key set from %s: %w", url, err)
		}
		c.metrics.IncKeySetFetch(providerDomain, "unavailable")
		return nil, newError(KindServiceUnavailable, "fetch key set from %s: %w", url, err)
	}

	set, err := jwk.Parse(resp.Body)
	if err != nil {
		c.metrics.IncKeySetFetch(providerDomain, "bad_gateway")
		c.log.Errorw("Key set response could not be parsed", "domain", providerDomain, "error", err)
		return nil, newError(KindBadGateway, "parse key set from %s: %w", url, err)
	}

	c.metrics.IncKeySetFetch(providerDomain, "success")
	c.log.Debugw("Key set fetched", "domain", providerDomain, "keys", set.Len())
	return set, nil
}
