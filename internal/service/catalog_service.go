package service

import (
	"context"
	"fmt"

	"github.com/Dhoini/Plugin-billing-service/internal/domain"
	"github.com/Dhoini/Plugin-billing-service/internal/stripe"
	"github.com/Dhoini/Plugin-billing-service/pkg/logger"
)

// CatalogCache кэш каталога продуктов
type CatalogCache interface {
	GetCachedCatalog(ctx context.Context) ([]domain.Product, error)
	CacheCatalog(ctx context.Context, products []domain.Product) error
}

// CatalogService отдает доступные подписки из Stripe
type CatalogService struct {
	billing stripe.Client
	cache   CatalogCache
	log     *logger.Logger
}

// NewCatalogService создает сервис каталога; cache может быть nil
func NewCatalogService(billing stripe.Client, cache CatalogCache, log *logger.Logger) *CatalogService {
	return &CatalogService{billing: billing, cache: cache, log: log}
}

// ListSubscriptions возвращает продукты с ценами; ErrNotFound, если продуктов нет
func (s *CatalogService) ListSubscriptions(ctx context.Context) ([]domain.Product, error) {
	if s.cache != nil {
		cached, err := s.cache.GetCachedCatalog(ctx)
		if err != nil {
			s.log.Warnw("Catalog cache unavailable, falling back to Stripe", "error", err)
		} else if len(cached) > 0 {
			return cached, nil
		}
	}

	s.log.Infow("Fetch product info from Stripe")
	products, err := s.billing.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		s.log.Warnw("No product available on Stripe.")
		return nil, fmt.Errorf("no subscriptions found: %w", domain.ErrNotFound)
	}

	if s.cache != nil {
		if err := s.cache.CacheCatalog(ctx, products); err != nil {
			s.log.Warnw("Failed to cache catalog", "error", err)
		}
	}
	return products, nil
}
