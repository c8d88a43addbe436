package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Dhoini/Plugin-billing-service/internal/config"
	"github.com/Dhoini/Plugin-billing-service/internal/credential"
	"github.com/Dhoini/Plugin-billing-service/internal/directory"
	"github.com/Dhoini/Plugin-billing-service/internal/http/handlers"
	"github.com/Dhoini/Plugin-billing-service/internal/kafka"
	"github.com/Dhoini/Plugin-billing-service/internal/lock"
	"github.com/Dhoini/Plugin-billing-service/internal/metrics"
	"github.com/Dhoini/Plugin-billing-service/internal/middleware"
	"github.com/Dhoini/Plugin-billing-service/internal/remote"
	"github.com/Dhoini/Plugin-billing-service/internal/repository"
	"github.com/Dhoini/Plugin-billing-service/internal/service"
	"github.com/Dhoini/Plugin-billing-service/internal/stripe"
	"github.com/Dhoini/Plugin-billing-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// App представляет собой контейнер для всех компонентов приложения
type App struct {
	Config           *config.Config
	Registry         *prometheus.Registry
	PaymentService   *service.PaymentService
	PaymentHandler   *handlers.PaymentHandler
	PluginHandler    *handlers.PluginHandler
	AuthMiddleware   *middleware.AuthMiddleware
	LoggerMiddleware gin.HandlerFunc
	Logger           *logger.Logger

	closers []func() error
}

// NewApp создает и инициализирует новый экземпляр приложения.
// Без токена Management API приложение не создается.
// Redis и Kafka необязательны: при ошибке подключения работаем без них.
func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Registry: metrics.NewRegistry(),
		Logger:   log,
	}

	remoteMetrics := metrics.NewRemoteCallMetrics(a.Registry)
	credentialMetrics := metrics.NewCredentialMetrics(a.Registry)
	billingMetrics := metrics.NewBillingMetrics(a.Registry, log)

	// Все вызовы Auth0 идут через исполнитель с повторами
	exec := remote.NewExecutor("auth0", log,
		remote.WithHTTPClient(&http.Client{Timeout: cfg.Remote.Timeout}),
		remote.WithMaxAttempts(cfg.Remote.MaxAttempts),
		remote.WithRetryDelay(cfg.Remote.RetryDelay),
		remote.WithMetrics(remoteMetrics),
	)

	keys := credential.NewKeySetCache(exec, log,
		credential.WithCacheTTL(cfg.JWKS.CacheTTL),
		credential.WithMinRefreshInterval(cfg.JWKS.MinRefreshInterval),
		credential.WithFetchTimeout(cfg.RemoteBudget()),
		credential.WithCredentialMetrics(credentialMetrics),
	)
	validator := credential.NewValidator(keys, log,
		credential.WithAlgorithms(cfg.Auth.Algorithm),
		credential.WithLeeway(cfg.Auth.Leeway),
		credential.WithValidationMetrics(credentialMetrics),
	)

	directoryClient, err := directory.NewClient(ctx, directory.Config{
		Domain:         cfg.Auth0.Domain,
		ClientID:       cfg.Auth0.MgmClientID,
		ClientSecret:   cfg.Auth0.MgmClientSecret,
		AcquireTimeout: cfg.RemoteBudget(),
	}, exec, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize identity directory client: %w", err)
	}
	log.Infow("Auth0 management API token acquired", "domain", cfg.Auth0.Domain)

	billing := stripe.NewStripeClient(stripe.Config{
		APIKey:            cfg.Stripe.SecretKey,
		MaxNetworkRetries: cfg.Stripe.MaxNetworkRetries,
	}, log)

	var (
		locker lock.Locker = lock.NewLocalLocker()
		cache  service.CatalogCache
	)
	if cfg.RedisEnabled() {
		redisClient, err := repository.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Warnw("Failed to initialize Redis, continuing with in-process locks and no catalog cache", "error", err)
		} else {
			a.closers = append(a.closers, redisClient.Close)
			locker = lock.NewRedisLocker(redisClient, cfg.Redis.LockTTL, log)
			cache = repository.NewRedisCacheRepository(redisClient, cfg.Redis.CatalogTTL, log)
			log.Infow("Using Redis for customer locks and catalog cache")
		}
	}

	var events kafka.Producer
	if cfg.KafkaEnabled() {
		events = a.initKafka(ctx, kafka.NewConfig(cfg.Kafka.Brokers))
	}

	reconciler := service.NewReconciler(directoryClient, billing, locker, events, billingMetrics, log)
	issuer := service.NewSessionIssuer(billing, cfg.BaseURL, billingMetrics, log)
	a.PaymentService = service.NewPaymentService(reconciler, issuer, cfg.BaseURL, log)
	catalog := service.NewCatalogService(billing, cache, log)

	a.PaymentHandler = handlers.NewPaymentHandler(a.PaymentService, catalog, log)
	a.PluginHandler = handlers.NewPluginHandler(cfg)
	a.AuthMiddleware = middleware.NewAuthMiddleware(validator, cfg.Auth0.Domain, cfg.Auth0.APIIdentifier, log)
	a.LoggerMiddleware = middleware.RequestLogger(log)

	return a, nil
}

// initKafka создает продюсера; при ошибке события только логируются
func (a *App) initKafka(ctx context.Context, cfg kafka.Config) kafka.Producer {
	if a.Config.Kafka.EnsureTopics {
		if err := kafka.EnsureKafkaTopics(ctx, cfg, a.Logger); err != nil {
			a.Logger.Warnw("Failed to ensure Kafka topics", "error", err)
		}
	}

	producer, err := kafka.NewKafkaProducer(cfg, a.Logger)
	if err != nil {
		a.Logger.Errorw("Failed to initialize Kafka producer, continuing without event publishing", "error", err)
		return nil
	}
	a.Logger.Infow("Kafka producer initialized", "brokers", cfg.Brokers)
	a.closers = append(a.closers, producer.Close)
	return producer
}

// Close освобождает соединения в обратном порядке
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Errorw("Error closing resource", "error", err)
		}
	}
	a.closers = nil
}
