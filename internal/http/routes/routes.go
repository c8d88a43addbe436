package routes

import (
	"github.com/Dhoini/Plugin-billing-service/internal/app"
	"github.com/Dhoini/Plugin-billing-service/internal/metrics"
	"github.com/Dhoini/Plugin-billing-service/pkg/logger"

	"github.com/gin-gonic/gin"
)

// SetupRoutes настраивает все маршруты API для Gin роутера
func SetupRoutes(router *gin.Engine, app *app.App, log *logger.Logger) {
	// Промежуточное ПО для всех запросов
	router.Use(app.LoggerMiddleware)
	router.Use(gin.Recovery())

	// Публичные маршруты
	router.GET("/healthcheck", app.PluginHandler.HealthCheck)
	router.GET("/.well-known/ai-plugin.json", app.PluginHandler.Manifest)
	router.GET("/metrics", gin.WrapH(metrics.Handler(app.Registry)))

	payment := router.Group("/payment")
	{
		payment.GET("/subscriptions", app.PaymentHandler.Subscriptions)

		// Защищенные маршруты (требуют аутентификации)
		auth := payment.Group("")
		auth.Use(app.AuthMiddleware.RequireAuth())
		auth.POST("/payment-link", app.PaymentHandler.PaymentLink)
		auth.POST("/customer-portal", app.PaymentHandler.CustomerPortal)
		auth.GET("/status", app.PaymentHandler.Status)
	}

	log.Infow("API routes successfully configured")
}
