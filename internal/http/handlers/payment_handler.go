package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Dhoini/Plugin-billing-service/internal/domain"
	"github.com/Dhoini/Plugin-billing-service/internal/middleware"
	"github.com/Dhoini/Plugin-billing-service/internal/service"
	"github.com/Dhoini/Plugin-billing-service/pkg/logger"
	"github.com/Dhoini/Plugin-billing-service/pkg/req"
	"github.com/Dhoini/Plugin-billing-service/pkg/res"

	"github.com/gin-gonic/gin"
)

const (
	subscriptionsHint = "You don't need to output product_id and price_id in your frontend."
	linkHint          = "Advise user that they can use the link to access the payment system. " +
		"They can close the window when they are don and come back here."
)

// PaymentLinks операции с платежами пользователя
type PaymentLinks interface {
	CheckoutLink(ctx context.Context, identityID, priceID string) (string, error)
	PortalLink(ctx context.Context, identityID string) (string, error)
	Status(ctx context.Context, identityID string) (*service.PaymentStatus, error)
}

// Catalog список доступных подписок
type Catalog interface {
	ListSubscriptions(ctx context.Context) ([]domain.Product, error)
}

// PaymentHandler обрабатывает HTTP запросы /payment (для Gin).
type PaymentHandler struct {
	payments PaymentLinks
	catalog  Catalog
	log      *logger.Logger
}

// NewPaymentHandler создает новый экземпляр PaymentHandler.
func NewPaymentHandler(payments PaymentLinks, catalog Catalog, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		catalog:  catalog,
		log:      log,
	}
}

// --- DTO ---

// CreatePaymentLinkRequest тело POST /payment/payment-link
type CreatePaymentLinkRequest struct {
	PriceID string `json:"price_id" validate:"required"`
}

// LinkResponse ссылка на страницу Stripe
type LinkResponse struct {
	URL  string `json:"url"`
	Hint string `json:"hint"`
}

// SubscriptionsResponse каталог подписок
type SubscriptionsResponse struct {
	Subscriptions []domain.Product `json:"subscriptions"`
	Hint          string           `json:"hint"`
}

// --- Обработчики ---

// Subscriptions обрабатывает GET /payment/subscriptions
func (h *PaymentHandler) Subscriptions(c *gin.Context) {
	products, err := h.catalog.ListSubscriptions(c.Request.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.fail(c, http.StatusNotFound, "No subscriptions found", err)
			return
		}
		h.fail(c, domain.HTTPStatus(err), "Failed to fetch subscriptions", err)
		return
	}

	res.JsonResponse(c.Writer, SubscriptionsResponse{
		Subscriptions: products,
		Hint:          subscriptionsHint,
	}, http.StatusOK)
}

// PaymentLink обрабатывает POST /payment/payment-link
func (h *PaymentHandler) PaymentLink(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		h.fail(c, http.StatusForbidden, "Authorization header not found.", nil)
		return
	}

	body, err := req.HandleBody[CreatePaymentLinkRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	url, err := h.payments.CheckoutLink(c.Request.Context(), userID, body.PriceID)
	if err != nil {
		h.failLink(c, "Failed to create payment link", err)
		return
	}
	res.JsonResponse(c.Writer, LinkResponse{URL: url, Hint: linkHint}, http.StatusOK)
}

// CustomerPortal обрабатывает POST /payment/customer-portal
func (h *PaymentHandler) CustomerPortal(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		h.fail(c, http.StatusForbidden, "Authorization header not found.", nil)
		return
	}

	url, err := h.payments.PortalLink(c.Request.Context(), userID)
	if err != nil {
		h.failLink(c, "Failed to create customer portal link", err)
		return
	}
	res.JsonResponse(c.Writer, LinkResponse{URL: url, Hint: linkHint}, http.StatusOK)
}

// Status обрабатывает GET /payment/status
func (h *PaymentHandler) Status(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		h.fail(c, http.StatusForbidden, "Authorization header not found.", nil)
		return
	}

	status, err := h.payments.Status(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, domain.HTTPStatus(err), "Failed to retrieve payment status", err)
		return
	}
	res.JsonResponse(c.Writer, status, http.StatusOK)
}

// failLink: отказ Stripe отдается как 400 с его сообщением, остальное как 403
func (h *PaymentHandler) failLink(c *gin.Context, message string, err error) {
	var providerErr *domain.BillingProviderError
	if errors.As(err, &providerErr) {
		h.fail(c, http.StatusBadRequest, providerErr.Message, err)
		return
	}
	err = fmt.Errorf("%w: %w", domain.ErrForbidden, err)
	h.fail(c, http.StatusForbidden, message, err)
}

func (h *PaymentHandler) fail(c *gin.Context, status int, message string, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: message, ErrorCode: status}, status, h.log)
	c.Abort()
}
