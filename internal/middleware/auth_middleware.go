package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Dhoini/Plugin-billing-service/internal/credential"
	"github.com/Dhoini/Plugin-billing-service/internal/domain"
	"github.com/Dhoini/Plugin-billing-service/pkg/logger"
	"github.com/Dhoini/Plugin-billing-service/pkg/res"

	"github.com/gin-gonic/gin"
)

// ContextKey тип для ключей контекста во избежание коллизий.
type ContextKey string

const (
	// ContextUserIDKey ключ для хранения ID пользователя (sub) в контексте gin.
	ContextUserIDKey ContextKey = "userID"
	// ContextClaimsKey ключ для хранения проверенных claims.
	ContextClaimsKey ContextKey = "claims"

	authHeaderPrefix = "Bearer "
)

// Сообщения об ошибках аутентификации
const (
	msgHeaderNotFound  = "Authorization header not found."
	msgInvalidHeader   = "Missing or invalid Authorization header"
	msgMissingSubject  = "User ID (sub) missing in token"
	msgAuthUnavailable = "Authentication service not available"
	msgAuthBadGateway  = "Bad response from authentication service"
)

// TokenValidator проверяет bearer токен провайдера идентификации
type TokenValidator interface {
	Validate(ctx context.Context, raw, providerDomain, audience string) (domain.Claims, error)
}

// AuthMiddleware проверяет токены, выданные провайдером providerDomain для audience
type AuthMiddleware struct {
	validator      TokenValidator
	providerDomain string
	audience       string
	log            *logger.Logger
}

// NewAuthMiddleware создает middleware аутентификации
func NewAuthMiddleware(validator TokenValidator, providerDomain, audience string, log *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator:      validator,
		providerDomain: providerDomain,
		audience:       audience,
		log:            log,
	}
}

// RequireAuth пропускает запрос дальше только с действительным токеном.
// Отсутствующий заголовок 403, неверный токен 401, недоступный набор ключей 502/503.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader, ok := c.Request.Header["Authorization"]
		if !ok || len(authHeader) == 0 {
			m.handleAuthError(c, http.StatusForbidden, msgHeaderNotFound, nil)
			return
		}
		if !strings.HasPrefix(authHeader[0], authHeaderPrefix) {
			m.handleAuthError(c, http.StatusUnauthorized, msgInvalidHeader, nil)
			return
		}

		raw := strings.TrimPrefix(authHeader[0], authHeaderPrefix)
		claims, err := m.validator.Validate(c.Request.Context(), raw, m.providerDomain, m.audience)
		if err != nil {
			status := domain.HTTPStatus(err)
			switch credential.KindOf(err) {
			case credential.KindServiceUnavailable:
				m.handleAuthError(c, status, msgAuthUnavailable, err)
			case credential.KindBadGateway:
				m.handleAuthError(c, status, msgAuthBadGateway, err)
			default:
				m.handleAuthError(c, http.StatusUnauthorized, msgInvalidHeader, err)
			}
			return
		}

		userID := claims.Subject()
		if userID == "" {
			m.handleAuthError(c, http.StatusUnauthorized, msgMissingSubject, nil)
			return
		}

		c.Set(string(ContextUserIDKey), userID)
		c.Set(string(ContextClaimsKey), claims)
		m.log.Debugw("User authenticated", "userID", userID)
		c.Next()
	}
}

func (m *AuthMiddleware) handleAuthError(c *gin.Context, status int, message string, cause error) {
	if cause != nil {
		m.log.Warnw("HTTP authentication failed", "path", c.Request.URL.Path, "status_code", status, "error", cause)
	} else {
		m.log.Warnw("HTTP authentication failed", "path", c.Request.URL.Path, "status_code", status, "reason", message)
	}
	res.JsonResponse(c.Writer, res.ErrorResponse{
		Error:     message,
		ErrorCode: status,
	}, status)
	c.Abort()
}

// UserID возвращает ID пользователя, сохраненный RequireAuth
func UserID(c *gin.Context) (string, bool) {
	userID := c.GetString(string(ContextUserIDKey))
	return userID, userID != ""
}
