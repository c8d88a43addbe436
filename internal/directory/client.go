package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Dhoini/Plugin-billing-service/internal/domain"
	"github.com/Dhoini/Plugin-billing-service/internal/remote"
	"github.com/Dhoini/Plugin-billing-service/pkg/logger"

	"golang.org/x/oauth2"
)

// ErrNoMetadata возвращается, если не передан ни один документ метаданных
var ErrNoMetadata = fmt.Errorf("%w: app_metadata and user_metadata cannot both be nil", domain.ErrInvalidInput)

// Executor выполняет HTTP вызовы к провайдеру идентификации
type Executor interface {
	Execute(ctx context.Context, req remote.Request) (*remote.Response, error)
}

// Config параметры доступа к Management API
type Config struct {
	Domain       string
	ClientID     string
	ClientSecret string
	// BaseURL переопределяет https://{Domain}
	BaseURL string
	// AcquireTimeout ограничивает получение токена, общее для всех ожидающих запросов
	AcquireTimeout time.Duration
}

// Error ошибка операции с каталогом пользователей
type Error struct {
	Op         string
	IdentityID string
	Err        error
}

// Error реализует интерфейс error
func (e *Error) Error() string {
	if e.IdentityID == "" {
		return fmt.Sprintf("directory %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("directory %s for %s: %v", e.Op, e.IdentityID, e.Err)
}

// Unwrap возвращает причину
func (e *Error) Unwrap() error {
	return e.Err
}

// Client клиент Management API провайдера идентификации
type Client struct {
	cfg     Config
	baseURL string
	exec    Executor
	session *session
	log     *logger.Logger
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Audience     string `json:"audience"`
	GrantType    string `json:"grant_type"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// NewClient создает клиента и сразу получает токен Management API.
// Если токен получить не удалось, клиент не создается.
func NewClient(ctx context.Context, cfg Config, exec Executor, log *logger.Logger) (*Client, error) {
	if cfg.Domain == "" {
		return nil, &Error{Op: "init", Err: fmt.Errorf("%w: domain is required", domain.ErrInvalidInput)}
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://" + cfg.Domain
	}

	c := &Client{
		cfg:     cfg,
		baseURL: baseURL,
		exec:    exec,
		log:     log,
	}
	c.session = newSession(c.acquireToken, cfg.AcquireTimeout)

	if _, err := c.session.Token(ctx); err != nil {
		return nil, err
	}
	log.Infow("Directory client initialized", "domain", cfg.Domain)
	return c, nil
}

// ManagementAudience возвращает аудиторию Management API для домена
func ManagementAudience(providerDomain string) string {
	return "https://" + providerDomain + "/api/v2/"
}

func (c *Client) acquireToken(ctx context.Context) (*oauth2.Token, error) {
	resp, err := c.exec.Execute(ctx, remote.Request{
		Method: http.MethodPost,
		URL:    c.baseURL + "/oauth/token",
		Body: tokenRequest{
			ClientID:     c.cfg.ClientID,
			ClientSecret: c.cfg.ClientSecret,
			Audience:     ManagementAudience(c.cfg.Domain),
			GrantType:    "client_credentials",
		},
	})
	if err != nil {
		return nil, &Error{Op: "acquire_token", Err: err}
	}

	var body tokenResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return nil, &Error{Op: "acquire_token", Err: err}
	}
	if body.AccessToken == "" {
		return nil, &Error{Op: "acquire_token", Err: errors.New("empty access_token in response")}
	}

	token := &oauth2.Token{
		AccessToken: body.AccessToken,
		TokenType:   body.TokenType,
	}
	if body.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	}

	c.log.Debugw("Management API token acquired", "expires_at", token.Expiry)
	return token, nil
}

// GetIdentity возвращает пользователя по ID
func (c *Client) GetIdentity(ctx context.Context, identityID string) (*domain.Identity, error) {
	resp, err := c.do(ctx, http.MethodGet, identityID, nil)
	if err != nil {
		return nil, c.wrap("get_identity", identityID, err)
	}

	var identity domain.Identity
	if err := resp.DecodeJSON(&identity); err != nil {
		return nil, &Error{Op: "get_identity", IdentityID: identityID, Err: err}
	}
	return &identity, nil
}

// UpdateMetadata заменяет переданные документы метаданных целиком.
// nil документ не отправляется.
func (c *Client) UpdateMetadata(ctx context.Context, identityID string, appMetadata, userMetadata map[string]any) (*domain.Identity, error) {
	if appMetadata == nil && userMetadata == nil {
		return nil, &Error{Op: "update_metadata", IdentityID: identityID, Err: ErrNoMetadata}
	}

	// Пустой, но не nil документ тоже отправляется
	payload := make(map[string]any, 2)
	if appMetadata != nil {
		payload["app_metadata"] = appMetadata
	}
	if userMetadata != nil {
		payload["user_metadata"] = userMetadata
	}

	resp, err := c.do(ctx, http.MethodPatch, identityID, payload)
	if err != nil {
		return nil, c.wrap("update_metadata", identityID, err)
	}

	var identity domain.Identity
	if err := resp.DecodeJSON(&identity); err != nil {
		return nil, &Error{Op: "update_metadata", IdentityID: identityID, Err: err}
	}
	return &identity, nil
}

// do выполняет запрос к /api/v2/users/{id}; после 401 токен получается заново один раз
func (c *Client) do(ctx context.Context, method, identityID string, body any) (*remote.Response, error) {
	target := c.baseURL + "/api/v2/users/" + url.PathEscape(identityID)

	for retried := false; ; retried = true {
		token, err := c.session.Token(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := c.exec.Execute(ctx, remote.Request{
			Method: method,
			URL:    target,
			Header: http.Header{"Authorization": []string{token.Type() + " " + token.AccessToken}},
			Body:   body,
		})
		if remote.StatusCode(err) == http.StatusUnauthorized && !retried {
			c.log.Warnw("Management API token rejected, acquiring a new one", "identity_id", identityID)
			c.session.Invalidate(token)
			continue
		}
		return resp, err
	}
}

func (c *Client) wrap(op, identityID string, err error) error {
	var dirErr *Error
	if errors.As(err, &dirErr) {
		return err
	}
	if remote.StatusCode(err) == http.StatusNotFound {
		err = fmt.Errorf("%w: %w", domain.ErrIdentityNotFound, err)
	}
	return &Error{Op: op, IdentityID: identityID, Err: err}
}
