package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Dhoini/Plugin-billing-service/internal/metrics"
	"github.com/Dhoini/Plugin-billing-service/pkg/logger"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultMaxAttempts максимальное число попыток вызова
	DefaultMaxAttempts = 3
	// DefaultRetryDelay фиксированная пауза между попытками
	DefaultRetryDelay = 1 * time.Second

	maxResponseBody = 4 << 20
)

// Request описывает исходящий HTTP вызов
type Request struct {
	Method string
	URL    string
	Header http.Header
	// Body кодируется в JSON, если не nil
	Body any
}

// Response ответ удаленного сервиса (только 2xx)
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// DecodeJSON декодирует тело ответа в v
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("remote: failed to decode response body: %w", err)
	}
	return nil
}

// Executor выполняет HTTP вызовы с ограниченным числом повторов.
// Повторяются только ответы 5xx и транспортные ошибки; 4xx возвращаются сразу.
type Executor struct {
	client      *http.Client
	service     string
	maxAttempts int
	delay       time.Duration
	metrics     metrics.RemoteCallMetrics
	log         *logger.Logger
}

// Option настраивает Executor
type Option func(*Executor)

// WithHTTPClient задает HTTP клиент
func WithHTTPClient(client *http.Client) Option {
	return func(e *Executor) { e.client = client }
}

// WithMaxAttempts задает максимальное число попыток (не меньше 1)
func WithMaxAttempts(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithRetryDelay задает паузу между попытками
func WithRetryDelay(d time.Duration) Option {
	return func(e *Executor) {
		if d >= 0 {
			e.delay = d
		}
	}
}

// WithMetrics подключает метрики
func WithMetrics(m metrics.RemoteCallMetrics) Option {
	return func(e *Executor) {
		if m != nil {
			e.metrics = m
		}
	}
}

// NewExecutor создает исполнитель для вызовов сервиса service (используется в логах и метриках)
func NewExecutor(service string, log *logger.Logger, opts ...Option) *Executor {
	e := &Executor{
		client:      http.DefaultClient,
		service:     service,
		maxAttempts: DefaultMaxAttempts,
		delay:       DefaultRetryDelay,
		metrics:     metrics.NopRemoteCallMetrics(),
		log:         log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxAttempts возвращает настроенный бюджет попыток
func (e *Executor) MaxAttempts() int {
	return e.maxAttempts
}

// Execute выполняет вызов с повторами.
// Возвращает *StatusError для 4xx и *CallFailedError, если бюджет попыток исчерпан
// или произошла неклассифицированная ошибка.
func (e *Executor) Execute(ctx context.Context, req Request) (*Response, error) {
	target := redactURL(req.URL)
	maxAttempts := e.maxAttempts

	var (
		resp     *Response
		lastErr  error
		attempts int
	)

	operation := func() error {
		attempts++
		var err error
		resp, err = e.attempt(ctx, req)
		if err == nil {
			return nil
		}
		lastErr = err

		var statusErr *StatusError
		switch {
		case errors.As(err, &statusErr) && !statusErr.Temporary():
			// Ошибка клиента, повтор не поможет
			return backoff.Permanent(err)
		case errors.As(err, &statusErr):
			return err
		case isTransportError(ctx, err):
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	notify := func(err error, wait time.Duration) {
		e.log.Errorw("Remote call failed, retrying",
			"service", e.service,
			"method", req.Method,
			"url", target,
			"attempt", attempts,
			"max_attempts", maxAttempts,
			"retry_in", wait,
			"error", err,
		)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.delay), uint64(maxAttempts-1)),
		ctx,
	)

	err := backoff.RetryNotify(operation, policy, notify)
	if err == nil {
		return resp, nil
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) && !statusErr.Temporary() {
		e.log.Errorw("Remote call rejected by upstream",
			"service", e.service,
			"method", req.Method,
			"url", target,
			"status_code", statusErr.StatusCode,
		)
		return nil, statusErr
	}

	cause := lastErr
	if cause == nil || ctx.Err() != nil {
		cause = err
	}
	if attempts >= maxAttempts {
		e.metrics.IncExhausted(e.service)
		e.log.Errorw("Max retries reached. Remote call failed.",
			"service", e.service, "method", req.Method, "url", target, "attempts", attempts, "error", cause)
	} else {
		e.log.Errorw("Unexpected error during remote call",
			"service", e.service, "method", req.Method, "url", target, "attempts", attempts, "error", cause)
	}

	return nil, &CallFailedError{
		Method:   req.Method,
		URL:      target,
		Attempts: attempts,
		Cause:    cause,
	}
}

// attempt выполняет одну попытку вызова и классифицирует ответ
func (e *Executor) attempt(ctx context.Context, req Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("remote: failed to encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("remote: failed to create request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	httpResp, err := e.client.Do(httpReq)
	if err != nil {
		e.metrics.ObserveAttempt(e.service, metrics.OutcomeTransport, time.Since(start))
		return nil, &TransportError{Err: err}
	}
	defer httpResp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		e.metrics.ObserveAttempt(e.service, metrics.OutcomeTransport, time.Since(start))
		return nil, &TransportError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	switch {
	case httpResp.StatusCode >= 200 && httpResp.StatusCode < 300:
		e.metrics.ObserveAttempt(e.service, metrics.OutcomeSuccess, time.Since(start))
		return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: payload}, nil
	case httpResp.StatusCode >= 500:
		e.metrics.ObserveAttempt(e.service, metrics.OutcomeServerError, time.Since(start))
	default:
		e.metrics.ObserveAttempt(e.service, metrics.OutcomeClientError, time.Since(start))
	}

	return nil, &StatusError{
		Method:     req.Method,
		URL:        redactURL(req.URL),
		StatusCode: httpResp.StatusCode,
		Body:       payload,
	}
}

// isTransportError отделяет сетевые ошибки от отмены вызывающим
func isTransportError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// redactURL убирает query string из URL для логов
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
