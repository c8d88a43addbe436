package credential

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Dhoini/Plugin-billing-service/internal/domain"
)

// Kind категория отказа при проверке токена
type Kind int

const (
	// KindMalformed заголовок токена не удалось разобрать
	KindMalformed Kind = iota + 1
	// KindKeyNotFound в наборе ключей нет ключа с kid из заголовка
	KindKeyNotFound
	// KindInvalid подпись, срок действия, аудитория или издатель не прошли проверку
	KindInvalid
	// KindServiceUnavailable набор ключей недоступен (транспортная ошибка)
	KindServiceUnavailable
	// KindBadGateway набор ключей вернулся с ошибкой или в неверном формате
	KindBadGateway
)

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindKeyNotFound:
		return "key_not_found"
	case KindInvalid:
		return "invalid"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindBadGateway:
		return "bad_gateway"
	default:
		return "unknown"
	}
}

// StatusCode возвращает HTTP статус для категории.
// Любая проблема с самим токеном отдается как 401.
func (k Kind) StatusCode() int {
	switch k {
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	case KindBadGateway:
		return http.StatusBadGateway
	default:
		return http.StatusUnauthorized
	}
}

// Error ошибка проверки токена
type Error struct {
	Kind Kind
	Err  error
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Error реализует интерфейс error
func (e *Error) Error() string {
	return fmt.Sprintf("credential %s: %v", e.Kind, e.Err)
}

// Unwrap возвращает причину
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus используется domain.HTTPStatus
func (e *Error) HTTPStatus() int {
	return e.Kind.StatusCode()
}

// Is сопоставляет категорию с доменными ошибками
func (e *Error) Is(target error) bool {
	switch target {
	case domain.ErrMalformed:
		return e.Kind == KindMalformed
	case domain.ErrUnauthorized:
		return e.Kind == KindMalformed || e.Kind == KindKeyNotFound || e.Kind == KindInvalid
	case domain.ErrServiceUnavailable:
		return e.Kind == KindServiceUnavailable
	case domain.ErrBadGateway:
		return e.Kind == KindBadGateway
	}
	return false
}

// KindOf возвращает категорию ошибки или 0, если это не ошибка проверки токена
func KindOf(err error) Kind {
	var credErr *Error
	if errors.As(err, &credErr) {
		return credErr.Kind
	}
	return 0
}
