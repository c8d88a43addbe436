package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Application errors
var (
	// ErrMalformed входные данные не удалось разобрать
	ErrMalformed = errors.New("malformed input")

	// ErrUnauthorized учетные данные недействительны или истекли
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden операция запрещена для вызывающего
	ErrForbidden = errors.New("forbidden")

	// ErrServiceUnavailable внешний сервис недоступен (транспортная ошибка)
	ErrServiceUnavailable = errors.New("external service unavailable")

	// ErrBadGateway внешний сервис вернул некорректный ответ
	ErrBadGateway = errors.New("bad gateway")

	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrIdentityNotFound пользователь не найден у провайдера идентификации
	ErrIdentityNotFound = fmt.Errorf("identity %w", ErrNotFound)

	// ErrCustomerNotFound клиент не найден у платежного провайдера
	ErrCustomerNotFound = fmt.Errorf("billing customer %w", ErrNotFound)

	// ErrBillingProvider платежный провайдер отклонил запрос
	ErrBillingProvider = errors.New("billing provider error")

	// ErrInvalidInput неверные входные данные
	ErrInvalidInput = errors.New("invalid input data")

	// ErrRemoteCallFailed удаленный вызов не удался после всех попыток
	ErrRemoteCallFailed = errors.New("remote call failed")
)

// BillingProviderError представляет отказ платежного провайдера.
// Message: сообщение провайдера, пригодное для показа пользователю.
type BillingProviderError struct {
	Op          string
	Code        string
	Type        string
	Message     string
	StatusCode  int
	OriginalErr error
}

// Error реализует интерфейс error
func (e *BillingProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("billing provider error [%s] during %s: %s", e.Code, e.Op, e.Message)
	}
	return fmt.Sprintf("billing provider error during %s: %s", e.Op, e.Message)
}

// Unwrap возвращает оригинальную ошибку
func (e *BillingProviderError) Unwrap() error {
	return e.OriginalErr
}

// Is позволяет сравнивать с ErrBillingProvider
func (e *BillingProviderError) Is(target error) bool {
	return target == ErrBillingProvider
}

// NewBillingProviderError создает новую ошибку платежного провайдера
func NewBillingProviderError(op, code, errType, message string, statusCode int, err error) *BillingProviderError {
	return &BillingProviderError{
		Op:          op,
		Code:        code,
		Type:        errType,
		Message:     message,
		StatusCode:  statusCode,
		OriginalErr: err,
	}
}

// NotFoundError представляет ошибку "не найдено"
type NotFoundError struct {
	Entity string
	ID     string
}

// Error реализует интерфейс error
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Entity, e.ID)
}

// Is проверяет, является ли ошибка ошибкой типа "не найдено"
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError создает новую ошибку "не найдено"
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// statusCoder реализуется ошибками, которые сами знают свой HTTP статус.
type statusCoder interface {
	HTTPStatus() int
}

// HTTPStatus возвращает категорию HTTP статуса для ошибки.
func HTTPStatus(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}

	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMalformed), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrBillingProvider):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBadGateway), errors.Is(err, ErrRemoteCallFailed):
		return http.StatusBadGateway
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
