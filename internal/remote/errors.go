package remote

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Dhoini/Plugin-billing-service/internal/domain"
)

// ErrRemoteCallFailed возвращается, когда удаленный вызов не удался после всех попыток
var ErrRemoteCallFailed = domain.ErrRemoteCallFailed

// StatusError ответ удаленного сервиса с не-2xx статусом
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

// Error реализует интерфейс error
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// Temporary сообщает, имеет ли смысл повторить вызов
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// TransportError сетевая ошибка до получения ответа
type TransportError struct {
	Err error
}

// Error реализует интерфейс error
func (e *TransportError) Error() string {
	return "transport error: " + e.Err.Error()
}

// Unwrap возвращает исходную ошибку
func (e *TransportError) Unwrap() error {
	return e.Err
}

// CallFailedError вызов не удался: бюджет попыток исчерпан или ошибка не классифицирована
type CallFailedError struct {
	Method   string
	URL      string
	Attempts int
	Cause    error
}

// Error реализует интерфейс error
func (e *CallFailedError) Error() string {
	return fmt.Sprintf("%s %s failed after %d attempt(s): %v", e.Method, e.URL, e.Attempts, e.Cause)
}

// Unwrap возвращает последнюю ошибку попытки
func (e *CallFailedError) Unwrap() error {
	return e.Cause
}

// Is позволяет сравнивать с ErrRemoteCallFailed
func (e *CallFailedError) Is(target error) bool {
	return target == ErrRemoteCallFailed
}

// IsTransport сообщает, что последняя попытка не дошла до сервиса
func IsTransport(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// StatusCode возвращает HTTP статус из цепочки ошибок или 0
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
