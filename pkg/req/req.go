package req

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Dhoini/Plugin-billing-service/pkg/logger"
	"github.com/Dhoini/Plugin-billing-service/pkg/res"

	"github.com/go-playground/validator/v10"
)

// validate кэширует метаданные структур, поэтому создается один раз
var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode декодирует JSON из io.ReadCloser в структуру типа T.
func Decode[T any](body io.ReadCloser) (T, error) {
	var payload T
	if body == nil {
		return payload, io.EOF
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// IsValid валидирует структуру типа T.
func IsValid[T any](payload T) error {
	return validate.Struct(payload)
}

// FieldErrors возвращает ошибки валидации по полям (имя поля -> правило)
func FieldErrors(err error) map[string]string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil
	}
	fields := make(map[string]string, len(validationErrs))
	for _, fe := range validationErrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}

// HandleBody декодирует, валидирует и обрабатывает тело запроса.
// При ошибке ответ 422 уже отправлен.
func HandleBody[T any](w http.ResponseWriter, r *http.Request, log *logger.Logger) (*T, error) {
	body, err := Decode[T](r.Body)
	if err != nil {
		log.Warnw("Failed to decode request body", "path", r.URL.Path, "error", err)
		res.JsonResponse(w, res.ErrorResponse{
			Error:     "Invalid request format",
			ErrorCode: http.StatusUnprocessableEntity,
		}, http.StatusUnprocessableEntity)
		return nil, err
	}

	if err := IsValid(body); err != nil {
		log.Warnw("Request body validation failed", "path", r.URL.Path, "error", err)
		res.JsonResponse(w, res.ErrorResponse{
			Error:     "Invalid request data",
			ErrorCode: http.StatusUnprocessableEntity,
			Details:   FieldErrors(err),
		}, http.StatusUnprocessableEntity)
		return nil, err
	}
	return &body, nil
}
