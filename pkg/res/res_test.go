package res

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Dhoini/Plugin-billing-service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJsonResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	JsonResponse(rec, map[string]string{"status": "ok"}, http.StatusOK)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestJsonErrorResponse_DefaultsErrorCode(t *testing.T) {
	log := logger.New(logger.DEBUG)
	log.SetOutput(io.Discard)

	rec := httptest.NewRecorder()
	JsonErrorResponse(rec, ErrorResponse{Error: "nope"}, http.StatusForbidden, log)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, ErrorResponse{Error: "nope", ErrorCode: http.StatusForbidden}, body)
}
