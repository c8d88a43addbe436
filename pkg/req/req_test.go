package req

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dhoini/Plugin-billing-service/pkg/logger"
	"github.com/Dhoini/Plugin-billing-service/pkg/res"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type priceRequest struct {
	PriceID string `json:"price_id" validate:"required"`
}

func testLogger() *logger.Logger {
	l := logger.New(logger.DEBUG)
	l.SetOutput(io.Discard)
	return l
}

func TestHandleBody(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantID     string
		wantFields map[string]string
	}{
		{name: "valid", body: `{"price_id":"price_1"}`, wantID: "price_1"},
		{name: "not json", body: `price_id=price_1`, wantStatus: http.StatusUnprocessableEntity},
		{name: "missing field", body: `{}`, wantStatus: http.StatusUnprocessableEntity, wantFields: map[string]string{"PriceID": "required"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/payment/payment-link", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			payload, err := HandleBody[priceRequest](w, r, testLogger())
			if tt.wantStatus == 0 {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, payload.PriceID)
				return
			}

			require.Error(t, err)
			assert.Nil(t, payload)
			assert.Equal(t, tt.wantStatus, w.Code)

			var body struct {
				res.ErrorResponse
				Details map[string]string `json:"details"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantFields, body.Details)
		})
	}
}
