package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentity_BillingCustomerID(t *testing.T) {
	var nilIdentity *Identity
	assert.Empty(t, nilIdentity.BillingCustomerID())
	assert.Empty(t, (&Identity{}).BillingCustomerID())
	assert.Empty(t, (&Identity{AppMetadata: map[string]any{StripeIDKey: 42}}).BillingCustomerID())
	assert.Equal(t, "cus_1", (&Identity{AppMetadata: map[string]any{StripeIDKey: "cus_1"}}).BillingCustomerID())
}

func TestIdentity_DisplayName(t *testing.T) {
	assert.Equal(t, "A B", (&Identity{GivenName: "A", FamilyName: "B"}).DisplayName())
	assert.Equal(t, "A", (&Identity{GivenName: "A"}).DisplayName())
}

func TestClaims_Audience(t *testing.T) {
	assert.Equal(t, []string{"api"}, Claims{"aud": "api"}.Audience())
	assert.Equal(t, []string{"api", "userinfo"}, Claims{"aud": []any{"api", "userinfo"}}.Audience())
	assert.Nil(t, Claims{}.Audience())
	assert.Equal(t, "auth0|abc123", Claims{"sub": "auth0|abc123"}.Subject())
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("wrap: %w", ErrMalformed), http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("%w: %w", ErrForbidden, ErrIdentityNotFound), http.StatusForbidden},
		{ErrIdentityNotFound, http.StatusNotFound},
		{NewNotFoundError("customer", "cus_1"), http.StatusNotFound},
		{NewBillingProviderError("checkout", "resource_missing", "invalid_request_error", "No such price: price_bad", 400, nil), http.StatusBadRequest},
		{ErrBadGateway, http.StatusBadGateway},
		{ErrServiceUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("exhausted: %w", ErrRemoteCallFailed), http.StatusBadGateway},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), "error: %v", tc.err)
	}
}

func TestIdentityNotFoundIsNotFound(t *testing.T) {
	assert.ErrorIs(t, ErrIdentityNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrCustomerNotFound, ErrNotFound)
}
