package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Dhoini/Plugin-billing-service/internal/domain"
	"github.com/Dhoini/Plugin-billing-service/internal/remote"
	"github.com/Dhoini/Plugin-billing-service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const testDomain = "tenant.example.com"

func testLogger() *logger.Logger {
	l := logger.New(logger.DEBUG)
	l.SetOutput(io.Discard)
	return l
}

// fakeDirectory имитирует /oauth/token и /api/v2/users/{id}
type fakeDirectory struct {
	t         *testing.T
	mu        sync.Mutex
	users     map[string]map[string]any
	expiresIn int64
	// rejectToken отвечает 401 на запросы с этим токеном
	rejectToken string

	tokens  atomic.Int32
	patches []map[string]any
	server  *httptest.Server
}

func newFakeDirectory(t *testing.T) *fakeDirectory {
	f := &fakeDirectory{
		t:         t,
		users:     make(map[string]map[string]any),
		expiresIn: 86400,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", f.handleToken)
	mux.HandleFunc("/api/v2/users/", f.handleUser)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeDirectory) handleToken(w http.ResponseWriter, r *http.Request) {
	require.Equal(f.t, http.MethodPost, r.Method)

	var req tokenRequest
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
	assert.Equal(f.t, "client_credentials", req.GrantType)
	assert.Equal(f.t, "https://tenant.example.com/api/v2/", req.Audience)

	if req.ClientSecret != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	n := f.tokens.Add(1)
	_ = json.NewEncoder(w).Encode(tokenResponse{
		AccessToken: fmt.Sprintf("tok-%d", n),
		TokenType:   "Bearer",
		ExpiresIn:   f.expiresIn,
	})
}

func (f *fakeDirectory) handleUser(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	auth := r.Header.Get("Authorization")
	if auth == "" || auth == "Bearer "+f.rejectToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	id := r.URL.Path[len("/api/v2/users/"):]
	user, ok := f.users[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"statusCode":404,"error":"Not Found"}`))
		return
	}

	if r.Method == http.MethodPatch {
		var patch map[string]any
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&patch))
		f.patches = append(f.patches, patch)
		for k, v := range patch {
			user[k] = v
		}
	}
	_ = json.NewEncoder(w).Encode(user)
}

func newTestClient(t *testing.T, f *fakeDirectory) *Client {
	log := testLogger()
	exec := remote.NewExecutor("identity", log, remote.WithRetryDelay(time.Millisecond))
	c, err := NewClient(context.Background(), Config{
		Domain:       testDomain,
		ClientID:     "client",
		ClientSecret: "secret",
		BaseURL:      f.server.URL,
	}, exec, log)
	require.NoError(t, err)
	return c
}

func TestNewClient_FailsWithoutToken(t *testing.T) {
	f := newFakeDirectory(t)
	log := testLogger()
	exec := remote.NewExecutor("identity", log, remote.WithRetryDelay(time.Millisecond))

	_, err := NewClient(context.Background(), Config{
		Domain:       testDomain,
		ClientID:     "client",
		ClientSecret: "wrong",
		BaseURL:      f.server.URL,
	}, exec, log)

	require.Error(t, err)
	var dirErr *Error
	require.ErrorAs(t, err, &dirErr)
	assert.Equal(t, "acquire_token", dirErr.Op)
	assert.Equal(t, http.StatusUnauthorized, remote.StatusCode(err))
}

func TestGetIdentity(t *testing.T) {
	f := newFakeDirectory(t)
	f.users["auth0|abc123"] = map[string]any{
		"user_id":      "auth0|abc123",
		"email":        "ada@example.com",
		"given_name":   "Ada",
		"family_name":  "Lovelace",
		"app_metadata": map[string]any{"stripe_id": "cus_1"},
	}
	c := newTestClient(t, f)

	identity, err := c.GetIdentity(context.Background(), "auth0|abc123")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", identity.Email)
	assert.Equal(t, "Ada Lovelace", identity.DisplayName())
	assert.Equal(t, "cus_1", identity.BillingCustomerID())
	assert.Equal(t, int32(1), f.tokens.Load())
}

func TestGetIdentity_NotFound(t *testing.T) {
	f := newFakeDirectory(t)
	c := newTestClient(t, f)

	_, err := c.GetIdentity(context.Background(), "auth0|missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIdentityNotFound))
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, domain.HTTPStatus(err))

	var dirErr *Error
	require.ErrorAs(t, err, &dirErr)
	assert.Equal(t, "get_identity", dirErr.Op)
	assert.Equal(t, "auth0|missing", dirErr.IdentityID)
}

func TestUpdateMetadata_SendsOnlyGivenDocument(t *testing.T) {
	f := newFakeDirectory(t)
	f.users["auth0|abc123"] = map[string]any{
		"user_id":       "auth0|abc123",
		"app_metadata":  map[string]any{"plan": "free"},
		"user_metadata": map[string]any{"theme": "dark"},
	}
	c := newTestClient(t, f)

	identity, err := c.UpdateMetadata(context.Background(), "auth0|abc123",
		map[string]any{"plan": "free", "stripe_id": "cus_1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "cus_1", identity.BillingCustomerID())
	assert.Equal(t, "dark", identity.UserMetadata["theme"])

	require.Len(t, f.patches, 1)
	assert.Contains(t, f.patches[0], "app_metadata")
	assert.NotContains(t, f.patches[0], "user_metadata")
}

func TestUpdateMetadata_RequiresDocument(t *testing.T) {
	f := newFakeDirectory(t)
	f.users["auth0|abc123"] = map[string]any{"user_id": "auth0|abc123"}
	c := newTestClient(t, f)

	_, err := c.UpdateMetadata(context.Background(), "auth0|abc123", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoMetadata))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	assert.Empty(t, f.patches)
}

func TestClient_ReacquiresExpiredToken(t *testing.T) {
	f := newFakeDirectory(t)
	// Срок жизни меньше допуска oauth2.Token, поэтому токен считается истекшим сразу
	f.expiresIn = 1
	f.users["auth0|abc123"] = map[string]any{"user_id": "auth0|abc123"}
	c := newTestClient(t, f)

	_, err := c.GetIdentity(context.Background(), "auth0|abc123")
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.tokens.Load())
}

func TestClient_ReacquiresTokenOnceAfterUnauthorized(t *testing.T) {
	f := newFakeDirectory(t)
	f.users["auth0|abc123"] = map[string]any{"user_id": "auth0|abc123"}
	c := newTestClient(t, f)

	f.mu.Lock()
	f.rejectToken = "tok-1"
	f.mu.Unlock()

	identity, err := c.GetIdentity(context.Background(), "auth0|abc123")
	require.NoError(t, err)
	assert.Equal(t, "auth0|abc123", identity.UserID)
	assert.Equal(t, int32(2), f.tokens.Load())
}

func TestClient_UnauthorizedTwiceIsReturned(t *testing.T) {
	f := newFakeDirectory(t)
	f.users["auth0|abc123"] = map[string]any{"user_id": "auth0|abc123"}
	c := newTestClient(t, f)

	// Отклоняем второй токен тоже
	f.mu.Lock()
	f.rejectToken = "tok-1"
	f.mu.Unlock()
	c.session.mu.Lock()
	c.session.acquire = func(ctx context.Context) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "tok-1", TokenType: "Bearer"}, nil
	}
	c.session.mu.Unlock()

	_, err := c.GetIdentity(context.Background(), "auth0|abc123")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, remote.StatusCode(err))
}

func TestSession_ConcurrentCallersShareOneAcquire(t *testing.T) {
	var (
		calls      atomic.Int32
		acquireErr atomic.Value
	)
	release := make(chan struct{})
	s := newSession(func(ctx context.Context) (*oauth2.Token, error) {
		calls.Add(1)
		<-release
		if ctx.Err() != nil {
			acquireErr.Store(ctx.Err())
		}
		return &oauth2.Token{AccessToken: "tok", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}, nil
	}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	canceled := make(chan error, 1)
	go func() {
		_, err := s.Token(ctx)
		canceled <- err
	}()

	var wg sync.WaitGroup
	tokens := make([]*oauth2.Token, 5)
	for i := range tokens {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := s.Token(context.Background())
			assert.NoError(t, err)
			tokens[i] = tok
		}()
	}

	// Отмена одного запроса не ждет сетевого обмена
	cancel()
	select {
	case err := <-canceled:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("canceled caller blocked on token exchange")
	}

	close(release)
	wg.Wait()

	for _, tok := range tokens {
		require.NotNil(t, tok)
		assert.Equal(t, "tok", tok.AccessToken)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Nil(t, acquireErr.Load())
}
