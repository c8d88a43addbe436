package directory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// DefaultAcquireTimeout ограничивает общее получение токена
const DefaultAcquireTimeout = 30 * time.Second

// session хранит токен Management API и получает новый, когда текущий истек.
// Одновременные запросы ждут одно общее получение токена, каждый не дольше своего ctx.
type session struct {
	mu      sync.Mutex
	token   *oauth2.Token
	acquire func(ctx context.Context) (*oauth2.Token, error)
	timeout time.Duration
	group   singleflight.Group
}

func newSession(acquire func(ctx context.Context) (*oauth2.Token, error), timeout time.Duration) *session {
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}
	return &session{acquire: acquire, timeout: timeout}
}

// Token возвращает действующий токен, при необходимости получая новый
func (s *session) Token(ctx context.Context) (*oauth2.Token, error) {
	if token := s.current(); token != nil {
		return token, nil
	}

	ch := s.group.DoChan("token", func() (any, error) {
		if token := s.current(); token != nil {
			return token, nil
		}

		acquireCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		token, err := s.acquire(acquireCtx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.token = token
		s.mu.Unlock()
		return token, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*oauth2.Token), nil
	}
}

// current возвращает сохраненный токен, если он еще действителен
func (s *session) current() *oauth2.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token.Valid() {
		return s.token
	}
	return nil
}

// Invalidate сбрасывает токен, если он не был заменен другим запросом
func (s *session) Invalidate(stale *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == stale {
		s.token = nil
	}
}
