package sdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/celerix-dev/intern-connect/internal/engine"
)

func newStore() *engine.Scope {
	return engine.NewScope(engine.NewMemStore(nil, nil), "")
}

func newTestClient(t *testing.T, h http.Handler, opts ...Option) (*Client, *engine.Scope, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	store := newStore()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	c, err := NewClient(srv.URL, store, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, store, srv
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}
}

func seedSession(t *testing.T, s Store) {
	t.Helper()
	require.NoError(t, s.Set(KeyAuthToken, "tok-1"))
	require.NoError(t, s.Set(KeyUser, `{"full_name":"Asha K"}`))
	require.NoError(t, s.Set(KeyIsAuthenticated, "true"))
}

func assertCleared(t *testing.T, s Store) {
	t.Helper()
	for _, k := range sessionKeys {
		_, err := s.Get(k)
		assert.ErrorIs(t, err, ErrKeyNotFound, "key %s should be cleared", k)
	}
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("not a url", newStore())
	assert.Error(t, err)

	_, err = NewClient("http://localhost", nil)
	assert.Error(t, err)

	c, err := NewClient("http://localhost:5000/", newStore())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000", c.BaseURL())
}

func TestExecute_AuthHeader(t *testing.T) {
	var got atomic.Value
	c, store, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Values("Authorization"))
		assert.NotEmpty(t, r.Header.Get(HeaderRequestID))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{}`))
	}))
	ctx := t.Context()

	// No token: the header is absent, not empty.
	_, err := c.Execute(ctx, Request{Path: "/api/intern/tasks"})
	require.NoError(t, err)
	assert.Empty(t, got.Load())

	require.NoError(t, store.Set(KeyAuthToken, "abc"))
	_, err = c.Execute(ctx, Request{Path: "/api/intern/tasks"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bearer abc"}, got.Load())

	// Public endpoints never carry it.
	for _, p := range []string{PathLogin, PathRegister, PathPendingStatus, PathHealth} {
		_, err = c.Execute(ctx, Request{Method: http.MethodPost, Path: p})
		require.NoError(t, err)
		assert.Empty(t, got.Load(), p)
	}
}

type brokenStore struct{ Store }

func (brokenStore) Get(string) (string, error) { return "", errors.New("disk on fire") }

func TestExecute_TokenReadErrorDoesNotBlock(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, brokenStore{newStore()}, WithLogger(zap.New(core)))
	require.NoError(t, err)

	resp, err := c.Execute(t.Context(), Request{Path: "/api/intern/dashboard"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, 1, logs.FilterMessage("could not read auth token").Len())
}

func TestExecute_UnauthorizedClearsSession(t *testing.T) {
	c, store, _ := newTestClient(t, jsonHandler(http.StatusUnauthorized, `{"error":"Session expired"}`))
	seedSession(t, store)

	var events []Event
	c.Subscribe(func(ev Event) { events = append(events, ev) })

	_, err := c.Execute(t.Context(), Request{Path: "/api/intern/tasks"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
	assert.Equal(t, "Session expired", err.(*APIError).Message)
	assertCleared(t, store)

	// Already cleared: a second 401 is still fine.
	_, err = c.Execute(t.Context(), Request{Path: "/api/intern/goals"})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assertCleared(t, store)

	require.Len(t, events, 2)
	assert.Equal(t, EventSessionInvalidated, events[0].Type)
	assert.Equal(t, "/api/intern/tasks", events[0].Path)
}

func TestExecute_UnauthorizedOnPublicPathClearsSession(t *testing.T) {
	for _, p := range []string{PathLogin, PathRegister, PathPendingStatus, PathHealth} {
		t.Run(p, func(t *testing.T) {
			c, store, _ := newTestClient(t, jsonHandler(http.StatusUnauthorized, `{"error":"Invalid email or password"}`))
			seedSession(t, store)

			var events []Event
			c.Subscribe(func(ev Event) { events = append(events, ev) })

			_, err := c.Execute(t.Context(), Request{Method: http.MethodPost, Path: p})
			assert.Equal(t, KindUnauthorized, KindOf(err))
			assertCleared(t, store)
			require.Len(t, events, 1)
			assert.Equal(t, EventSessionInvalidated, events[0].Type)
			assert.Equal(t, p, events[0].Path)
		})
	}
}

func TestExecute_ConcurrentUnauthorized(t *testing.T) {
	c, store, _ := newTestClient(t, jsonHandler(http.StatusUnauthorized, `{}`))
	seedSession(t, store)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Execute(context.Background(), Request{Path: "/api/intern/messages"})
			assert.ErrorIs(t, err, ErrUnauthorized)
		}()
	}
	wg.Wait()
	assertCleared(t, store)
}

func TestExecute_Classification(t *testing.T) {
	tests := []struct {
		status  int
		body    string
		kind    Kind
		message string
		code    string
	}{
		{http.StatusForbidden, `{"error":"Your account is pending admin approval","status":"PENDING"}`, KindForbidden, "Your account is pending admin approval", "PENDING"},
		{http.StatusNotFound, `{"message":"no such task"}`, KindNotFound, "no such task", ""},
		{http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, KindRateLimited, "slow down", ""},
		{http.StatusInternalServerError, `<html>boom</html>`, KindServer, "Internal Server Error", ""},
		{http.StatusBadGateway, ``, KindServer, "Bad Gateway", ""},
		{http.StatusBadRequest, `{"error":"Email is required"}`, KindValidation, "Email is required", ""},
		{http.StatusConflict, `{"error":"Attendance already marked for today"}`, KindValidation, "Attendance already marked for today", ""},
		{http.StatusUnprocessableEntity, `{}`, KindValidation, "Unprocessable Entity", ""},
		{http.StatusTeapot, `{}`, KindHTTP, "I'm a teapot", ""},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c, store, _ := newTestClient(t, jsonHandler(tt.status, tt.body))
			seedSession(t, store)

			_, err := c.Execute(t.Context(), Request{Path: "/api/intern/dashboard"})
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.Equal(t, tt.code, apiErr.Code)

			// Only 401 touches the session.
			tok, err := store.Get(KeyAuthToken)
			require.NoError(t, err)
			assert.Equal(t, "tok-1", tok)
		})
	}
}

func TestExecute_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url, newStore())
	require.NoError(t, err)

	_, err = c.Execute(t.Context(), Request{Path: "/api/intern/tasks"})
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, 0, StatusOf(err))
	assert.NotEmpty(t, err.(*APIError).Message)
}

func TestExecute_Timeout(t *testing.T) {
	release := make(chan struct{})
	c, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), WithTimeout(50*time.Millisecond))
	defer close(release)

	start := time.Now()
	_, err := c.Execute(t.Context(), Request{Path: "/api/intern/tasks"})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecute_RequestBodyAndQuery(t *testing.T) {
	c, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "pending", r.URL.Query().Get("status"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"echo":true}`))
	}))

	resp, err := c.Execute(t.Context(), Request{
		Method: http.MethodPost,
		Path:   "/api/intern/tasks",
		Query:  map[string][]string{"status": {"pending"}},
		Body:   map[string]string{"a": "b"},
	})
	require.NoError(t, err)
	p, err := resp.Payload()
	require.NoError(t, err)
	assert.Equal(t, true, p["echo"])
}

func TestSetAndClearToken(t *testing.T) {
	c, store, _ := newTestClient(t, jsonHandler(http.StatusOK, `{}`))

	var types []EventType
	unsubscribe := c.Subscribe(func(ev Event) { types = append(types, ev.Type) })

	require.NoError(t, c.SetToken(""))
	_, err := store.Get(KeyAuthToken)
	assert.ErrorIs(t, err, ErrKeyNotFound, "empty token is ignored")

	require.NoError(t, c.SetToken("t1"))
	tok, _ := store.Get(KeyAuthToken)
	assert.Equal(t, "t1", tok)

	require.NoError(t, c.ClearToken())
	require.NoError(t, c.ClearToken())
	_, err = store.Get(KeyAuthToken)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	unsubscribe()
	require.NoError(t, c.SetToken("t2"))
	assert.Equal(t, []EventType{EventTokenSet, EventTokenCleared, EventTokenCleared}, types)
}

func TestHealthCheck(t *testing.T) {
	c, _, _ := newTestClient(t, jsonHandler(http.StatusOK, `{"status":"ok"}`))
	assert.Equal(t, HealthResult{Healthy: true, Status: http.StatusOK}, c.HealthCheck(t.Context()))

	c, _, _ = newTestClient(t, jsonHandler(http.StatusServiceUnavailable, `{"error":"maintenance"}`))
	res := c.HealthCheck(t.Context())
	assert.False(t, res.Healthy)
	assert.Equal(t, http.StatusServiceUnavailable, res.Status)
	assert.Contains(t, res.Error, "maintenance")
}

func TestHealthCheck_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url, newStore(), WithHealthTimeout(time.Second))
	require.NoError(t, err)

	res := c.HealthCheck(t.Context())
	assert.False(t, res.Healthy)
	assert.Zero(t, res.Status)
	assert.NotEmpty(t, res.Error)
}

func TestAPIError_Is(t *testing.T) {
	err := fmt.Errorf("load tasks: %w", &APIError{Kind: KindForbidden, Status: 403, Method: "GET", Path: "/x", Message: "nope"})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindForbidden, KindOf(err))
	assert.Equal(t, 403, StatusOf(err))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Contains(t, err.Error(), "GET /x: 403 nope")
}
