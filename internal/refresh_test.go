package internal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rm-hull/http-service/internal/models"
)

type stubHandler struct {
	mu        sync.Mutex
	token     string
	tokenErr  error
	saveErr   error
	saved     []string
	failCalls int
}

func (h *stubHandler) GetRefreshToken(ctx context.Context) (string, error) {
	return h.token, h.tokenErr
}

func (h *stubHandler) SaveSession(ctx context.Context, data jsoniter.RawMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saved = append(h.saved, string(data))
	return h.saveErr
}

func (h *stubHandler) OnRefreshFail(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failCalls++
}

// expiringAPI answers /orders with 401 until a refresh has succeeded.
func expiringAPI(t *testing.T, refresh http.HandlerFunc) *fakeAPI {
	t.Helper()
	api := newFakeAPI(t)

	var mu sync.Mutex
	refreshed := false

	api.handle("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		refresh(rec, r)
		if rec.status >= 200 && rec.status <= 299 {
			mu.Lock()
			refreshed = true
			mu.Unlock()
		}
	})
	api.handle("/orders", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ok := refreshed
		mu.Unlock()
		if !ok {
			reply(http.StatusUnauthorized, `{"message":"Token expired"}`)(w, r)
			return
		}
		reply(http.StatusOK, `{"data":[{"id":1}],"message":"fetched"}`)(w, r)
	})
	return api
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func TestRefresh_RecoversFrom401(t *testing.T) {
	api := expiringAPI(t, reply(http.StatusOK, `{"data":{"access_token":"new-access","refresh_token":"r2"}}`))
	handler := &stubHandler{token: "r1"}
	svc := newTestService(api, handler)

	result := Post[any](context.Background(), svc, "/orders", &models.QueryOptions{
		Headers:     map[string]string{"X-Client": "tests"},
		Body:        map[string]int{"qty": 3},
		AutoRefresh: true,
	})

	require.True(t, result.IsSuccess())
	assert.Equal(t, "fetched", result.Success.Message)

	refreshCalls := api.calls("/auth/refresh")
	require.Len(t, refreshCalls, 1)
	assert.Equal(t, "POST", refreshCalls[0].Method)
	assert.Equal(t, "Bearer r1", refreshCalls[0].Header.Get("Authorization"))
	assert.Equal(t, "application/json", refreshCalls[0].Header.Get("Content-Type"))

	require.Len(t, handler.saved, 1)
	assert.JSONEq(t, `{"access_token":"new-access","refresh_token":"r2"}`, handler.saved[0])
	assert.Zero(t, handler.failCalls)

	orderCalls := api.calls("/orders")
	require.Len(t, orderCalls, 2)
	retry := orderCalls[1]
	assert.Equal(t, orderCalls[0].Method, retry.Method)
	assert.Equal(t, "tests", retry.Header.Get("X-Client"))
	assert.Equal(t, "application/json", retry.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"qty":3}`, retry.Body)
}

func TestRefresh_NotAttempted(t *testing.T) {
	ctx := context.Background()

	t.Run("call is not refresh eligible", func(t *testing.T) {
		api := expiringAPI(t, reply(http.StatusOK, `{"data":{"access_token":"a"}}`))
		handler := &stubHandler{token: "r1"}
		svc := newTestService(api, handler)

		result := Get[any](ctx, svc, "/orders", nil)

		require.NotNil(t, result.Error)
		assert.Equal(t, http.StatusUnauthorized, result.Error.StatusCode)
		assert.Equal(t, "Token expired", result.Error.Message)
		assert.Empty(t, api.calls("/auth/refresh"))
		assert.Len(t, api.calls("/orders"), 1)
	})

	t.Run("no refresh handler", func(t *testing.T) {
		api := expiringAPI(t, reply(http.StatusOK, `{}`))
		svc := newTestService(api, nil)

		result := Get[any](ctx, svc, "/orders", &models.QueryOptions{AutoRefresh: true})

		require.NotNil(t, result.Error)
		assert.Equal(t, http.StatusUnauthorized, result.Error.StatusCode)
		assert.Empty(t, api.calls("/auth/refresh"))
	})

	t.Run("no refresh token", func(t *testing.T) {
		api := expiringAPI(t, reply(http.StatusOK, `{}`))
		handler := &stubHandler{}
		svc := newTestService(api, handler)

		result := Get[any](ctx, svc, "/orders", &models.QueryOptions{AutoRefresh: true})

		require.NotNil(t, result.Error)
		assert.Equal(t, http.StatusUnauthorized, result.Error.StatusCode)
		assert.Empty(t, api.calls("/auth/refresh"))
		assert.Zero(t, handler.failCalls)
	})

	t.Run("token lookup error is treated as absent", func(t *testing.T) {
		api := expiringAPI(t, reply(http.StatusOK, `{}`))
		handler := &stubHandler{token: "r1", tokenErr: errors.New("keychain locked")}
		svc := newTestService(api, handler)

		result := Get[any](ctx, svc, "/orders", &models.QueryOptions{AutoRefresh: true})

		require.NotNil(t, result.Error)
		assert.Equal(t, http.StatusUnauthorized, result.Error.StatusCode)
		assert.Empty(t, api.calls("/auth/refresh"))
	})

	t.Run("other error statuses", func(t *testing.T) {
		api := newFakeAPI(t)
		api.handle("/orders", reply(http.StatusForbidden, `{"message":"Forbidden"}`))
		handler := &stubHandler{token: "r1"}
		svc := newTestService(api, handler)

		result := Get[any](ctx, svc, "/orders", &models.QueryOptions{AutoRefresh: true})

		require.NotNil(t, result.Error)
		assert.Equal(t, http.StatusForbidden, result.Error.StatusCode)
		assert.Empty(t, api.calls("/auth/refresh"))
	})
}

func TestRefresh_Rejected(t *testing.T) {
	api := expiringAPI(t, reply(http.StatusUnauthorized, `{"message":"refresh token revoked"}`))
	handler := &stubHandler{token: "r1"}
	svc := newTestService(api, handler)

	result := Get[any](context.Background(), svc, "/orders", &models.QueryOptions{AutoRefresh: true})

	require.NotNil(t, result.Error)
	assert.Equal(t, http.StatusUnauthorized, result.Error.StatusCode)
	assert.Equal(t, "Token expired", result.Error.Message, "the original 401 is returned")
	assert.Equal(t, 1, handler.failCalls)
	assert.Empty(t, handler.saved)
	assert.Len(t, api.calls("/auth/refresh"), 1)
	assert.Len(t, api.calls("/orders"), 1)
}

func TestRefresh_RetryIsAttemptedOnce(t *testing.T) {
	api := newFakeAPI(t)
	api.handle("/auth/refresh", reply(http.StatusOK, `{"data":{"access_token":"a"}}`))
	api.handle("/orders", reply(http.StatusUnauthorized, `{"message":"still no"}`))
	handler := &stubHandler{token: "r1"}
	svc := newTestService(api, handler)

	result := Get[any](context.Background(), svc, "/orders", &models.QueryOptions{AutoRefresh: true})

	require.NotNil(t, result.Error)
	assert.Equal(t, http.StatusUnauthorized, result.Error.StatusCode)
	assert.Equal(t, "still no", result.Error.Message)
	assert.Len(t, api.calls("/auth/refresh"), 1)
	assert.Len(t, api.calls("/orders"), 2)
	assert.Zero(t, handler.failCalls)
}

func TestRefresh_SessionPayload(t *testing.T) {
	ctx := context.Background()

	for _, body := range []string{`{}`, `{"data":null}`, `{"data":false}`, `{"data":0}`, `{"data":""}`, `not json`} {
		t.Run("nothing saved for "+body, func(t *testing.T) {
			api := expiringAPI(t, reply(http.StatusOK, body))
			handler := &stubHandler{token: "r1"}
			svc := newTestService(api, handler)

			result := Get[any](ctx, svc, "/orders", &models.QueryOptions{AutoRefresh: true})

			assert.True(t, result.IsSuccess(), "the retry still happens")
			assert.Empty(t, handler.saved)
			assert.Len(t, api.calls("/orders"), 2)
		})
	}

	t.Run("save failure does not prevent the retry", func(t *testing.T) {
		api := expiringAPI(t, reply(http.StatusOK, `{"data":{"access_token":"a"}}`))
		handler := &stubHandler{token: "r1", saveErr: errors.New("disk full")}
		svc := newTestService(api, handler)

		result := Get[any](ctx, svc, "/orders", &models.QueryOptions{AutoRefresh: true})

		assert.True(t, result.IsSuccess())
		assert.Len(t, handler.saved, 1)
	})
}

func TestRefresh_ExchangeTransportFailure(t *testing.T) {
	api := newFakeAPI(t)
	api.handle("/orders", reply(http.StatusUnauthorized, `{"message":"Token expired"}`))
	handler := &stubHandler{token: "r1"}
	svc := NewHttpService(Config{
		APIBaseURL:      api.URL,
		RefreshEndpoint: "\x7f/refresh",
		RefreshHandler:  handler,
	})

	result := Get[any](context.Background(), svc, "/orders", &models.QueryOptions{AutoRefresh: true})

	require.NotNil(t, result.Error)
	assert.Equal(t, http.StatusUnauthorized, result.Error.StatusCode)
	assert.Equal(t, 1, handler.failCalls)
}

func TestRefresh_Metrics(t *testing.T) {
	api := expiringAPI(t, reply(http.StatusOK, `{"data":{"access_token":"a"}}`))
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	svc := NewHttpService(Config{
		APIBaseURL:      api.URL,
		RefreshEndpoint: "/auth/refresh",
		RefreshHandler:  &stubHandler{token: "r1"},
		Metrics:         metrics,
	})
	Get[any](context.Background(), svc, "/orders", &models.QueryOptions{AutoRefresh: true})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.refresh.WithLabelValues(refreshSucceeded)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.refresh.WithLabelValues(refreshFailed)))
}

func TestRefreshToken(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit exchange", func(t *testing.T) {
		api := newFakeAPI(t)
		api.handle("/auth/refresh", reply(http.StatusOK, `{"data":{"access_token":"fresh"},"message":"refreshed"}`))
		svc := newTestService(api, nil)

		result := svc.RefreshToken(ctx, "abc123")

		require.True(t, result.IsSuccess())
		assert.Equal(t, map[string]any{"access_token": "fresh"}, result.Success.Data)
		calls := api.calls("/auth/refresh")
		require.Len(t, calls, 1)
		assert.Equal(t, "POST", calls[0].Method)
		assert.Equal(t, "Bearer abc123", calls[0].Header.Get("Authorization"))
		assert.Empty(t, calls[0].Body)
	})

	t.Run("rejected token recovers through the stored token", func(t *testing.T) {
		api := newFakeAPI(t)
		api.handle("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "Bearer stored" {
				reply(http.StatusOK, `{"data":{"access_token":"from-stored"}}`)(w, r)
				return
			}
			reply(http.StatusUnauthorized, `{"message":"bad token"}`)(w, r)
		})
		handler := &stubHandler{token: "stored"}
		svc := newTestService(api, handler)

		result := svc.RefreshToken(ctx, "stale")

		require.NotNil(t, result.Error, "the retry re-sends the stale token")
		assert.Equal(t, http.StatusUnauthorized, result.Error.StatusCode)
		require.Len(t, handler.saved, 1)
		assert.JSONEq(t, `{"access_token":"from-stored"}`, handler.saved[0])
		assert.Len(t, api.calls("/auth/refresh"), 3)
	})
}

func TestHasSessionPayload(t *testing.T) {
	for _, raw := range []string{"", " ", "null", "false", "0", `""`} {
		assert.False(t, hasSessionPayload(jsoniter.RawMessage(raw)), raw)
	}
	for _, raw := range []string{`{}`, `[]`, `"tok"`, `1`, `true`, `{"access_token":"a"}`} {
		assert.True(t, hasSessionPayload(jsoniter.RawMessage(raw)), raw)
	}
}

func TestRefreshHandlerFuncs(t *testing.T) {
	var saved string
	failed := false
	h := RefreshHandlerFuncs{
		GetRefreshTokenFunc: func(ctx context.Context) (string, error) { return "r1", nil },
		SaveSessionFunc: func(ctx context.Context, data jsoniter.RawMessage) error {
			saved = string(data)
			return nil
		},
		OnRefreshFailFunc: func(ctx context.Context) { failed = true },
	}

	ctx := context.Background()
	token, err := h.GetRefreshToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r1", token)
	require.NoError(t, h.SaveSession(ctx, jsoniter.RawMessage(`{"a":1}`)))
	assert.Equal(t, `{"a":1}`, saved)
	h.OnRefreshFail(ctx)
	assert.True(t, failed)

	var empty RefreshHandlerFuncs
	token, err = empty.GetRefreshToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.NoError(t, empty.SaveSession(ctx, nil))
	empty.OnRefreshFail(ctx)
}
