package routes

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/rm-hull/http-service/internal"
	"github.com/rm-hull/http-service/internal/models"
	"github.com/rm-hull/http-service/internal/session"
)

const MAX_BODY_BYTES = 1 << 20 // 1 MiB

// forwardedHeaders are the only inbound headers relayed upstream; cookies
// and credentials come from the client's own session, not the caller.
var forwardedHeaders = []string{"Accept", "Accept-Language", "If-Match", "If-None-Match", "X-Request-Id"}

// Proxy relays /v1/proxy/*path to the upstream API as a refresh-eligible
// call and answers with the Result JSON.
func Proxy(svc *internal.HttpService, logger *zap.Logger) func(c *gin.Context) {
	return func(c *gin.Context) {
		method, err := models.ParseMethod(c.Request.Method)
		if err != nil {
			c.JSON(http.StatusMethodNotAllowed, models.Failed[any](http.StatusMethodNotAllowed, err.Error(), nil))
			return
		}

		opts := &models.QueryOptions{AutoRefresh: true}

		if q := c.Request.URL.Query(); len(q) > 0 {
			opts.Query = make(map[string]string, len(q))
			for k := range q {
				opts.Query[k] = q.Get(k)
			}
		}

		for _, h := range forwardedHeaders {
			if v := c.GetHeader(h); v != "" {
				if opts.Headers == nil {
					opts.Headers = make(map[string]string)
				}
				opts.Headers[h] = v
			}
		}

		if method != models.MethodGet {
			body, err := io.ReadAll(io.LimitReader(c.Request.Body, MAX_BODY_BYTES+1))
			if err != nil {
				c.JSON(http.StatusBadRequest, models.Failed[any](http.StatusBadRequest, "failed to read request body", nil))
				return
			}
			if len(body) > MAX_BODY_BYTES {
				c.JSON(http.StatusRequestEntityTooLarge, models.Failed[any](http.StatusRequestEntityTooLarge, "request body too large", nil))
				return
			}
			if len(strings.TrimSpace(string(body))) > 0 {
				if !jsoniter.Valid(body) {
					c.JSON(http.StatusBadRequest, models.Failed[any](http.StatusBadRequest, "request body must be JSON", nil))
					return
				}
				opts.Body = jsoniter.RawMessage(body)
			}
		}

		result := svc.Send(c.Request.Context(), method, upstreamPath(c), opts)
		if result.Error != nil {
			logger.Debug("proxy.upstream_error",
				zap.String("request_id", c.GetString(RequestIDKey)),
				zap.Int("status", result.Error.StatusCode),
				zap.String("message", result.Error.Message))
		}
		c.JSON(result.HTTPStatus(), result)
	}
}

// upstreamPath is the still-escaped remainder of the request path after the
// route prefix, so encoded '?', '#' and '/' stay inside their segment.
func upstreamPath(c *gin.Context) string {
	prefix := strings.TrimSuffix(c.FullPath(), "/*path")
	return strings.TrimPrefix(c.Request.URL.EscapedPath(), prefix)
}

// Refresh performs a manual refresh exchange with the stored token and
// persists the new session payload.
func Refresh(svc *internal.HttpService, store session.Store, logger *zap.Logger) func(c *gin.Context) {
	return func(c *gin.Context) {
		result := internal.KeepAlive(c.Request.Context(), svc, store, logger)
		c.JSON(result.HTTPStatus(), result)
	}
}

type SessionInfo struct {
	Profile         string `json:"profile"`
	HasRefreshToken bool   `json:"has_refresh_token"`
	HasPayload      bool   `json:"has_payload"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

func Session(store session.Store) func(c *gin.Context) {
	return func(c *gin.Context) {
		current, err := store.Session(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read session"})
			return
		}
		if current == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no session stored"})
			return
		}
		c.JSON(http.StatusOK, SessionInfo{
			Profile:         current.Profile,
			HasRefreshToken: current.HasRefreshToken(),
			HasPayload:      len(current.Payload) > 0,
			UpdatedAt:       current.UpdatedAt.Format(time.RFC3339),
		})
	}
}
