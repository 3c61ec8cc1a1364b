package internal

import (
	"bytes"
	"context"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/rm-hull/http-service/internal/models"
)

type refreshEnvelope struct {
	Data jsoniter.RawMessage `json:"data"`
}

// refreshIfNeeded recovers from a 401 on a refresh-eligible call by
// exchanging the stored refresh token for a new session and re-sending req
// exactly once. Whenever recovery is not possible the original response is
// returned unchanged.
//
// Concurrent 401s each run their own exchange; serialising them is up to
// the RefreshHandler.
func (svc *HttpService) refreshIfNeeded(ctx context.Context, resp *response, req *preparedRequest) (*response, error) {
	if resp.status != http.StatusUnauthorized || !req.autoRefresh || svc.handler == nil {
		return resp, nil
	}

	token, err := svc.handler.GetRefreshToken(ctx)
	if err != nil {
		svc.logger.Warn("httpsvc.refresh_token_lookup_failed", zap.Error(err))
		token = ""
	}
	if token == "" {
		svc.metrics.observeRefresh(refreshSkippedNoToken)
		return resp, nil
	}

	refreshReq, _ := svc.prepare(models.MethodPost, svc.baseURL+svc.refreshEndpoint,
		map[string]string{"Authorization": "Bearer " + token}, nil, false)

	refreshResp, err := svc.execute(ctx, refreshReq)
	if err != nil || !isSuccess(refreshResp.status) {
		fields := []zap.Field{zap.String("url", refreshReq.url)}
		if err != nil {
			fields = append(fields, zap.Error(err))
		} else {
			fields = append(fields, zap.Int("status", refreshResp.status))
		}
		svc.logger.Warn("httpsvc.refresh_failed", fields...)
		svc.metrics.observeRefresh(refreshFailed)

		if h, ok := svc.handler.(RefreshFailHandler); ok {
			h.OnRefreshFail(ctx)
		}
		return resp, nil
	}

	var env refreshEnvelope
	if err := json.Unmarshal(refreshResp.body, &env); err != nil {
		svc.logger.Warn("httpsvc.refresh_decode_failed", zap.Error(err))
	}
	if hasSessionPayload(env.Data) {
		if err := svc.handler.SaveSession(ctx, env.Data); err != nil {
			svc.logger.Warn("httpsvc.save_session_failed", zap.Error(err))
		}
	}
	svc.metrics.observeRefresh(refreshSucceeded)
	svc.logger.Info("httpsvc.session_refreshed", zap.String("url", req.url))

	return svc.execute(ctx, req)
}

// hasSessionPayload reports whether data holds a usable value: present and
// not null, false, 0 or "".
func hasSessionPayload(data jsoniter.RawMessage) bool {
	switch string(bytes.TrimSpace(data)) {
	case "", "null", "false", "0", `""`:
		return false
	default:
		return true
	}
}
