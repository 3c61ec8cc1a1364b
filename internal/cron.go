package internal

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/rm-hull/http-service/internal/models"
)

const DEFAULT_KEEPALIVE_SCHEDULE = "*/15 * * * *" // Every 15 minutes

// KeepAlive exchanges the stored refresh token for a fresh session and
// persists the result. It returns the exchange's result; a missing token
// yields a 401-shaped error without any network call.
func KeepAlive(ctx context.Context, svc *HttpService, store RefreshHandler, logger *zap.Logger) models.Result[any] {
	token, err := store.GetRefreshToken(ctx)
	if err != nil {
		return models.Failed[any](models.StatusTransportFailure, "failed to read refresh token: "+err.Error(), nil)
	}
	if token == "" {
		return models.Failed[any](http.StatusUnauthorized, "no refresh token stored", nil)
	}

	result := svc.RefreshToken(ctx, token)
	if result.Error != nil {
		logger.Warn("keepalive.refresh_failed",
			zap.Int("status", result.Error.StatusCode),
			zap.String("message", result.Error.Message))
		return result
	}

	if err := PersistSession(ctx, store, result); err != nil {
		logger.Error("keepalive.save_session_failed", zap.Error(err))
		return models.Failed[any](models.StatusTransportFailure, err.Error(), nil)
	}

	logger.Info("keepalive.session_refreshed")
	return result
}

// PersistSession saves the data of a successful refresh exchange. Error
// results and empty data (null, false, 0, "") save nothing.
func PersistSession(ctx context.Context, store RefreshHandler, result models.Result[any]) error {
	if !result.IsSuccess() {
		return nil
	}
	payload, err := json.Marshal(result.Success.Data)
	if err != nil {
		return errors.Wrap(err, "failed to encode session payload")
	}
	if !hasSessionPayload(payload) {
		return nil
	}
	return store.SaveSession(ctx, payload)
}

func StartCron(schedule string, svc *HttpService, store RefreshHandler, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()

	logger.Info("starting CRON job to keep the session alive", zap.String("schedule", schedule))

	if _, err := c.AddFunc(schedule, func() {
		KeepAlive(context.Background(), svc, store, logger)
	}); err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}
