package session

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/rm-hull/http-service/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store persists the session material for one profile. GetRefreshToken and
// SaveSession make every Store usable as the client's RefreshHandler.
type Store interface {
	GetRefreshToken(ctx context.Context) (string, error)
	SaveSession(ctx context.Context, data jsoniter.RawMessage) error
	SetRefreshToken(ctx context.Context, token string) error
	Session(ctx context.Context) (*models.Session, error)
	Clear(ctx context.Context) error
	Close() error
}

// nextSession applies a saved payload on top of the current session: the
// payload's refresh_token replaces the stored one when present, otherwise
// the stored one is kept.
func nextSession(current *models.Session, profile string, data jsoniter.RawMessage, now time.Time) *models.Session {
	next := &models.Session{
		Profile:   profile,
		Payload:   append(jsoniter.RawMessage(nil), data...),
		UpdatedAt: now.UTC(),
	}
	if current != nil {
		next.RefreshToken = current.RefreshToken
	}
	if td := models.ParseTokenData(data); td.RefreshToken != "" {
		next.RefreshToken = td.RefreshToken
	}
	return next
}

// Handler adapts a Store to the client's refresh callbacks. When
// clearOnFail is set a rejected refresh exchange wipes the stored session,
// so later calls stop presenting a refresh token the server has revoked.
type Handler struct {
	Store
	logger      *zap.Logger
	clearOnFail bool
}

func NewHandler(store Store, logger *zap.Logger, clearOnFail bool) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Store: store, logger: logger, clearOnFail: clearOnFail}
}

func (h *Handler) OnRefreshFail(ctx context.Context) {
	h.logger.Warn("session.refresh_rejected", zap.Bool("clear_on_fail", h.clearOnFail))
	if !h.clearOnFail {
		return
	}
	if err := h.Clear(ctx); err != nil {
		h.logger.Error("session.clear_failed", zap.Error(err))
	}
}
