package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rm-hull/http-service/internal/config"
	"github.com/rm-hull/http-service/internal/models"
	"github.com/rm-hull/http-service/internal/session"
)

func TestParsePairs(t *testing.T) {
	m, err := parsePairs("param", nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = parsePairs("query", []string{"page=2", "filter=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"page": "2", "filter": "a=b", "empty": ""}, m)

	_, err = parsePairs("header", []string{"novalue"})
	assert.ErrorContains(t, err, "--header")

	_, err = parsePairs("header", []string{"=x"})
	assert.Error(t, err)
}

func TestPrintResult(t *testing.T) {
	assert.NoError(t, printResult(models.Succeeded[any](map[string]any{"id": 1}, "")))
	assert.ErrorIs(t, printResult(models.Failed[any](404, "Not Found", nil)), ErrResultFailed)
}

func TestOpenStore(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		cfg := &config.Config{Session: config.SessionConfig{Store: config.StoreMemory, Profile: "default"}}
		store, err := openStore(cfg, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &session.MemoryStore{}, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := &config.Config{Session: config.SessionConfig{
			Store:      config.StoreSQLite,
			Profile:    "default",
			DBPath:     t.TempDir() + "/sessions.db",
			Migrations: "../migrations",
		}}
		store, err := openStore(cfg, zap.NewNop())
		require.NoError(t, err)
		defer func() { _ = store.Close() }()

		require.NoError(t, store.SetRefreshToken(context.Background(), "r1"))
		assert.True(t, storeCheck{store: store}.Pass())
		assert.Equal(t, "session-store", storeCheck{store: store}.Name())
	})

	t.Run("unreachable redis", func(t *testing.T) {
		cfg := &config.Config{
			Session: config.SessionConfig{Store: config.StoreRedis, Profile: "default"},
			Redis:   config.RedisConfig{Addr: "127.0.0.1:1"},
		}
		_, err := openStore(cfg, zap.NewNop())
		assert.Error(t, err)
	})
}
