package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rm-hull/godx"
	"go.uber.org/zap"

	"github.com/rm-hull/http-service/internal"
	"github.com/rm-hull/http-service/internal/config"
	"github.com/rm-hull/http-service/internal/logging"
	"github.com/rm-hull/http-service/internal/models"
	"github.com/rm-hull/http-service/internal/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrResultFailed is returned by commands whose call produced an error
// result, after the result itself has been printed.
var ErrResultFailed = errors.New("request failed")

type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  session.Store
	svc    *internal.HttpService
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close session store", zap.Error(err))
	}
	logging.Sync()
}

// bootstrap initialises shared resources used by every command: config,
// logging, the session store and the HTTP service wired to it.
func bootstrap(verbose bool, reg prometheus.Registerer) (*app, error) {
	cfg, dotenv, err := config.Load()
	if err != nil {
		return nil, err
	}

	logging.Init("httpsvc", cfg.Logging.Env, cfg.Logging.Level)
	logger := logging.L()
	if !dotenv {
		logger.Debug("no .env file found")
	}

	if verbose {
		godx.GitVersion()
		godx.EnvironmentVars()
		godx.UserInfo()
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	var metrics *internal.Metrics
	if reg != nil {
		if metrics, err = internal.NewMetrics(reg); err != nil {
			_ = store.Close()
			return nil, errors.Wrap(err, "failed to register metrics")
		}
	}

	svc := internal.NewHttpService(internal.Config{
		APIBaseURL:       cfg.API.BaseURL,
		RefreshEndpoint:  cfg.API.RefreshEndpoint,
		RefreshHandler:   session.NewHandler(store, logger, cfg.Session.ClearOnFail),
		StrictPathParams: cfg.API.StrictPathParams,
		Logger:           logger,
		Metrics:          metrics,
	})

	return &app{cfg: cfg, logger: logger, store: store, svc: svc}, nil
}

func openStore(cfg *config.Config, logger *zap.Logger) (session.Store, error) {
	profile := cfg.Session.Profile

	switch cfg.Session.Store {
	case config.StoreMemory:
		return session.NewMemoryStore(profile), nil

	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			_ = rdb.Close()
			return nil, errors.Wrapf(err, "failed to connect to redis at %s", cfg.Redis.Addr)
		}
		return session.NewRedisStore(rdb, cfg.Redis.Prefix, profile), nil

	case config.StoreKeyring:
		ring, err := session.OpenKeyring(session.KeyringOptions{
			Service:  cfg.Keyring.Service,
			Backend:  cfg.Keyring.Backend,
			Dir:      cfg.Keyring.Dir,
			Password: cfg.Keyring.Password,
		})
		if err != nil {
			return nil, err
		}
		return session.NewKeyringStore(ring, profile), nil

	default:
		db, err := internal.Connect(cfg.Session.DBPath, logger)
		if err != nil {
			return nil, errors.Wrap(err, "failed to initialize database")
		}
		if err := internal.Migrate(cfg.Session.Migrations, cfg.Session.DBPath); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "failed to migrate SQL")
		}
		return session.NewSQLiteStore(db, profile), nil
	}
}

func printResult(result models.Result[any]) error {
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode result")
	}
	fmt.Fprintln(os.Stdout, string(out))
	if result.Error != nil {
		return ErrResultFailed
	}
	return nil
}
