package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Depado/ginprom"
	"github.com/aurowora/compress"
	"github.com/cockroachdb/errors"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	healthcheck "github.com/tavsec/gin-healthcheck"
	"github.com/tavsec/gin-healthcheck/checks"
	hc_config "github.com/tavsec/gin-healthcheck/config"
	"go.uber.org/zap"

	"github.com/rm-hull/http-service/internal/routes"
	"github.com/rm-hull/http-service/internal/session"
)

// storeCheck reports the gateway unhealthy while the session store cannot
// be read.
type storeCheck struct {
	store session.Store
}

func (sc storeCheck) Pass() bool {
	_, err := sc.store.Session(context.Background())
	return err == nil
}

func (sc storeCheck) Name() string {
	return "session-store"
}

func ApiServer(port int, debug bool) error {

	a, err := bootstrap(debug, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}
	debug = debug || a.cfg.Server.Debug

	if _, err := startKeepalive(a); err != nil {
		return err
	}

	r := gin.New()

	ginProm := ginprom.New(
		ginprom.Engine(r),
		ginprom.Path("/metrics"),
		ginprom.Ignore("/healthz"),
	)

	r.Use(
		gin.Recovery(),
		gin.LoggerWithWriter(gin.DefaultWriter, "/healthz", "/metrics"),
		routes.RequestID(),
		ginProm.Instrument(),
		compress.Compress(),
		cors.Default(),
	)

	if debug {
		a.logger.Warn("pprof endpoints are enabled and exposed. Do not run with this flag in production.")
		pprof.Register(r)
	}

	err = healthcheck.New(r, hc_config.DefaultConfig(), []checks.Check{
		storeCheck{store: a.store},
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialize healthcheck")
	}

	v1 := r.Group("/v1")
	v1.Any("/proxy/*path", routes.Proxy(a.svc, a.logger))
	v1.GET("/session", routes.Session(a.store))
	v1.POST("/session/refresh", routes.Refresh(a.svc, a.store, a.logger))

	addr := fmt.Sprintf(":%d", port)
	a.logger.Info("starting HTTP gateway", zap.Int("port", port), zap.String("upstream", a.svc.BaseURL()))
	if err := r.Run(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrapf(err, "HTTP gateway failed to start on port %d", port)
	}

	return nil
}
