package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/rm-hull/http-service/internal"
)

func startKeepalive(a *app) (*cron.Cron, error) {
	schedule := a.cfg.Keepalive.Schedule
	if schedule == "" || schedule == "off" {
		return nil, nil
	}
	c, err := internal.StartCron(schedule, a.svc, a.store, a.logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start CRON jobs")
	}
	return c, nil
}

// KeepAlive refreshes the stored session on a schedule until interrupted.
func KeepAlive(schedule string) error {
	a, err := bootstrap(false, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if schedule != "" {
		a.cfg.Keepalive.Schedule = schedule
	}
	if a.cfg.Keepalive.Schedule == "" || a.cfg.Keepalive.Schedule == "off" {
		a.cfg.Keepalive.Schedule = internal.DEFAULT_KEEPALIVE_SCHEDULE
	}

	c, err := startKeepalive(a)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	a.logger.Info("stopping keepalive", zap.String("schedule", a.cfg.Keepalive.Schedule))
	<-c.Stop().Done()
	return nil
}
