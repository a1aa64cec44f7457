package app

import (
	"context"
	"log/slog"

	"github.com/heartmarshall/questline-reconciler/internal/config"
	"github.com/heartmarshall/questline-reconciler/internal/report"
)

// BuildReporters assembles the configured summary sinks. The log reporter is
// always present. A sink that cannot connect is logged and left out so that
// monitoring outages never block reconciliation.
func BuildReporters(ctx context.Context, cfg config.ReportConfig, appName string, logger *slog.Logger) (report.Reporter, func()) {
	reporters := report.Multi{report.NewLogReporter(logger)}
	var closers []func()

	if cfg.Redis.Addr != "" {
		client, err := report.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis reporter disabled", slog.String("error", err.Error()))
		} else {
			reporters = append(reporters, report.NewRedisReporter(client, cfg.Redis))
			closers = append(closers, func() { _ = client.Close() })
		}
	}

	if cfg.Pushgateway.URL != "" {
		reporters = append(reporters, report.NewPushgatewayReporter(cfg.Pushgateway))
	}

	if cfg.NATS.URL != "" {
		nc, err := report.ConnectNATS(cfg.NATS, appName)
		if err != nil {
			logger.Warn("nats reporter disabled", slog.String("error", err.Error()))
		} else {
			reporters = append(reporters, report.NewNATSReporter(nc, cfg.NATS))
			closers = append(closers, nc.Close)
		}
	}

	return reporters, func() {
		for _, c := range closers {
			c()
		}
	}
}
