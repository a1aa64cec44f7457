package report

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/heartmarshall/questline-reconciler/internal/config"
	"github.com/heartmarshall/questline-reconciler/internal/domain"
)

// PushgatewayReporter pushes batch-job metrics to a Prometheus Pushgateway.
// Each push replaces the metric group of the job, so the gateway always
// holds the latest run.
type PushgatewayReporter struct {
	url      string
	instance string
	client   *http.Client
}

// NewPushgatewayReporter creates a PushgatewayReporter.
func NewPushgatewayReporter(cfg config.PushgatewayConfig) *PushgatewayReporter {
	return &PushgatewayReporter{
		url:      cfg.URL,
		instance: cfg.Instance,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Report implements Reporter.
func (r *PushgatewayReporter) Report(ctx context.Context, s domain.RunSummary) error {
	reg := prometheus.NewRegistry()

	entities := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "reconcile",
		Name:      "last_run_entities",
		Help:      "Entities by outcome in the last run.",
	}, []string{"outcome"})
	entities.WithLabelValues("scanned").Set(float64(s.Scanned))
	entities.WithLabelValues(domain.OutcomeMutated.String()).Set(float64(s.Mutated))
	entities.WithLabelValues(domain.OutcomeUnchanged.String()).Set(float64(s.Unchanged()))
	entities.WithLabelValues(domain.OutcomeSkipped.String()).Set(float64(s.Skipped))
	entities.WithLabelValues(domain.OutcomeFailed.String()).Set(float64(s.Failed()))

	finished := gauge("last_run_finished_timestamp_seconds", "Unix time the last run finished.",
		float64(s.FinishedAt.Unix()))
	duration := gauge("last_run_duration_seconds", "Wall-clock duration of the last run.",
		s.Duration().Seconds())
	partial := gauge("last_run_partial", "1 if the last run stopped at its duration budget.",
		boolValue(s.Partial))
	success := gauge("last_run_success", "1 if the last run visited every entity and was not aborted.",
		boolValue(s.Complete()))
	dryRun := gauge("last_run_dry_run", "1 if the last run performed no writes.",
		boolValue(s.DryRun))

	reg.MustRegister(entities, finished, duration, partial, success, dryRun)

	pusher := push.New(r.url, s.Job.String()).
		Gatherer(reg).
		Client(r.client)
	if r.instance != "" {
		pusher = pusher.Grouping("instance", r.instance)
	}

	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics of %s: %w", s.Job, err)
	}
	return nil
}

func gauge(name, help string, v float64) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "reconcile",
		Name:      name,
		Help:      help,
	})
	g.Set(v)
	return g
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
