package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/heartmarshall/questline-reconciler/internal/config"
	"github.com/heartmarshall/questline-reconciler/internal/domain"
)

const defaultFlushTimeout = 5 * time.Second

// ConnectNATS opens a NATS connection for run events.
func ConnectNATS(cfg config.NATSConfig, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(3),
		nats.ReconnectWait(time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	return nc, nil
}

// Publisher is the part of *nats.Conn the reporter uses.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
	FlushTimeout(timeout time.Duration) error
}

// NATSReporter publishes a "run completed" event per run on
// "<prefix>.<job>". The run id travels in the Nats-Msg-Id header so a
// JetStream stream bound to the subject deduplicates redelivered events.
type NATSReporter struct {
	pub    Publisher
	prefix string
}

// NewNATSReporter creates a NATSReporter.
func NewNATSReporter(pub Publisher, cfg config.NATSConfig) *NATSReporter {
	return &NATSReporter{pub: pub, prefix: cfg.SubjectPrefix}
}

// Subject returns the subject events of job are published on.
func (r *NATSReporter) Subject(job domain.JobKind) string {
	return r.prefix + "." + job.String()
}

// Report implements Reporter. The connection is flushed so the event is on
// the wire before the process exits.
func (r *NATSReporter) Report(ctx context.Context, s domain.RunSummary) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	msg := nats.NewMsg(r.Subject(s.Job))
	msg.Data = payload
	msg.Header.Set(nats.MsgIdHdr, s.RunID.String())
	msg.Header.Set("Reconcile-Outcome", outcome(s))

	if err := r.pub.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}

	timeout := defaultFlushTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	if err := r.pub.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("flush %s: %w", msg.Subject, err)
	}
	return nil
}

// outcome condenses a summary into a single header value for subscribers
// that filter without decoding the payload.
func outcome(s domain.RunSummary) string {
	switch {
	case s.Aborted != "":
		return "aborted"
	case s.Partial:
		return "partial"
	case s.Failed() > 0:
		return "completed_with_failures"
	default:
		return "completed"
	}
}
