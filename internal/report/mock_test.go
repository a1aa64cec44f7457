package report

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/heartmarshall/questline-reconciler/internal/domain"
)

type reporterMock struct {
	ReportFunc func(ctx context.Context, s domain.RunSummary) error

	mu    sync.Mutex
	calls []domain.RunSummary
}

func (m *reporterMock) Report(ctx context.Context, s domain.RunSummary) error {
	m.mu.Lock()
	m.calls = append(m.calls, s)
	m.mu.Unlock()
	if m.ReportFunc == nil {
		return nil
	}
	return m.ReportFunc(ctx, s)
}

func (m *reporterMock) ReportCalls() []domain.RunSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.RunSummary(nil), m.calls...)
}

type publisherMock struct {
	PublishMsgFunc   func(m *nats.Msg) error
	FlushTimeoutFunc func(timeout time.Duration) error

	mu        sync.Mutex
	published []*nats.Msg
	flushes   []time.Duration
}

func (m *publisherMock) PublishMsg(msg *nats.Msg) error {
	m.mu.Lock()
	m.published = append(m.published, msg)
	m.mu.Unlock()
	if m.PublishMsgFunc == nil {
		return nil
	}
	return m.PublishMsgFunc(msg)
}

func (m *publisherMock) FlushTimeout(timeout time.Duration) error {
	m.mu.Lock()
	m.flushes = append(m.flushes, timeout)
	m.mu.Unlock()
	if m.FlushTimeoutFunc == nil {
		return nil
	}
	return m.FlushTimeoutFunc(timeout)
}

var testStart = time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)

func testSummary(job domain.JobKind) domain.RunSummary {
	return domain.RunSummary{
		RunID:      uuid.MustParse("0d9c8d55-7c53-4a1d-9b51-3f1b8e0a6a11"),
		Job:        job,
		StartedAt:  testStart,
		FinishedAt: testStart.Add(90 * time.Second),
		Now:        testStart,
		Scanned:    10,
		Mutated:    4,
		Skipped:    1,
		Failures:   []domain.EntityFailure{{ID: "u7", Error: "boom", Attempts: 3}},
	}
}
