package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/heartmarshall/questline-reconciler/internal/docstore"
	"github.com/heartmarshall/questline-reconciler/internal/domain"
)

var _ Job = &jobMock{}

type jobMock struct {
	KindFunc      func() domain.JobKind
	QueryFunc     func(now time.Time) docstore.Query
	ShouldActFunc func(ctx context.Context, doc docstore.Document, now time.Time) (bool, error)
	ActFunc       func(ctx context.Context, doc docstore.Document, now time.Time) error

	calls struct {
		ShouldAct []struct {
			Doc docstore.Document
			Now time.Time
		}
		Act []struct {
			Doc docstore.Document
			Now time.Time
		}
	}
	lockShouldAct sync.RWMutex
	lockAct       sync.RWMutex
}

func (mock *jobMock) Kind() domain.JobKind {
	if mock.KindFunc == nil {
		return domain.JobKindQuest
	}
	return mock.KindFunc()
}

func (mock *jobMock) Query(now time.Time) docstore.Query {
	if mock.QueryFunc == nil {
		panic("jobMock.QueryFunc: method is nil but Job.Query was just called")
	}
	return mock.QueryFunc(now)
}

func (mock *jobMock) ShouldAct(ctx context.Context, doc docstore.Document, now time.Time) (bool, error) {
	if mock.ShouldActFunc == nil {
		panic("jobMock.ShouldActFunc: method is nil but Job.ShouldAct was just called")
	}
	mock.lockShouldAct.Lock()
	mock.calls.ShouldAct = append(mock.calls.ShouldAct, struct {
		Doc docstore.Document
		Now time.Time
	}{Doc: doc, Now: now})
	mock.lockShouldAct.Unlock()
	return mock.ShouldActFunc(ctx, doc, now)
}

func (mock *jobMock) ShouldActCalls() []struct {
	Doc docstore.Document
	Now time.Time
} {
	mock.lockShouldAct.RLock()
	defer mock.lockShouldAct.RUnlock()
	return mock.calls.ShouldAct
}

func (mock *jobMock) Act(ctx context.Context, doc docstore.Document, now time.Time) error {
	if mock.ActFunc == nil {
		panic("jobMock.ActFunc: method is nil but Job.Act was just called")
	}
	mock.lockAct.Lock()
	mock.calls.Act = append(mock.calls.Act, struct {
		Doc docstore.Document
		Now time.Time
	}{Doc: doc, Now: now})
	mock.lockAct.Unlock()
	return mock.ActFunc(ctx, doc, now)
}

func (mock *jobMock) ActCalls() []struct {
	Doc docstore.Document
	Now time.Time
} {
	mock.lockAct.RLock()
	defer mock.lockAct.RUnlock()
	return mock.calls.Act
}

var _ docstore.Store = &storeMock{}

type storeMock struct {
	QueryFunc             func(ctx context.Context, q docstore.Query) (docstore.Page, error)
	GetFunc               func(ctx context.Context, collection, id string) (docstore.Document, error)
	SubcollectionFunc     func(ctx context.Context, parent docstore.Ref, name string, order docstore.OrderBy, limit int) ([]docstore.Document, error)
	ConditionalUpdateFunc func(ctx context.Context, collection, id string, expect docstore.Expect, fields map[string]any) error

	calls struct {
		Query []struct {
			Q docstore.Query
		}
	}
	lockQuery sync.RWMutex
}

func (mock *storeMock) Query(ctx context.Context, q docstore.Query) (docstore.Page, error) {
	if mock.QueryFunc == nil {
		panic("storeMock.QueryFunc: method is nil but Store.Query was just called")
	}
	mock.lockQuery.Lock()
	mock.calls.Query = append(mock.calls.Query, struct{ Q docstore.Query }{Q: q})
	mock.lockQuery.Unlock()
	return mock.QueryFunc(ctx, q)
}

func (mock *storeMock) QueryCalls() []struct {
	Q docstore.Query
} {
	mock.lockQuery.RLock()
	defer mock.lockQuery.RUnlock()
	return mock.calls.Query
}

func (mock *storeMock) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	if mock.GetFunc == nil {
		panic("storeMock.GetFunc: method is nil but Store.Get was just called")
	}
	return mock.GetFunc(ctx, collection, id)
}

func (mock *storeMock) Subcollection(ctx context.Context, parent docstore.Ref, name string, order docstore.OrderBy, limit int) ([]docstore.Document, error) {
	if mock.SubcollectionFunc == nil {
		panic("storeMock.SubcollectionFunc: method is nil but Store.Subcollection was just called")
	}
	return mock.SubcollectionFunc(ctx, parent, name, order, limit)
}

func (mock *storeMock) ConditionalUpdate(ctx context.Context, collection, id string, expect docstore.Expect, fields map[string]any) error {
	if mock.ConditionalUpdateFunc == nil {
		panic("storeMock.ConditionalUpdateFunc: method is nil but Store.ConditionalUpdate was just called")
	}
	return mock.ConditionalUpdateFunc(ctx, collection, id, expect, fields)
}

// idSet collects ids reported from concurrent workers.
type idSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func (s *idSet) add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}
	s.ids[id] = struct{}{}
}

func (s *idSet) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *idSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
