package testutil

import (
	"context"
	"errors"
	"reflect"
	"sync"

	"github.com/case-framework/field-survey-backend/pkg/docstore"
	"go.mongodb.org/mongo-driver/bson"
)

// Gateway operations faults can be injected into.
const (
	OP_LIST   = "list"
	OP_COUNT  = "count"
	OP_GET    = "get"
	OP_CREATE = "create"
	OP_UPDATE = "update"
)

var ErrInjected = errors.New("injected store failure")

type fault struct {
	err error
	// afterWrite applies the write to the wrapped store before failing, like a lost acknowledgement.
	afterWrite bool
	// empty makes a list return no documents without an error.
	empty bool
	// before runs ahead of the call, which then passes through.
	before func()
}

// FaultyStore wraps a gateway and replays queued faults per operation. Operations without a
// queued fault pass through. An "always" fault is used once the queue is empty.
//
// Thread-safety: all methods are safe for concurrent use.
type FaultyStore struct {
	docstore.Gateway

	mu     sync.Mutex
	queued map[string][]fault
	always map[string]error
	calls  map[string]int
}

func NewFaultyStore(inner docstore.Gateway) *FaultyStore {
	return &FaultyStore{
		Gateway: inner,
		queued:  map[string][]fault{},
		always:  map[string]error{},
		calls:   map[string]int{},
	}
}

// FailNext makes the next len(errs) calls of op fail with the given errors.
func (s *FaultyStore) FailNext(op string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, err := range errs {
		s.queued[op] = append(s.queued[op], fault{err: err})
	}
}

// FailAlways makes every call of op fail with err. A nil err clears it.
func (s *FaultyStore) FailAlways(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.always, op)
		return
	}
	s.always[op] = err
}

// LoseAckNext performs the next write of op and then reports err.
func (s *FaultyStore) LoseAckNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued[op] = append(s.queued[op], fault{err: err, afterWrite: true})
}

// BeforeNext runs fn ahead of the next call of op, for example to let a competing writer land
// between a read and a conditional write.
func (s *FaultyStore) BeforeNext(op string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued[op] = append(s.queued[op], fault{before: fn})
}

// StaleListNext makes the next n list calls return no documents.
func (s *FaultyStore) StaleListNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.queued[OP_LIST] = append(s.queued[OP_LIST], fault{empty: true})
	}
}

func (s *FaultyStore) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *FaultyStore) next(op string) *fault {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
	if q := s.queued[op]; len(q) > 0 {
		f := q[0]
		s.queued[op] = q[1:]
		if f.before != nil {
			s.mu.Unlock()
			f.before()
			s.mu.Lock()
			return nil
		}
		return &f
	}
	if err, ok := s.always[op]; ok {
		return &fault{err: err}
	}
	return nil
}

func (s *FaultyStore) List(ctx context.Context, collection string, query docstore.Query, out any) error {
	if f := s.next(OP_LIST); f != nil {
		if f.empty {
			rv := reflect.ValueOf(out).Elem()
			rv.Set(reflect.MakeSlice(rv.Type(), 0, 0))
			return nil
		}
		return f.err
	}
	return s.Gateway.List(ctx, collection, query, out)
}

func (s *FaultyStore) Count(ctx context.Context, collection string, filter bson.M) (int64, error) {
	if f := s.next(OP_COUNT); f != nil {
		return 0, f.err
	}
	return s.Gateway.Count(ctx, collection, filter)
}

func (s *FaultyStore) Get(ctx context.Context, collection string, id string, out any) error {
	if f := s.next(OP_GET); f != nil {
		return f.err
	}
	return s.Gateway.Get(ctx, collection, id, out)
}

func (s *FaultyStore) Create(ctx context.Context, collection string, doc any) (string, error) {
	if f := s.next(OP_CREATE); f != nil {
		if !f.afterWrite {
			return "", f.err
		}
		if _, err := s.Gateway.Create(ctx, collection, doc); err != nil {
			return "", err
		}
		return "", f.err
	}
	return s.Gateway.Create(ctx, collection, doc)
}

func (s *FaultyStore) Update(ctx context.Context, collection string, id string, expect bson.M, patch bson.M, out any) error {
	if f := s.next(OP_UPDATE); f != nil {
		if !f.afterWrite {
			return f.err
		}
		if err := s.Gateway.Update(ctx, collection, id, expect, patch, out); err != nil {
			return err
		}
		return f.err
	}
	return s.Gateway.Update(ctx, collection, id, expect, patch, out)
}
