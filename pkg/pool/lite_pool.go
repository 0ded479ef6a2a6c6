package pool

// Pool is a strongly typed wrapper around sync.Pool with optional Reset()
// support. Objects returned from Get() are guaranteed to be the correct type.
// If the pooled type implements the Resettable interface it is zeroed before
// being returned to the pool via Put().
//
// Example:
//   type streamBuffer struct { ... }
//   func (b *streamBuffer) Reset() { ... }
//
//   p, err := NewLitePool(func() *streamBuffer {
//     return &streamBuffer{}
//   })
//   buf := p.Get()
//   ...
//   p.Put(buf)

import (
	"fmt"
	"reflect"
	"sync"
)

type Resettable interface {
	Reset()
}

type Pool[T any] struct {
	pool sync.Pool
	new  func() T
}

func NewLitePool[T any](newFn func() T) (*Pool[T], error) {
	if newFn == nil {
		return nil, fmt.Errorf("litepool: constructor must not be nil")
	}
	test := newFn()
	rv := reflect.ValueOf(any(test))
	if !rv.IsValid() {
		return nil, fmt.Errorf("litepool: constructor returned nil")
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		if rv.IsNil() {
			return nil, fmt.Errorf("litepool: constructor returned nil")
		}
	}

	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				v := newFn()
				if any(v) == nil {
					panic("litepool: constructor returned nil during runtime")
				}
				return v
			},
		},
		new: newFn,
	}, nil
}

func (p *Pool[T]) Get() T {
	//nolint:forcetypeassert // safe due to validated New
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(v T) {
	if r, ok := any(v).(Resettable); ok {
		r.Reset()
	}
	p.pool.Put(v)
}
