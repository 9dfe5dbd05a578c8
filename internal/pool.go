package internal

import "sync"

// SlicePool recycles slices between simulation pulses so the worker does not
// allocate a fresh impact list on every tick at high fire rates.
type SlicePool[T any] struct {
	pool sync.Pool
}

func NewSlicePool[T any](capacity int) *SlicePool[T] {
	return &SlicePool[T]{
		pool: sync.Pool{
			New: func() interface{} {
				s := make([]T, 0, capacity)
				return &s
			},
		},
	}
}

// Get returns an empty slice with whatever capacity a previous Put left behind.
func (p *SlicePool[T]) Get() []T {
	s := p.pool.Get().(*[]T)
	return (*s)[:0]
}

func (p *SlicePool[T]) Put(s []T) {
	p.pool.Put(&s)
}
