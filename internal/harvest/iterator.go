package harvest

import (
	"context"
	"errors"
	"fmt"
)

// Iterator provides lazy, pull-based access to a sequence.
type Iterator[T any] interface {
	// Next advances to the next item. Returns false when done or on error.
	Next() bool

	// Value returns the current item. Only valid after Next returns true.
	Value() T

	// Err returns any error encountered during iteration.
	Err() error

	// Close releases resources. Must be called when done.
	Close() error
}

// ErrRepeatedToken is returned when a source hands back the continuation
// token it was just called with.
var ErrRepeatedToken = errors.New("continuation token repeated")

// Page is one batch of a paged source. An empty Next ends the sequence.
type Page[T any] struct {
	Items []T
	Next  string
}

// PageFunc fetches the page for a continuation token; "" is the first page.
type PageFunc[T any] func(ctx context.Context, token string) (Page[T], error)

// PageIterator walks a paged source. The first page is fetched on the first
// call to Next, and each later page only once the current one is consumed.
type PageIterator[T any] struct {
	ctx   context.Context
	fetch PageFunc[T]

	started bool
	token   string
	items   []T
	idx     int
	current T
	done    bool
	err     error
}

// NewPageIterator creates a paged iterator. No request is made until Next.
func NewPageIterator[T any](ctx context.Context, fetch PageFunc[T]) *PageIterator[T] {
	return &PageIterator[T]{ctx: ctx, fetch: fetch}
}

// Next advances to the next item.
func (it *PageIterator[T]) Next() bool {
	for {
		if it.done || it.err != nil {
			return false
		}
		if it.idx < len(it.items) {
			it.current = it.items[it.idx]
			it.idx++
			return true
		}
		if it.started && it.token == "" {
			it.done = true
			return false
		}
		if err := it.ctx.Err(); err != nil {
			it.err = err
			return false
		}

		page, err := it.fetch(it.ctx, it.token)
		if err != nil {
			it.err = err
			return false
		}
		if it.started && page.Next != "" && page.Next == it.token {
			it.err = fmt.Errorf("%w: %q", ErrRepeatedToken, page.Next)
			return false
		}
		it.started = true
		it.items = page.Items
		it.idx = 0
		it.token = page.Next
	}
}

// Value returns the current item.
func (it *PageIterator[T]) Value() T {
	return it.current
}

// Err returns any error encountered.
func (it *PageIterator[T]) Err() error {
	return it.err
}

// Close stops further page fetches.
func (it *PageIterator[T]) Close() error {
	it.done = true
	it.items = nil
	return nil
}

// SliceIterator iterates over an in-memory slice.
type SliceIterator[T any] struct {
	items   []T
	idx     int
	current T
}

// FromSlice returns an iterator over items.
func FromSlice[T any](items []T) *SliceIterator[T] {
	return &SliceIterator[T]{items: items}
}

func (it *SliceIterator[T]) Next() bool {
	if it.idx >= len(it.items) {
		return false
	}
	it.current = it.items[it.idx]
	it.idx++
	return true
}

func (it *SliceIterator[T]) Value() T   { return it.current }
func (it *SliceIterator[T]) Err() error { return nil }

func (it *SliceIterator[T]) Close() error {
	it.idx = len(it.items)
	return nil
}

// Failed returns an iterator that yields nothing and reports err.
func Failed[T any](err error) Iterator[T] {
	return &failedIterator[T]{err: err}
}

type failedIterator[T any] struct{ err error }

func (it *failedIterator[T]) Next() bool { return false }

func (it *failedIterator[T]) Value() T {
	var zero T
	return zero
}

func (it *failedIterator[T]) Err() error   { return it.err }
func (it *failedIterator[T]) Close() error { return nil }

// Concat chains iterators built lazily by each factory, in order. A factory
// runs only when every earlier iterator is exhausted.
func Concat[T any](factories ...func() Iterator[T]) Iterator[T] {
	return &concatIterator[T]{factories: factories}
}

type concatIterator[T any] struct {
	factories []func() Iterator[T]
	current   Iterator[T]
	err       error
	closed    bool
}

func (it *concatIterator[T]) Next() bool {
	for !it.closed && it.err == nil {
		if it.current == nil {
			if len(it.factories) == 0 {
				return false
			}
			it.current = it.factories[0]()
			it.factories = it.factories[1:]
		}
		if it.current.Next() {
			return true
		}
		it.err = it.current.Err()
		if cerr := it.current.Close(); cerr != nil && it.err == nil {
			it.err = cerr
		}
		it.current = nil
	}
	return false
}

func (it *concatIterator[T]) Value() T {
	if it.current == nil {
		var zero T
		return zero
	}
	return it.current.Value()
}

func (it *concatIterator[T]) Err() error { return it.err }

func (it *concatIterator[T]) Close() error {
	it.closed = true
	if it.current != nil {
		return it.current.Close()
	}
	return nil
}

// Map transforms each item of it with fn. An error from fn stops iteration.
func Map[T, U any](it Iterator[T], fn func(T) (U, error)) Iterator[U] {
	return &mapIterator[T, U]{src: it, fn: fn}
}

type mapIterator[T, U any] struct {
	src     Iterator[T]
	fn      func(T) (U, error)
	current U
	err     error
}

func (it *mapIterator[T, U]) Next() bool {
	if it.err != nil || !it.src.Next() {
		return false
	}
	v, err := it.fn(it.src.Value())
	if err != nil {
		it.err = err
		return false
	}
	it.current = v
	return true
}

func (it *mapIterator[T, U]) Value() U { return it.current }

func (it *mapIterator[T, U]) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.src.Err()
}

func (it *mapIterator[T, U]) Close() error { return it.src.Close() }

// Take collects at most n items. It stops pulling once n items are held, so
// no page beyond the one holding the nth item is fetched. n <= 0 pulls
// nothing.
func Take[T any](it Iterator[T], n int) ([]T, error) {
	if n <= 0 {
		return []T{}, nil
	}
	out := make([]T, 0, n)
	for len(out) < n && it.Next() {
		out = append(out, it.Value())
	}
	return out, it.Err()
}

// Collect drains it.
func Collect[T any](it Iterator[T]) ([]T, error) {
	var out []T
	for it.Next() {
		out = append(out, it.Value())
	}
	return out, it.Err()
}
