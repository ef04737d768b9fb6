// Package item implements the single-pass cursor every backend hands out
// for directory listings.
//
// A backend only writes a Source. Iterator wraps it and owns the
// current item, exhaustion and error state, so every backend gets the
// same guarantees: Next keeps returning false once it has, and a failed
// advance never leaves a half-updated item behind.
package item

import (
	"errors"
	"fmt"
	"io"

	"github.com/Ning0612/fsbridge/internal/domain"
)

// Source produces the items of one listing.
//
// Next fills it with the next entry and returns nil, or returns io.EOF at
// the end of the listing. Any other error stops the iteration. A Source
// may also implement io.Closer to release its state and Cloner to
// support Iterator.Copy.
type Source interface {
	Next(it *domain.Item) error
}

// Cloner is implemented by sources that can be duplicated cheaply.
// The clone must yield the same remaining entries as the original.
type Cloner interface {
	Clone() (Source, error)
}

// Iterator is a single-pass cursor over a Source.
// It is not safe for concurrent use; Copy it to traverse in parallel.
type Iterator struct {
	src     Source
	current domain.Item
	valid   bool
	done    bool
	closed  bool
	err     error
}

// New wraps src in an Iterator
func New(src Source) *Iterator {
	return &Iterator{src: src}
}

// Next advances to the next item and reports whether there is one
func (it *Iterator) Next() bool {
	it.valid = false
	if it.done || it.closed {
		return false
	}

	var next domain.Item
	if err := it.src.Next(&next); err != nil {
		it.done = true
		if !errors.Is(err, io.EOF) {
			it.err = err
		}
		return false
	}

	it.current = next
	it.valid = true
	return true
}

// Item returns the current item. It is the zero Item unless the last
// call to Next returned true.
func (it *Iterator) Item() domain.Item {
	if !it.valid {
		return domain.Item{}
	}
	return it.current
}

// Err returns the error that ended the iteration, nil at a clean end
func (it *Iterator) Err() error {
	return it.err
}

// Close releases the source. It is safe to call more than once.
func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.valid = false
	if c, ok := it.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Copy returns an independent iterator at the same position.
// The current item is carried over. Sources that are not Cloners
// fail with domain.ErrUnsupported.
func (it *Iterator) Copy() (*Iterator, error) {
	if it.closed {
		return nil, fmt.Errorf("copy of closed iterator: %w", domain.ErrUnsupported)
	}
	cloner, ok := it.src.(Cloner)
	if !ok {
		return nil, fmt.Errorf("iterator copy: %w", domain.ErrUnsupported)
	}
	src, err := cloner.Clone()
	if err != nil {
		return nil, err
	}

	return &Iterator{
		src:     src,
		current: it.current,
		valid:   it.valid,
		done:    it.done,
		err:     it.err,
	}, nil
}

// Collect drains it into a slice and closes it
func Collect(it *Iterator) ([]domain.Item, error) {
	defer it.Close()

	var items []domain.Item
	for it.Next() {
		items = append(items, it.Item())
	}
	return items, it.Err()
}
