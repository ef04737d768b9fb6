package item

import (
	"io"

	"github.com/Ning0612/fsbridge/internal/domain"
)

// sliceSource serves a listing fetched up front
type sliceSource struct {
	items []domain.Item
	pos   int
}

// NewSlice returns a cloneable Source over items.
// The slice is shared between clones and must not be modified.
func NewSlice(items []domain.Item) Source {
	return &sliceSource{items: items}
}

// FromSlice is New(NewSlice(items))
func FromSlice(items []domain.Item) *Iterator {
	return New(NewSlice(items))
}

func (s *sliceSource) Next(it *domain.Item) error {
	if s.pos >= len(s.items) {
		return io.EOF
	}
	*it = s.items[s.pos]
	s.pos++
	return nil
}

func (s *sliceSource) Clone() (Source, error) {
	return &sliceSource{items: s.items, pos: s.pos}, nil
}

// Close drops the listing
func (s *sliceSource) Close() error {
	s.items = nil
	return nil
}
