package item

import (
	"fmt"
	"io"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Ning0612/fsbridge/internal/domain"
)

// filterSource passes through items whose name matches a glob.
// Directories always pass so a browser can still descend.
type filterSource struct {
	inner   *Iterator
	pattern string
}

// Filter returns an iterator over the items of it whose names match
// pattern (doublestar syntax). It takes ownership of it.
func Filter(it *Iterator, pattern string) (*Iterator, error) {
	if pattern == "" {
		return it, nil
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	return New(&filterSource{inner: it, pattern: pattern}), nil
}

func (f *filterSource) Next(out *domain.Item) error {
	for f.inner.Next() {
		cur := f.inner.Item()
		if cur.IsDir() {
			*out = cur
			return nil
		}
		ok, err := doublestar.Match(f.pattern, cur.Name)
		if err != nil {
			return err
		}
		if ok {
			*out = cur
			return nil
		}
	}
	if err := f.inner.Err(); err != nil {
		return err
	}
	return io.EOF
}

func (f *filterSource) Clone() (Source, error) {
	inner, err := f.inner.Copy()
	if err != nil {
		return nil, err
	}
	return &filterSource{inner: inner, pattern: f.pattern}, nil
}

func (f *filterSource) Close() error {
	return f.inner.Close()
}
