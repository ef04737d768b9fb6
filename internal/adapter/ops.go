package adapter

import (
	"context"
	"fmt"

	"github.com/Ning0612/fsbridge/internal/domain"
	"github.com/Ning0612/fsbridge/internal/fileio"
	"github.com/Ning0612/fsbridge/internal/item"
	"github.com/Ning0612/fsbridge/internal/job"
)

// Op names one slot of Operations
type Op int

const (
	OpReadDir Op = iota
	OpMkdir
	OpDelete
	OpRename
	OpMove
	OpCopy
	OpClear
	OpSwap
	OpDownload
	OpUpload
	OpGetID
	OpLoad
	OpSave
)

var opNames = [...]string{
	OpReadDir:  "readdir",
	OpMkdir:    "mkdir",
	OpDelete:   "delete",
	OpRename:   "rename",
	OpMove:     "move",
	OpCopy:     "copy",
	OpClear:    "clear",
	OpSwap:     "swap",
	OpDownload: "download",
	OpUpload:   "upload",
	OpGetID:    "getid",
	OpLoad:     "load",
	OpSave:     "save",
}

func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return fmt.Sprintf("op(%d)", int(o))
	}
	return opNames[o]
}

// AllOps lists every slot in declaration order
func AllOps() []Op {
	ops := make([]Op, len(opNames))
	for i := range ops {
		ops[i] = Op(i)
	}
	return ops
}

// Operations exposes every filesystem slot of one backend.
// It is immutable after construction and safe to share between goroutines
// as long as the wrapped adapter is.
type Operations struct {
	a Adapter
}

// NewOperations wraps a
func NewOperations(a Adapter) *Operations {
	return &Operations{a: a}
}

// Adapter returns the wrapped backend
func (o *Operations) Adapter() Adapter { return o.a }

// FS returns the backend kind
func (o *Operations) FS() FS { return o.a.FS() }

// Extension returns the backend's canonical file extension
func (o *Operations) Extension() string { return o.a.Extension() }

// Close closes the backend
func (o *Operations) Close() error { return o.a.Close() }

// Supports reports whether invoking op can succeed on this backend.
// getid, load and save are always available through their fallbacks.
func (o *Operations) Supports(op Op) bool {
	var ok bool
	switch op {
	case OpReadDir, OpGetID, OpLoad, OpSave:
		ok = true
	case OpMkdir:
		_, ok = o.a.(Mkdirer)
	case OpDelete:
		_, ok = o.a.(Deleter)
	case OpRename:
		_, ok = o.a.(Renamer)
	case OpMove:
		_, ok = o.a.(Mover)
	case OpCopy:
		_, ok = o.a.(Copier)
	case OpClear:
		_, ok = o.a.(Clearer)
	case OpSwap:
		_, ok = o.a.(Swapper)
	case OpDownload:
		_, ok = o.a.(Downloader)
	case OpUpload:
		_, ok = o.a.(Uploader)
	}
	return ok
}

// Supported lists the slots Supports reports true for
func (o *Operations) Supported() []Op {
	var ops []Op
	for _, op := range AllOps() {
		if o.Supports(op) {
			ops = append(ops, op)
		}
	}
	return ops
}

func (o *Operations) unsupported(op Op) error {
	return fmt.Errorf("%s on %s: %w", op, o.a.FS(), domain.ErrUnsupported)
}

// ReadDir opens a listing of path
func (o *Operations) ReadDir(ctx context.Context, path string) (*item.Iterator, error) {
	return o.a.ReadDir(ctx, path)
}

// Mkdir creates a directory
func (o *Operations) Mkdir(ctx context.Context, path string) error {
	m, ok := o.a.(Mkdirer)
	if !ok {
		return o.unsupported(OpMkdir)
	}
	return m.Mkdir(ctx, path)
}

// Delete removes a file or directory
func (o *Operations) Delete(ctx context.Context, path string) error {
	d, ok := o.a.(Deleter)
	if !ok {
		return o.unsupported(OpDelete)
	}
	return d.Delete(ctx, path)
}

// Rename renames the item at path to newName within its parent
func (o *Operations) Rename(ctx context.Context, path, newName string) error {
	r, ok := o.a.(Renamer)
	if !ok {
		return o.unsupported(OpRename)
	}
	return r.Rename(ctx, path, newName)
}

// Move moves src to dst
func (o *Operations) Move(ctx context.Context, src, dst string) error {
	m, ok := o.a.(Mover)
	if !ok {
		return o.unsupported(OpMove)
	}
	return m.Move(ctx, src, dst)
}

// Copy copies src to dst
func (o *Operations) Copy(ctx context.Context, src, dst string) error {
	c, ok := o.a.(Copier)
	if !ok {
		return o.unsupported(OpCopy)
	}
	return c.Copy(ctx, src, dst)
}

// Clear empties the item at path
func (o *Operations) Clear(ctx context.Context, path string) error {
	c, ok := o.a.(Clearer)
	if !ok {
		return o.unsupported(OpClear)
	}
	return c.Clear(ctx, path)
}

// Swap exchanges src and dst
func (o *Operations) Swap(ctx context.Context, src, dst string) error {
	s, ok := o.a.(Swapper)
	if !ok {
		return o.unsupported(OpSwap)
	}
	return s.Swap(ctx, src, dst)
}

// Download fetches the item at path
func (o *Operations) Download(ctx context.Context, path string, ctl *job.Control) ([]byte, error) {
	d, ok := o.a.(Downloader)
	if !ok {
		return nil, o.unsupported(OpDownload)
	}
	return d.Download(ctx, path, ctl)
}

// Upload stores data at path
func (o *Operations) Upload(ctx context.Context, path string, data []byte, ctl *job.Control) error {
	u, ok := o.a.(Uploader)
	if !ok {
		return o.unsupported(OpUpload)
	}
	return u.Upload(ctx, path, data, ctl)
}

// GetID renders the identifier the backend addresses it by
func (o *Operations) GetID(it domain.Item) string {
	if i, ok := o.a.(IDer); ok {
		return i.ItemID(it)
	}
	return it.ID()
}

// Load reads a local file for upload
func (o *Operations) Load(path string, ctl *job.Control) ([]byte, error) {
	if l, ok := o.a.(LocalLoader); ok {
		return l.Load(path, ctl)
	}
	return fileio.Load(path, ctl)
}

// Save writes downloaded data to a local file
func (o *Operations) Save(path string, data []byte, ctl *job.Control) error {
	if s, ok := o.a.(LocalSaver); ok {
		return s.Save(path, data, ctl)
	}
	return fileio.Save(path, data, ctl)
}
