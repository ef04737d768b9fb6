// Package adapter defines the uniform operations every backend exposes.
//
// A backend implements the core Adapter interface and any subset of the
// capability interfaces below. Consumers never type-assert themselves;
// they go through Operations, which reports missing capabilities as
// domain.ErrUnsupported.
package adapter

import (
	"context"

	"github.com/Ning0612/fsbridge/internal/domain"
	"github.com/Ning0612/fsbridge/internal/item"
	"github.com/Ning0612/fsbridge/internal/job"
)

// FS identifies a backend kind
type FS int

const (
	FSLocal FS = iota
	FSGDrive
	FSSMB
	FSSlots
)

func (f FS) String() string {
	switch f {
	case FSLocal:
		return "local"
	case FSGDrive:
		return "gdrive"
	case FSSMB:
		return "smb"
	case FSSlots:
		return "slots"
	default:
		return "unknown"
	}
}

// Adapter defines the operations every storage backend provides.
// Paths are '/'-separated and rooted at the backend's root ("/").
// Implementations return domain-level errors.
type Adapter interface {
	// FS returns the backend kind
	FS() FS

	// ReadDir opens a listing of path.
	// Returns domain.ErrNotFound if path doesn't exist
	// Returns domain.ErrNotDirectory if path is a file
	ReadDir(ctx context.Context, path string) (*item.Iterator, error)

	// Extension returns the canonical on-disk file extension for items
	// of this backend, without the dot. May be empty.
	Extension() string

	// Close releases any resources held by the adapter
	Close() error
}

// Mkdirer creates directories
type Mkdirer interface {
	Mkdir(ctx context.Context, path string) error
}

// Deleter removes a file or a directory tree
type Deleter interface {
	Delete(ctx context.Context, path string) error
}

// Renamer gives an item a new name within its parent
type Renamer interface {
	Rename(ctx context.Context, path, newName string) error
}

// Mover moves an item to another path
type Mover interface {
	Move(ctx context.Context, src, dst string) error
}

// Copier duplicates an item
type Copier interface {
	Copy(ctx context.Context, src, dst string) error
}

// Clearer empties an item in place (e.g. a device slot)
type Clearer interface {
	Clear(ctx context.Context, path string) error
}

// Swapper exchanges the contents of two items
type Swapper interface {
	Swap(ctx context.Context, src, dst string) error
}

// Downloader fetches the contents of a remote item
type Downloader interface {
	Download(ctx context.Context, path string, ctl *job.Control) ([]byte, error)
}

// Uploader stores data as a remote item
type Uploader interface {
	Upload(ctx context.Context, path string, data []byte, ctl *job.Control) error
}

// IDer renders the identifier a backend addresses an item by
type IDer interface {
	ItemID(it domain.Item) string
}

// LocalLoader overrides how local files are read for upload
type LocalLoader interface {
	Load(path string, ctl *job.Control) ([]byte, error)
}

// LocalSaver overrides how downloaded data is written locally
type LocalSaver interface {
	Save(path string, data []byte, ctl *job.Control) error
}
