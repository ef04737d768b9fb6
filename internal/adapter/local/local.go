package local

import (
	"context"
	"fmt"
	"math"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Ning0612/fsbridge/internal/adapter"
	"github.com/Ning0612/fsbridge/internal/domain"
	"github.com/Ning0612/fsbridge/internal/fileio"
	"github.com/Ning0612/fsbridge/internal/item"
	"github.com/Ning0612/fsbridge/internal/job"
	"github.com/Ning0612/fsbridge/internal/pathutil"
)

// Adapter implements adapter.Adapter for the local filesystem
type Adapter struct {
	root string
	ext  string
}

// Compile-time interface checks
var (
	_ adapter.Adapter    = (*Adapter)(nil)
	_ adapter.Mkdirer    = (*Adapter)(nil)
	_ adapter.Deleter    = (*Adapter)(nil)
	_ adapter.Renamer    = (*Adapter)(nil)
	_ adapter.Mover      = (*Adapter)(nil)
	_ adapter.Copier     = (*Adapter)(nil)
	_ adapter.Downloader = (*Adapter)(nil)
	_ adapter.Uploader   = (*Adapter)(nil)
	_ adapter.IDer       = (*Adapter)(nil)
)

// New creates a new local filesystem adapter.
// root must name an existing directory; "" means the filesystem root.
func New(root, ext string) (*Adapter, error) {
	if root == "" {
		root = "/"
	}

	// Convert to absolute path
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	// Verify root exists and is a directory
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fileio.MapError(err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", absRoot, domain.ErrNotDirectory)
	}

	return &Adapter{root: absRoot, ext: ext}, nil
}

// FS returns adapter.FSLocal
func (a *Adapter) FS() adapter.FS { return adapter.FSLocal }

// Extension returns the configured extension, usually empty
func (a *Adapter) Extension() string { return a.ext }

// Close releases any resources (no-op for local adapter)
func (a *Adapter) Close() error { return nil }

// Root returns the root path of this adapter
func (a *Adapter) Root() string { return a.root }

// resolvePath maps a '/'-rooted backend path onto the host filesystem.
// Paths that escape root are rejected.
func (a *Adapter) resolvePath(p string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	if clean == "/" {
		return a.root, nil
	}

	fullPath := filepath.Join(a.root, filepath.FromSlash(clean[1:]))

	// Use filepath.Rel to safely verify the path is within root
	rel, err := filepath.Rel(a.root, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s escapes root: %w", p, domain.ErrPermissionDenied)
	}

	return fullPath, nil
}

// ReadDir lists directories and regular files under path.
// Symlinks are followed; anything else is skipped.
func (a *Adapter) ReadDir(ctx context.Context, p string) (*item.Iterator, error) {
	fullPath, err := a.resolvePath(p)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, fileio.MapError(err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", p, domain.ErrNotDirectory)
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, fileio.MapError(err)
	}

	items := make([]domain.Item, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(filepath.Join(fullPath, entry.Name()))
		if err != nil {
			continue // Skip dangling links and entries we can't read
		}

		it := domain.Item{Name: entry.Name(), Index: -1}
		switch {
		case info.IsDir():
			it.Type = domain.ItemDir
		case info.Mode().IsRegular():
			it.Type = domain.ItemFile
			it.Size = clampSize(info.Size())
		default:
			continue
		}
		items = append(items, it)
	}

	return item.FromSlice(items), nil
}

// Mkdir creates a directory and any necessary parents
func (a *Adapter) Mkdir(ctx context.Context, p string) error {
	fullPath, err := a.resolvePath(p)
	if err != nil {
		return err
	}
	return fileio.MapError(os.MkdirAll(fullPath, 0755))
}

// Delete removes a file or a whole directory tree
func (a *Adapter) Delete(ctx context.Context, p string) error {
	fullPath, err := a.resolvePath(p)
	if err != nil {
		return err
	}
	if fullPath == a.root {
		return fmt.Errorf("refusing to delete root: %w", domain.ErrPermissionDenied)
	}

	if _, err := os.Lstat(fullPath); err != nil {
		return fileio.MapError(err)
	}
	return fileio.MapError(os.RemoveAll(fullPath))
}

// Rename gives the item at p a new name in the same directory
func (a *Adapter) Rename(ctx context.Context, p, newName string) error {
	if err := checkName(newName); err != nil {
		return err
	}
	return a.Move(ctx, p, pathutil.Join(pathutil.Dir(p), newName))
}

// Move moves src to dst. An existing dst is not replaced.
func (a *Adapter) Move(ctx context.Context, src, dst string) error {
	srcPath, err := a.resolvePath(src)
	if err != nil {
		return err
	}
	dstPath, err := a.resolvePath(dst)
	if err != nil {
		return err
	}

	if _, err := os.Lstat(srcPath); err != nil {
		return fileio.MapError(err)
	}
	if _, err := os.Lstat(dstPath); err == nil {
		return fmt.Errorf("%s: %w", dst, domain.ErrAlreadyExists)
	}

	return fileio.MapError(os.Rename(srcPath, dstPath))
}

// Copy copies the file src to dst
func (a *Adapter) Copy(ctx context.Context, src, dst string) error {
	srcPath, err := a.resolvePath(src)
	if err != nil {
		return err
	}
	dstPath, err := a.resolvePath(dst)
	if err != nil {
		return err
	}

	data, err := fileio.Load(srcPath, nil)
	if err != nil {
		return err
	}
	return fileio.Save(dstPath, data, nil)
}

// Download reads the file at p
func (a *Adapter) Download(ctx context.Context, p string, ctl *job.Control) ([]byte, error) {
	fullPath, err := a.resolvePath(p)
	if err != nil {
		return nil, err
	}
	return fileio.Load(fullPath, ctl)
}

// Upload writes data to p
func (a *Adapter) Upload(ctx context.Context, p string, data []byte, ctl *job.Control) error {
	fullPath, err := a.resolvePath(p)
	if err != nil {
		return err
	}
	return fileio.Save(fullPath, data, ctl)
}

// ItemID addresses local items by name
func (a *Adapter) ItemID(it domain.Item) string {
	return it.Name
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%q: %w", name, domain.ErrInvalidName)
	}
	return nil
}

func clampSize(n int64) uint32 {
	if n > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(n)
}
