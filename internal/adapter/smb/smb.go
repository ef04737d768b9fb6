// Package smb implements a backend on an SMB2/3 share
package smb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/hirochachacha/go-smb2"

	"github.com/Ning0612/fsbridge/internal/adapter"
	"github.com/Ning0612/fsbridge/internal/domain"
	"github.com/Ning0612/fsbridge/internal/fileio"
	"github.com/Ning0612/fsbridge/internal/item"
	"github.com/Ning0612/fsbridge/internal/job"
	"github.com/Ning0612/fsbridge/internal/logger"
	"github.com/Ning0612/fsbridge/internal/pathutil"
	"github.com/Ning0612/fsbridge/internal/progress"
	"github.com/Ning0612/fsbridge/internal/transient"
)

const (
	// DefaultPort is the SMB port used when the host names none
	DefaultPort = "445"
	// DialTimeout bounds the TCP connect
	DialTimeout = 5 * time.Second
)

// Adapter implements adapter.Adapter for an SMB share
type Adapter struct {
	log  logger.Logger
	root string // directory inside the share, no leading or trailing '/'
	ext  string

	// mu serializes requests on the single session
	mu      sync.Mutex
	conn    net.Conn
	session *smb2.Session
	share   *smb2.Share
}

// Compile-time interface checks
var (
	_ adapter.Adapter    = (*Adapter)(nil)
	_ adapter.Mkdirer    = (*Adapter)(nil)
	_ adapter.Deleter    = (*Adapter)(nil)
	_ adapter.Renamer    = (*Adapter)(nil)
	_ adapter.Mover      = (*Adapter)(nil)
	_ adapter.Downloader = (*Adapter)(nil)
	_ adapter.Uploader   = (*Adapter)(nil)
	_ adapter.IDer       = (*Adapter)(nil)
)

// New connects to t.Host and mounts t.Share.
// An empty password in t is looked up in store, which may be nil.
func New(ctx context.Context, t domain.Transport, store Store, log logger.Logger) (*Adapter, error) {
	if t.Host == "" || t.Share == "" {
		return nil, fmt.Errorf("smb transport %s requires host and share: %w", t.Name, domain.ErrConfigInvalid)
	}
	log = logger.OrNop(log).With("backend", "smb", "host", t.Host, "share", t.Share)

	creds, err := resolveCredentials(t, store)
	if err != nil {
		// A broken keyring should not block shares that need no password
		log.Warn("credential lookup failed", "error", err)
	}

	a := &Adapter{
		log:  log,
		root: strings.Trim(normalizeSlashes(t.Root), "/"),
		ext:  strings.TrimPrefix(t.Extension, "."),
	}

	err = transient.Do(ctx, log, "dial", transient.IsNetwork, func() error {
		return a.connect(ctx, hostPort(t.Host), t.Share, creds)
	})
	if err != nil {
		return nil, mapError(err)
	}
	log.Debug("share mounted", "user", creds.Username)

	return a, nil
}

func (a *Adapter) connect(ctx context.Context, addr, shareName string, creds Credentials) error {
	dialer := net.Dialer{Timeout: DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	d := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     creds.Username,
			Password: creds.Password,
			Domain:   creds.Domain,
		},
	}
	session, err := d.DialContext(ctx, conn)
	if err != nil {
		conn.Close()
		return err
	}

	share, err := session.Mount(shareName)
	if err != nil {
		session.Logoff()
		conn.Close()
		return err
	}

	a.conn, a.session, a.share = conn, session, share
	return nil
}

// hostPort appends the SMB port unless host carries one
func hostPort(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(strings.Trim(host, "[]"), DefaultPort)
}

func normalizeSlashes(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// FS returns adapter.FSSMB
func (a *Adapter) FS() adapter.FS { return adapter.FSSMB }

// Extension returns the configured extension
func (a *Adapter) Extension() string { return a.ext }

// ItemID addresses share items by name
func (a *Adapter) ItemID(it domain.Item) string { return it.Name }

// Close unmounts the share and logs off
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.share == nil {
		return nil
	}
	var errs []error
	errs = append(errs, a.share.Umount())
	errs = append(errs, a.session.Logoff())
	errs = append(errs, a.conn.Close())
	a.share, a.session, a.conn = nil, nil, nil
	return errors.Join(errs...)
}

// sharePath maps a '/'-rooted backend path to a share-relative path.
// The share root is ".", which go-smb2 accepts where "" is not.
func (a *Adapter) sharePath(p string) (string, error) {
	p = normalizeSlashes(p)
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return "", fmt.Errorf("%s escapes root: %w", p, domain.ErrPermissionDenied)
		}
	}

	clean := strings.TrimPrefix(path.Clean("/"+p), "/")
	full := clean
	if a.root != "" {
		full = strings.TrimSuffix(a.root+"/"+clean, "/")
	}
	if full == "" {
		return ".", nil
	}
	return full, nil
}

// fs returns the mounted share bound to ctx
func (a *Adapter) fs(ctx context.Context) (*smb2.Share, error) {
	if a.share == nil {
		return nil, fmt.Errorf("share not mounted: %w", domain.ErrNetworkError)
	}
	return a.share.WithContext(ctx), nil
}

// ReadDir lists the directory at p
func (a *Adapter) ReadDir(ctx context.Context, p string) (*item.Iterator, error) {
	sp, err := a.sharePath(p)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	fs, err := a.fs(ctx)
	if err != nil {
		return nil, err
	}

	info, err := fs.Stat(sp)
	if err != nil {
		return nil, mapError(err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", p, domain.ErrNotDirectory)
	}

	infos, err := fs.ReadDir(sp)
	if err != nil {
		return nil, mapError(err)
	}

	items := make([]domain.Item, 0, len(infos))
	for _, fi := range infos {
		if name := fi.Name(); name == "." || name == ".." {
			continue
		}
		items = append(items, itemFromInfo(fi))
	}
	return item.FromSlice(items), nil
}

func itemFromInfo(fi os.FileInfo) domain.Item {
	it := domain.Item{Name: fi.Name(), Index: -1, Type: domain.ItemFile}
	if fi.IsDir() {
		it.Type = domain.ItemDir
		return it
	}
	if size := fi.Size(); size > math.MaxUint32 {
		it.Size = math.MaxUint32
	} else if size > 0 {
		it.Size = uint32(size)
	}
	return it
}

// Mkdir creates a directory and any necessary parents
func (a *Adapter) Mkdir(ctx context.Context, p string) error {
	sp, err := a.sharePath(p)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	fs, err := a.fs(ctx)
	if err != nil {
		return err
	}
	return mapError(fs.MkdirAll(sp, 0755))
}

// Delete removes a file or a directory tree
func (a *Adapter) Delete(ctx context.Context, p string) error {
	sp, err := a.sharePath(p)
	if err != nil {
		return err
	}
	if sp == "." || sp == a.root {
		return fmt.Errorf("refusing to delete root: %w", domain.ErrPermissionDenied)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	fs, err := a.fs(ctx)
	if err != nil {
		return err
	}
	if _, err := fs.Stat(sp); err != nil {
		return mapError(err)
	}
	return mapError(fs.RemoveAll(sp))
}

// Rename gives the item at p a new name in its directory
func (a *Adapter) Rename(ctx context.Context, p, newName string) error {
	if newName == "" || newName == "." || newName == ".." || strings.ContainsAny(newName, "/\\") {
		return fmt.Errorf("%q: %w", newName, domain.ErrInvalidName)
	}
	return a.Move(ctx, p, pathutil.Join(pathutil.Dir(normalizeSlashes(p)), newName))
}

// Move moves src to dst. An existing dst is not replaced.
func (a *Adapter) Move(ctx context.Context, src, dst string) error {
	srcPath, err := a.sharePath(src)
	if err != nil {
		return err
	}
	dstPath, err := a.sharePath(dst)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	fs, err := a.fs(ctx)
	if err != nil {
		return err
	}

	if _, err := fs.Stat(srcPath); err != nil {
		return mapError(err)
	}
	if _, err := fs.Stat(dstPath); err == nil {
		return fmt.Errorf("%s: %w", dst, domain.ErrAlreadyExists)
	}
	return mapError(fs.Rename(srcPath, dstPath))
}

// Download reads the file at p
func (a *Adapter) Download(ctx context.Context, p string, ctl *job.Control) ([]byte, error) {
	sp, err := a.sharePath(p)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	fs, err := a.fs(ctx)
	if err != nil {
		return nil, err
	}

	f, err := fs.Open(sp)
	if err != nil {
		return nil, mapError(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, mapError(err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s: %w", p, domain.ErrNotFile)
	}

	size := info.Size()
	var buf bytes.Buffer
	buf.Grow(int(size))
	if _, err := io.Copy(&buf, progress.NewReader(f, size, ctl)); err != nil {
		return nil, mapError(err)
	}
	if int64(buf.Len()) != size {
		return nil, fmt.Errorf("%w: read %d of %d bytes from %s", domain.ErrShortTransfer, buf.Len(), size, p)
	}
	if size == 0 {
		ctl.Progress(1)
	}
	return buf.Bytes(), nil
}

// Upload writes data to p through a temporary sibling renamed into place
func (a *Adapter) Upload(ctx context.Context, p string, data []byte, ctl *job.Control) error {
	sp, err := a.sharePath(p)
	if err != nil {
		return err
	}
	if sp == "." {
		return fmt.Errorf("%s: %w", p, domain.ErrNotFile)
	}
	tmp := "." + pathutil.Base(sp) + ".fsbridge.tmp"
	if dir := pathutil.Dir(sp); dir != "." {
		tmp = pathutil.Join(dir, tmp)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	fs, err := a.fs(ctx)
	if err != nil {
		return err
	}

	if info, err := fs.Stat(sp); err == nil && info.IsDir() {
		return fmt.Errorf("%s: %w", p, domain.ErrNotFile)
	}

	f, err := fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return mapError(err)
	}
	if err := writeFile(f, data, ctl); err != nil {
		fs.Remove(tmp)
		return err
	}

	return replaceFile(fs, tmp, sp)
}

// writeFile streams data into f in chunks, so ctl sees progress and can
// cancel while bytes are on the wire, then closes f
func writeFile(f io.WriteCloser, data []byte, ctl *job.Control) error {
	writeErr := fileio.WriteChunks(f, data, ctl)
	closeErr := f.Close()
	if writeErr != nil {
		return mapError(writeErr)
	}
	return mapError(closeErr)
}

// shareOps is the part of *smb2.Share that replaceFile needs
type shareOps interface {
	Stat(name string) (os.FileInfo, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
}

// replaceFile moves tmp onto dst. SMB rename does not replace an existing
// target, so dst is set aside first and put back if the rename fails.
func replaceFile(fs shareOps, tmp, dst string) error {
	backup := tmp + ".old"

	_, err := fs.Stat(dst)
	exists := err == nil
	if err != nil && !errors.Is(mapError(err), domain.ErrNotFound) {
		fs.Remove(tmp)
		return mapError(err)
	}

	if exists {
		fs.Remove(backup)
		if err := fs.Rename(dst, backup); err != nil {
			fs.Remove(tmp)
			return mapError(err)
		}
	}

	if err := fs.Rename(tmp, dst); err != nil {
		if exists {
			if restoreErr := fs.Rename(backup, dst); restoreErr != nil {
				return fmt.Errorf("%w (previous content left at %s: %v)", mapError(err), backup, restoreErr)
			}
		}
		fs.Remove(tmp)
		return mapError(err)
	}

	if exists {
		fs.Remove(backup)
	}
	return nil
}

// mapError converts SMB and network errors to domain errors.
// The original error stays in the chain.
func mapError(err error) error {
	if err == nil || transient.IsCanceled(err) {
		return err
	}

	mapped := fileio.MapError(err)
	for _, sentinel := range []error{domain.ErrNotFound, domain.ErrPermissionDenied, domain.ErrAlreadyExists, domain.ErrNotDirectory} {
		if errors.Is(mapped, sentinel) {
			return mapped
		}
	}

	msg := strings.ToUpper(err.Error())
	switch {
	case strings.Contains(msg, "STATUS_OBJECT_NAME_NOT_FOUND"),
		strings.Contains(msg, "STATUS_OBJECT_PATH_NOT_FOUND"),
		strings.Contains(msg, "STATUS_BAD_NETWORK_NAME"):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case strings.Contains(msg, "STATUS_OBJECT_NAME_COLLISION"):
		return fmt.Errorf("%w: %w", domain.ErrAlreadyExists, err)
	case strings.Contains(msg, "STATUS_NOT_A_DIRECTORY"):
		return fmt.Errorf("%w: %w", domain.ErrNotDirectory, err)
	case strings.Contains(msg, "STATUS_FILE_IS_A_DIRECTORY"):
		return fmt.Errorf("%w: %w", domain.ErrNotFile, err)
	case isAuthError(msg):
		return fmt.Errorf("%w: %w", domain.ErrPermissionDenied, err)
	case transient.IsNetwork(err):
		return fmt.Errorf("%w: %w", domain.ErrNetworkError, err)
	}
	return err
}

func isAuthError(upper string) bool {
	return strings.Contains(upper, "STATUS_ACCESS_DENIED") ||
		strings.Contains(upper, "STATUS_LOGON_FAILURE") ||
		strings.Contains(upper, "LOGON IS INVALID") ||
		strings.Contains(upper, "BAD USERNAME") ||
		strings.Contains(upper, "ACCESS IS DENIED")
}
