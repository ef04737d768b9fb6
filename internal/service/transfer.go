// Package service drives one configured backend against the local
// filesystem: listing, downloads, uploads and the mutate operations.
package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Ning0612/fsbridge/internal/adapter"
	"github.com/Ning0612/fsbridge/internal/checksum"
	"github.com/Ning0612/fsbridge/internal/domain"
	"github.com/Ning0612/fsbridge/internal/history"
	"github.com/Ning0612/fsbridge/internal/item"
	"github.com/Ning0612/fsbridge/internal/job"
	"github.com/Ning0612/fsbridge/internal/lock"
	"github.com/Ning0612/fsbridge/internal/logger"
	"github.com/Ning0612/fsbridge/internal/pathutil"
	"github.com/Ning0612/fsbridge/internal/progress"
)

// Options configures a Transfer
type Options struct {
	// Name of the backend, used in logs, history and the lock file
	Name string

	Ops *adapter.Operations

	// Lock serializes access to the backend across processes (optional)
	Lock *lock.FileLock

	// History records downloads and uploads (optional)
	History *history.Store

	Log       logger.Logger
	Verbosity logger.Verbosity
}

// Transfer orchestrates one backend against the local filesystem
type Transfer struct {
	name      string
	ops       *adapter.Operations
	lock      *lock.FileLock
	history   *history.Store
	log       logger.Logger
	verbosity logger.Verbosity
}

// NewTransfer creates a transfer service for one backend
func NewTransfer(opts Options) (*Transfer, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("backend name cannot be empty")
	}
	if opts.Ops == nil {
		return nil, fmt.Errorf("operations cannot be nil")
	}

	log := logger.OrNop(opts.Log).With("backend", opts.Name, "fs", opts.Ops.FS().String())

	return &Transfer{
		name:      opts.Name,
		ops:       opts.Ops,
		lock:      opts.Lock,
		history:   opts.History,
		log:       log,
		verbosity: opts.Verbosity,
	}, nil
}

// Name returns the backend name
func (t *Transfer) Name() string { return t.name }

// Operations returns the backend operations record
func (t *Transfer) Operations() *adapter.Operations { return t.ops }

// withLock runs fn while holding the backend lock
func (t *Transfer) withLock(operation string, fn func() error) error {
	if t.lock == nil {
		return fn()
	}

	if err := t.lock.Acquire(operation); err != nil {
		t.log.Error("failed to acquire backend lock", "operation", operation, "error", err)
		return err
	}
	defer func() {
		if err := t.lock.Release(); err != nil {
			t.log.Error("failed to release backend lock", "operation", operation, "error", err)
		}
	}()

	return fn()
}

// List returns the entries of path. A non-empty pattern keeps
// directories and the files whose names match it.
func (t *Transfer) List(ctx context.Context, path, pattern string) ([]domain.Item, error) {
	t.log.Debug("listing directory", "path", path, "pattern", pattern)

	it, err := t.ops.ReadDir(ctx, path)
	if err != nil {
		return nil, err
	}

	filtered, err := item.Filter(it, pattern)
	if err != nil {
		it.Close()
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	return item.Collect(filtered)
}

// LocalName returns the local file name for a remote entry: the backend
// extension is appended unless the name already carries it.
func (t *Transfer) LocalName(remoteName string) string {
	ext := t.ops.Extension()
	if ext == "" {
		return remoteName
	}
	if e, ok := pathutil.Ext(remoteName); ok && strings.EqualFold(e, ext) {
		return remoteName
	}
	return remoteName + "." + ext
}

// RemoteName returns the remote name for a local file: the backend
// extension is stripped when the file carries it.
func (t *Transfer) RemoteName(localPath string) string {
	base := filepath.Base(localPath)
	ext := t.ops.Extension()
	if ext == "" {
		return base
	}
	if e, ok := pathutil.Ext(base); ok && strings.EqualFold(e, ext) {
		return pathutil.RemoveExt(base)
	}
	return base
}

// Download copies remotePath into localDir and returns the local path
func (t *Transfer) Download(ctx context.Context, remotePath, localDir string, ctl *job.Control) (string, error) {
	localPath := pathutil.Join(localDir, t.LocalName(pathutil.Base(remotePath)))

	err := t.withLock("download "+remotePath, func() error {
		return t.record(ctx, history.Download, remotePath, localPath, func() (int64, error) {
			data, err := t.ops.Download(ctx, remotePath, ctl)
			if err != nil {
				return 0, err
			}
			t.logPayload("downloaded", remotePath, data)

			if err := t.ops.Save(localPath, data, ctl); err != nil {
				return int64(len(data)), err
			}
			return int64(len(data)), nil
		})
	})
	if err != nil {
		return "", err
	}

	t.log.Info("download complete", "remote", remotePath, "local", localPath)
	return localPath, nil
}

// Upload copies localPath into remoteDir and returns the remote path
func (t *Transfer) Upload(ctx context.Context, localPath, remoteDir string, ctl *job.Control) (string, error) {
	remotePath := pathutil.Join(remoteDir, t.RemoteName(localPath))

	err := t.withLock("upload "+remotePath, func() error {
		return t.record(ctx, history.Upload, remotePath, localPath, func() (int64, error) {
			data, err := t.ops.Load(localPath, ctl)
			if err != nil {
				return 0, err
			}

			if err := t.ops.Upload(ctx, remotePath, data, ctl); err != nil {
				return 0, err
			}
			t.logPayload("uploaded", remotePath, data)
			return int64(len(data)), nil
		})
	})
	if err != nil {
		return "", err
	}

	t.log.Info("upload complete", "local", localPath, "remote", remotePath)
	return remotePath, nil
}

// Fetch returns the content of remotePath without saving it
func (t *Transfer) Fetch(ctx context.Context, remotePath string, ctl *job.Control) ([]byte, error) {
	var data []byte
	err := t.withLock("fetch "+remotePath, func() error {
		var err error
		data, err = t.ops.Download(ctx, remotePath, ctl)
		return err
	})
	if err != nil {
		return nil, err
	}
	t.logPayload("fetched", remotePath, data)
	return data, nil
}

// Checksum returns the digest of remotePath
func (t *Transfer) Checksum(ctx context.Context, remotePath string, algo checksum.Algorithm, ctl *job.Control) (string, error) {
	if !checksum.IsSupported(algo) {
		return "", fmt.Errorf("unsupported checksum algorithm: %s", algo)
	}
	data, err := t.Fetch(ctx, remotePath, ctl)
	if err != nil {
		return "", err
	}
	return checksum.Sum(data, algo)
}

// record wraps a transfer in a history entry. History failures are
// logged and never fail the transfer itself.
func (t *Transfer) record(ctx context.Context, dir history.Direction, remotePath, localPath string, fn func() (int64, error)) error {
	if t.history == nil {
		_, err := fn()
		return err
	}

	id, err := t.history.Record(ctx, t.name, dir, remotePath, localPath)
	if err != nil {
		t.log.Warn("failed to record transfer", "error", err)
		_, err := fn()
		return err
	}

	n, transferErr := fn()
	// Finish must land even when ctx was the reason the transfer stopped
	if err := t.history.Finish(context.WithoutCancel(ctx), id, n, transferErr); err != nil {
		t.log.Warn("failed to finish transfer record", "id", id, "error", err)
	}
	return transferErr
}

func (t *Transfer) logPayload(verb, remotePath string, data []byte) {
	t.log.Info(verb, "path", remotePath, "size", progress.HumanSize(int64(len(data)), true))
	if t.verbosity.Allows(1) {
		t.log.Debug("payload", "path", remotePath, "hex", t.verbosity.Hex(data))
	}
}

// Mkdir creates a directory on the backend
func (t *Transfer) Mkdir(ctx context.Context, path string) error {
	return t.mutate("mkdir", []string{path}, func() error { return t.ops.Mkdir(ctx, path) })
}

// Delete removes path from the backend
func (t *Transfer) Delete(ctx context.Context, path string) error {
	return t.mutate("delete", []string{path}, func() error { return t.ops.Delete(ctx, path) })
}

// Rename gives path a new name in the same directory
func (t *Transfer) Rename(ctx context.Context, path, newName string) error {
	return t.mutate("rename", []string{path, newName}, func() error { return t.ops.Rename(ctx, path, newName) })
}

// Move moves src to dst on the backend
func (t *Transfer) Move(ctx context.Context, src, dst string) error {
	return t.mutate("move", []string{src, dst}, func() error { return t.ops.Move(ctx, src, dst) })
}

// Copy duplicates src at dst on the backend
func (t *Transfer) Copy(ctx context.Context, src, dst string) error {
	return t.mutate("copy", []string{src, dst}, func() error { return t.ops.Copy(ctx, src, dst) })
}

// Clear empties path without removing it
func (t *Transfer) Clear(ctx context.Context, path string) error {
	return t.mutate("clear", []string{path}, func() error { return t.ops.Clear(ctx, path) })
}

// Swap exchanges the contents of src and dst
func (t *Transfer) Swap(ctx context.Context, src, dst string) error {
	return t.mutate("swap", []string{src, dst}, func() error { return t.ops.Swap(ctx, src, dst) })
}

func (t *Transfer) mutate(op string, args []string, fn func() error) error {
	operation := op + " " + strings.Join(args, " ")
	if err := t.withLock(operation, fn); err != nil {
		t.log.Error(op+" failed", "args", args, "error", err)
		return err
	}
	t.log.Info(op, "args", args)
	return nil
}

// Close releases the backend connection
func (t *Transfer) Close() error {
	return t.ops.Close()
}

var _ io.Closer = (*Transfer)(nil)
