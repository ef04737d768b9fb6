// Package fileio loads and saves whole files as byte slices.
//
// Both directions move data in ChunkSize pieces so a job.Control can
// follow progress and cancel between chunks. Save writes to a temporary
// sibling and renames it into place: readers see the old file or the
// new one, never a partial write.
package fileio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/Ning0612/fsbridge/internal/domain"
	"github.com/Ning0612/fsbridge/internal/job"
)

// ChunkSize is the transfer unit between progress checks
const ChunkSize = 64 * 1024

// Load reads the whole file at path
func Load(path string, ctl *job.Control) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, MapError(err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, MapError(err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s: %w", path, domain.ErrNotFile)
	}

	size := info.Size()
	data := make([]byte, size)

	var read int64
	for read < size {
		if err := ctl.Err(); err != nil {
			return nil, err
		}
		end := read + ChunkSize
		if end > size {
			end = size
		}
		n, err := io.ReadFull(file, data[read:end])
		read += int64(n)
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: read %d of %d bytes from %s", domain.ErrShortTransfer, read, size, path)
			}
			return nil, MapError(err)
		}
		ctl.Progress(float64(read) / float64(size))
	}
	if size == 0 {
		ctl.Progress(1)
	}

	return data, nil
}

// Save writes data to path, replacing any existing file
func Save(path string, data []byte, ctl *job.Control) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tempPath := filepath.Join(dir, "."+base+"."+uuid.NewString()+".tmp")

	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return MapError(err)
	}

	writeErr := WriteChunks(file, data, ctl)
	closeErr := file.Close()

	if writeErr != nil {
		os.Remove(tempPath)
		return writeErr
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return MapError(closeErr)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return MapError(err)
	}

	return nil
}

// WriteChunks writes data to w in ChunkSize pieces, reporting progress
// after each piece and stopping with domain.ErrCanceled between pieces
func WriteChunks(w io.Writer, data []byte, ctl *job.Control) error {
	total := int64(len(data))
	var written int64
	for written < total {
		if err := ctl.Err(); err != nil {
			return err
		}
		end := written + ChunkSize
		if end > total {
			end = total
		}
		start := written
		n, err := w.Write(data[start:end])
		written += int64(n)
		if errors.Is(err, io.ErrShortWrite) || (err == nil && int64(n) < end-start) {
			return fmt.Errorf("%w: wrote %d of %d bytes", domain.ErrShortTransfer, written, total)
		}
		if err != nil {
			return MapError(err)
		}
		ctl.Progress(float64(written) / float64(total))
	}
	if total == 0 {
		ctl.Progress(1)
	}
	return nil
}

// MapError converts OS errors to domain errors.
// The original error stays in the chain, so errors.Is works against
// both the domain sentinel and fs.ErrNotExist and friends.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case os.IsPermission(err):
		return fmt.Errorf("%w: %w", domain.ErrPermissionDenied, err)
	case os.IsExist(err):
		return fmt.Errorf("%w: %w", domain.ErrAlreadyExists, err)
	}

	if errors.Is(err, syscall.ENOTDIR) {
		return fmt.Errorf("%w: %w", domain.ErrNotDirectory, err)
	}

	return err
}
