// Package checksum computes content digests for transfer verification
package checksum

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/Ning0612/fsbridge/internal/domain"
	"github.com/Ning0612/fsbridge/internal/job"
)

// Algorithm represents the hashing algorithm to use
type Algorithm string

const (
	// MD5 is what Google Drive reports as md5Checksum
	MD5 Algorithm = "md5"
	// SHA256 is the default for local digests
	SHA256 Algorithm = "sha256"
)

// BufferSize is the streaming read size
const BufferSize = 32 * 1024

// IsSupported checks if the given algorithm is supported
func IsSupported(algo Algorithm) bool {
	switch algo {
	case MD5, SHA256:
		return true
	default:
		return false
	}
}

func newHash(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case MD5:
		return md5.New(), nil
	case SHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", algo)
	}
}

// Sum returns the hex digest of data
func Sum(data []byte, algo Algorithm) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Calculate streams reader through the hasher and returns the hex digest.
// size is used for progress reporting only and may be zero.
func Calculate(ctx context.Context, reader io.Reader, size int64, algo Algorithm, ctl *job.Control) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}

	buffer := make([]byte, BufferSize)
	var total int64

	for {
		// Check context cancellation
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		if err := ctl.Err(); err != nil {
			return "", err
		}

		n, err := reader.Read(buffer)
		if n > 0 {
			total += int64(n)
			h.Write(buffer[:n])
			if size > 0 {
				ctl.Progress(float64(total) / float64(size))
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read error: %w", err)
		}
	}
	ctl.Progress(1)

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify checks data against an expected hex digest.
// An empty want means the remote did not report one and always passes.
func Verify(data []byte, algo Algorithm, want string) error {
	if want == "" {
		return nil
	}
	got, err := Sum(data, algo)
	if err != nil {
		return err
	}
	if !strings.EqualFold(got, want) {
		return fmt.Errorf("%w: %s %s, want %s", domain.ErrChecksumMismatch, algo, got, want)
	}
	return nil
}
