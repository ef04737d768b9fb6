package config

import (
	"os"
	"path/filepath"

	"github.com/Ning0612/fsbridge/internal/domain"
	"github.com/Ning0612/fsbridge/internal/logger"
)

// StartupPath picks the local directory a session starts in.
// localDir wins when it is an openable directory; otherwise the user's
// home directory, and "/" when even that is unknown. The result is never
// empty.
func StartupPath(localDir string, log logger.Logger) string {
	log = logger.OrNop(log)

	if localDir != "" {
		p, err := openDir(localDir)
		if err == nil {
			return p
		}
		log.Error("unable to open dir", "path", localDir, "error", err)
	}

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home
	}
	return "/"
}

// openDir returns the canonical path of dir if it opens as a directory
func openDir(dir string) (string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", &os.PathError{Op: "open", Path: dir, Err: domain.ErrNotDirectory}
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
