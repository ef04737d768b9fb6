// Package testutil holds filesystem fixtures shared by tests
package testutil

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// CreateTestFile creates a test file with the given content
func CreateTestFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create parent dir: %v", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	return path
}

// CreateTestFileWithSize creates a test file with random content of the given size
// and returns its path and content
func CreateTestFileWithSize(t *testing.T, dir, name string, size int) (string, []byte) {
	t.Helper()

	content := RandomBytes(size)
	return CreateTestFile(t, dir, name, content), content
}

// CreateTree creates files and directories under root.
// Keys ending in "/" are directories; other keys are files with the value as content.
func CreateTree(t *testing.T, root string, entries map[string]string) {
	t.Helper()

	for name, content := range entries {
		path := filepath.Join(root, filepath.FromSlash(name))
		if strings.HasSuffix(name, "/") {
			if err := os.MkdirAll(path, 0755); err != nil {
				t.Fatalf("failed to create dir %s: %v", name, err)
			}
			continue
		}
		CreateTestFile(t, root, filepath.FromSlash(name), []byte(content))
	}
}

// RandomBytes returns n pseudo-random bytes
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	rand.Read(b)
	return b
}
