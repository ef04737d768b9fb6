package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Ning0612/fsbridge/internal/logger"
)

func newBufferLogger(buf *bytes.Buffer) logger.Logger {
	return logger.NewConsoleLogger(logger.Config{
		Level:   logger.LevelDebug,
		Outputs: []logger.OutputConfig{{Type: logger.OutputStderr, Writer: buf}},
	})
}

func TestStartupPath_Directory(t *testing.T) {
	dir := t.TempDir()
	want, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}

	if got := StartupPath(dir, nil); got != want {
		t.Errorf("StartupPath(%q) = %q, want %q", dir, got, want)
	}
}

func TestStartupPath_Relative(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	got := StartupPath("sub", nil)
	if !filepath.IsAbs(got) || filepath.Base(got) != "sub" {
		t.Errorf("expected canonical absolute path, got %q", got)
	}
}

func TestStartupPath_FallsBackToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	missing := filepath.Join(t.TempDir(), "missing")
	if got := StartupPath(missing, log); got != home {
		t.Errorf("StartupPath = %q, want home %q", got, home)
	}
	if !strings.Contains(buf.String(), "unable to open dir") {
		t.Errorf("expected diagnostic, got %q", buf.String())
	}
}

func TestStartupPath_FileIsNotADirectory(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	file := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if got := StartupPath(file, newBufferLogger(&buf)); got != home {
		t.Errorf("StartupPath = %q, want home %q", got, home)
	}
	if !strings.Contains(buf.String(), "unable to open dir") {
		t.Errorf("expected diagnostic, got %q", buf.String())
	}
}

func TestStartupPath_EmptyUsesHomeSilently(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	var buf bytes.Buffer
	if got := StartupPath("", newBufferLogger(&buf)); got != home {
		t.Errorf("StartupPath = %q, want %q", got, home)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no diagnostic, got %q", buf.String())
	}
}

func TestStartupPath_NoHome(t *testing.T) {
	t.Setenv("HOME", "")
	t.Setenv("USERPROFILE", "")
	t.Setenv("home", "")

	if got := StartupPath("", nil); got == "" {
		t.Error("StartupPath must never return an empty path")
	}
}
