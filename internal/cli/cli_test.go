package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ning0612/fsbridge/internal/domain"
)

type env struct {
	configPath string
	device     string
	disk       string
	work       string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	base := t.TempDir()
	e := &env{
		configPath: filepath.Join(base, "config.yaml"),
		device:     filepath.Join(base, "device"),
		disk:       filepath.Join(base, "disk"),
		work:       filepath.Join(base, "work"),
	}
	require.NoError(t, os.MkdirAll(e.disk, 0755))
	require.NoError(t, os.MkdirAll(e.work, 0755))

	yaml := fmt.Sprintf(`
local_dir: %s
data_dir: %s
log:
  level: error
transports:
  - name: synth
    type: slots
    root: %s
    slots: 8
  - name: disk
    type: local
    root: %s
`, e.work, filepath.Join(base, "data"), e.device, e.disk)
	require.NoError(t, os.WriteFile(e.configPath, []byte(yaml), 0644))
	return e
}

// run executes one command line and returns its stdout
func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return e.runContext(t, context.Background(), args...)
}

func (e *env) runContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func (e *env) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, "fsbridge %s", strings.Join(args, " "))
	return out
}

func TestCLI_SlotsWorkflow(t *testing.T) {
	e := newEnv(t)

	src := filepath.Join(e.work, "lead.syx")
	require.NoError(t, os.WriteFile(src, []byte{0xf0, 0x43, 0x00, 0xf7}, 0644))

	e.mustRun(t, "-b", "synth", "mkdir", "/A")
	out := e.mustRun(t, "-b", "synth", "put", "-q", src, "/A")
	assert.Equal(t, "/A/lead\n", out)

	out = e.mustRun(t, "-b", "synth", "ls", "/A")
	assert.Contains(t, out, "lead")
	assert.Contains(t, out, "4 B")
	assert.True(t, strings.HasPrefix(out, "F"), out)

	outDir := t.TempDir()
	out = e.mustRun(t, "-b", "synth", "get", "-q", "/A/lead", outDir)
	assert.Equal(t, outDir+"/lead.syx\n", out)
	got, err := os.ReadFile(filepath.Join(outDir, "lead.syx"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xf0, 0x43, 0x00, 0xf7}, got)

	out = e.mustRun(t, "-b", "synth", "hexdump", "/A/lead")
	assert.Equal(t, "f0 43 00 f7\n", out)

	e.mustRun(t, "-b", "synth", "cp", "/A/lead", "/A/5")
	e.mustRun(t, "-b", "synth", "swap", "/A/0", "/A/5")
	e.mustRun(t, "-b", "synth", "rename", "/A/5", "pad")
	e.mustRun(t, "-b", "synth", "clear", "/A/pad")

	out = e.mustRun(t, "-b", "synth", "ls", "/A")
	assert.Equal(t, 1, strings.Count(out, "\n"), out)

	out = e.mustRun(t, "history")
	assert.Contains(t, out, "upload")
	assert.Contains(t, out, "download")
	assert.Contains(t, out, "success")

	out = e.mustRun(t, "-b", "disk", "history")
	assert.Equal(t, 1, strings.Count(out, "\n"), "header only: %s", out)
}

func TestCLI_LocalBackend(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.disk, "a.txt"), []byte("abc"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(e.disk, "sub"), 0755))

	out := e.mustRun(t, "-b", "disk", "ls", "--pattern", "*.md")
	assert.Contains(t, out, "sub")
	assert.NotContains(t, out, "a.txt")

	out = e.mustRun(t, "-b", "disk", "sum", "/a.txt")
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72  /a.txt\n", out)

	e.mustRun(t, "-b", "disk", "mv", "/a.txt", "/sub/b.txt")
	_, err := os.Stat(filepath.Join(e.disk, "sub", "b.txt"))
	assert.NoError(t, err)

	e.mustRun(t, "-b", "disk", "rm", "/sub")
	_, err = os.Stat(filepath.Join(e.disk, "sub"))
	assert.True(t, os.IsNotExist(err))

	_, err = e.run(t, "-b", "disk", "swap", "/x", "/y")
	assert.ErrorIs(t, err, domain.ErrUnsupported)
}

func TestCLI_LocalFileTools(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(e.work, "blob.bin")
	data := bytes.Repeat([]byte{0xab}, 100)
	require.NoError(t, os.WriteFile(path, data, 0644))

	out := e.mustRun(t, "hexdump", "--local", path)
	assert.True(t, strings.HasSuffix(out, "ab...\n"), out)
	assert.Equal(t, 64, strings.Count(out, "ab"))

	out = e.mustRun(t, "-vvv", "hexdump", "--local", path)
	assert.Equal(t, 100, strings.Count(out, "ab"))

	out = e.mustRun(t, "sum", "--local", "--algo", "sha256", path)
	assert.Len(t, strings.Fields(out)[0], 64)

	_, err := e.run(t, "sum", "--local", "--algo", "crc32", path)
	assert.Error(t, err)
}

func TestCLI_BackendSelection(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "ls")
	assert.ErrorContains(t, err, "--backend")

	_, err = e.run(t, "-b", "nope", "ls")
	assert.ErrorIs(t, err, domain.ErrTransportNotFound)

	_, err = e.run(t, "-b", "disk", "auth")
	assert.ErrorIs(t, err, domain.ErrUnsupported)

	out := e.mustRun(t, "backends")
	assert.Contains(t, out, "synth")
	assert.Contains(t, out, "slots")
	assert.Contains(t, out, "disk")
}

func TestCLI_Startup(t *testing.T) {
	e := newEnv(t)
	want, err := filepath.EvalSymlinks(e.work)
	require.NoError(t, err)

	out := e.mustRun(t, "startup")
	assert.Equal(t, want+"\n", out)
}

func TestCLI_BadConfig(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.WriteFile(e.configPath, []byte("transports:\n  - {name: x, type: ftp}\n"), 0644))

	_, err := e.run(t, "backends")
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)
}

func TestCLI_ReadToolsStopOnCancel(t *testing.T) {
	e := newEnv(t)

	src := filepath.Join(e.work, "lead.syx")
	require.NoError(t, os.WriteFile(src, []byte{0xf0, 0x43, 0x00, 0xf7}, 0644))
	e.mustRun(t, "-b", "synth", "mkdir", "/A")
	e.mustRun(t, "-b", "synth", "put", "-q", src, "/A")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := e.runContext(t, ctx, "-b", "synth", "hexdump", "/A/lead")
	assert.ErrorIs(t, err, domain.ErrCanceled)
	assert.Empty(t, out)

	out, err = e.runContext(t, ctx, "-b", "synth", "sum", "/A/lead")
	assert.ErrorIs(t, err, domain.ErrCanceled)
	assert.Empty(t, out)

	out, err = e.runContext(t, ctx, "hexdump", "--local", src)
	assert.ErrorIs(t, err, domain.ErrCanceled)
	assert.Empty(t, out)
}

func TestNewControl_DoneContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ctl, done := newControl(ctx, nil)
	defer done()
	assert.ErrorIs(t, ctl.Err(), domain.ErrCanceled)
}
