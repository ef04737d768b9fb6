package adapter

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ning0612/fsbridge/internal/domain"
	"github.com/Ning0612/fsbridge/internal/item"
	"github.com/Ning0612/fsbridge/internal/job"
)

// bareAdapter implements only the core interface
type bareAdapter struct {
	closed bool
}

func (b *bareAdapter) FS() FS            { return FSSlots }
func (b *bareAdapter) Extension() string { return "syx" }
func (b *bareAdapter) Close() error      { b.closed = true; return nil }
func (b *bareAdapter) ReadDir(ctx context.Context, path string) (*item.Iterator, error) {
	return item.FromSlice([]domain.Item{{Name: "a", Type: domain.ItemFile, Index: 4}}), nil
}

// fullAdapter implements every capability and records calls
type fullAdapter struct {
	bareAdapter
	calls  []string
	loaded []byte
	saved  []byte
}

func (f *fullAdapter) record(s string) error { f.calls = append(f.calls, s); return nil }

func (f *fullAdapter) Mkdir(ctx context.Context, p string) error       { return f.record("mkdir " + p) }
func (f *fullAdapter) Delete(ctx context.Context, p string) error      { return f.record("delete " + p) }
func (f *fullAdapter) Rename(ctx context.Context, p, n string) error   { return f.record("rename " + p + " " + n) }
func (f *fullAdapter) Move(ctx context.Context, s, d string) error     { return f.record("move " + s + " " + d) }
func (f *fullAdapter) Copy(ctx context.Context, s, d string) error     { return f.record("copy " + s + " " + d) }
func (f *fullAdapter) Clear(ctx context.Context, p string) error       { return f.record("clear " + p) }
func (f *fullAdapter) Swap(ctx context.Context, s, d string) error     { return f.record("swap " + s + " " + d) }
func (f *fullAdapter) ItemID(it domain.Item) string                   { return "#" + it.Name }
func (f *fullAdapter) Download(ctx context.Context, p string, ctl *job.Control) ([]byte, error) {
	return []byte("payload"), f.record("download " + p)
}
func (f *fullAdapter) Upload(ctx context.Context, p string, data []byte, ctl *job.Control) error {
	return f.record("upload " + p + " " + string(data))
}
func (f *fullAdapter) Load(p string, ctl *job.Control) ([]byte, error) {
	return f.loaded, f.record("load " + p)
}
func (f *fullAdapter) Save(p string, data []byte, ctl *job.Control) error {
	f.saved = data
	return f.record("save " + p)
}

func TestOperations_UnsupportedSlots(t *testing.T) {
	ctx := context.Background()
	ops := NewOperations(&bareAdapter{})

	errs := map[Op]error{
		OpMkdir:  ops.Mkdir(ctx, "/x"),
		OpDelete: ops.Delete(ctx, "/x"),
		OpRename: ops.Rename(ctx, "/x", "y"),
		OpMove:   ops.Move(ctx, "/x", "/y"),
		OpCopy:   ops.Copy(ctx, "/x", "/y"),
		OpClear:  ops.Clear(ctx, "/x"),
		OpSwap:   ops.Swap(ctx, "/x", "/y"),
		OpUpload: ops.Upload(ctx, "/x", nil, nil),
	}
	_, errs[OpDownload] = ops.Download(ctx, "/x", nil)

	for op, err := range errs {
		assert.ErrorIs(t, err, domain.ErrUnsupported, op.String())
		assert.False(t, ops.Supports(op), op.String())
		assert.Contains(t, err.Error(), op.String())
	}
}

func TestOperations_Supported(t *testing.T) {
	bare := NewOperations(&bareAdapter{})
	assert.Equal(t, []Op{OpReadDir, OpGetID, OpLoad, OpSave}, bare.Supported())

	full := NewOperations(&fullAdapter{})
	assert.Equal(t, AllOps(), full.Supported())
}

func TestOperations_Dispatch(t *testing.T) {
	ctx := context.Background()
	fa := &fullAdapter{loaded: []byte("local")}
	ops := NewOperations(fa)

	require.NoError(t, ops.Mkdir(ctx, "/d"))
	require.NoError(t, ops.Delete(ctx, "/d"))
	require.NoError(t, ops.Rename(ctx, "/a", "b"))
	require.NoError(t, ops.Move(ctx, "/a", "/b"))
	require.NoError(t, ops.Copy(ctx, "/a", "/b"))
	require.NoError(t, ops.Clear(ctx, "/a"))
	require.NoError(t, ops.Swap(ctx, "/a", "/b"))
	require.NoError(t, ops.Upload(ctx, "/a", []byte("x"), nil))

	data, err := ops.Download(ctx, "/a", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	data, err = ops.Load("/tmp/a", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("local"), data)
	require.NoError(t, ops.Save("/tmp/a", []byte("s"), nil))
	assert.Equal(t, []byte("s"), fa.saved)

	assert.Equal(t, []string{
		"mkdir /d", "delete /d", "rename /a b", "move /a /b", "copy /a /b",
		"clear /a", "swap /a /b", "upload /a x", "download /a",
		"load /tmp/a", "save /tmp/a",
	}, fa.calls)

	assert.Equal(t, "#a", ops.GetID(domain.Item{Name: "a"}))
}

func TestOperations_Fallbacks(t *testing.T) {
	ops := NewOperations(&bareAdapter{})

	assert.Equal(t, "7", ops.GetID(domain.Item{Name: "lead", Index: 7, Type: domain.ItemFile}))
	assert.Equal(t, "banks", ops.GetID(domain.Item{Name: "banks", Index: -1, Type: domain.ItemDir}))

	path := filepath.Join(t.TempDir(), "patch.syx")
	require.NoError(t, ops.Save(path, []byte{0xf0, 0x7f, 0xf7}, nil))
	data, err := ops.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xf0, 0x7f, 0xf7}, data)
}

func TestOperations_Passthrough(t *testing.T) {
	ba := &bareAdapter{}
	ops := NewOperations(ba)

	assert.Equal(t, FSSlots, ops.FS())
	assert.Equal(t, "syx", ops.Extension())
	assert.Same(t, ba, ops.Adapter())

	items, err := item.Collect(mustReadDir(t, ops, "/"))
	require.NoError(t, err)
	assert.Len(t, items, 1)

	require.NoError(t, ops.Close())
	assert.True(t, ba.closed)
}

func mustReadDir(t *testing.T, ops *Operations, p string) *item.Iterator {
	t.Helper()
	it, err := ops.ReadDir(context.Background(), p)
	require.NoError(t, err)
	return it
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "readdir", OpReadDir.String())
	assert.Equal(t, "save", OpSave.String())
	assert.Equal(t, "op(99)", Op(99).String())
	assert.Equal(t, "slots", FSSlots.String())
	assert.Equal(t, "unknown", FS(42).String())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Supports(domain.TransportSlots))

	_, err := r.Create(context.Background(), domain.Transport{Name: "x", Type: domain.TransportSlots})
	assert.ErrorIs(t, err, domain.ErrUnsupported)

	r.Register(domain.TransportSlots, func(ctx context.Context, tr domain.Transport) (Adapter, error) {
		return &bareAdapter{}, nil
	})
	assert.True(t, r.Supports(domain.TransportSlots))

	ops, err := r.Create(context.Background(), domain.Transport{Name: "x", Type: domain.TransportSlots})
	require.NoError(t, err)
	assert.Equal(t, FSSlots, ops.FS())

	boom := errors.New("no device")
	r.Register(domain.TransportSMB, func(ctx context.Context, tr domain.Transport) (Adapter, error) {
		return nil, boom
	})
	_, err = r.Create(context.Background(), domain.Transport{Name: "share", Type: domain.TransportSMB})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "share")
}
