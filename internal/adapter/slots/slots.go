// Package slots implements a slot-addressed device backend.
//
// A device is a set of banks, each holding a fixed number of numbered
// slots. On disk a bank is a directory under the root and a slot is the
// file <NNN>.<ext>; an optional <NNN>.name sidecar carries the slot label.
// Paths are "/" (the bank list), "/<bank>" (the slots of a bank) and
// "/<bank>/<slot>", where <slot> is a decimal slot number or a label.
package slots

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Ning0612/fsbridge/internal/adapter"
	"github.com/Ning0612/fsbridge/internal/domain"
	"github.com/Ning0612/fsbridge/internal/fileio"
	"github.com/Ning0612/fsbridge/internal/item"
	"github.com/Ning0612/fsbridge/internal/job"
)

const (
	// DefaultSlots is the bank size when none is configured
	DefaultSlots = 128
	// DefaultExtension is the slot file extension when none is configured
	DefaultExtension = "syx"

	labelExt = "name"
)

// Adapter implements adapter.Adapter for a slot device
type Adapter struct {
	root  string
	ext   string
	slots int

	// mu serializes multi-file operations (swap, move, label updates)
	mu sync.Mutex
}

// rename is swapped out by tests to fail part-way through a multi-file step
var rename = os.Rename

// Compile-time interface checks
var (
	_ adapter.Adapter    = (*Adapter)(nil)
	_ adapter.Mkdirer    = (*Adapter)(nil)
	_ adapter.Deleter    = (*Adapter)(nil)
	_ adapter.Renamer    = (*Adapter)(nil)
	_ adapter.Mover      = (*Adapter)(nil)
	_ adapter.Copier     = (*Adapter)(nil)
	_ adapter.Clearer    = (*Adapter)(nil)
	_ adapter.Swapper    = (*Adapter)(nil)
	_ adapter.Downloader = (*Adapter)(nil)
	_ adapter.Uploader   = (*Adapter)(nil)
	_ adapter.IDer       = (*Adapter)(nil)
)

// New opens the device stored under root, creating root if needed
func New(root, ext string, slots int) (*Adapter, error) {
	if root == "" {
		return nil, fmt.Errorf("slots root is required: %w", domain.ErrConfigInvalid)
	}
	if ext == "" {
		ext = DefaultExtension
	}
	if slots <= 0 {
		slots = DefaultSlots
	}
	if strings.TrimPrefix(ext, ".") == labelExt {
		return nil, fmt.Errorf("extension %q is reserved for labels: %w", ext, domain.ErrConfigInvalid)
	}
	if slots > 1000 {
		return nil, fmt.Errorf("slots must be at most 1000, got %d: %w", slots, domain.ErrConfigInvalid)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, fileio.MapError(err)
	}

	return &Adapter{root: absRoot, ext: strings.TrimPrefix(ext, "."), slots: slots}, nil
}

// FS returns adapter.FSSlots
func (a *Adapter) FS() adapter.FS { return adapter.FSSlots }

// Extension returns the slot file extension
func (a *Adapter) Extension() string { return a.ext }

// Slots returns the number of slots per bank
func (a *Adapter) Slots() int { return a.slots }

// Close is a no-op
func (a *Adapter) Close() error { return nil }

// ItemID addresses slots by decimal slot number and banks by name
func (a *Adapter) ItemID(it domain.Item) string {
	if it.IsDir() {
		return it.Name
	}
	return strconv.Itoa(int(it.Index))
}

// ref is a parsed device path
type ref struct {
	bank string
	slot string // raw slot element, empty for bank paths
}

func splitPath(p string) (ref, error) {
	parts := strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
	for _, part := range parts {
		if part == "." || part == ".." || strings.ContainsRune(part, '\\') {
			return ref{}, fmt.Errorf("%s: %w", p, domain.ErrInvalidName)
		}
	}
	switch len(parts) {
	case 0:
		return ref{}, nil
	case 1:
		return ref{bank: parts[0]}, nil
	case 2:
		return ref{bank: parts[0], slot: parts[1]}, nil
	}
	return ref{}, fmt.Errorf("%s: %w", p, domain.ErrNotFound)
}

func (a *Adapter) bankDir(bank string) string {
	return filepath.Join(a.root, bank)
}

func (a *Adapter) dataPath(bank string, n int) string {
	return filepath.Join(a.root, bank, fmt.Sprintf("%03d.%s", n, a.ext))
}

func (a *Adapter) labelPath(bank string, n int) string {
	return filepath.Join(a.root, bank, fmt.Sprintf("%03d.%s", n, labelExt))
}

func (a *Adapter) checkBank(bank string) error {
	info, err := os.Stat(a.bankDir(bank))
	if err != nil {
		return fileio.MapError(err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", bank, domain.ErrNotDirectory)
	}
	return nil
}

// parseSlot parses a slot number, reporting whether s is numeric at all
func (a *Adapter) parseSlot(s string) (int, bool, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, nil
	}
	if n < 0 || n >= a.slots {
		return 0, true, fmt.Errorf("slot %d not in [0, %d): %w", n, a.slots, domain.ErrInvalidSlot)
	}
	return n, true, nil
}

// occupied returns the slot numbers of bank holding data, ascending
func (a *Adapter) occupied(bank string) ([]int, error) {
	entries, err := os.ReadDir(a.bankDir(bank))
	if err != nil {
		return nil, fileio.MapError(err)
	}

	suffix := "." + a.ext
	var used []int
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasSuffix(name, suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(name, suffix))
		if err != nil || n < 0 || n >= a.slots {
			continue
		}
		used = append(used, n)
	}
	sort.Ints(used)
	return used, nil
}

func (a *Adapter) label(bank string, n int) string {
	data, err := os.ReadFile(a.labelPath(bank, n))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// resolveSlot finds the slot a path element names: a number, or the
// label of an occupied slot.
func (a *Adapter) resolveSlot(bank, s string) (int, error) {
	n, numeric, err := a.parseSlot(s)
	if numeric {
		return n, err
	}

	used, err := a.occupied(bank)
	if err != nil {
		return 0, err
	}
	for _, n := range used {
		if a.label(bank, n) == s {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%s/%s: %w", bank, s, domain.ErrNotFound)
}

// slotRef resolves p to an existing bank and a slot number in range
func (a *Adapter) slotRef(p string) (string, int, error) {
	r, err := splitPath(p)
	if err != nil {
		return "", 0, err
	}
	if r.slot == "" {
		return "", 0, fmt.Errorf("%s: %w", p, domain.ErrNotFile)
	}
	if err := a.checkBank(r.bank); err != nil {
		return "", 0, err
	}
	n, err := a.resolveSlot(r.bank, r.slot)
	return r.bank, n, err
}

func (a *Adapter) slotItem(bank string, n int) (domain.Item, error) {
	info, err := os.Stat(a.dataPath(bank, n))
	if err != nil {
		return domain.Item{}, fileio.MapError(err)
	}
	name := a.label(bank, n)
	if name == "" {
		name = fmt.Sprintf("%03d", n)
	}
	size := info.Size()
	if size > int64(^uint32(0)) {
		size = int64(^uint32(0))
	}
	return domain.Item{Name: name, Size: uint32(size), Index: int32(n), Type: domain.ItemFile}, nil
}

// ReadDir lists banks at "/" and occupied slots inside a bank
func (a *Adapter) ReadDir(ctx context.Context, p string) (*item.Iterator, error) {
	r, err := splitPath(p)
	if err != nil {
		return nil, err
	}
	if r.slot != "" {
		return nil, fmt.Errorf("%s: %w", p, domain.ErrNotDirectory)
	}

	if r.bank == "" {
		return a.listBanks()
	}

	if err := a.checkBank(r.bank); err != nil {
		return nil, err
	}
	used, err := a.occupied(r.bank)
	if err != nil {
		return nil, err
	}

	items := make([]domain.Item, 0, len(used))
	for _, n := range used {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		it, err := a.slotItem(r.bank, n)
		if err != nil {
			continue // Slot cleared underneath us
		}
		items = append(items, it)
	}
	return item.FromSlice(items), nil
}

func (a *Adapter) listBanks() (*item.Iterator, error) {
	entries, err := os.ReadDir(a.root)
	if err != nil {
		return nil, fileio.MapError(err)
	}
	items := make([]domain.Item, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			items = append(items, domain.Item{Name: e.Name(), Index: -1, Type: domain.ItemDir})
		}
	}
	return item.FromSlice(items), nil
}

// Mkdir creates a bank
func (a *Adapter) Mkdir(ctx context.Context, p string) error {
	r, err := splitPath(p)
	if err != nil {
		return err
	}
	if r.bank == "" || r.slot != "" {
		return fmt.Errorf("banks can only be created at the top level: %w", domain.ErrPermissionDenied)
	}
	return fileio.MapError(os.MkdirAll(a.bankDir(r.bank), 0755))
}

// Delete removes a bank with all its slots, or clears a single slot
func (a *Adapter) Delete(ctx context.Context, p string) error {
	r, err := splitPath(p)
	if err != nil {
		return err
	}
	if r.bank == "" {
		return fmt.Errorf("refusing to delete device root: %w", domain.ErrPermissionDenied)
	}
	if r.slot != "" {
		return a.clearSlot(p)
	}

	if err := a.checkBank(r.bank); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return fileio.MapError(os.RemoveAll(a.bankDir(r.bank)))
}

// Clear empties a slot, or every slot of a bank
func (a *Adapter) Clear(ctx context.Context, p string) error {
	r, err := splitPath(p)
	if err != nil {
		return err
	}
	if r.bank == "" {
		return fmt.Errorf("%s: %w", p, domain.ErrNotFile)
	}
	if r.slot != "" {
		return a.clearSlot(p)
	}

	if err := a.checkBank(r.bank); err != nil {
		return err
	}
	used, err := a.occupied(r.bank)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, n := range used {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.removeSlot(r.bank, n); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) clearSlot(p string) error {
	bank, n, err := a.slotRef(p)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := os.Stat(a.dataPath(bank, n)); err != nil {
		return fileio.MapError(err)
	}
	return a.removeSlot(bank, n)
}

func (a *Adapter) removeSlot(bank string, n int) error {
	if err := os.Remove(a.dataPath(bank, n)); err != nil && !os.IsNotExist(err) {
		return fileio.MapError(err)
	}
	if err := os.Remove(a.labelPath(bank, n)); err != nil && !os.IsNotExist(err) {
		return fileio.MapError(err)
	}
	return nil
}

// Rename relabels a slot, or renames a bank
func (a *Adapter) Rename(ctx context.Context, p, newName string) error {
	if newName == "" || newName == "." || newName == ".." || strings.ContainsAny(newName, "/\\") {
		return fmt.Errorf("%q: %w", newName, domain.ErrInvalidName)
	}

	r, err := splitPath(p)
	if err != nil {
		return err
	}
	if r.bank == "" {
		return fmt.Errorf("cannot rename device root: %w", domain.ErrPermissionDenied)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if r.slot == "" {
		if err := a.checkBank(r.bank); err != nil {
			return err
		}
		if _, err := os.Stat(a.bankDir(newName)); err == nil {
			return fmt.Errorf("%s: %w", newName, domain.ErrAlreadyExists)
		}
		return fileio.MapError(rename(a.bankDir(r.bank), a.bankDir(newName)))
	}

	// Numeric labels would shadow slot numbers
	if _, err := strconv.Atoi(newName); err == nil {
		return fmt.Errorf("label %q is numeric: %w", newName, domain.ErrInvalidName)
	}

	bank, n, err := a.slotRef(p)
	if err != nil {
		return err
	}
	if _, err := os.Stat(a.dataPath(bank, n)); err != nil {
		return fileio.MapError(err)
	}
	owner, found, err := a.labelOwner(bank, newName)
	if err != nil {
		return err
	}
	if found && owner != n {
		return fmt.Errorf("label %q is on slot %d: %w", newName, owner, domain.ErrAlreadyExists)
	}
	return fileio.Save(a.labelPath(bank, n), []byte(newName+"\n"), nil)
}

// Copy duplicates the slot src into dst, replacing what dst held.
// The label comes along unless another slot of the destination bank
// already carries it, in which case dst is left unlabeled.
func (a *Adapter) Copy(ctx context.Context, src, dst string) error {
	srcBank, sn, err := a.slotRef(src)
	if err != nil {
		return err
	}
	dstBank, dn, err := a.dstSlot(dst)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := fileio.Load(a.dataPath(srcBank, sn), nil)
	if err != nil {
		return err
	}
	if err := fileio.Save(a.dataPath(dstBank, dn), data, nil); err != nil {
		return err
	}

	label := a.label(srcBank, sn)
	if label != "" {
		owner, found, err := a.labelOwner(dstBank, label)
		if err != nil {
			return err
		}
		if found && owner != dn {
			label = ""
		}
	}
	if label == "" {
		return fileio.MapError(removeIfExists(a.labelPath(dstBank, dn)))
	}
	return fileio.Save(a.labelPath(dstBank, dn), []byte(label+"\n"), nil)
}

// Move relocates the slot src to the empty slot dst
func (a *Adapter) Move(ctx context.Context, src, dst string) error {
	srcBank, sn, err := a.slotRef(src)
	if err != nil {
		return err
	}
	dstBank, dn, err := a.dstSlot(dst)
	if err != nil {
		return err
	}
	if srcBank == dstBank && sn == dn {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := os.Stat(a.dataPath(dstBank, dn)); err == nil {
		return fmt.Errorf("%s: %w", dst, domain.ErrAlreadyExists)
	}
	if srcBank != dstBank {
		if label := a.label(srcBank, sn); label != "" {
			if owner, found, err := a.labelOwner(dstBank, label); err != nil {
				return err
			} else if found {
				return fmt.Errorf("label %q is on %s/%d: %w", label, dstBank, owner, domain.ErrAlreadyExists)
			}
		}
	}

	srcData, dstData := a.dataPath(srcBank, sn), a.dataPath(dstBank, dn)
	srcLabel, dstLabel := a.labelPath(srcBank, sn), a.labelPath(dstBank, dn)
	if err := removeIfExists(dstLabel); err != nil {
		return fileio.MapError(err)
	}
	if err := rename(srcData, dstData); err != nil {
		return fileio.MapError(err)
	}
	if _, err := os.Stat(srcLabel); err != nil {
		return nil
	}
	if err := rename(srcLabel, dstLabel); err != nil {
		if undoErr := rename(dstData, srcData); undoErr != nil {
			return fmt.Errorf("%w (data left at %s: %v)", fileio.MapError(err), dstData, undoErr)
		}
		return fileio.MapError(err)
	}
	return nil
}

// Swap exchanges the contents and labels of two slots.
// Either slot may be empty.
func (a *Adapter) Swap(ctx context.Context, src, dst string) error {
	srcBank, sn, err := a.dstSlot(src)
	if err != nil {
		return err
	}
	dstBank, dn, err := a.dstSlot(dst)
	if err != nil {
		return err
	}
	if srcBank == dstBank && sn == dn {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if srcBank != dstBank {
		if err := a.checkLabelMove(srcBank, sn, dstBank, dn); err != nil {
			return err
		}
		if err := a.checkLabelMove(dstBank, dn, srcBank, sn); err != nil {
			return err
		}
	}

	srcData, dstData := a.dataPath(srcBank, sn), a.dataPath(dstBank, dn)
	if err := swapFiles(srcData, dstData); err != nil {
		return err
	}
	if err := swapFiles(a.labelPath(srcBank, sn), a.labelPath(dstBank, dn)); err != nil {
		if undoErr := swapFiles(srcData, dstData); undoErr != nil {
			return fmt.Errorf("%w (slot data left swapped: %v)", err, undoErr)
		}
		return err
	}
	return nil
}

// checkLabelMove fails if the label of slot n in bank would collide with
// a label already used in toBank by a slot other than to
func (a *Adapter) checkLabelMove(bank string, n int, toBank string, to int) error {
	if _, err := os.Stat(a.dataPath(bank, n)); err != nil {
		return nil
	}
	label := a.label(bank, n)
	if label == "" {
		return nil
	}
	owner, found, err := a.labelOwner(toBank, label)
	if err != nil {
		return err
	}
	if found && owner != to {
		return fmt.Errorf("label %q is on %s/%d: %w", label, toBank, owner, domain.ErrAlreadyExists)
	}
	return nil
}

// dstSlot resolves a slot path that may name an empty slot
func (a *Adapter) dstSlot(p string) (string, int, error) {
	r, err := splitPath(p)
	if err != nil {
		return "", 0, err
	}
	if r.slot == "" {
		return "", 0, fmt.Errorf("%s: %w", p, domain.ErrNotFile)
	}
	if err := a.checkBank(r.bank); err != nil {
		return "", 0, err
	}
	n, err := a.resolveSlot(r.bank, r.slot)
	return r.bank, n, err
}

// labelOwner finds the occupied slot of bank carrying label.
// Labels are unique within a bank.
func (a *Adapter) labelOwner(bank, label string) (int, bool, error) {
	used, err := a.occupied(bank)
	if err != nil {
		return 0, false, err
	}
	for _, n := range used {
		if a.label(bank, n) == label {
			return n, true, nil
		}
	}
	return 0, false, nil
}

// Download reads the data of a slot
func (a *Adapter) Download(ctx context.Context, p string, ctl *job.Control) ([]byte, error) {
	bank, n, err := a.slotRef(p)
	if err != nil {
		return nil, err
	}
	return fileio.Load(a.dataPath(bank, n), ctl)
}

// Upload stores data in a slot. A numeric slot element addresses that
// slot; a label reuses the slot carrying it, or takes the first empty
// slot and labels it.
func (a *Adapter) Upload(ctx context.Context, p string, data []byte, ctl *job.Control) error {
	r, err := splitPath(p)
	if err != nil {
		return err
	}
	if r.slot == "" {
		return fmt.Errorf("%s: %w", p, domain.ErrNotFile)
	}
	if err := a.checkBank(r.bank); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	n, numeric, err := a.parseSlot(r.slot)
	if err != nil {
		return err
	}
	if !numeric {
		n, err = a.slotForLabel(r.bank, r.slot)
		if err != nil {
			return err
		}
	}

	if err := fileio.Save(a.dataPath(r.bank, n), data, ctl); err != nil {
		return err
	}
	if numeric {
		return nil
	}
	return fileio.Save(a.labelPath(r.bank, n), []byte(r.slot+"\n"), nil)
}

func (a *Adapter) slotForLabel(bank, label string) (int, error) {
	used, err := a.occupied(bank)
	if err != nil {
		return 0, err
	}
	taken := make(map[int]bool, len(used))
	for _, n := range used {
		if a.label(bank, n) == label {
			return n, nil
		}
		taken[n] = true
	}
	for n := 0; n < a.slots; n++ {
		if !taken[n] {
			return n, nil
		}
	}
	return 0, fmt.Errorf("bank %s is full: %w", bank, domain.ErrInvalidSlot)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// swapFiles exchanges two paths, either of which may be missing.
// A failed step is undone so both paths keep their old content.
func swapFiles(x, y string) error {
	_, xErr := os.Stat(x)
	_, yErr := os.Stat(y)
	xExists, yExists := xErr == nil, yErr == nil

	switch {
	case !xExists && !yExists:
		return nil
	case xExists && !yExists:
		return fileio.MapError(rename(x, y))
	case !xExists && yExists:
		return fileio.MapError(rename(y, x))
	}

	tmp := x + ".swap"
	if err := rename(x, tmp); err != nil {
		return fileio.MapError(err)
	}
	if err := rename(y, x); err != nil {
		rename(tmp, x)
		return fileio.MapError(err)
	}
	if err := rename(tmp, y); err != nil {
		if rename(x, y) == nil {
			rename(tmp, x)
		}
		return fileio.MapError(err)
	}
	return nil
}
