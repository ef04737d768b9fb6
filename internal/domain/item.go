package domain

import "strconv"

// ItemType tags a directory entry
type ItemType byte

const (
	ItemNone ItemType = 0
	ItemFile ItemType = 'F'
	ItemDir  ItemType = 'D'
)

// String returns a one-letter tag, "-" for ItemNone
func (t ItemType) String() string {
	if t == ItemNone {
		return "-"
	}
	return string(rune(t))
}

// Item is a single entry of a directory listing, local or remote
type Item struct {
	// Name is the human name of the entry
	Name string

	// Size in bytes (0 for directories on most backends)
	Size uint32

	// Index addresses the entry on slot-based devices, -1 when unused
	Index int32

	// Type indicates if this is a file or a directory
	Type ItemType
}

// IsDir returns true if this is a directory
func (i Item) IsDir() bool {
	return i.Type == ItemDir
}

// IsFile returns true if this is a file
func (i Item) IsFile() bool {
	return i.Type == ItemFile
}

// ID renders the short identifier of the item: the name for
// directories, the decimal slot index for everything else
func (i Item) ID() string {
	if i.IsDir() {
		return i.Name
	}
	return strconv.FormatInt(int64(i.Index), 10)
}

// DisplayName returns the name shown to users
func (i Item) DisplayName() string {
	return i.Name
}
