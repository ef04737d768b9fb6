package logger

import "encoding/hex"

const (
	// ShortHexLen is how many bytes a hex dump shows below FullHexVerbosity
	ShortHexLen = 64

	// FullHexVerbosity is the verbosity from which hex dumps are not truncated
	FullHexVerbosity Verbosity = 3
)

// Verbosity is the numeric debug level (0 = quiet).
// It is configured once at startup and handed to whoever dumps payloads.
type Verbosity int

// Hex formats data for debug output at this verbosity
func (v Verbosity) Hex(data []byte) string {
	return HexDump(v, data)
}

// Allows reports whether a message of debug level n should be printed
func (v Verbosity) Allows(n int) bool {
	return n <= int(v)
}

// HexDump formats data as space separated lowercase hex bytes.
// Below FullHexVerbosity only the first ShortHexLen bytes are shown,
// followed by "...".
func HexDump(v Verbosity, data []byte) string {
	shown := data
	truncated := false
	if v < FullHexVerbosity && len(data) > ShortHexLen {
		shown = data[:ShortHexLen]
		truncated = true
	}
	if len(shown) == 0 {
		return ""
	}

	size := len(shown)*3 - 1
	if truncated {
		size += 3
	}
	out := make([]byte, 0, size)
	var pair [2]byte
	for i, b := range shown {
		if i > 0 {
			out = append(out, ' ')
		}
		hex.Encode(pair[:], []byte{b})
		out = append(out, pair[:]...)
	}
	if truncated {
		out = append(out, "..."...)
	}
	return string(out)
}
