package logger

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
)

func TestHexDump_Short(t *testing.T) {
	got := HexDump(0, []byte{0xDE, 0xAD, 0xBE})
	if got != "de ad be" {
		t.Errorf("HexDump() = %q, want %q", got, "de ad be")
	}
}

func TestHexDump_Empty(t *testing.T) {
	if got := HexDump(0, nil); got != "" {
		t.Errorf("HexDump(nil) = %q, want empty", got)
	}
}

func TestHexDump_SameAtAnyVerbosityUpTo64(t *testing.T) {
	for n := 1; n <= ShortHexLen; n += 7 {
		data := bytes.Repeat([]byte{0x5a}, n)
		low := HexDump(0, data)
		high := HexDump(FullHexVerbosity, data)
		if low != high {
			t.Errorf("len %d: low %q != high %q", n, low, high)
		}
		if strings.Contains(low, "...") {
			t.Errorf("len %d: unexpected ellipsis", n)
		}
	}
}

func TestHexDump_Truncated(t *testing.T) {
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}

	got := HexDump(FullHexVerbosity-1, data)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("truncated dump should end with ..., got %q", got)
	}

	body := strings.TrimSuffix(got, "...")
	if strings.HasSuffix(body, " ") {
		t.Error("no space expected before the ellipsis")
	}
	groups := strings.Split(body, " ")
	if len(groups) != ShortHexLen {
		t.Errorf("got %d groups, want %d", len(groups), ShortHexLen)
	}
	pair := regexp.MustCompile(`^[0-9a-f]{2}$`)
	for i, g := range groups {
		if !pair.MatchString(g) {
			t.Fatalf("group %d = %q is not a lowercase hex pair", i, g)
		}
	}
	if groups[63] != "3f" {
		t.Errorf("last shown byte = %s, want 3f", groups[63])
	}
}

func TestHexDump_FullVerbosity(t *testing.T) {
	data := bytes.Repeat([]byte{0xff}, 100)

	got := HexDump(FullHexVerbosity, data)
	if strings.Contains(got, "...") {
		t.Error("full verbosity should not truncate")
	}
	if n := len(strings.Split(got, " ")); n != 100 {
		t.Errorf("got %d groups, want 100", n)
	}
}

func TestVerbosity_Allows(t *testing.T) {
	v := Verbosity(2)
	if !v.Allows(1) || !v.Allows(2) || v.Allows(3) {
		t.Error("Allows should accept levels up to the verbosity")
	}
	if v.Hex([]byte{1}) != "01" {
		t.Error("Hex should delegate to HexDump")
	}
}
