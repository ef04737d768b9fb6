package progress

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/Ning0612/fsbridge/internal/domain"
	"github.com/Ning0612/fsbridge/internal/job"
)

// TestHumanSize tests binary unit selection and spacing
func TestHumanSize(t *testing.T) {
	tests := []struct {
		size      int64
		withSpace bool
		expected  string
	}{
		{0, false, "0B"},
		{1023, true, "1023 B"},
		{1024, false, "1.00KiB"},
		{1536, true, "1.50 KiB"},
		{1048576, true, "1.00 MiB"},
		{1073741824, false, "1.00GiB"},
		{5 * 1073741824, true, "5.00 GiB"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := HumanSize(tt.size, tt.withSpace); got != tt.expected {
				t.Errorf("HumanSize(%d, %v) = %q, want %q", tt.size, tt.withSpace, got, tt.expected)
			}
		})
	}
}

// TestHumanSize_Units checks the unit boundaries
func TestHumanSize_Units(t *testing.T) {
	const KiB = 1024
	tests := []struct {
		from, to int64
		suffix   string
	}{
		{0, KiB - 1, "B"},
		{KiB, KiB*KiB - 1, "KiB"},
		{KiB * KiB, KiB*KiB*KiB - 1, "MiB"},
		{KiB * KiB * KiB, 4 * KiB * KiB * KiB, "GiB"},
	}

	for _, tt := range tests {
		for _, n := range []int64{tt.from, (tt.from + tt.to) / 2, tt.to} {
			got := HumanSize(n, false)
			if !strings.HasSuffix(got, tt.suffix) {
				t.Errorf("HumanSize(%d) = %q, want suffix %q", n, got, tt.suffix)
			}
			if tt.suffix == "B" && strings.Contains(got, ".") {
				t.Errorf("HumanSize(%d) = %q should have no fractional part", n, got)
			}
			if tt.suffix == "B" && strings.HasSuffix(got, "iB") {
				t.Errorf("HumanSize(%d) = %q should be plain bytes", n, got)
			}
		}
	}
}

// TestReader_ReportsProgress tests progress through the reader wrapper
func TestReader_ReportsProgress(t *testing.T) {
	var fractions []float64
	ctl := job.New(func(f float64) { fractions = append(fractions, f) })

	data := bytes.Repeat([]byte("x"), 100)
	r := NewReader(bytes.NewReader(data), int64(len(data)), ctl)

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll error = %v", err)
	}

	if !bytes.Equal(got, data) {
		t.Error("data mismatch")
	}
	if r.Transferred() != 100 {
		t.Errorf("Transferred() = %d, want 100", r.Transferred())
	}
	if len(fractions) == 0 || fractions[len(fractions)-1] != 1 {
		t.Errorf("last fraction should be 1, got %v", fractions)
	}
}

// TestReader_Canceled tests that a canceled job stops the reader
func TestReader_Canceled(t *testing.T) {
	ctl := job.New(nil)
	ctl.Cancel()

	r := NewReader(strings.NewReader("data"), 4, ctl)
	_, err := r.Read(make([]byte, 4))
	if !errors.Is(err, domain.ErrCanceled) {
		t.Errorf("Read() error = %v, want ErrCanceled", err)
	}
}

// TestWriter_ReportsProgress tests progress through the writer wrapper
func TestWriter_ReportsProgress(t *testing.T) {
	var last float64
	ctl := job.New(func(f float64) { last = f })

	var buf bytes.Buffer
	w := NewWriter(&buf, 8, ctl)

	if _, err := w.Write([]byte("abcd")); err != nil {
		t.Fatalf("Write error = %v", err)
	}
	if last != 0.5 {
		t.Errorf("fraction = %v, want 0.5", last)
	}
	if _, err := w.Write([]byte("efgh")); err != nil {
		t.Fatalf("Write error = %v", err)
	}
	if last != 1 {
		t.Errorf("fraction = %v, want 1", last)
	}
	if buf.String() != "abcdefgh" {
		t.Errorf("buffer = %q", buf.String())
	}
}

// TestWriter_CancelMidway tests cancellation between writes
func TestWriter_CancelMidway(t *testing.T) {
	ctl := job.New(nil)
	var buf bytes.Buffer
	w := NewWriter(&buf, 8, ctl)

	if _, err := w.Write([]byte("abcd")); err != nil {
		t.Fatalf("Write error = %v", err)
	}
	ctl.Cancel()
	if _, err := w.Write([]byte("efgh")); !errors.Is(err, domain.ErrCanceled) {
		t.Errorf("Write() after cancel = %v, want ErrCanceled", err)
	}
	if buf.Len() != 4 {
		t.Errorf("buffer length = %d, want 4", buf.Len())
	}
}

// TestFormatProgress tests the progress bar rendering
func TestFormatProgress(t *testing.T) {
	tests := []struct {
		fraction float64
		width    int
		expected string
	}{
		{0, 10, "[>         ]   0.0%"},
		{0.5, 10, "[=====>    ]  50.0%"},
		{1, 10, "[==========] 100.0%"},
		{2, 4, "[====] 100.0%"},
	}

	for _, tt := range tests {
		if got := FormatProgress(tt.fraction, tt.width); got != tt.expected {
			t.Errorf("FormatProgress(%v, %d) = %q, want %q", tt.fraction, tt.width, got, tt.expected)
		}
	}
}
