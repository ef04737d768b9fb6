package progress

import (
	"fmt"
	"io"

	"github.com/Ning0612/fsbridge/internal/job"
)

// Reader wraps an io.Reader, reporting progress to a job control and
// stopping with domain.ErrCanceled once the job is canceled
type Reader struct {
	reader      io.Reader
	control     *job.Control
	total       int64
	transferred int64
}

// NewReader creates a progress-tracking reader expecting total bytes
func NewReader(r io.Reader, total int64, control *job.Control) *Reader {
	return &Reader{
		reader:  r,
		control: control,
		total:   total,
	}
}

// Read implements io.Reader
func (pr *Reader) Read(p []byte) (n int, err error) {
	if err := pr.control.Err(); err != nil {
		return 0, err
	}
	n, err = pr.reader.Read(p)
	if n > 0 {
		pr.transferred += int64(n)
		if stepErr := pr.control.Step(pr.transferred, pr.total); stepErr != nil && err == nil {
			err = stepErr
		}
	}
	return n, err
}

// Transferred returns the number of bytes read so far
func (pr *Reader) Transferred() int64 {
	return pr.transferred
}

// Writer wraps an io.Writer, reporting progress to a job control and
// stopping with domain.ErrCanceled once the job is canceled
type Writer struct {
	writer      io.Writer
	control     *job.Control
	total       int64
	transferred int64
}

// NewWriter creates a progress-tracking writer expecting total bytes
func NewWriter(w io.Writer, total int64, control *job.Control) *Writer {
	return &Writer{
		writer:  w,
		control: control,
		total:   total,
	}
}

// Write implements io.Writer
func (pw *Writer) Write(p []byte) (n int, err error) {
	if err := pw.control.Err(); err != nil {
		return 0, err
	}
	n, err = pw.writer.Write(p)
	if n > 0 {
		pw.transferred += int64(n)
		if stepErr := pw.control.Step(pw.transferred, pw.total); stepErr != nil && err == nil {
			err = stepErr
		}
	}
	return n, err
}

// Transferred returns the number of bytes written so far
func (pw *Writer) Transferred() int64 {
	return pw.transferred
}

// HumanSize formats a byte count with binary units.
// Below 1 KiB the count is printed as is; above, with two decimals.
func HumanSize(size int64, withSpace bool) string {
	const (
		KiB = 1024
		MiB = KiB * 1024
		GiB = MiB * 1024
	)

	space := ""
	if withSpace {
		space = " "
	}

	switch {
	case size < KiB:
		return fmt.Sprintf("%d%sB", size, space)
	case size < MiB:
		return fmt.Sprintf("%.2f%sKiB", float64(size)/KiB, space)
	case size < GiB:
		return fmt.Sprintf("%.2f%sMiB", float64(size)/MiB, space)
	default:
		return fmt.Sprintf("%.2f%sGiB", float64(size)/GiB, space)
	}
}

// FormatProgress returns a progress bar string for a fraction in [0, 1]
func FormatProgress(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	filled := int(fraction * float64(width))
	if filled > width {
		filled = width
	}

	bar := make([]byte, width)
	for i := 0; i < width; i++ {
		if i < filled {
			bar[i] = '='
		} else if i == filled {
			bar[i] = '>'
		} else {
			bar[i] = ' '
		}
	}

	return fmt.Sprintf("[%s] %5.1f%%", string(bar), fraction*100)
}
