package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

const (
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[m"
)

// ConsoleLogger 主控台 logger：每行帶級別、來源位置與函式名稱
//
//	DEBUG:local.go:88:(local.(*Adapter).ReadDir): reading dir path=/tmp
//
// Error lines are wrapped in ANSI red.
type ConsoleLogger struct {
	handler   *ConsoleHandler
	sanitizer *Sanitizer
}

// NewConsoleLogger 建立 console logger，預設輸出到 stderr
func NewConsoleLogger(config Config) *ConsoleLogger {
	var out io.Writer = os.Stderr
	for _, o := range config.Outputs {
		if o.Writer != nil {
			out = o.Writer
			break
		}
	}

	h := NewConsoleHandler(out, convertLevel(config.EffectiveLevel()))
	h.SetColor(out == os.Stderr)
	return &ConsoleLogger{
		handler:   h,
		sanitizer: NewSanitizer(),
	}
}

// SetColor toggles the ANSI color on error lines
func (l *ConsoleLogger) SetColor(enabled bool) {
	l.handler.SetColor(enabled)
}

// Debug 記錄 debug 級別日誌
func (l *ConsoleLogger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, msg, args)
}

// Info 記錄 info 級別日誌
func (l *ConsoleLogger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, msg, args)
}

// Warn 記錄 warn 級別日誌
func (l *ConsoleLogger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, msg, args)
}

// Error 記錄 error 級別日誌
func (l *ConsoleLogger) Error(msg string, args ...any) {
	l.log(slog.LevelError, msg, args)
}

// With 建立帶 context 的子 logger
func (l *ConsoleLogger) With(args ...any) Logger {
	r := slog.NewRecord(time.Time{}, slog.LevelInfo, "", 0)
	r.Add(l.sanitizer.SanitizeArgs(args)...)

	var attrs []slog.Attr
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	return &ConsoleLogger{
		handler:   l.handler.WithAttrs(attrs).(*ConsoleHandler),
		sanitizer: l.sanitizer,
	}
}

// Sync 強制 flush
func (l *ConsoleLogger) Sync() error {
	return nil
}

// Shutdown 優雅關閉
func (l *ConsoleLogger) Shutdown() error {
	return nil
}

// log is called from the level methods only; the caller of those is
// two frames up
func (l *ConsoleLogger) log(level slog.Level, msg string, args []any) {
	ctx := context.Background()
	if !l.handler.Enabled(ctx, level) {
		return
	}

	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, l.sanitizer.Sanitize(msg), pcs[0])
	r.Add(l.sanitizer.SanitizeArgs(args)...)
	_ = l.handler.Handle(ctx, r)
}

// consoleOutput is shared by a handler and the children derived from it
type consoleOutput struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
}

// ConsoleHandler is a slog.Handler writing one line per record:
// level, source file and line, function, message, then key=value attrs.
type ConsoleHandler struct {
	output *consoleOutput
	level  slog.Leveler
	prefix string
	attrs  string
}

var _ slog.Handler = (*ConsoleHandler)(nil)

// NewConsoleHandler writes records at or above level to out
func NewConsoleHandler(out io.Writer, level slog.Leveler) *ConsoleHandler {
	return &ConsoleHandler{
		output: &consoleOutput{out: out},
		level:  level,
	}
}

// SetColor toggles the ANSI color on error lines for h and its children
func (h *ConsoleHandler) SetColor(enabled bool) {
	h.output.mu.Lock()
	defer h.output.mu.Unlock()
	h.output.color = enabled
}

func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	file, line, fn := "???", 0, "???"
	if r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		file, line, fn = filepath.Base(frame.File), frame.Line, shortFuncName(frame.Function)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s:%s:%d:(%s): %s", r.Level.String(), file, line, fn, r.Message)
	b.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.prefix, a)
		return true
	})

	h.output.mu.Lock()
	defer h.output.mu.Unlock()
	var err error
	if r.Level >= slog.LevelError && h.output.color {
		_, err = fmt.Fprintf(h.output.out, "%s%s%s\n", ansiRed, b.String(), ansiReset)
	} else {
		_, err = fmt.Fprintln(h.output.out, b.String())
	}
	return err
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	child := *h
	var b strings.Builder
	b.WriteString(h.attrs)
	for _, a := range attrs {
		writeAttr(&b, h.prefix, a)
	}
	child.attrs = b.String()
	return &child
}

func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	child := *h
	child.prefix = h.prefix + name + "."
	return &child
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			writeAttr(b, prefix, ga)
		}
		return
	}
	fmt.Fprintf(b, " %s%s=%s", prefix, a.Key, a.Value.String())
}

// shortFuncName trims the import path: "a/b/pkg.(*T).M" -> "pkg.(*T).M"
func shortFuncName(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}
