package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// SlogLogger slog 實作
type SlogLogger struct {
	logger    *slog.Logger
	sanitizer *Sanitizer
	writers   []io.WriteCloser // 需要關閉的 writers
}

// NewSlogLogger 建立新的 slog logger
func NewSlogLogger(config Config) (*SlogLogger, error) {
	var writers []io.Writer
	var closeableWriters []io.WriteCloser

	for _, output := range config.Outputs {
		switch output.Type {
		case OutputStdout, OutputStderr:
			w := output.Writer
			if w == nil {
				w = os.Stdout
				if output.Type == OutputStderr {
					w = os.Stderr
				}
			}
			writers = append(writers, w)
			if wc, ok := w.(io.WriteCloser); ok && !isStdStream(wc) {
				closeableWriters = append(closeableWriters, wc)
			}
		case OutputFile:
			if config.File.Enabled {
				fileWriter, err := createFileWriter(config.File)
				if err != nil {
					return nil, fmt.Errorf("failed to create file writer: %w", err)
				}
				writers = append(writers, fileWriter)
				closeableWriters = append(closeableWriters, fileWriter)
			}
		}
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	multiWriter := io.MultiWriter(writers...)

	// Debug output carries the source location like the console format
	level := config.EffectiveLevel()
	opts := &slog.HandlerOptions{
		Level:     convertLevel(level),
		AddSource: level == LevelDebug,
	}

	var handler slog.Handler
	switch config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(multiWriter, opts)
	default:
		handler = slog.NewTextHandler(multiWriter, opts)
	}

	return &SlogLogger{
		logger:    slog.New(handler),
		sanitizer: NewSanitizer(),
		writers:   closeableWriters,
	}, nil
}

func isStdStream(w io.WriteCloser) bool {
	return w == os.Stdout || w == os.Stderr || w == os.Stdin
}

// createFileWriter 建立檔案 writer（使用 lumberjack 支援 rotation）
func createFileWriter(config FileConfig) (io.WriteCloser, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("log file path cannot be empty")
	}

	// 確保目錄存在
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   config.Path,
		MaxSize:    config.MaxSizeMB,
		MaxAge:     config.MaxAgeDays,
		MaxBackups: config.MaxBackups,
		Compress:   config.Compress,
	}, nil
}

// convertLevel 轉換內部 Level 到 slog.Level
func convertLevel(level Level) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *SlogLogger) Debug(msg string, args ...any) {
	l.logger.Debug(l.sanitizer.Sanitize(msg), l.sanitizer.SanitizeArgs(args)...)
}

func (l *SlogLogger) Info(msg string, args ...any) {
	l.logger.Info(l.sanitizer.Sanitize(msg), l.sanitizer.SanitizeArgs(args)...)
}

func (l *SlogLogger) Warn(msg string, args ...any) {
	l.logger.Warn(l.sanitizer.Sanitize(msg), l.sanitizer.SanitizeArgs(args)...)
}

func (l *SlogLogger) Error(msg string, args ...any) {
	l.logger.Error(l.sanitizer.Sanitize(msg), l.sanitizer.SanitizeArgs(args)...)
}

// With 建立帶 context 的子 logger
// 子 logger 不擁有 writers，避免重複關閉
func (l *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{
		logger:    l.logger.With(l.sanitizer.SanitizeArgs(args)...),
		sanitizer: l.sanitizer,
	}
}

// Sync 強制 flush 所有緩衝
func (l *SlogLogger) Sync() error {
	// lumberjack writes through; nothing is buffered here
	return nil
}

// Shutdown 優雅關閉，flush 並關閉所有 writers
func (l *SlogLogger) Shutdown() error {
	var lastErr error
	for _, w := range l.writers {
		if err := w.Close(); err != nil {
			lastErr = err
		}
	}
	l.writers = nil
	return lastErr
}
