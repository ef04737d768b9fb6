package logger

import "fmt"

// New 依設定建立 logger
func New(config Config) (Logger, error) {
	if config.Format == FormatConsole {
		return NewConsoleLogger(config), nil
	}

	l, err := NewSlogLogger(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create slog logger: %w", err)
	}
	return l, nil
}

// Nop returns a logger that discards everything
func Nop() Logger {
	return &NullLogger{}
}

// NullLogger 空 logger（不做任何事）
type NullLogger struct{}

func (n *NullLogger) Debug(msg string, args ...any) {}
func (n *NullLogger) Info(msg string, args ...any)  {}
func (n *NullLogger) Warn(msg string, args ...any)  {}
func (n *NullLogger) Error(msg string, args ...any) {}
func (n *NullLogger) With(args ...any) Logger       { return n }
func (n *NullLogger) Sync() error                   { return nil }
func (n *NullLogger) Shutdown() error               { return nil }

// OrNop returns l, or a NullLogger when l is nil
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}
