package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type (
	LogLevel string
	Fields   map[string]any
)

const (
	DebugLogLevel LogLevel = "debug"
	InfoLogLevel  LogLevel = "info"
	WarnLogLevel  LogLevel = "warn"
	ErrorLogLevel LogLevel = "error"
)

type ctxKey struct{}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level       LogLevel `json:"level"`
	Development bool     `json:"development"`

	// rolling log config, production only
	LogFile    string `json:"log_file"`
	MaxSize    int    `json:"max_size"`
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"`
	Compress   bool   `json:"compress"`
}

// Logger is the logging surface shared by every package. Each method takes
// either one Fields map, one error, or alternating key/value pairs.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
	Fatal(msg string, fields ...any)
	WithFields(fields Fields) Logger
	WithError(err error) Logger
	WithContext(ctx context.Context) Logger
	Cleanup()
}

type logger struct {
	zl      zerolog.Logger
	rolling io.Closer
}

func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:       InfoLogLevel,
		Development: true,
		LogFile:     "./logs/simpleweb3.log",
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	}
}

// NewLogger writes to the console in development and to a rolling file plus
// stderr otherwise.
func NewLogger(config *LoggerConfig) Logger {
	if config == nil {
		config = DefaultConfig()
	}
	out, rolling := newOutput(config)
	return &logger{zl: newZerolog(out, config.Level), rolling: rolling}
}

func newOutput(config *LoggerConfig) (io.Writer, io.Closer) {
	if config.Development {
		return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}, nil
	}
	rolling := &lumberjack.Logger{
		Filename:   config.LogFile,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
	return io.MultiWriter(rolling, os.Stderr), rolling
}

func newZerolog(w io.Writer, level LogLevel) zerolog.Logger {
	return zerolog.New(w).Level(ParseLevel(string(level))).With().Timestamp().Logger()
}

// NewWriterLogger logs JSON lines to w.
func NewWriterLogger(w io.Writer, level LogLevel) Logger {
	return &logger{zl: newZerolog(w, level)}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &logger{zl: zerolog.Nop()}
}

// IntoContext stores fields that WithContext will attach to log entries.
func IntoContext(ctx context.Context, fields Fields) context.Context {
	merged := Fields{}
	if existing, ok := ctx.Value(ctxKey{}).(Fields); ok {
		for k, v := range existing {
			merged[k] = v
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, ctxKey{}, merged)
}

// WithFields returns a child logger. The parent is left untouched.
func (l *logger) WithFields(fields Fields) Logger {
	if len(fields) == 0 {
		return l
	}
	return &logger{zl: l.zl.With().Fields(map[string]any(fields)).Logger(), rolling: l.rolling}
}

func (l *logger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return &logger{zl: l.zl.With().Err(err).Logger(), rolling: l.rolling}
}

// WithContext attaches the fields stored by IntoContext, if any.
func (l *logger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return l
	}
	fields, _ := ctx.Value(ctxKey{}).(Fields)
	return l.WithFields(fields)
}

func (l *logger) write(event *zerolog.Event, msg string, fields []any) {
	switch {
	case len(fields) == 1:
		switch f := fields[0].(type) {
		case Fields:
			event.Fields(map[string]any(f))
		case error:
			event.Err(f)
		default:
			event.Interface("UNPAIRED_FIELDS", fields)
		}
	case len(fields)%2 != 0:
		event.Interface("UNPAIRED_FIELDS", fields)
	default:
		for i := 0; i < len(fields); i += 2 {
			key, ok := fields[i].(string)
			if !ok {
				event.Interface("INVALID_KEY", fields[i])
				continue
			}
			event.Interface(key, fields[i+1])
		}
	}
	event.Msg(msg)
}

// Cleanup closes the rolling file, if one was opened.
func (l *logger) Cleanup() {
	if l.rolling == nil {
		return
	}
	if err := l.rolling.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "error closing log file: %v\n", err)
	}
}

// ParseLevel maps a level name to zerolog. Unknown names fall back to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *logger) Debug(msg string, fields ...any) { l.write(l.zl.Debug(), msg, fields) }
func (l *logger) Info(msg string, fields ...any)  { l.write(l.zl.Info(), msg, fields) }
func (l *logger) Warn(msg string, fields ...any)  { l.write(l.zl.Warn(), msg, fields) }
func (l *logger) Error(msg string, fields ...any) { l.write(l.zl.Error(), msg, fields) }
func (l *logger) Fatal(msg string, fields ...any) { l.write(l.zl.Fatal(), msg, fields) }
