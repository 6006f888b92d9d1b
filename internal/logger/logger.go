package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelDebug   LogLevel = "DEBUG"
)

// Options controls where log entries are written
type Options struct {
	Dir     string // log directory, defaults to "logs"
	Console bool   // mirror entries to stderr in human readable form
	Debug   bool
}

// Logger writes structured trading logs to a daily file and optionally the console
type Logger struct {
	name    string
	logDir  string
	logFile *os.File
	zl      zerolog.Logger
	root    bool
}

// NewLogger creates a new file logger named after the bot session
func NewLogger(name string, opts Options) (*Logger, error) {
	logDir := opts.Dir
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, logFileName(name, time.Now()))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	var out io.Writer = file
	if opts.Console {
		console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		out = zerolog.MultiLevelWriter(file, console)
	}

	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339
	l := &Logger{
		name:    name,
		logDir:  logDir,
		logFile: file,
		zl:      zerolog.New(out).Level(level).With().Timestamp().Str("session", name).Logger(),
		root:    true,
	}

	l.zl.Info().Str("log_file", logPath).Msg("trading session started")
	return l, nil
}

// New wraps an existing zerolog logger, mostly for tests and embedding
func New(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger tagged with a component name. Children share the
// parent's file and must not be closed.
func (l *Logger) With(component string) *Logger {
	return &Logger{
		name:   l.name,
		logDir: l.logDir,
		zl:     l.zl.With().Str("component", component).Logger(),
	}
}

// Log writes a formatted log entry with the specified level
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	var event *zerolog.Event
	switch level {
	case LogLevelWarning:
		event = l.zl.Warn()
	case LogLevelError:
		event = l.zl.Error()
	case LogLevelDebug:
		event = l.zl.Debug()
	case LogLevelTrade:
		event = l.zl.Info().Str("kind", "trade")
	default:
		event = l.zl.Info()
	}
	event.Msgf(format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// Trade logs a trading action
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Debug logs only when the logger was created in debug mode
func (l *Logger) Debug(format string, args ...interface{}) {
	l.Log(LogLevelDebug, format, args...)
}

// LogError logs error with context
func (l *Logger) LogError(context string, err error) {
	l.zl.Error().Err(err).Msg(context)
}

// LogWarning logs warning with context
func (l *Logger) LogWarning(context string, message string, args ...interface{}) {
	l.zl.Warn().Str("context", context).Msgf(message, args...)
}

// Close closes the log file. Only the root logger owns the file.
func (l *Logger) Close() error {
	if !l.root || l.logFile == nil {
		return nil
	}
	l.zl.Info().Msg("trading session ended")
	err := l.logFile.Close()
	l.logFile = nil
	return err
}

// GetLogPath returns the current log file path
func (l *Logger) GetLogPath() string {
	if l.logDir == "" {
		return ""
	}
	return filepath.Join(l.logDir, logFileName(l.name, time.Now()))
}

func logFileName(name string, now time.Time) string {
	return fmt.Sprintf("%s_%s.log", name, now.Format("2006-01-02"))
}
