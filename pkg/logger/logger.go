package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/SIMPLYBOYS/mempool_scanner/internal/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var logLevelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

func (l LogLevel) String() string {
	if name, ok := logLevelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel maps a config string to a LogLevel, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	for level, name := range logLevelNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return level
		}
	}
	return INFO
}

// Logger is a leveled printf-style logger on top of zap.
type Logger struct {
	level   zap.AtomicLevel
	console zapcore.Core
	file    zapcore.Core
	fields  []interface{}
	sugar   atomic.Pointer[zap.SugaredLogger]
	mu      sync.Mutex
}

var defaultLogger = NewLogger(INFO, os.Stdout)

// NewLogger creates a new Logger instance
func NewLogger(level LogLevel, output io.Writer) *Logger {
	l := &Logger{level: zap.NewAtomicLevelAt(level.zapLevel())}
	l.console = zapcore.NewCore(newEncoder(), zapcore.Lock(zapcore.AddSync(output)), l.level)
	l.rebuild()
	return l
}

func newEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func (l *Logger) rebuild() {
	cores := []zapcore.Core{l.console}
	if l.file != nil {
		cores = append(cores, l.file)
	}
	z := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(2))
	l.sugar.Store(z.Sugar().With(l.fields...))
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level LogLevel) bool {
	return l.level.Enabled(level.zapLevel())
}

// EnableFileLogging enables logging to a file
func (l *Logger) EnableFileLogging(directory string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile := filepath.Join(directory, fmt.Sprintf("scanner_%s.log", time.Now().Format("2006-01-02")))
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	l.file = zapcore.NewCore(newEncoder(), zapcore.Lock(file), l.level)
	l.rebuild()
	return nil
}

// With returns a child logger that adds key/value to every entry.
func (l *Logger) With(key string, value interface{}) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	child := &Logger{
		level:   l.level,
		console: l.console,
		file:    l.file,
		fields:  append(append([]interface{}{}, l.fields...), key, value),
	}
	child.rebuild()
	return child
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sugar.Load().Sync()
}

func (l *Logger) log(level LogLevel, format string, v ...interface{}) {
	s := l.sugar.Load()
	switch level {
	case DEBUG:
		s.Debugf(format, v...)
	case INFO:
		s.Infof(format, v...)
	case WARN:
		s.Warnf(format, v...)
	case ERROR:
		s.Errorf(format, v...)
	case FATAL:
		s.Fatalf(format, v...)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	l.log(DEBUG, format, v...)
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	l.log(INFO, format, v...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	l.log(WARN, format, v...)
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.log(ERROR, format, v...)
}

// Fatal logs a fatal message and exits the program
func (l *Logger) Fatal(format string, v ...interface{}) {
	l.log(FATAL, format, v...)
}

// Errorf logs an error message and returns an error
func (l *Logger) Errorf(err error, format string, v ...interface{}) error {
	msg := fmt.Sprintf(format, v...)
	wrappedErr := fmt.Errorf("%s: %w", msg, err)
	l.log(ERROR, "%s", wrappedErr.Error())
	return wrappedErr
}

// LogError logs err with a message shaped by its type.
func (l *Logger) LogError(err error) {
	var (
		feedErr  *apperrors.FeedError
		alertErr *apperrors.AlertError
		dbErr    *apperrors.DatabaseError
		pubErr   *apperrors.PublishError
	)
	switch {
	case errors.As(err, &feedErr):
		l.log(WARN, "Feed error during %s: %v", feedErr.Operation, feedErr.Err)
	case errors.As(err, &alertErr):
		l.log(ERROR, "Alert error (status %d): %s - %v", alertErr.StatusCode, alertErr.Message, alertErr.Err)
	case errors.As(err, &dbErr):
		l.log(ERROR, "Database error during %s: %v", dbErr.Operation, dbErr.Err)
	case errors.As(err, &pubErr):
		l.log(ERROR, "Publish error on %s: %v", pubErr.Sink, pubErr.Err)
	default:
		l.log(ERROR, "Unexpected error: %v", err)
	}
}

// Global functions that use the default logger

// Default returns the process-wide logger.
func Default() *Logger {
	return defaultLogger
}

// SetLevel sets the logging level for the default logger
func SetLevel(level LogLevel) {
	defaultLogger.SetLevel(level)
}

// EnableFileLogging enables file logging for the default logger
func EnableFileLogging(directory string) error {
	return defaultLogger.EnableFileLogging(directory)
}

// Debug logs a debug message using the default logger
func Debug(format string, v ...interface{}) {
	defaultLogger.log(DEBUG, format, v...)
}

// Info logs an info message using the default logger
func Info(format string, v ...interface{}) {
	defaultLogger.log(INFO, format, v...)
}

// Warn logs a warning message using the default logger
func Warn(format string, v ...interface{}) {
	defaultLogger.log(WARN, format, v...)
}

// Error logs an error message using the default logger
func Error(format string, v ...interface{}) {
	defaultLogger.log(ERROR, format, v...)
}

// Fatal logs a fatal message and exits the program using the default logger
func Fatal(format string, v ...interface{}) {
	defaultLogger.log(FATAL, format, v...)
}

// Sync flushes the default logger.
func Sync() error {
	return defaultLogger.Sync()
}
