// Package logger is a level-filtered file logger that caps its log file at a
// fixed number of lines, trimming the oldest lines when the cap is exceeded.
// The daemon appends to one log file for its whole lifetime, so the cap keeps
// it from growing without bound.
package logger

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// MaxLogLines is the maximum number of lines kept in the log file.
const MaxLogLines = 5000

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelTrace LogLevel = iota
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelTrace:
		return "TRACE"
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a string into a LogLevel, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "TRACE":
		return LogLevelTrace
	case "DEBUG":
		return LogLevelDebug
	case "INFO":
		return LogLevelInfo
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// FileLogger writes level-tagged lines to a file, trimming it once it grows
// past MaxLogLines.
type FileLogger struct {
	file      *os.File
	lineCount int
	level     LogLevel
	mutex     sync.Mutex
}

var globalLogger *FileLogger

// defaultLogger handles logging before the global logger is initialized
var defaultLogger = &FileLogger{
	file:  os.Stderr,
	level: LogLevelInfo,
}

// NewFileLogger creates a FileLogger over an already opened file and installs
// it as the global logger.
func NewFileLogger(file *os.File, level LogLevel) *FileLogger {
	fl := &FileLogger{
		file:  file,
		level: level,
	}
	fl.countExistingLines()
	globalLogger = fl
	return fl
}

// SetLevel sets the logging level
func (fl *FileLogger) SetLevel(level LogLevel) {
	fl.mutex.Lock()
	defer fl.mutex.Unlock()
	fl.level = level
}

func (fl *FileLogger) shouldLog(level LogLevel) bool {
	return level >= fl.level
}

func (fl *FileLogger) logWithLevel(level LogLevel, format string, v ...any) {
	if !fl.shouldLog(level) {
		return
	}
	msg := fmt.Sprintf("%s [%s] %s\n", time.Now().Format("2006/01/02 15:04:05"), level.String(), fmt.Sprintf(format, v...))
	fl.Write([]byte(msg))
}

// Debug logs a debug message
func (fl *FileLogger) Debug(format string, v ...any) {
	fl.logWithLevel(LogLevelDebug, format, v...)
}

// Info logs an info message
func (fl *FileLogger) Info(format string, v ...any) {
	fl.logWithLevel(LogLevelInfo, format, v...)
}

// Warn logs a warning message
func (fl *FileLogger) Warn(format string, v ...any) {
	fl.logWithLevel(LogLevelWarn, format, v...)
}

// Error logs an error message
func (fl *FileLogger) Error(format string, v ...any) {
	fl.logWithLevel(LogLevelError, format, v...)
}

// noopFunc is a reusable no-op to avoid allocations when tracing is off
var noopFunc = func() {}

// Trace returns a function that logs the operation's duration when called.
// Usage: defer logger.Trace("operation")()
func Trace(name string) func() {
	if globalLogger == nil || !globalLogger.shouldLog(LogLevelTrace) {
		return noopFunc
	}
	start := time.Now()
	return func() {
		globalLogger.logWithLevel(LogLevelTrace, "%s: %v", name, time.Since(start))
	}
}

// Package-level logging functions that use the global logger (or stderr
// before initialization)

func Debug(format string, v ...any) {
	active().Debug(format, v...)
}

func Info(format string, v ...any) {
	active().Info(format, v...)
}

func Warn(format string, v ...any) {
	active().Warn(format, v...)
}

func Error(format string, v ...any) {
	active().Error(format, v...)
}

func active() *FileLogger {
	if globalLogger != nil {
		return globalLogger
	}
	return defaultLogger
}

// countExistingLines seeds lineCount from the current file contents so the
// cap applies across daemon restarts.
func (fl *FileLogger) countExistingLines() {
	fl.mutex.Lock()
	defer fl.mutex.Unlock()

	fl.file.Seek(0, 0)
	scanner := bufio.NewScanner(fl.file)
	count := 0
	for scanner.Scan() {
		count++
	}
	fl.lineCount = count
	fl.file.Seek(0, 2)
}

// Write implements io.Writer so the standard log package can be pointed here.
func (fl *FileLogger) Write(p []byte) (n int, err error) {
	fl.mutex.Lock()
	defer fl.mutex.Unlock()

	n, err = fl.file.Write(p)
	if err != nil {
		return n, err
	}

	fl.lineCount += strings.Count(string(p), "\n")
	if fl.lineCount > MaxLogLines {
		fl.trim()
	}
	return n, err
}

// trim rewrites the file keeping only the last MaxLogLines lines.
func (fl *FileLogger) trim() {
	fl.file.Seek(0, 0)
	scanner := bufio.NewScanner(fl.file)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	if len(lines) > MaxLogLines {
		lines = lines[len(lines)-MaxLogLines:]
	}

	fl.file.Truncate(0)
	fl.file.Seek(0, 0)
	for _, line := range lines {
		fl.file.WriteString(line + "\n")
	}
	fl.lineCount = len(lines)
}

// Close closes the underlying file
func (fl *FileLogger) Close() error {
	return fl.file.Close()
}
