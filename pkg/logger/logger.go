package logger

import (
	"log"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Level represents the severity level of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	NoticeLevel
	ErrorLevel
)

// Component tags used across the engine. Messages beginning with a known
// tag get per-component coloring when coloring is enabled.
const (
	TagChain  = "[CHAIN]"
	TagLedger = "[LEDGER]"
	TagRouter = "[ROUTER]"
	TagAPI    = "[API]"
	TagOracle = "[ORACLE]"
)

var tagColors = map[string]color.Attribute{
	TagChain:  color.FgHiBlue,
	TagLedger: color.FgHiGreen,
	TagRouter: color.FgYellow,
	TagAPI:    color.FgMagenta,
	TagOracle: color.FgCyan,
}

// Logger is a simple interface for logging messages.
type Logger interface {
	// Info logs an informational message.
	Info(format string, args ...interface{})

	// Error logs an error message.
	Error(format string, args ...interface{})

	// Debug logs a debug message.
	Debug(format string, args ...interface{})

	// Notice logs a notice message.
	Notice(format string, args ...interface{})
}

// EmptyLogger is a simple implementation of the Logger interface that does nothing.
type EmptyLogger struct{}

var _ Logger = (*EmptyLogger)(nil)

func (l *EmptyLogger) Info(_ string, _ ...interface{})   {}
func (l *EmptyLogger) Error(_ string, _ ...interface{})  {}
func (l *EmptyLogger) Debug(_ string, _ ...interface{})  {}
func (l *EmptyLogger) Notice(_ string, _ ...interface{}) {}

// StdLogger is a standard implementation of the Logger interface that logs messages to the console.
type StdLogger struct {
	enableColoring bool
	level          Level
	mu             sync.Mutex
}

var _ Logger = (*StdLogger)(nil)

func NewStdLogger(enableColoring bool, level Level) *StdLogger {
	return &StdLogger{
		enableColoring: enableColoring,
		level:          level,
	}
}

// formatMessage formats the log message with the appropriate log level and
// component coloring if enabled.
func (l *StdLogger) formatMessage(level Level, format string) string {
	var levelStr string
	switch level {
	case DebugLevel:
		levelStr = "[DEBUG]  "
	case InfoLevel:
		levelStr = "[INFO]   "
	case NoticeLevel:
		levelStr = "[NOTICE] "
	case ErrorLevel:
		levelStr = "[ERROR]  "
	}

	if l.enableColoring {
		for tag, attr := range tagColors {
			if strings.HasPrefix(format, tag) {
				format = color.New(attr).Sprint(tag) + format[len(tag):]
				break
			}
		}
	}

	return levelStr + format
}

func (l *StdLogger) Info(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= InfoLevel {
		log.Printf(l.formatMessage(InfoLevel, format), args...)
	}
}

func (l *StdLogger) Error(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= ErrorLevel {
		log.Printf(l.formatMessage(ErrorLevel, format), args...)
	}
}

func (l *StdLogger) Debug(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= DebugLevel {
		log.Printf(l.formatMessage(DebugLevel, format), args...)
	}
}

func (l *StdLogger) Notice(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level <= NoticeLevel {
		log.Printf(l.formatMessage(NoticeLevel, format), args...)
	}
}

// ParseLevel maps a level name to its Level, defaulting to info.
func ParseLevel(name string) Level {
	switch strings.ToLower(name) {
	case "debug":
		return DebugLevel
	case "notice":
		return NoticeLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}
