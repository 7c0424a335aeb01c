package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// Logger defines the printf-style logging contract used across the codebase.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

var (
	rootInstance *fileLogger
	rootOnce     sync.Once
)

// fileLogger writes formatted lines to haven-debug.log and stdout.
type fileLogger struct {
	file      *os.File
	out       *log.Logger
	level     Level
	mu        sync.Mutex
	component string
}

func root() *fileLogger {
	rootOnce.Do(func() {
		rootInstance = newFileLogger(levelFromEnv())
	})
	return rootInstance
}

func levelFromEnv() Level {
	switch os.Getenv("HAVEN_LOG_LEVEL") {
	case "debug":
		return DEBUG
	case "warn":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func newFileLogger(level Level) *fileLogger {
	l := &fileLogger{level: level}

	home, err := os.UserHomeDir()
	if err != nil {
		return l
	}
	file, err := os.OpenFile(filepath.Join(home, "haven-debug.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return l
	}
	l.file = file
	l.out = log.New(file, "", 0)
	return l
}

// NewComponentLogger returns the shared logger scoped to a component tag.
func NewComponentLogger(component string) Logger {
	base := root()
	return &fileLogger{
		file:      base.file,
		out:       base.out,
		level:     base.level,
		component: component,
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}

func (l *fileLogger) log(level Level, format string, args ...any) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	} else {
		file = "???"
		line = 0
	}

	component := l.component
	if component == "" {
		component = "HAVEN"
	}

	// Format: 2026-01-02 15:04:05 [INFO] [Component] file.go:123 - message
	message := fmt.Sprintf(format, args...)
	logLine := fmt.Sprintf("%s [%s] [%s] %s:%d - %s",
		time.Now().Format("2006-01-02 15:04:05"), levelString(level), component, file, line, message)

	sanitized := Redact(logLine)
	if l.out != nil {
		l.out.Println(sanitized)
	}
	fmt.Println(sanitized)
}

func (l *fileLogger) Debug(format string, args ...any) { l.log(DEBUG, format, args...) }
func (l *fileLogger) Info(format string, args ...any)  { l.log(INFO, format, args...) }
func (l *fileLogger) Warn(format string, args ...any)  { l.log(WARN, format, args...) }
func (l *fileLogger) Error(format string, args ...any) { l.log(ERROR, format, args...) }

func levelString(level Level) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

const redactedPlaceholder = "[REDACTED]"

// The passphrase must never reach a log line. These patterns catch the common
// ways it could leak: header dumps, key/value formatting, and bearer tokens.
var (
	passwordHeaderPattern = regexp.MustCompile(`(?i)((?:"|')?x-password(?:"|')?\s*(?:=|:)\s*)(?:"|')?([^"'\s,;]+)((?:"|')?)`)
	sensitivePairPattern  = regexp.MustCompile(`(?i)((?:"|')?(?:passphrase|password|api[_-]?key|token|secret)(?:"|')?\s*(?:=|:)\s*)(?:"|')?([^"'\s,;]+)((?:"|')?)`)
	bearerPattern         = regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9\-\._~+/]+=*)`)
)

// Redact masks credentials embedded in a log line.
func Redact(line string) string {
	sanitized := passwordHeaderPattern.ReplaceAllString(line, "${1}"+redactedPlaceholder+"${3}")
	sanitized = sensitivePairPattern.ReplaceAllString(sanitized, "${1}"+redactedPlaceholder+"${3}")
	sanitized = bearerPattern.ReplaceAllString(sanitized, "${1}"+redactedPlaceholder)
	return sanitized
}
