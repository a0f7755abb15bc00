package helpers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"sjsage522/couponwatcher/logger"
)

// LoggerInterface defines the interface for failure diagnostics sinks
type LoggerInterface interface {
	LogError(component string, err error)
	LogInfo(format string, args ...interface{})
}

// Logger appends failure diagnostics to a file
type Logger struct {
	mu        sync.Mutex
	errorFile string
}

// NewLogger creates a new logger instance
func NewLogger(errorFile string) *Logger {
	return &Logger{
		errorFile: errorFile,
	}
}

// LogError appends err with its full cause chain to the error file
func (l *Logger) LogError(component string, err error) {
	if err == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.errorFile); dir != "" {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			logger.LogError("diagnostics", mkErr, "failed to create error log directory")
			return
		}
	}

	f, fileErr := os.OpenFile(l.errorFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if fileErr != nil {
		logger.LogError("diagnostics", fileErr, "failed to open error log")
		return
	}
	defer f.Close()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	f.WriteString(fmt.Sprintf("[%s] [%s] %s\n%s", timestamp, component, err.Error(), causeChain(err)))
}

// LogInfo logs an informational message
func (l *Logger) LogInfo(format string, args ...interface{}) {
	logger.Info(format, args...)
}

// causeChain renders every wrapped error of err, one per line, innermost last
func causeChain(err error) string {
	var b strings.Builder
	depth := 0
	for cur := errors.Unwrap(err); cur != nil; cur = errors.Unwrap(cur) {
		depth++
		fmt.Fprintf(&b, "    %s caused by: %T: %v\n", strings.Repeat("  ", depth-1), cur, cur)
	}
	return b.String()
}
