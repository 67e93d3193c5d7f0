// Package logger wraps zerolog with the file-backed client log and the
// stderr server log.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const maxLogSize = 10 * 1024 * 1024

var (
	mu       sync.RWMutex
	logFile  *os.File
	logPath  string
	base     = zerolog.New(io.Discard)
	initOnce sync.Once
)

// Init opens ~/.roomchat/debug.log for the terminal client. The terminal owns
// stdout, so everything goes to the file.
func Init() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	return InitFile(filepath.Join(homeDir, ".roomchat", "debug.log"))
}

// InitFile opens path for appending, rotating it when larger than 10MB.
func InitFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	if info, err := f.Stat(); err == nil && info.Size() > maxLogSize {
		_ = f.Close()
		backupPath := fmt.Sprintf("%s.%d", path, time.Now().Unix())
		_ = os.Rename(path, backupPath)
		f, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to create new log file: %w", err)
		}
	}

	mu.Lock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
	logPath = path
	base = zerolog.New(f).With().Timestamp().Caller().Logger()
	mu.Unlock()

	LogInfo("Logger initialized, log file: %s", path)
	return nil
}

// InitConsole logs to w, human-readable when pretty is set.
func InitConsole(w io.Writer, pretty bool, level zerolog.Level) {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	mu.Lock()
	base = zerolog.New(w).Level(level).With().Timestamp().Logger()
	mu.Unlock()
}

// L returns the process logger.
func L() *zerolog.Logger {
	initOnce.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339Nano
	})
	mu.RLock()
	defer mu.RUnlock()
	l := base
	return &l
}

// Close closes the log file if one is open.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	base = zerolog.New(io.Discard)
}

// LogInfo logs an info message
func LogInfo(format string, args ...any) {
	L().Info().Msgf(format, args...)
}

// LogError logs an error message
func LogError(format string, args ...any) {
	L().Error().Msgf(format, args...)
}

// LogPanic logs a recovered panic with its stack trace
func LogPanic(r any) {
	L().Error().Str("stack", string(debug.Stack())).Msgf("panic: %v", r)
}

// GetLogPath returns the current log file path
func GetLogPath() string {
	mu.RLock()
	defer mu.RUnlock()
	return logPath
}
