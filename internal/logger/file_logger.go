package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger is a leveled logger for trading activity. It is safe for concurrent use.
type Logger struct {
	name    string
	logFile *os.File
	logger  *log.Logger
	mu      sync.Mutex
	logDir  string
	now     func() time.Time
}

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelStatus  LogLevel = "STATUS"
)

const timeLayout = "2006-01-02 15:04:05"

// New creates a logger writing to w
func New(w io.Writer) *Logger {
	return &Logger{logger: log.New(w, "", 0), now: time.Now}
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	return New(io.Discard)
}

// NewFileLogger creates a daily log file named after name under dir
func NewFileLogger(dir, name string) (*Logger, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{name: name, logDir: dir, now: time.Now}
	file, err := os.OpenFile(l.GetLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	l.logFile = file
	l.logger = log.New(file, "", 0)

	l.writeSessionHeader()
	return l, nil
}

func (l *Logger) writeSessionHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()

	header := fmt.Sprintf(`
================================================================================
TRADING SESSION STARTED
================================================================================
Session: %s
Started: %s
================================================================================
`, l.name, l.now().Format(timeLayout))

	l.logger.Print(header)
}

// Log writes a formatted log entry with the specified level
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	message := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] [%s] %s", l.now().Format(timeLayout), level, message)
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

// Status logs market or account status
func (l *Logger) Status(format string, args ...interface{}) {
	l.Log(LogLevelStatus, format, args...)
}

// LogError logs error with context
func (l *Logger) LogError(context string, err error) {
	l.Error("%s: %v", context, err)
}

// LogOrderFill logs an executed order in a block that stands out in the file
func (l *Logger) LogOrderFill(orderID, symbol, side string, amount, price float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Printf(`
[%s] [TRADE] ==================== ORDER FILLED ====================
Order ID: %s
Symbol:   %s
Side:     %s
Amount:   %.8f
Price:    %.8f
Value:    %.2f
============================================================`,
		l.now().Format(timeLayout), orderID, symbol, side, amount, price, amount*price)
}

// Close writes the session footer and closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile == nil {
		return nil
	}
	l.logger.Printf(`
================================================================================
TRADING SESSION ENDED
================================================================================
Ended: %s
================================================================================
`, l.now().Format(timeLayout))

	err := l.logFile.Close()
	l.logFile = nil
	return err
}

// GetLogPath returns the current log file path, empty for writer loggers
func (l *Logger) GetLogPath() string {
	if l.logDir == "" {
		return ""
	}
	filename := fmt.Sprintf("%s_%s.log", l.name, l.now().Format("2006-01-02"))
	return filepath.Join(l.logDir, filename)
}
