// logger/logger.go
package logger

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// ANSI color codes for console output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[LogLevel]string{
	DEBUG: "[DEBUG] ",
	INFO:  "[INFO]  ",
	WARN:  "[WARN]  ",
	ERROR: "[ERROR] ",
}

var levelColors = map[LogLevel]string{
	DEBUG: colorGray,
	INFO:  colorReset,
	WARN:  colorYellow,
	ERROR: colorRed,
}

type Logger struct {
	console  *log.Logger
	file     *log.Logger
	logFile  *os.File
	minLevel LogLevel
}

var (
	defaultLogger *Logger
	once          sync.Once
	mu            sync.Mutex
)

// ensureInitialized creates a console-only default logger if Init was never called
func ensureInitialized() {
	once.Do(func() {
		if defaultLogger == nil {
			defaultLogger = &Logger{
				console:  log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lshortfile),
				minLevel: DEBUG,
			}
		}
	})
}

// Init initializes the logger with optional file and console output.
// If filename is empty, logs only to console.
// If console is false, logs only to file.
func Init(filename string, console bool) error {
	mu.Lock()
	defer mu.Unlock()

	if defaultLogger != nil && defaultLogger.logFile != nil {
		defaultLogger.logFile.Close()
	}

	l := &Logger{minLevel: DEBUG}
	flags := log.Ldate | log.Ltime | log.Lshortfile

	if filename != "" {
		file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		l.logFile = file
		l.file = log.New(file, "", flags)
	}
	if console {
		l.console = log.New(os.Stdout, "", flags)
	}
	if l.console == nil && l.file == nil {
		return fmt.Errorf("no output destination specified")
	}

	defaultLogger = l
	return nil
}

// SetLevel sets the minimum log level. Messages below it are dropped.
func SetLevel(level LogLevel) {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	defaultLogger.minLevel = level
}

// Close closes the log file if one is open
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if defaultLogger != nil && defaultLogger.logFile != nil {
		defaultLogger.logFile.Close()
		defaultLogger.logFile = nil
		defaultLogger.file = nil
	}
}

func (l *Logger) output(level LogLevel, msg string) {
	if level < l.minLevel {
		return
	}
	// Console gets the colored level prefix, file gets a plain one
	if l.console != nil {
		l.console.Output(3, levelColors[level]+levelNames[level]+colorReset+msg)
	}
	if l.file != nil {
		l.file.Output(3, levelNames[level]+msg)
	}
}

func emit(level LogLevel, msg string) {
	ensureInitialized()
	defaultLogger.output(level, msg)
}

// Debug logs a debug message
func Debug(v ...interface{}) {
	emit(DEBUG, fmt.Sprint(v...))
}

// Debugf logs a formatted debug message
func Debugf(format string, v ...interface{}) {
	emit(DEBUG, fmt.Sprintf(format, v...))
}

// Info logs an info message
func Info(v ...interface{}) {
	emit(INFO, fmt.Sprint(v...))
}

// Infof logs a formatted info message
func Infof(format string, v ...interface{}) {
	emit(INFO, fmt.Sprintf(format, v...))
}

// Warn logs a warning message
func Warn(v ...interface{}) {
	emit(WARN, fmt.Sprint(v...))
}

// Warnf logs a formatted warning message
func Warnf(format string, v ...interface{}) {
	emit(WARN, fmt.Sprintf(format, v...))
}

// Error logs an error message
func Error(v ...interface{}) {
	emit(ERROR, fmt.Sprint(v...))
}

// Errorf logs a formatted error message
func Errorf(format string, v ...interface{}) {
	emit(ERROR, fmt.Sprintf(format, v...))
}

// Fatal logs an error message and exits the program
func Fatal(v ...interface{}) {
	emit(ERROR, fmt.Sprint(v...))
	os.Exit(1)
}

// Fatalf logs a formatted error message and exits the program
func Fatalf(format string, v ...interface{}) {
	emit(ERROR, fmt.Sprintf(format, v...))
	os.Exit(1)
}
