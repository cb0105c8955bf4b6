package logging

import (
	"fmt"
	"log"
	"sync/atomic"

	"github.com/fatih/color"
)

// currentLevel is the active log level for the process, stored as a uint32 so
// that it can be read from producer Goroutines without locking.
var currentLevel = uint32(LevelInfo)

// SetLevel sets the active log level for the process.
func SetLevel(level Level) {
	atomic.StoreUint32(&currentLevel, uint32(level))
}

// CurrentLevel returns the active log level for the process.
func CurrentLevel() Level {
	return Level(atomic.LoadUint32(&currentLevel))
}

// Logger is the main logger type. It has the novel property that it still
// functions if nil, but it doesn't log anything. It is designed to use the
// standard logger provided by the log package, so it respects any flags set
// for that logger. It is safe for concurrent usage.
type Logger struct {
	// prefix is any prefix specified for the logger.
	prefix string
}

// RootLogger is the root logger from which all other loggers derive.
var RootLogger = &Logger{}

// Sublogger creates a new sublogger with the specified name.
func (l *Logger) Sublogger(name string) *Logger {
	// If the logger is nil, then the sublogger will be as well.
	if l == nil {
		return nil
	}

	// Compute the new prefix.
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}

	// Create the new logger.
	return &Logger{
		prefix: prefix,
	}
}

// output is the internal logging method.
func (l *Logger) output(line string) {
	// Add a prefix if necessary.
	if l.prefix != "" {
		line = fmt.Sprintf("[%s] %s", l.prefix, line)
	}

	// Log.
	log.Output(3, line)
}

// Error logs error information with an error prefix and red color.
func (l *Logger) Error(v ...interface{}) {
	if l != nil && CurrentLevel() >= LevelError {
		l.output(color.RedString("Error: %s", fmt.Sprint(v...)))
	}
}

// Errorf logs error information with semantics equivalent to fmt.Printf, with
// an error prefix and red color.
func (l *Logger) Errorf(format string, v ...interface{}) {
	if l != nil && CurrentLevel() >= LevelError {
		l.output(color.RedString("Error: %s", fmt.Sprintf(format, v...)))
	}
}

// Warn logs error information with a warning prefix and yellow color.
func (l *Logger) Warn(v ...interface{}) {
	if l != nil && CurrentLevel() >= LevelWarn {
		l.output(color.YellowString("Warning: %s", fmt.Sprint(v...)))
	}
}

// Warnf logs error information with semantics equivalent to fmt.Printf, with a
// warning prefix and yellow color.
func (l *Logger) Warnf(format string, v ...interface{}) {
	if l != nil && CurrentLevel() >= LevelWarn {
		l.output(color.YellowString("Warning: %s", fmt.Sprintf(format, v...)))
	}
}

// Info logs information with semantics equivalent to fmt.Print.
func (l *Logger) Info(v ...interface{}) {
	if l != nil && CurrentLevel() >= LevelInfo {
		l.output(fmt.Sprint(v...))
	}
}

// Infof logs information with semantics equivalent to fmt.Printf.
func (l *Logger) Infof(format string, v ...interface{}) {
	if l != nil && CurrentLevel() >= LevelInfo {
		l.output(fmt.Sprintf(format, v...))
	}
}

// Debug logs advanced execution information with semantics equivalent to
// fmt.Print.
func (l *Logger) Debug(v ...interface{}) {
	if l != nil && CurrentLevel() >= LevelDebug {
		l.output(fmt.Sprint(v...))
	}
}

// Debugf logs advanced execution information with semantics equivalent to
// fmt.Printf.
func (l *Logger) Debugf(format string, v ...interface{}) {
	if l != nil && CurrentLevel() >= LevelDebug {
		l.output(fmt.Sprintf(format, v...))
	}
}

// Trace logs low-level execution information with semantics equivalent to
// fmt.Print.
func (l *Logger) Trace(v ...interface{}) {
	if l != nil && CurrentLevel() >= LevelTrace {
		l.output(fmt.Sprint(v...))
	}
}

// Tracef logs low-level execution information with semantics equivalent to
// fmt.Printf.
func (l *Logger) Tracef(format string, v ...interface{}) {
	if l != nil && CurrentLevel() >= LevelTrace {
		l.output(fmt.Sprintf(format, v...))
	}
}
