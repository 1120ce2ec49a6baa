package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (startup, photos saved, print outcomes)
	LevelLive    = 2 // Live info (client events, job polls)
	LevelVerbose = 3 // Verbose (paths, sizes, backend commands)
	LevelTrace   = 4 // Trace (GPIO, raw command output)
)

const prefix = "[photobooth] "

var (
	mu     sync.RWMutex
	level  int
	out    io.Writer = os.Stdout
	logger *log.Logger
	file   *os.File
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (startup, saved photos, print results)
// 2 = live info (client events, print job polling)
// 3 = verbose (paths, sizes, backend commands)
// 4 = trace (GPIO, raw command output)
func Init(debugLevel int) {
	mu.Lock()
	defer mu.Unlock()
	level = debugLevel
	rebuild()
}

// InitFile behaves like Init and additionally appends every line to path.
// An empty path is the same as Init.
func InitFile(debugLevel int, path string) error {
	mu.Lock()
	defer mu.Unlock()
	level = debugLevel
	if file != nil {
		_ = file.Close()
		file = nil
	}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			rebuild()
			return fmt.Errorf("open log file: %w", err)
		}
		file = f
	}
	rebuild()
	return nil
}

// SetOutput replaces the console writer (stdout by default).
// The log file, if any, keeps receiving output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	rebuild()
}

// Close releases the log file opened by InitFile.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	rebuild()
	return err
}

// rebuild must be called with mu held.
func rebuild() {
	if level <= LevelOff {
		logger = nil
		return
	}
	w := out
	if file != nil {
		w = io.MultiWriter(out, file)
	}
	logger = log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

func emit(minLevel int, format string, args ...interface{}) {
	mu.RLock()
	l, lvl := logger, level
	mu.RUnlock()
	if lvl >= minLevel && l != nil {
		l.Printf(format, args...)
	}
}

// Level returns the current debug level.
func Level() int {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return Level() >= minLevel
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	emit(LevelInfo, "[INFO] "+format, args...)
}

// Warn prints a level 1 warning.
func Warn(format string, args ...interface{}) {
	emit(LevelInfo, "[WARN] "+format, args...)
}

// Capture prints the outcome of one camera trigger (level 1).
func Capture(status int, msg string) {
	if status == 0 {
		emit(LevelInfo, "[INFO] Capture ok: %s", msg)
		return
	}
	emit(LevelInfo, "[INFO] Capture failed (status %d): %s", status, msg)
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	emit(LevelLive, "[LIVE] "+format, args...)
}

// Event prints a client event crossing the transport (level 2).
// direction is "in" or "out"; client is empty for broadcasts.
func Event(direction, client, name string) {
	if client == "" {
		client = "*"
	}
	emit(LevelLive, "[LIVE] event %s %s client=%s", direction, name, client)
}

// PrintJob prints a print job state observation (level 2).
func PrintJob(id string, state string) {
	emit(LevelLive, "[LIVE] Print job %s: %s", id, state)
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	emit(LevelVerbose, "[VERBOSE] "+format, args...)
}

// Printf is an alias for Verbose.
func Printf(format string, args ...interface{}) {
	Verbose(format, args...)
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	emit(LevelVerbose, "[VERBOSE] %s: %+v", name, v)
}

// Section prints a section separator (level 3).
func Section(name string) {
	emit(LevelVerbose, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	emit(LevelVerbose, "  %s", name)
	emit(LevelVerbose, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	emit(LevelVerbose, "[VERBOSE] Step %d: %s", num, description)
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	emit(LevelInfo, "[INFO]   %s = %v", name, value)
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace).
func Trace(format string, args ...interface{}) {
	emit(LevelTrace, "[TRACE] "+format, args...)
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	emit(LevelTrace, "[GPIO] %s pin=%d value=%v", operation, pin, value)
}

// Command prints an external command invocation (level 4).
func Command(name string, args []string) {
	emit(LevelTrace, "[EXEC] %s %s", name, strings.Join(args, " "))
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(context string, err error) {
	emit(LevelInfo, "[ERROR] %s: %v", context, err)
}
