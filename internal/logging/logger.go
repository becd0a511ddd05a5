package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// DispatchLog represents a single message dispatch outcome.
type DispatchLog struct {
	Timestamp  time.Time `json:"timestamp"`
	MessageID  string    `json:"message_id"`
	Name       string    `json:"name"`
	Attempted  int32     `json:"attempted"`
	DurationMs int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	Dead       bool      `json:"dead,omitempty"`
}

// Logger handles dispatch-outcome logging, separate from the operational
// logger returned by Op().
type Logger struct {
	mu      sync.Mutex
	enabled bool
	file    *os.File
	console bool
}

var defaultLogger = &Logger{enabled: true, console: true}

// Default returns the default dispatch logger.
func Default() *Logger {
	return defaultLogger
}

// SetOutput sets the log output file.
func (l *Logger) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// SetConsole enables/disables console output.
func (l *Logger) SetConsole(enabled bool) {
	l.mu.Lock()
	l.console = enabled
	l.mu.Unlock()
}

// Log writes a dispatch log entry.
func (l *Logger) Log(entry *DispatchLog) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	entry.Timestamp = time.Now()

	if l.console {
		status := "✓"
		if !entry.Success {
			status = "✗"
		}
		dead := ""
		if entry.Dead {
			dead = " [dead]"
		}
		fmt.Printf("[dispatch] %s %s %s attempt:%d %dms%s\n",
			status, entry.MessageID, entry.Name, entry.Attempted, entry.DurationMs, dead)
		if entry.Error != "" {
			fmt.Printf("[dispatch]   error: %s\n", entry.Error)
		}
	}

	if l.file != nil {
		data, _ := json.Marshal(entry)
		l.file.Write(append(data, '\n'))
	}
}

// Close closes the log file.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
