// Package events provides the append-only audit log. Every external vault
// CLI invocation and every phase transition is recorded so an operator can
// reconstruct exactly what was done to the remote system.
package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// DefaultMaxLogSize caps a single log file at 50MB before rotation.
	DefaultMaxLogSize = 50 * 1024 * 1024
	logFileExtension  = ".jsonl"
	archiveDir        = "archive"
)

// Entry is a single audit record.
type Entry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Event      string         `json:"event"`
	TargetUser string         `json:"target_user,omitempty"`
	Subcommand string         `json:"subcommand,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// Logger appends JSONL entries with fsync-per-entry durability and
// size-based rotation into an archive/ subdirectory.
type Logger struct {
	mu          sync.Mutex
	file        *os.File
	currentSize int64
	maxSize     int64
	logPath     string
}

func NewLogger(logPath string, maxSize int64) (*Logger, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxLogSize
	}

	l := &Logger{
		logPath: logPath,
		maxSize: maxSize,
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := l.openLogFile(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Logger) openLogFile() error {
	file, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	l.file = file
	l.currentSize = stat.Size()
	return nil
}

// Log records an event. A nil Logger is a no-op so tests and dry probes can
// run without a log file.
func (l *Logger) Log(event string, details map[string]any) error {
	if l == nil {
		return nil
	}

	entry := Entry{
		Timestamp: time.Now().UTC(),
		Event:     event,
		Details:   details,
	}
	if v, ok := details["target_user"].(string); ok {
		entry.TargetUser = v
	}
	if v, ok := details["subcommand"].(string); ok {
		entry.Subcommand = v
	}

	return l.writeEntry(&entry)
}

func (l *Logger) writeEntry(entry *Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}
	data = append(data, '\n')

	if l.currentSize+int64(len(data)) > l.maxSize {
		if err := l.rotate(); err != nil {
			return fmt.Errorf("rotate log: %w", err)
		}
	}

	n, err := l.file.Write(data)
	if err != nil {
		return fmt.Errorf("write log entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync log file: %w", err)
	}

	l.currentSize += int64(n)
	return nil
}

func (l *Logger) rotate() error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close current log file: %w", err)
	}

	dir := filepath.Join(filepath.Dir(l.logPath), archiveDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	baseName := filepath.Base(l.logPath)
	stem := baseName
	if filepath.Ext(baseName) == logFileExtension {
		stem = baseName[:len(baseName)-len(logFileExtension)]
	}
	archivePath := filepath.Join(dir, fmt.Sprintf("%s.%s%s", stem, timestamp, logFileExtension))

	if err := os.Rename(l.logPath, archivePath); err != nil {
		return fmt.Errorf("archive log file: %w", err)
	}

	return l.openLogFile()
}

func (l *Logger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			return err
		}
		return l.file.Close()
	}
	return nil
}

// Path returns the current log file path, or "" for a nil Logger.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.logPath
}
