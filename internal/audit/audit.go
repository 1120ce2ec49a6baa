package audit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Log records one line per print event. Callers treat failures as
// non-critical and may ignore them.
type Log interface {
	Append(ctx context.Context, line string) error
}

// FileLog appends lines to a plain text file, print-log.txt by default.
type FileLog struct {
	mu   sync.Mutex
	path string
}

func NewFileLog(path string) *FileLog {
	return &FileLog{path: path}
}

func (f *FileLog) Append(ctx context.Context, line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	if _, err := file.WriteString(singleLine(line) + "\n"); err != nil {
		file.Close()
		return fmt.Errorf("write audit log: %w", err)
	}
	return file.Close()
}

// Multi fans a line out to several logs. Every log is tried; the errors
// are joined.
type Multi []Log

func (m Multi) Append(ctx context.Context, line string) error {
	var errs []error
	for _, l := range m {
		if err := l.Append(ctx, line); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// singleLine keeps one record per line in the file.
func singleLine(s string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", " ")
}
