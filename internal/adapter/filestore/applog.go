package filestore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AppendLog is a newline-delimited file that only ever grows. Every Append
// opens, writes, syncs and closes, so a record that returned nil survives a
// crash.
type AppendLog struct {
	path string
}

// NewAppendLog prepares a log at path, creating its parent directory.
func NewAppendLog(path string) (*AppendLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	return &AppendLog{path: path}, nil
}

// Path returns the file backing this log.
func (l *AppendLog) Path() string {
	return l.path
}

// Append writes line plus a newline and fsyncs before returning.
func (l *AppendLog) Append(line string) error {
	if strings.ContainsAny(line, "\r\n") {
		return fmt.Errorf("append %s: record contains a line break", l.path)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", l.path, err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", l.path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", l.path, err)
	}
	return f.Close()
}

// Lines calls fn for each non-blank line with its 1-based line number.
// A missing file has no lines.
func (l *AppendLog) Lines(fn func(n int, line string)) error {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open %s: %w", l.path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fn(n, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s at line %d: %w", l.path, n, err)
	}
	return nil
}
