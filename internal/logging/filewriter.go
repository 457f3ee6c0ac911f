package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileWriter is an append-only log file that rotates once it reaches maxSize.
// It backs the main log file and the per-engine stderr sinks.
type FileWriter struct {
	mu          sync.Mutex
	file        *os.File
	path        string
	maxSize     int64 // bytes, 0 disables rotation
	maxBackups  int
	maxAge      time.Duration
	currentSize int64
}

// NewFileWriter opens (or creates) path for appending.
func NewFileWriter(path string, maxSizeMB, maxBackups, maxAgeDays int) (*FileWriter, error) {
	fw := &FileWriter{
		path:       path,
		maxSize:    int64(maxSizeMB) * 1024 * 1024,
		maxBackups: maxBackups,
		maxAge:     time.Duration(maxAgeDays) * 24 * time.Hour,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if err := fw.openFile(); err != nil {
		return nil, err
	}
	if fw.shouldRotate(0) {
		if err := fw.rotate(); err != nil {
			return nil, err
		}
	}
	return fw, nil
}

// Write implements io.Writer.
func (fw *FileWriter) Write(p []byte) (int, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.file == nil {
		return 0, os.ErrClosed
	}

	if fw.shouldRotate(int64(len(p))) {
		if err := fw.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := fw.file.Write(p)
	fw.currentSize += int64(n)
	return n, err
}

// Close closes the underlying file. Further writes fail with os.ErrClosed.
func (fw *FileWriter) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.file == nil {
		return nil
	}
	err := fw.file.Close()
	fw.file = nil
	return err
}

// Path returns the active log file path.
func (fw *FileWriter) Path() string {
	return fw.path
}

func (fw *FileWriter) openFile() error {
	file, err := os.OpenFile(fw.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	fw.file = file
	fw.currentSize = info.Size()
	return nil
}

func (fw *FileWriter) shouldRotate(writeSize int64) bool {
	if fw.maxSize <= 0 {
		return false
	}
	return fw.currentSize > 0 && fw.currentSize+writeSize > fw.maxSize
}

// rotate must be called with fw.mu held.
func (fw *FileWriter) rotate() error {
	if fw.file != nil {
		if err := fw.file.Close(); err != nil {
			return err
		}
		fw.file = nil
	}

	backupPath := fmt.Sprintf("%s.%s", fw.path, time.Now().Format("20060102-150405.000"))
	if err := os.Rename(fw.path, backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}

	if err := fw.openFile(); err != nil {
		return err
	}
	fw.pruneBackups()
	return nil
}

// pruneBackups removes backups beyond maxBackups or older than maxAge.
func (fw *FileWriter) pruneBackups() {
	matches, err := filepath.Glob(fw.path + ".*")
	if err != nil {
		return
	}

	type backup struct {
		path    string
		modTime time.Time
	}
	backups := make([]backup, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		backups = append(backups, backup{path: m, modTime: info.ModTime()})
	}

	// Newest first.
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].modTime.After(backups[j].modTime)
	})

	cutoff := time.Now().Add(-fw.maxAge)
	for i, b := range backups {
		tooMany := fw.maxBackups > 0 && i >= fw.maxBackups
		tooOld := fw.maxAge > 0 && b.modTime.Before(cutoff)
		if tooMany || tooOld {
			_ = os.Remove(b.path)
		}
	}
}

// MultiWriter duplicates writes to every writer.
type MultiWriter struct {
	writers []io.Writer
}

// NewMultiWriter creates a writer that duplicates writes to all provided writers.
func NewMultiWriter(writers ...io.Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write writes p to every writer and fails on the first error.
func (mw *MultiWriter) Write(p []byte) (int, error) {
	for _, w := range mw.writers {
		if n, err := w.Write(p); err != nil {
			return n, err
		}
	}
	return len(p), nil
}
