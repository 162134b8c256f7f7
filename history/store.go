// Package history owns the append-only chat history file.
package history

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pankaj/minechat/protocol"
)

const filePerm = 0o644

// Store appends received lines to a single history file. It has exactly one
// writer and is not safe for concurrent Append calls.
type Store struct {
	path   string
	file   *os.File
	layout string

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Store.
type Option func(*Store)

// WithTimestamps prefixes every record with the line's receipt time
// formatted with layout.
func WithTimestamps(layout string) Option {
	return func(s *Store) { s.layout = layout }
}

// Open opens path for appending, creating the file if needed. The parent
// directory must already exist and be writable.
func Open(path string, opts ...Option) (*Store, error) {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &StorageError{Op: "open", Path: path, Err: err}
	}
	if !info.IsDir() {
		return nil, &StorageError{Op: "open", Path: path, Err: fmt.Errorf("%s is not a directory", dir)}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePerm)
	if err != nil {
		return nil, &StorageError{Op: "open", Path: path, Err: err}
	}

	s := &Store{path: path, file: f}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the history file location.
func (s *Store) Path() string { return s.path }

// Append writes one record and syncs it to disk before returning, so a crash
// after line N never loses line N.
func (s *Store) Append(line protocol.ChatLine) error {
	record := protocol.Stamp(line, s.layout) + "\n"
	if _, err := s.file.WriteString(record); err != nil {
		return &StorageError{Op: "append", Path: s.path, Err: err}
	}
	if err := s.file.Sync(); err != nil {
		return &StorageError{Op: "sync", Path: s.path, Err: err}
	}
	return nil
}

// Close flushes and closes the file. Only the first call has any effect.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if err := s.file.Sync(); err != nil && !errors.Is(err, fs.ErrClosed) {
			s.closeErr = &StorageError{Op: "sync", Path: s.path, Err: err}
		}
		if err := s.file.Close(); err != nil && s.closeErr == nil {
			s.closeErr = &StorageError{Op: "close", Path: s.path, Err: err}
		}
	})
	return s.closeErr
}

// Tail returns up to the last n records of the history file at path, oldest
// first. A missing file yields no records.
func Tail(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	defer f.Close()

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 4096), protocol.MaxLineLength+1024)
	for scanner.Scan() {
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return ring, nil
}
