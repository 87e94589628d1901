package store

import (
	"bufio"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
)

// Cloner is implemented by row types that can deep-copy themselves.
type Cloner[T any] interface {
	Clone() T
}

// Table keeps the rows of one JSONL file in memory. Reads return clones;
// writes persist before they become visible.
type Table[T Cloner[T]] struct {
	path string
	mu   sync.RWMutex
	rows []T
}

// NewTable opens path, creating its directory, and loads every row.
func NewTable[T Cloner[T]](path string) (*Table[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create directory for %s: %w", path, err)
	}
	t := &Table[T]{path: path}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table[T]) load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			t.rows = []T{}
			return nil
		}
		return fmt.Errorf("store: open %s: %w", t.path, err)
	}
	defer func() { _ = f.Close() }()

	var rows []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(line, &row); err != nil {
			return fmt.Errorf("store: decode row in %s: %w", t.path, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("store: read %s: %w", t.path, err)
	}
	t.rows = rows
	return nil
}

// Len returns the number of rows.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// All iterates over clones of the rows in insertion order.
func (t *Table[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		t.mu.RLock()
		defer t.mu.RUnlock()
		for _, row := range t.rows {
			if !yield(row.Clone()) {
				return
			}
		}
	}
}

// Append persists row at the end of the table.
func (t *Table[T]) Append(row T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("store: encode row: %w", err)
	}
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("store: open %s for append: %w", t.path, err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("store: write row: %w", err)
	}
	t.rows = append(t.rows, row.Clone())
	return nil
}

// Modify runs fn on a copy of the rows under the write lock and persists the
// result. When fn fails nothing changes. The whole read-modify-write is one
// step for concurrent callers.
func (t *Table[T]) Modify(fn func(rows []T) ([]T, error)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	work := make([]T, len(t.rows))
	for i, row := range t.rows {
		work[i] = row.Clone()
	}
	next, err := fn(work)
	if err != nil {
		return err
	}
	if err := t.write(next); err != nil {
		return err
	}
	t.rows = next
	return nil
}

// write replaces the file through a temporary file and rename so a crash
// never leaves a truncated table.
func (t *Table[T]) write(rows []T) error {
	tmp, err := os.CreateTemp(filepath.Dir(t.path), filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	w := bufio.NewWriter(tmp)
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			_ = tmp.Close()
			return fmt.Errorf("store: encode row: %w", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("store: write row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("store: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), t.path); err != nil {
		return fmt.Errorf("store: replace %s: %w", t.path, err)
	}
	return nil
}
