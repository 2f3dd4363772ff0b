package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// collection is a mutex-guarded JSON-file record collection. Records are
// kept as an ordered slice so that list operations observe insertion order,
// and every save is an atomic replace (temp file + rename) so a crashed
// write never corrupts the store.
type collection[T any] struct {
	mu   sync.Mutex
	path string
	idOf func(*T) string
}

func newCollection[T any](dir, name string, idOf func(*T) string) (*collection[T], error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	c := &collection[T]{
		path: filepath.Join(dir, name+".json"),
		idOf: idOf,
	}
	if _, err := os.Stat(c.path); os.IsNotExist(err) {
		if err := writeAtomic(c.path, []byte("[]\n")); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *collection[T]) load() ([]T, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", c.path, err)
	}
	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", c.path, err)
	}
	return records, nil
}

func (c *collection[T]) save(records []T) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", c.path, err)
	}
	return writeAtomic(c.path, data)
}

func (c *collection[T]) insert(record *T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load()
	if err != nil {
		return err
	}
	records = append(records, *record)
	return c.save(records)
}

// mutate loads the record with the given id, applies fn in place and saves.
// Returns ErrNotFound if no record matches.
func (c *collection[T]) mutate(id string, fn func(*T)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load()
	if err != nil {
		return err
	}
	for i := range records {
		if c.idOf(&records[i]) == id {
			fn(&records[i])
			return c.save(records)
		}
	}
	return ErrNotFound
}

func (c *collection[T]) get(id string) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load()
	if err != nil {
		return nil, err
	}
	for i := range records {
		if c.idOf(&records[i]) == id {
			record := records[i]
			return &record, nil
		}
	}
	return nil, ErrNotFound
}

func (c *collection[T]) list(match func(*T) bool) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(records))
	for i := range records {
		if match == nil || match(&records[i]) {
			out = append(out, records[i])
		}
	}
	return out, nil
}

func (c *collection[T]) remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load()
	if err != nil {
		return err
	}
	for i := range records {
		if c.idOf(&records[i]) == id {
			records = append(records[:i], records[i+1:]...)
			return c.save(records)
		}
	}
	return ErrNotFound
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
