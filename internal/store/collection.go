package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrExists   = errors.New("record already exists")
)

// Collection is a keyed record set held in memory and mirrored to a single
// JSON file. Every mutation is written through before it returns; if the
// write fails the in-memory state is rolled back so reads never observe a
// change that is not on disk.
type Collection[T any] struct {
	path    string
	mu      sync.RWMutex
	records map[string]T
	keys    *KeyedMutex
	write   func(path string, data []byte, perm os.FileMode) error
}

// Open loads the record set at path. A missing or empty file yields an empty
// collection; a corrupt file is an error so it is never silently replaced.
func Open[T any](path string) (*Collection[T], error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path is required")
	}

	c := &Collection[T]{
		path:    path,
		records: map[string]T{},
		keys:    NewKeyedMutex(),
		write:   WriteFileAtomic,
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return c, nil
	}

	if err := json.Unmarshal(data, &c.records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if c.records == nil {
		c.records = map[string]T{}
	}

	return c, nil
}

func (c *Collection[T]) Path() string {
	return c.path
}

func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.records[id]
	return rec, ok
}

func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Find returns the first record matching pred. Iteration order is by key so
// results are deterministic.
func (c *Collection[T]) Find(pred func(T) bool) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, id := range c.sortedKeysLocked() {
		if rec := c.records[id]; pred(rec) {
			return rec, true
		}
	}

	var zero T
	return zero, false
}

// Filter returns copies of every record matching pred, ordered by key.
func (c *Collection[T]) Filter(pred func(T) bool) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, 0, len(c.records))
	for _, id := range c.sortedKeysLocked() {
		rec := c.records[id]
		if pred == nil || pred(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// Insert adds a new record. check runs against every existing record while
// the collection is locked, which makes secondary-key uniqueness checks
// atomic with the insert.
func (c *Collection[T]) Insert(id string, rec T, check func(existing T) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.records[id]; exists {
		return ErrExists
	}
	if check != nil {
		for _, existing := range c.records {
			if err := check(existing); err != nil {
				return err
			}
		}
	}

	c.records[id] = rec
	if err := c.persistLocked(); err != nil {
		delete(c.records, id)
		return err
	}
	return nil
}

// Put creates or replaces a record.
func (c *Collection[T]) Put(id string, rec T) error {
	unlock := c.keys.Lock(id)
	defer unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	prev, existed := c.records[id]
	c.records[id] = rec
	if err := c.persistLocked(); err != nil {
		if existed {
			c.records[id] = prev
		} else {
			delete(c.records, id)
		}
		return err
	}
	return nil
}

// Update performs a read-modify-write on one record. Updates to the same key
// are serialized; fn may return an error to abort without writing. check, if
// set, runs against every other record before the commit.
func (c *Collection[T]) Update(id string, fn func(T) (T, error), check func(updated T, other T) error) (T, error) {
	var zero T

	unlock := c.keys.Lock(id)
	defer unlock()

	current, ok := c.Get(id)
	if !ok {
		return zero, ErrNotFound
	}

	updated, err := fn(current)
	if err != nil {
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, still := c.records[id]; !still {
		return zero, ErrNotFound
	}
	if check != nil {
		for otherID, other := range c.records {
			if otherID == id {
				continue
			}
			if err := check(updated, other); err != nil {
				return zero, err
			}
		}
	}

	c.records[id] = updated
	if err := c.persistLocked(); err != nil {
		c.records[id] = current
		return zero, err
	}
	return updated, nil
}

func (c *Collection[T]) Delete(id string) (bool, error) {
	unlock := c.keys.Lock(id)
	defer unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	prev, exists := c.records[id]
	if !exists {
		return false, nil
	}

	delete(c.records, id)
	if err := c.persistLocked(); err != nil {
		c.records[id] = prev
		return false, err
	}
	return true, nil
}

// DeleteWhere removes every record matching pred with a single write.
func (c *Collection[T]) DeleteWhere(pred func(T) bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := map[string]T{}
	for id, rec := range c.records {
		if pred(rec) {
			removed[id] = rec
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}

	for id := range removed {
		delete(c.records, id)
	}
	if err := c.persistLocked(); err != nil {
		for id, rec := range removed {
			c.records[id] = rec
		}
		return 0, err
	}
	return len(removed), nil
}

func (c *Collection[T]) persistLocked() error {
	data, err := json.MarshalIndent(c.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.path, err)
	}
	return c.write(c.path, data, 0o600)
}

func (c *Collection[T]) sortedKeysLocked() []string {
	keys := make([]string, 0, len(c.records))
	for id := range c.records {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	return keys
}
