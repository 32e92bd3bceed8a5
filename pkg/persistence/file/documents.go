package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dukex/flowport/pkg/persistence"
)

// documents stores JSON documents grouped by kind, one document per id.
type documents interface {
	read(kind, id string) ([]byte, bool, error)
	list(kind string) (map[string][]byte, error)
	write(kind, id string, data []byte) error
	remove(kind, id string) error
}

// validateID validates that the id is safe to use as a file name.
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", persistence.ErrInvalidID)
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q contains invalid characters", persistence.ErrInvalidID, id)
	}

	return nil
}

// disk keeps each document in root/<kind>/<id>.json.
type disk struct {
	root string
	mu   sync.RWMutex
}

func (d *disk) path(kind, id string) string {
	return filepath.Join(d.root, kind, id+".json")
}

func (d *disk) read(kind, id string) ([]byte, bool, error) {
	if err := validateID(id); err != nil {
		return nil, false, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	data, err := os.ReadFile(d.path(kind, id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s %s: %w", kind, id, err)
	}

	return data, true, nil
}

func (d *disk) list(kind string) (map[string][]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	dir := filepath.Join(d.root, kind)

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return map[string][]byte{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}

	docs := make(map[string][]byte, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}

		docs[strings.TrimSuffix(entry.Name(), ".json")] = data
	}

	return docs, nil
}

func (d *disk) write(kind, id string, data []byte) error {
	if err := validateID(id); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	dir := filepath.Join(d.root, kind)

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	// Write to a temp file first so readers never see a partial document.
	tmp, err := os.CreateTemp(dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write %s %s: %w", kind, id, err)
	}

	err = os.Rename(tmp.Name(), d.path(kind, id))
	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write %s %s: %w", kind, id, err)
	}

	return nil
}

func (d *disk) remove(kind, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	err := os.Remove(d.path(kind, id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s %s: %w", kind, id, err)
	}

	return nil
}

// staged overlays pending writes on top of the disk until commit.
// A nil entry in pending marks a removal.
type staged struct {
	base    *disk
	mu      sync.Mutex
	pending map[string]map[string][]byte
	closed  bool
}

func newStaged(base *disk) *staged {
	return &staged{
		base:    base,
		pending: make(map[string]map[string][]byte),
	}
}

func (s *staged) read(kind, id string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, persistence.ErrTransactionClosed
	}

	if data, ok := s.pending[kind][id]; ok {
		return data, data != nil, nil
	}

	return s.base.read(kind, id)
}

func (s *staged) list(kind string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, persistence.ErrTransactionClosed
	}

	docs, err := s.base.list(kind)
	if err != nil {
		return nil, err
	}

	for id, data := range s.pending[kind] {
		if data == nil {
			delete(docs, id)

			continue
		}

		docs[id] = data
	}

	return docs, nil
}

func (s *staged) write(kind, id string, data []byte) error {
	if err := validateID(id); err != nil {
		return err
	}

	return s.stage(kind, id, append([]byte(nil), data...))
}

func (s *staged) remove(kind, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	return s.stage(kind, id, nil)
}

func (s *staged) stage(kind, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return persistence.ErrTransactionClosed
	}

	if s.pending[kind] == nil {
		s.pending[kind] = make(map[string][]byte)
	}

	s.pending[kind][id] = data

	return nil
}

// commit flushes pending documents to disk in a stable order. When a write fails,
// every document already flushed is restored to what it held before the commit.
func (s *staged) commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return persistence.ErrTransactionClosed
	}

	s.closed = true

	var flushed []previous

	for _, kind := range sortedKeys(s.pending) {
		for _, id := range sortedKeys(s.pending[kind]) {
			before, existed, err := s.base.read(kind, id)
			if err == nil {
				flushed = append(flushed, previous{kind: kind, id: id, data: before, existed: existed})

				data := s.pending[kind][id]
				if data == nil {
					err = s.base.remove(kind, id)
				} else {
					err = s.base.write(kind, id, data)
				}
			}

			if err != nil {
				err = fmt.Errorf("failed to commit %s %s: %w", kind, id, err)

				return errors.Join(err, s.restore(flushed))
			}
		}
	}

	return nil
}

// previous is the on-disk state of a document before commit touched it.
type previous struct {
	kind    string
	id      string
	data    []byte
	existed bool
}

func (s *staged) restore(flushed []previous) error {
	var errs []error

	for i := len(flushed) - 1; i >= 0; i-- {
		doc := flushed[i]

		var err error
		if doc.existed {
			err = s.base.write(doc.kind, doc.id, doc.data)
		} else {
			err = s.base.remove(doc.kind, doc.id)
		}

		if err != nil {
			errs = append(errs, fmt.Errorf("failed to restore %s %s: %w", doc.kind, doc.id, err))
		}
	}

	return errors.Join(errs...)
}

func (s *staged) rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.pending = nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
