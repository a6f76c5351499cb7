package borrowlend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// AddressStore persists the DeployedAddresses record as a JSON document.
type AddressStore struct {
	path string
}

// NewAddressStore returns a store backed by path.
func NewAddressStore(path string) *AddressStore {
	return &AddressStore{path: path}
}

// Path returns the backing file path.
func (s *AddressStore) Path() string {
	return s.path
}

// Load reads the record. A missing, empty or unparsable file yields an empty
// record rather than an error; only I/O failures other than "not exist" fail.
func (s *AddressStore) Load() (*DeployedAddresses, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewDeployedAddresses(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfig, s.path, err)
	}

	return decodeAddresses(data), nil
}

func decodeAddresses(data []byte) *DeployedAddresses {
	if len(bytes.TrimSpace(data)) == 0 {
		return NewDeployedAddresses()
	}

	var parsed *DeployedAddresses
	if err := json.Unmarshal(data, &parsed); err != nil || parsed == nil {
		return NewDeployedAddresses()
	}
	parsed.normalize()
	return parsed
}

// Store writes the record. The document is written to a temp file in the same
// directory and renamed over the target while holding <path>.lock.
func (s *AddressStore) Store(record *DeployedAddresses) error {
	if record == nil {
		record = NewDeployedAddresses()
	}
	record.normalize()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal addresses: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", s.path, err)
	}
	defer lock.Unlock()

	return writeFileAtomic(s.path, data)
}

// Update loads the record, applies fn and stores the result under one lock.
func (s *AddressStore) Update(fn func(*DeployedAddresses) error) (*DeployedAddresses, error) {
	lock := flock.New(s.path + ".lock")
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", filepath.Dir(s.path), err)
	}
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("lock %s: %w", s.path, err)
	}
	defer lock.Unlock()

	record, err := s.Load()
	if err != nil {
		return nil, err
	}
	if err := fn(record); err != nil {
		return nil, err
	}
	record.normalize()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal addresses: %w", err)
	}
	if err := writeFileAtomic(s.path, append(data, '\n')); err != nil {
		return nil, err
	}
	return record, nil
}

// Updater applies a read-modify-write to the stored record atomically.
// *AddressStore satisfies it.
type Updater interface {
	Update(fn func(*DeployedAddresses) error) (*DeployedAddresses, error)
}

// Changes collects record mutations made during a multi-step run. Flush
// replays them on the freshly loaded record under the store lock, so runs
// sharing a file merge their updates instead of overwriting each other.
type Changes struct {
	fns []func(*DeployedAddresses)
}

// Add queues fn for the next Flush.
func (c *Changes) Add(fn func(*DeployedAddresses)) {
	c.fns = append(c.fns, fn)
}

// Len returns the number of queued changes.
func (c *Changes) Len() int {
	return len(c.fns)
}

// Flush applies the queued changes through u and clears the queue. On error
// the queue is kept.
func (c *Changes) Flush(u Updater) error {
	if len(c.fns) == 0 {
		return nil
	}
	fns := c.fns
	if _, err := u.Update(func(d *DeployedAddresses) error {
		for _, fn := range fns {
			fn(d)
		}
		return nil
	}); err != nil {
		return err
	}
	c.fns = nil
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
