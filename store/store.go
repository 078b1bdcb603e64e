// Package store implements the durable value store: a generic wrapper
// that owns a value of type V and a filesystem path, persists V
// all-or-nothing via a sibling temp file, and reloads V with recovery
// from that temp file if the primary copy is corrupt.
//
// Persistence is backgrounded onto a single long-lived worker goroutine
// per Store (Design Notes, item 3: not a thread per write). Mutate joins
// the previous write before enqueuing a new one, so at most one write is
// ever in flight for a given Store (P8); Close joins the last one, the Go
// analogue of the original's Drop.
package store

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type writeJob struct {
	data   []byte
	result chan error
}

// Store durably persists a value of type V at a filesystem path.
type Store[V any] struct {
	mu   sync.Mutex
	val  V
	path string
	tmp  string

	format Format

	jobs       chan writeJob
	done       chan struct{}
	pending    chan error // result channel of the most recently submitted, not-yet-joined job
	closed     bool
	closeMu    sync.Mutex
}

func tempPathFor(path string) string {
	dir, base := filepath.Split(path)
	return filepath.Join(dir, ".temp"+base)
}

// Create serializes initial into path (overwriting any existing
// contents) and returns a Store backed by it.
func Create[V any](initial V, path string, format Format) (*Store[V], error) {
	s := &Store[V]{
		val:    initial,
		path:   path,
		tmp:    tempPathFor(path),
		format: format,
		jobs:   make(chan writeJob),
		done:   make(chan struct{}),
	}
	data, err := marshal(format, &s.val)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return nil, newPathError(KindIO, err, "create", path)
	}
	go s.worker()
	return s, nil
}

// Load reads V from path, falling back to the sibling temp file if
// decoding the primary copy fails. On successful recovery from the temp
// file, the temp file's contents are copied over the primary and the
// temp file is removed.
func Load[V any](path string, format Format) (*Store[V], error) {
	var val V
	primaryErr := readFile(path, format, &val)
	if primaryErr == nil {
		s := &Store[V]{val: val, path: path, tmp: tempPathFor(path), format: format, jobs: make(chan writeJob), done: make(chan struct{})}
		go s.worker()
		return s, nil
	}

	tmp := tempPathFor(path)
	log.WithFields(log.Fields{"path": path, "temp": tmp, "cause": primaryErr.Error()}).
		Info("store: primary file unreadable, attempting recovery from temp file")

	var recovered V
	if err := readFile(tmp, format, &recovered); err != nil {
		return nil, primaryErr
	}

	if err := copyFile(tmp, path); err != nil {
		return nil, newPathError(KindIO, err, "recover: copy temp over primary", path)
	}
	if err := os.Remove(tmp); err != nil {
		log.WithFields(log.Fields{"path": tmp, "cause": err.Error()}).Warn("store: could not remove temp file after recovery")
	}

	s := &Store[V]{val: recovered, path: path, tmp: tmp, format: format, jobs: make(chan writeJob), done: make(chan struct{})}
	go s.worker()
	return s, nil
}

func readFile(path string, format Format, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newPathError(KindIO, err, "read", path)
	}
	if err := unmarshal(format, data, v); err != nil {
		if se, ok := err.(*Error); ok {
			se.Path = path
			se.Err = errors.Wrapf(se.Err, "path %s", path)
			return se
		}
		return newPathError(KindSerialization, err, "decode", path)
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return writeFileAtomic(dst, data)
}

func writeFileAtomic(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Read borrows the held value.
func (s *Store[V]) Read() *V {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &s.val
}

// Path returns the filesystem path this Store persists to.
func (s *Store[V]) Path() string { return s.path }

// Mutate invokes op on the held value, then asynchronously persists the
// result. Persistence errors from the *previous* mutation surface as the
// error return of the *next* call to Mutate (or from Close, for the
// final one) -- this is what it means for "at most one write to be in
// flight": Mutate only ever waits on the write before it, never its own.
func (s *Store[V]) Mutate(op func(*V)) (err error) {
	s.mu.Lock()
	op(&s.val)
	data, marshalErr := marshal(s.format, &s.val)
	s.mu.Unlock()

	prevErr := s.joinPrevious()

	if marshalErr != nil {
		return marshalErr
	}

	s.submit(data)
	return prevErr
}

// Replace overwrites the held value with val, equivalent to
// Mutate(func(v *V) { *v = val }).
func (s *Store[V]) Replace(val V) error {
	return s.Mutate(func(v *V) { *v = val })
}

// MutateValue is Store.Mutate generalized to let op report back a result
// alongside the in-memory mutation, such as an error encountered while
// computing it. It is a free function rather than a second method
// because Go methods cannot introduce additional type parameters beyond
// the receiver's.
func MutateValue[V any, R any](s *Store[V], op func(*V) R) (R, error) {
	s.mu.Lock()
	result := op(&s.val)
	data, marshalErr := marshal(s.format, &s.val)
	s.mu.Unlock()

	prevErr := s.joinPrevious()

	if marshalErr != nil {
		var zero R
		return zero, marshalErr
	}

	s.submit(data)
	return result, prevErr
}

func (s *Store[V]) joinPrevious() error {
	if s.pending == nil {
		return nil
	}
	err := <-s.pending
	s.pending = nil
	return err
}

func (s *Store[V]) submit(data []byte) {
	result := make(chan error, 1)
	s.jobs <- writeJob{data: data, result: result}
	s.pending = result
}

func (s *Store[V]) worker() {
	defer close(s.done)
	for job := range s.jobs {
		job.result <- s.persist(job.data)
	}
}

// persist implements the all-or-nothing write protocol: if the primary
// file exists, it is first copied to the temp sibling; the primary is
// then truncated and rewritten; only once that succeeds is the temp
// sibling removed. A crash between these steps leaves the temp file in
// place, which Load then recovers from.
func (s *Store[V]) persist(data []byte) error {
	hadPrimary := false
	if _, err := os.Stat(s.path); err == nil {
		hadPrimary = true
	} else if !os.IsNotExist(err) {
		return newPathError(KindIO, err, "stat", s.path)
	}

	if hadPrimary {
		if err := copyFile(s.path, s.tmp); err != nil {
			return newPathError(KindIO, err, "copy primary to temp", s.path)
		}
	}

	if err := writeFileAtomic(s.path, data); err != nil {
		return newPathError(KindIO, err, "write", s.path)
	}

	if hadPrimary {
		if err := os.Remove(s.tmp); err != nil {
			return newPathError(KindIO, err, "remove temp", s.tmp)
		}
	}

	return nil
}

// Close joins the in-flight persistence worker, guaranteeing that on
// clean shutdown the file reflects the last mutation. It is the Go
// analogue of the original's Drop. Close is idempotent.
func (s *Store[V]) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.joinPrevious()
	close(s.jobs)
	<-s.done
	return err
}
