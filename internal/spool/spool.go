// Package spool manages the per-table, gzip-compressed, append-only
// files that sit between the Parallel Transform Coordinator's writer
// and the Bulk Load Executor. It is the only package
// that understands the on-disk spool layout.
package spool

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// FileName returns the spool file name for a table.
func FileName(table string) string {
	return fmt.Sprintf("%s.tsv.gz", table)
}

// Set is a collection of spool files opened once at the start of a
// run and written to by a single writer goroutine until the run
// completes or is canceled.
type Set struct {
	dir     string
	files   map[string]*os.File
	writers map[string]*gzip.Writer
}

// Open creates dir if needed and opens one spool file per table for
// writing, truncating any pre-existing file of the same name.
func Open(dir string, tables []string) (*Set, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating spool directory %s", dir)
	}
	s := &Set{
		dir:     dir,
		files:   make(map[string]*os.File, len(tables)),
		writers: make(map[string]*gzip.Writer, len(tables)),
	}
	for _, t := range tables {
		path := filepath.Join(dir, FileName(t))
		f, err := os.Create(path)
		if err != nil {
			s.closeAll()
			return nil, errors.Wrapf(err, "creating spool file %s", path)
		}
		s.files[t] = f
		s.writers[t] = gzip.NewWriter(f)
	}
	return s, nil
}

// WriteLine appends one already-encoded line (including its trailing
// newline) to the named table's spool file.
func (s *Set) WriteLine(table, line string) error {
	w, ok := s.writers[table]
	if !ok {
		return errors.Errorf("spool: no file open for table %s", table)
	}
	_, err := io.WriteString(w, line)
	return errors.Wrapf(err, "writing to spool file for table %s", table)
}

// Close flushes and closes every spool file. It is safe to call once,
// after the writer goroutine has stopped submitting lines.
func (s *Set) Close() error {
	var firstErr error
	for t, w := range s.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "closing gzip writer for table %s", t)
		}
	}
	s.closeAll()
	return firstErr
}

func (s *Set) closeAll() {
	for _, f := range s.files {
		_ = f.Close()
	}
}

// Path returns the path to a table's spool file.
func (s *Set) Path(table string) string {
	return filepath.Join(s.dir, FileName(table))
}

// Delete removes every spool file in the run's working directory.
// Called on cancellation or failure so that no partial spools are
// left behind.
func Delete(dir string) error {
	return errors.Wrapf(os.RemoveAll(dir), "deleting spool directory %s", dir)
}

// OpenForReading opens a single table's spool file (written by a
// previous Set) for reading, transparently decompressing it. The
// caller must Close the returned io.ReadCloser.
func OpenForReading(dir, table string) (io.ReadCloser, error) {
	path := filepath.Join(dir, FileName(table))
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening spool file %s", path)
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "opening gzip stream for %s", path)
	}
	return &readCloser{gz: gz, f: f}, nil
}

type readCloser struct {
	gz *gzip.Reader
	f  *os.File
}

func (r *readCloser) Read(p []byte) (int, error) { return r.gz.Read(p) }
func (r *readCloser) Close() error {
	err := r.gz.Close()
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	return err
}
