package types

import "github.com/pkg/errors"

// InvalidEntry indicates a single XML <entry> could not be decoded,
// e.g. because it has no primary accession. It is non-fatal: the
// transform coordinator counts and skips it.
type InvalidEntry struct {
	Accession string // best-effort; may be empty
	Cause     error
}

func (e *InvalidEntry) Error() string {
	if e.Accession == "" {
		return errors.Wrap(e.Cause, "invalid entry").Error()
	}
	return errors.Wrapf(e.Cause, "invalid entry %s", e.Accession).Error()
}

func (e *InvalidEntry) Unwrap() error { return e.Cause }

// TransformFailure is an unrecoverable error raised by the parallel
// transform coordinator. It aborts the run.
type TransformFailure struct {
	Cause error
}

func (e *TransformFailure) Error() string {
	return errors.Wrap(e.Cause, "transform failed").Error()
}

func (e *TransformFailure) Unwrap() error { return e.Cause }

// BulkIngestFailure is raised by the bulk load executor when a spool
// file fails to load into its target table.
type BulkIngestFailure struct {
	Table string
	Cause error
}

func (e *BulkIngestFailure) Error() string {
	return errors.Wrapf(e.Cause, "bulk ingest of table %s failed", e.Table).Error()
}

func (e *BulkIngestFailure) Unwrap() error { return e.Cause }

// ConstraintViolation is surfaced by the database adapter during
// ingest or merge when a primary-key or foreign-key constraint fails.
// Callers should treat it as a BulkIngestFailure (see AsBulkIngestFailure).
type ConstraintViolation struct {
	Table string
	Cause error
}

func (e *ConstraintViolation) Error() string {
	return errors.Wrapf(e.Cause, "constraint violation on table %s", e.Table).Error()
}

func (e *ConstraintViolation) Unwrap() error { return e.Cause }

// AsBulkIngestFailure normalizes a ConstraintViolation into a
// BulkIngestFailure; any other error is wrapped as-is.
func AsBulkIngestFailure(table string, err error) error {
	if err == nil {
		return nil
	}
	var cv *ConstraintViolation
	if errors.As(err, &cv) {
		return &BulkIngestFailure{Table: cv.Table, Cause: cv.Cause}
	}
	return &BulkIngestFailure{Table: table, Cause: err}
}

// CutoverFailure is raised when the atomic schema-swap transaction of
// a full load fails. Production is guaranteed untouched.
type CutoverFailure struct {
	Cause error
}

func (e *CutoverFailure) Error() string {
	return errors.Wrap(e.Cause, "cutover failed; production schema untouched").Error()
}

func (e *CutoverFailure) Unwrap() error { return e.Cause }

// AdapterUnavailable indicates the database adapter could not connect
// before any state mutation was attempted.
type AdapterUnavailable struct {
	Cause error
}

func (e *AdapterUnavailable) Error() string {
	return errors.Wrap(e.Cause, "database adapter unavailable").Error()
}

func (e *AdapterUnavailable) Unwrap() error { return e.Cause }

// ErrCanceled is returned by long-running operations when the run's
// cancellation signal fires.
var ErrCanceled = errors.New("run canceled")
