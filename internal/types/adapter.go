package types

import (
	"context"
	"io"
	"time"

	"github.com/gowthamrao/py-load-unitprot/internal/catalog"
)

// VersionRow is one row of py_load_uniprot_metadata: the release
// version and release-level counters for a load.
type VersionRow struct {
	Version             string
	ReleaseDate         time.Time
	LoadTimestamp       time.Time
	SwissProtEntryCount int64
	TremblEntryCount    int64
}

// LoadHistoryRow is one row of load_history, written at the start of a
// run and updated at the end.
type LoadHistoryRow struct {
	ID            int64
	RunID         string
	Status        string // running | succeeded | failed | cancelled
	Mode          string // full | delta
	Dataset       string // swissprot | trembl | both
	StartTime     time.Time
	EndTime       time.Time
	ErrorMessage  string
	BadEntryCount int64
}

// CutoverTx is the narrow transaction-scoped capability offered to the
// atomic full-load cutover: two schema renames and
// a metadata write must commit together or not at all.
type CutoverTx interface {
	RenameSchema(ctx context.Context, oldName, newName string) error
	WriteMetadata(ctx context.Context, schema string, row VersionRow) error
}

// DatabaseAdapter is the full capability contract the core depends on.
// A reference implementation targets PostgreSQL (internal/dbadapter);
// alternative adapters plug in without core changes.
type DatabaseAdapter interface {
	// CreateSchema creates schema if absent. Idempotent.
	CreateSchema(ctx context.Context, schema string) error

	// DropSchema drops schema and everything in it. Idempotent.
	DropSchema(ctx context.Context, schema string) error

	// ApplyTableDefinitions creates every table in cat, in
	// dependency order, with its primary key, foreign keys and
	// ON DELETE policy. Idempotent.
	ApplyTableDefinitions(ctx context.Context, schema string, cat catalog.Catalog) error

	// BulkIngest streams delimited-text records
	// from r into schema.table using the native fastest bulk path.
	// Row-by-row insertion is forbidden by contract. Returns the
	// number of rows ingested.
	BulkIngest(ctx context.Context, schema, table string, columns []string, r io.Reader) (int64, error)

	// CreateIndexes builds the post-load indexes declared in cat.
	CreateIndexes(ctx context.Context, schema string, cat catalog.Catalog) error

	// Analyze collects statistics for the query planner.
	Analyze(ctx context.Context, schema string) error

	// UpsertFromStaging merges staging.table into production.table,
	// keyed on keyColumns, overwriting updatableColumns. Idempotent.
	// Returns the number of rows affected.
	UpsertFromStaging(
		ctx context.Context, staging, production, table string,
		keyColumns, updatableColumns []string,
	) (int64, error)

	// DeleteMissingFromStaging removes rows from production.table
	// whose keyColumns value does not appear in staging.table.
	// Returns the number of rows deleted. Used by the optional
	// deprecated-entry hard-delete policy.
	DeleteMissingFromStaging(
		ctx context.Context, staging, production, table string, keyColumns []string,
	) (int64, error)

	// ReplaceChildRows implements "set of relations" merge semantics
	// for a child table: every production row whose groupColumn
	// value appears in staging.table
	// is deleted, then every staging.table row is inserted. This is
	// chosen over key-by-key upsert because child tables model sets
	// (e.g. all current GO terms for a protein) whose membership can
	// shrink as well as grow. Returns the number of rows inserted.
	ReplaceChildRows(
		ctx context.Context, staging, production, table, groupColumn string, columns []string,
	) (int64, error)

	// ReadMetadata returns the current VersionRow for schema, or
	// ErrNoMetadata if none has been written yet.
	ReadMetadata(ctx context.Context, schema string) (VersionRow, error)

	// WriteMetadata inserts or updates the current-release row.
	WriteMetadata(ctx context.Context, schema string, row VersionRow) error

	// InsertLoadHistory appends a new load_history row and returns its id.
	InsertLoadHistory(ctx context.Context, schema string, row LoadHistoryRow) (int64, error)

	// UpdateLoadHistory updates an existing load_history row by id.
	UpdateLoadHistory(ctx context.Context, schema string, row LoadHistoryRow) error

	// ExecuteInTransaction runs fn against a single transaction and
	// commits atomically, or rolls back entirely on error or panic.
	// Used for the full-load cutover.
	ExecuteInTransaction(ctx context.Context, fn func(ctx context.Context, tx CutoverTx) error) error

	// Close releases adapter resources (connection pools).
	Close()
}

// ErrNoMetadata is returned by ReadMetadata when no release has been
// recorded in schema yet.
var ErrNoMetadata = errNoMetadata{}

type errNoMetadata struct{}

func (errNoMetadata) Error() string { return "no metadata row present" }
