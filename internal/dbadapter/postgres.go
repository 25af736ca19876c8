// Package dbadapter implements a database adapter against PostgreSQL,
// using pgx's native COPY protocol as the fastest-path bulk-ingest
// mechanism. The connection pool is built from a typed Option list
// applied to a pgxpool.Config before the pool is created.
package dbadapter

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gowthamrao/py-load-unitprot/internal/catalog"
	"github.com/gowthamrao/py-load-unitprot/internal/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Option configures the pool created by New.
type Option func(*pgxpool.Config)

// WithMaxConns bounds the number of pooled connections.
func WithMaxConns(n int32) Option {
	return func(c *pgxpool.Config) { c.MaxConns = n }
}

// WithConnLifetime bounds how long a pooled connection is reused.
func WithConnLifetime(d time.Duration) Option {
	return func(c *pgxpool.Config) { c.MaxConnLifetime = d }
}

// Postgres is the reference DatabaseAdapter implementation.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ types.DatabaseAdapter = (*Postgres)(nil)

// New opens a connection pool against connString. It returns
// *types.AdapterUnavailable if the database cannot be reached.
func New(ctx context.Context, connString string, opts ...Option) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, &types.AdapterUnavailable{Cause: errors.Wrap(err, "parsing connection string")}
	}
	for _, o := range opts {
		o(cfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, &types.AdapterUnavailable{Cause: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &types.AdapterUnavailable{Cause: errors.Wrap(err, "pinging database")}
	}
	return &Postgres{pool: pool}, nil
}

// Close implements types.DatabaseAdapter.
func (p *Postgres) Close() { p.pool.Close() }

// CreateSchema implements types.DatabaseAdapter.
func (p *Postgres) CreateSchema(ctx context.Context, schema string) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoteIdent(schema)))
	return errors.Wrapf(err, "creating schema %s", schema)
}

// DropSchema implements types.DatabaseAdapter.
func (p *Postgres) DropSchema(ctx context.Context, schema string) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", quoteIdent(schema)))
	return errors.Wrapf(err, "dropping schema %s", schema)
}

// ApplyTableDefinitions implements types.DatabaseAdapter.
func (p *Postgres) ApplyTableDefinitions(ctx context.Context, schema string, cat catalog.Catalog) error {
	for _, t := range cat {
		if _, err := p.pool.Exec(ctx, createTableSQL(schema, t)); err != nil {
			return errors.Wrapf(err, "creating table %s.%s", schema, t.Name)
		}
	}
	return nil
}

// CreateIndexes implements types.DatabaseAdapter.
func (p *Postgres) CreateIndexes(ctx context.Context, schema string, cat catalog.Catalog) error {
	for _, idx := range cat.Indexes() {
		if _, err := p.pool.Exec(ctx, createIndexSQL(schema, idx)); err != nil {
			return errors.Wrapf(err, "creating index %s", idx.Name)
		}
	}
	return nil
}

// Analyze implements types.DatabaseAdapter.
func (p *Postgres) Analyze(ctx context.Context, schema string) error {
	for _, t := range catalog.Default {
		if _, err := p.pool.Exec(ctx, fmt.Sprintf("ANALYZE %s", qualified(schema, t.Name))); err != nil {
			return errors.Wrapf(err, "analyzing %s.%s", schema, t.Name)
		}
	}
	return nil
}

// BulkIngest implements types.DatabaseAdapter using the native COPY
// FROM STDIN protocol: row-by-row insertion is forbidden by contract
//, and COPY is PostgreSQL's fastest bulk path.
func (p *Postgres) BulkIngest(
	ctx context.Context, schema, table string, columns []string, r io.Reader,
) (int64, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "acquiring connection for bulk ingest")
	}
	defer conn.Release()

	sql := fmt.Sprintf(
		"COPY %s (%s) FROM STDIN WITH (FORMAT text)",
		qualified(schema, table), quoteIdentList(columns),
	)
	tag, err := conn.Conn().PgConn().CopyFrom(ctx, r, sql)
	if err != nil {
		return 0, errors.WithStack(asConstraintViolation(table, err))
	}
	log.WithFields(log.Fields{"schema": schema, "table": table, "rows": tag.RowsAffected()}).
		Debug("bulk ingest complete")
	return tag.RowsAffected(), nil
}

// UpsertFromStaging implements types.DatabaseAdapter.
func (p *Postgres) UpsertFromStaging(
	ctx context.Context, staging, production, table string, keyColumns, updatableColumns []string,
) (int64, error) {
	allColumns := append(append([]string{}, keyColumns...), updatableColumns...)

	var setClauses []string
	for _, c := range updatableColumns {
		setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", quoteIdent(c), quoteIdent(c)))
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		qualified(production, table), quoteIdentList(allColumns), quoteIdentList(allColumns),
		qualified(staging, table), quoteIdentList(keyColumns), strings.Join(setClauses, ", "),
	)
	if len(setClauses) == 0 {
		sql = fmt.Sprintf(
			"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO NOTHING",
			qualified(production, table), quoteIdentList(allColumns), quoteIdentList(allColumns),
			qualified(staging, table), quoteIdentList(keyColumns),
		)
	}

	tag, err := p.pool.Exec(ctx, sql)
	if err != nil {
		return 0, errors.WithStack(asConstraintViolation(table, err))
	}
	return tag.RowsAffected(), nil
}

// ReplaceChildRows implements types.DatabaseAdapter.
func (p *Postgres) ReplaceChildRows(
	ctx context.Context, staging, production, table, groupColumn string, columns []string,
) (int64, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "beginning replace-child-rows transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	deleteSQL := fmt.Sprintf(
		"DELETE FROM %s WHERE %s IN (SELECT DISTINCT %s FROM %s)",
		qualified(production, table), quoteIdent(groupColumn), quoteIdent(groupColumn), qualified(staging, table),
	)
	if _, err := tx.Exec(ctx, deleteSQL); err != nil {
		return 0, errors.WithStack(asConstraintViolation(table, err))
	}

	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s",
		qualified(production, table), quoteIdentList(columns), quoteIdentList(columns), qualified(staging, table),
	)
	tag, err := tx.Exec(ctx, insertSQL)
	if err != nil {
		return 0, errors.WithStack(asConstraintViolation(table, err))
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(err, "committing replace-child-rows transaction")
	}
	return tag.RowsAffected(), nil
}

// DeleteMissingFromStaging implements types.DatabaseAdapter.
func (p *Postgres) DeleteMissingFromStaging(
	ctx context.Context, staging, production, table string, keyColumns []string,
) (int64, error) {
	key := quoteIdentList(keyColumns)
	sql := fmt.Sprintf(
		"DELETE FROM %s WHERE (%s) NOT IN (SELECT %s FROM %s)",
		qualified(production, table), key, key, qualified(staging, table),
	)
	tag, err := p.pool.Exec(ctx, sql)
	if err != nil {
		return 0, errors.WithStack(asConstraintViolation(table, err))
	}
	return tag.RowsAffected(), nil
}

// ReadMetadata implements types.DatabaseAdapter.
func (p *Postgres) ReadMetadata(ctx context.Context, schema string) (types.VersionRow, error) {
	var v types.VersionRow
	row := p.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT version, release_date, load_timestamp, swissprot_entry_count, trembl_entry_count
		   FROM %s ORDER BY load_timestamp DESC LIMIT 1`,
		qualified(schema, "py_load_uniprot_metadata"),
	))
	err := row.Scan(&v.Version, &v.ReleaseDate, &v.LoadTimestamp, &v.SwissProtEntryCount, &v.TremblEntryCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.VersionRow{}, types.ErrNoMetadata
	}
	if err != nil {
		return types.VersionRow{}, errors.Wrap(err, "reading metadata")
	}
	return v, nil
}

// WriteMetadata implements types.DatabaseAdapter.
func (p *Postgres) WriteMetadata(ctx context.Context, schema string, row types.VersionRow) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (version, release_date, load_timestamp, swissprot_entry_count, trembl_entry_count)
		   VALUES ($1, $2, $3, $4, $5)
		   ON CONFLICT (version) DO UPDATE SET
		     release_date = EXCLUDED.release_date,
		     load_timestamp = EXCLUDED.load_timestamp,
		     swissprot_entry_count = EXCLUDED.swissprot_entry_count,
		     trembl_entry_count = EXCLUDED.trembl_entry_count`,
		qualified(schema, "py_load_uniprot_metadata"),
	), row.Version, row.ReleaseDate, row.LoadTimestamp, row.SwissProtEntryCount, row.TremblEntryCount)
	return errors.Wrap(err, "writing metadata")
}

// InsertLoadHistory implements types.DatabaseAdapter.
func (p *Postgres) InsertLoadHistory(ctx context.Context, schema string, row types.LoadHistoryRow) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx, fmt.Sprintf(
		`INSERT INTO %s (run_id, status, mode, dataset, start_time, end_time, error_message, bad_entry_count)
		   VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		qualified(schema, "load_history"),
	), row.RunID, row.Status, row.Mode, row.Dataset, row.StartTime, row.EndTime, nullIfEmpty(row.ErrorMessage), row.BadEntryCount).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "inserting load history row")
	}
	return id, nil
}

// UpdateLoadHistory implements types.DatabaseAdapter.
func (p *Postgres) UpdateLoadHistory(ctx context.Context, schema string, row types.LoadHistoryRow) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET status = $1, end_time = $2, error_message = $3, bad_entry_count = $4 WHERE id = $5`,
		qualified(schema, "load_history"),
	), row.Status, row.EndTime, nullIfEmpty(row.ErrorMessage), row.BadEntryCount, row.ID)
	return errors.Wrap(err, "updating load history row")
}

// ExecuteInTransaction implements types.DatabaseAdapter. It is used for
// the atomic full-load cutover: two schema renames and a metadata
// write commit, or none of them do.
func (p *Postgres) ExecuteInTransaction(ctx context.Context, fn func(ctx context.Context, tx types.CutoverTx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return &types.CutoverFailure{Cause: errors.Wrap(err, "beginning cutover transaction")}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &cutoverTx{tx: tx}); err != nil {
		return &types.CutoverFailure{Cause: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return &types.CutoverFailure{Cause: errors.Wrap(err, "committing cutover transaction")}
	}
	return nil
}

// cutoverTx is the types.CutoverTx implementation handed to
// ExecuteInTransaction's callback.
type cutoverTx struct {
	tx pgx.Tx
}

func (c *cutoverTx) RenameSchema(ctx context.Context, oldName, newName string) error {
	_, err := c.tx.Exec(ctx, fmt.Sprintf("ALTER SCHEMA %s RENAME TO %s", quoteIdent(oldName), quoteIdent(newName)))
	return err
}

func (c *cutoverTx) WriteMetadata(ctx context.Context, schema string, row types.VersionRow) error {
	_, err := c.tx.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (version, release_date, load_timestamp, swissprot_entry_count, trembl_entry_count)
		   VALUES ($1, $2, $3, $4, $5)
		   ON CONFLICT (version) DO UPDATE SET
		     release_date = EXCLUDED.release_date,
		     load_timestamp = EXCLUDED.load_timestamp,
		     swissprot_entry_count = EXCLUDED.swissprot_entry_count,
		     trembl_entry_count = EXCLUDED.trembl_entry_count`,
		qualified(schema, "py_load_uniprot_metadata"),
	), row.Version, row.ReleaseDate, row.LoadTimestamp, row.SwissProtEntryCount, row.TremblEntryCount)
	return err
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func asConstraintViolation(table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503", "23502", "23514":
			return &types.ConstraintViolation{Table: table, Cause: err}
		}
	}
	return err
}
