package dbadapter

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// Preflight opens a plain database/sql connection via lib/pq and
// checks that the server is reachable and, if schema already exists,
// that it looks like a prior py-load-uniprot schema (it contains a
// py_load_uniprot_metadata table). It is meant to be called by the CLI
// before the pooled pgx adapter is constructed, so a misconfigured
// connection string is reported without first paying for a pool.
func Preflight(connString, schema string) error {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return errors.Wrap(err, "opening preflight connection")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return errors.Wrap(err, "pinging database")
	}

	var exists bool
	err = db.QueryRow(
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`,
		schema,
	).Scan(&exists)
	if err != nil {
		return errors.Wrap(err, "checking for existing schema")
	}
	if !exists {
		return nil
	}

	var hasMetadataTable bool
	err = db.QueryRow(
		fmt.Sprintf(
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = '%s')`,
			"py_load_uniprot_metadata",
		),
		schema,
	).Scan(&hasMetadataTable)
	if err != nil {
		return errors.Wrap(err, "checking existing schema shape")
	}
	if !hasMetadataTable {
		return errors.Errorf("schema %q already exists and does not look like a py-load-uniprot schema", schema)
	}
	return nil
}
