package dbadapter

import (
	"fmt"
	"strings"

	"github.com/gowthamrao/py-load-unitprot/internal/catalog"
)

// columnType returns the PostgreSQL column type for a catalog column,
// keyed by table and column name since the catalog itself is
// database-agnostic and carries no type information of its own.
func columnType(table, column string) string {
	switch {
	case strings.HasSuffix(column, "_data"):
		return "JSONB"
	case column == "is_primary":
		return "BOOLEAN NOT NULL DEFAULT FALSE"
	case column == "ncbi_taxid":
		return "INTEGER"
	case column == "sequence_length", column == "molecular_weight":
		return "INTEGER"
	case column == "created_date", column == "modified_date", column == "release_date":
		return "DATE"
	case column == "load_timestamp", column == "start_time", column == "end_time":
		return "TIMESTAMPTZ"
	case column == "swissprot_entry_count", column == "trembl_entry_count", column == "bad_entry_count":
		return "BIGINT"
	case table == "load_history" && column == "id":
		return "BIGSERIAL"
	case column == "sequence":
		return "TEXT"
	default:
		return "TEXT"
	}
}

func notNull(table catalog.Table, column string) bool {
	for _, pk := range table.PrimaryKey {
		if pk == column {
			return true
		}
	}
	return false
}

// createTableSQL builds a CREATE TABLE IF NOT EXISTS statement for t
// inside schema, including its primary key and foreign keys.
func createTableSQL(schema string, t catalog.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", qualified(schema, t.Name))

	var lines []string
	for _, col := range t.Columns {
		def := fmt.Sprintf("  %s %s", quoteIdent(col), columnType(t.Name, col))
		if notNull(t, col) {
			def += " NOT NULL"
		}
		lines = append(lines, def)
	}
	if len(t.PrimaryKey) > 0 {
		lines = append(lines, fmt.Sprintf("  PRIMARY KEY (%s)", quoteIdentList(t.PrimaryKey)))
	}
	for _, fk := range t.ForeignKeys {
		onDelete := fk.OnDelete
		if onDelete == "" {
			onDelete = "RESTRICT"
		}
		lines = append(lines, fmt.Sprintf(
			"  FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE %s",
			quoteIdentList(fk.Columns), qualified(schema, fk.RefTable), quoteIdentList(fk.RefColumns), onDelete,
		))
	}
	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n)")
	return b.String()
}

func createIndexSQL(schema string, idx catalog.IndexDef) string {
	method := idx.Method
	if method == "" {
		method = "btree"
	}
	return fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s USING %s (%s)",
		quoteIdent(idx.Name+"_"+schema), qualified(schema, idx.Table), method, quoteIdentList(idx.Columns),
	)
}
