package dbadapter

import "strings"

// quoteIdent double-quotes a SQL identifier, escaping any embedded
// double quote. It is used for every schema and table name the
// adapter emits so that catalog-declared names never need ad hoc
// escaping at each call site.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// qualified returns schema.table, both quoted.
func qualified(schema, table string) string {
	return quoteIdent(schema) + "." + quoteIdent(table)
}

func quoteIdentList(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteIdent(n)
	}
	return strings.Join(out, ", ")
}
