// Package rowencode implements pure functions that turn an Entry into
// one record per target table, in the tab-separated delimited-text
// encoding the bulk-load protocol consumes directly.
package rowencode

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// nullToken is the two-character null sentinel the bulk-load protocol
// expects in place of an absent value.
const nullToken = `\N`

var escaper = strings.NewReplacer(
	`\`, `\\`,
	"\t", `\t`,
	"\n", `\n`,
)

// Field renders one column value in the delimited-text encoding.
// nil, a zero time.Time and an empty json.RawMessage render as the
// null token; strings and JSON are escaped, other values are rendered
// as plain text.
func Field(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return nullToken
	case string:
		if t == "" {
			return ""
		}
		return escaper.Replace(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		if t.IsZero() {
			return nullToken
		}
		return t.Format("2006-01-02")
	case json.RawMessage:
		if len(t) == 0 {
			return nullToken
		}
		return escaper.Replace(string(t))
	default:
		panic("rowencode: unsupported field type")
	}
}

// Line joins formatted fields with tabs and a trailing newline, the
// one-row-per-line spool file format the bulk loader reads back.
func Line(fields []interface{}) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = Field(f)
	}
	return strings.Join(parts, "\t") + "\n"
}
