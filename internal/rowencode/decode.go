package rowencode

import (
	"strconv"
	"strings"
	"time"

	"github.com/gowthamrao/py-load-unitprot/internal/types"
)

var unescaper = strings.NewReplacer(
	`\t`, "\t",
	`\n`, "\n",
	`\\`, `\`,
)

// ParseLine splits one spool line into its raw field strings and
// unescapes them, reporting nil for any field that was the null
// token. It is the inverse of Line, used by tests to check the
// round-trip property.
func ParseLine(line string) []*string {
	line = strings.TrimSuffix(line, "\n")
	raw := strings.Split(line, "\t")
	out := make([]*string, len(raw))
	for i, f := range raw {
		if f == nullToken {
			continue
		}
		v := unescaper.Replace(f)
		out[i] = &v
	}
	return out
}

func str(f *string) string {
	if f == nil {
		return ""
	}
	return *f
}

func atoi(f *string) int {
	if f == nil {
		return 0
	}
	v, _ := strconv.Atoi(*f)
	return v
}

func date(f *string) time.Time {
	if f == nil {
		return time.Time{}
	}
	t, _ := time.Parse("2006-01-02", *f)
	return t
}

// DecodeProteinRow reconstructs the proteins-table-derived fields of
// an Entry from a parsed "proteins" row, in the column order Encode
// produces.
func DecodeProteinRow(fields []*string) *types.Entry {
	e := &types.Entry{
		PrimaryAccession: str(fields[0]),
		UniProtID:        str(fields[1]),
		NCBITaxID:        atoi(fields[2]),
		SequenceLength:   atoi(fields[3]),
		MolecularWeight:  atoi(fields[4]),
		CreatedDate:      date(fields[5]),
		ModifiedDate:     date(fields[6]),
	}
	if fields[7] != nil {
		e.Comments = []byte(*fields[7])
	}
	if fields[8] != nil {
		e.Features = []byte(*fields[8])
	}
	if fields[9] != nil {
		e.DBReferences = []byte(*fields[9])
	}
	if fields[10] != nil {
		e.Evidence = []byte(*fields[10])
	}
	return e
}
