package rowencode

import (
	"fmt"

	"github.com/gowthamrao/py-load-unitprot/internal/types"
	"github.com/gowthamrao/py-load-unitprot/internal/util/msort"
)

// Batch holds every row produced from a single Entry, grouped by
// target table. The coordinator submits a Batch to the writer as one
// indivisible unit so that an Entry is never partially loaded.
type Batch struct {
	// Rows maps table name to the rows for that table, each row
	// already in the table's catalog column order. Values are typed
	// (string, int, bool, time.Time, json.RawMessage, or nil); Line
	// performs the text encoding and escaping.
	Rows map[string][][]interface{}
}

// Encode turns e into one Batch, honoring profile for the four JSON
// side-payload columns. Row order within a table is
// deterministic for a given Entry: it follows the order fields
// appeared in the source XML.
//
// Column order for each table below must match catalog.Default.
func Encode(e *types.Entry, profile types.Profile) *Batch {
	b := &Batch{Rows: make(map[string][][]interface{})}

	var comments, features, dbRefs, evidence interface{}
	comments = e.Comments
	if profile == types.ProfileFull {
		features, dbRefs, evidence = e.Features, e.DBReferences, e.Evidence
	}

	b.Rows["proteins"] = [][]interface{}{{
		e.PrimaryAccession,
		nilIfEmpty(e.UniProtID),
		nilIfZeroInt(e.NCBITaxID),
		nilIfZeroInt(e.SequenceLength),
		nilIfZeroInt(e.MolecularWeight),
		e.CreatedDate,
		e.ModifiedDate,
		comments,
		features,
		dbRefs,
		evidence,
	}}

	if e.Sequence != "" {
		b.Rows["sequences"] = [][]interface{}{{e.PrimaryAccession, e.Sequence}}
	}

	for _, sec := range e.SecondaryAccessions {
		if sec == e.PrimaryAccession {
			// invariant 4: never equal to its own protein_accession.
			continue
		}
		b.Rows["accessions"] = append(b.Rows["accessions"], []interface{}{e.PrimaryAccession, sec})
	}

	if e.NCBITaxID != 0 {
		b.Rows["taxonomy"] = [][]interface{}{{e.NCBITaxID, nilIfEmpty(e.OrganismName), nilIfEmpty(e.OrganismLineage)}}
		b.Rows["protein_to_taxonomy"] = [][]interface{}{{e.PrimaryAccession, e.NCBITaxID}}
	}

	sawPrimary := false
	for _, g := range e.Genes {
		isPrimary := g.IsPrimary && !sawPrimary
		if g.IsPrimary {
			sawPrimary = true // invariant 3: at most one primary gene per protein.
		}
		b.Rows["genes"] = append(b.Rows["genes"], []interface{}{e.PrimaryAccession, g.Name, isPrimary})
	}

	for _, k := range e.Keywords {
		b.Rows["keywords"] = append(b.Rows["keywords"], []interface{}{e.PrimaryAccession, k.ID, k.Label})
	}

	for _, id := range e.GOTerms {
		b.Rows["protein_to_go"] = append(b.Rows["protein_to_go"], []interface{}{e.PrimaryAccession, id})
	}

	// A malformed or duplicated source entry could otherwise produce
	// two rows with the same composite key, which would surface as a
	// ConstraintViolation at bulk-ingest time and abort the run.
	b.Rows["accessions"] = msort.DedupeLastWins(b.Rows["accessions"], func(r []interface{}) string {
		return fmt.Sprint(r[0], "\x00", r[1])
	})
	b.Rows["keywords"] = msort.DedupeLastWins(b.Rows["keywords"], func(r []interface{}) string {
		return fmt.Sprint(r[0], "\x00", r[1])
	})
	b.Rows["protein_to_go"] = msort.DedupeLastWins(b.Rows["protein_to_go"], func(r []interface{}) string {
		return fmt.Sprint(r[0], "\x00", r[1])
	})
	b.Rows["genes"] = msort.DedupeLastWins(b.Rows["genes"], func(r []interface{}) string {
		return fmt.Sprint(r[0], "\x00", r[1])
	})

	return b
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nilIfZeroInt(v int) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
