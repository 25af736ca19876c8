package rowencode

import (
	"testing"
	"time"

	"github.com/gowthamrao/py-load-unitprot/internal/types"
	"github.com/stretchr/testify/require"
)

func sampleEntry() *types.Entry {
	return &types.Entry{
		PrimaryAccession:    "P12345",
		SecondaryAccessions: []string{"Q99999", "P12345"},
		UniProtID:           "TEST_HUMAN",
		NCBITaxID:           9606,
		OrganismName:        "Homo sapiens",
		OrganismLineage:     "Eukaryota; Metazoa",
		SequenceLength:      256,
		MolecularWeight:     28000,
		Sequence:            "MKT AAA",
		CreatedDate:         time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		ModifiedDate:        time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC),
		Genes: []types.Gene{
			{Name: "TESTG", IsPrimary: true},
			{Name: "TESTG2", IsPrimary: true},
			{Name: "TESTG_SYN", IsPrimary: false},
		},
		Keywords: []types.Keyword{
			{ID: "KW-0001", Label: "3D-structure"},
			{ID: "KW-0001", Label: "3D-structure (dup)"},
		},
		GOTerms: []string{"GO:0005515", "GO:0005515"},
	}
}

func TestEncodeProteinsRow(t *testing.T) {
	b := Encode(sampleEntry(), types.ProfileStandard)
	require.Len(t, b.Rows["proteins"], 1)
	row := b.Rows["proteins"][0]
	require.Equal(t, "P12345", row[0])
	require.Equal(t, "TEST_HUMAN", row[1])
	require.Equal(t, 9606, row[2])
}

func TestEncodeSecondaryAccessionInvariant(t *testing.T) {
	// invariant: a secondary accession equal to the primary accession
	// is dropped rather than emitted.
	b := Encode(sampleEntry(), types.ProfileStandard)
	require.Len(t, b.Rows["accessions"], 1)
	require.Equal(t, "Q99999", b.Rows["accessions"][0][1])
}

func TestEncodeAtMostOnePrimaryGene(t *testing.T) {
	b := Encode(sampleEntry(), types.ProfileStandard)
	require.Len(t, b.Rows["genes"], 3)
	primaryCount := 0
	for _, row := range b.Rows["genes"] {
		if row[2] == true {
			primaryCount++
		}
	}
	require.Equal(t, 1, primaryCount)
}

func TestEncodeDedupesKeywordsAndGOTerms(t *testing.T) {
	b := Encode(sampleEntry(), types.ProfileStandard)
	require.Len(t, b.Rows["keywords"], 1)
	require.Equal(t, "3D-structure (dup)", b.Rows["keywords"][0][2])
	require.Len(t, b.Rows["protein_to_go"], 1)
}

func TestEncodeProfileGatesJSONColumns(t *testing.T) {
	e := sampleEntry()
	e.Features = []byte(`[{"type":"domain"}]`)

	standard := Encode(e, types.ProfileStandard)
	require.Nil(t, standard.Rows["proteins"][0][8])

	full := Encode(e, types.ProfileFull)
	require.NotNil(t, full.Rows["proteins"][0][8])
}

func TestRoundTripProteinRow(t *testing.T) {
	e := sampleEntry()
	e.Comments = []byte(`[{"type":"function","text":"does a thing"}]`)
	b := Encode(e, types.ProfileStandard)

	line := Line(b.Rows["proteins"][0])
	fields := ParseLine(line)
	got := DecodeProteinRow(fields)

	require.Equal(t, e.PrimaryAccession, got.PrimaryAccession)
	require.Equal(t, e.UniProtID, got.UniProtID)
	require.Equal(t, e.NCBITaxID, got.NCBITaxID)
	require.Equal(t, e.SequenceLength, got.SequenceLength)
	require.Equal(t, e.MolecularWeight, got.MolecularWeight)
	require.True(t, e.CreatedDate.Equal(got.CreatedDate))
	require.True(t, e.ModifiedDate.Equal(got.ModifiedDate))
	require.JSONEq(t, string(e.Comments), string(got.Comments))
}

func TestFieldEscapesTabsNewlinesAndBackslashes(t *testing.T) {
	require.Equal(t, `a\tb\nc\\d`, Field("a\tb\nc\\d"))
}

func TestFieldRendersNullToken(t *testing.T) {
	require.Equal(t, `\N`, Field(nil))
	require.Equal(t, `\N`, Field(time.Time{}))
}
