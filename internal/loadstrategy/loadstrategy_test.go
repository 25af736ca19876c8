package loadstrategy

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"testing"

	"github.com/gowthamrao/py-load-unitprot/internal/catalog"
	"github.com/gowthamrao/py-load-unitprot/internal/types"
	"github.com/gowthamrao/py-load-unitprot/internal/xmlparse"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// fakeAdapter is an in-memory types.DatabaseAdapter used to exercise
// the load strategy director without a real database.
type fakeAdapter struct {
	schemas   map[string]bool
	rowCounts map[string]map[string]int64 // schema -> table -> rows ingested
	metadata  map[string]types.VersionRow
	renames   []string

	hardDeletedTables []string

	// failRenameInto, when non-empty, makes fakeCutoverTx.RenameSchema
	// fail the rename into that destination schema, simulating a
	// cutover transaction that aborts partway through.
	failRenameInto string
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		schemas:   map[string]bool{},
		rowCounts: map[string]map[string]int64{},
		metadata:  map[string]types.VersionRow{},
	}
}

func (f *fakeAdapter) CreateSchema(ctx context.Context, schema string) error {
	f.schemas[schema] = true
	return nil
}

func (f *fakeAdapter) DropSchema(ctx context.Context, schema string) error {
	delete(f.schemas, schema)
	return nil
}

func (f *fakeAdapter) ApplyTableDefinitions(ctx context.Context, schema string, cat catalog.Catalog) error {
	return nil
}

func (f *fakeAdapter) BulkIngest(ctx context.Context, schema, table string, columns []string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	n := int64(bytes.Count(data, []byte("\n")))
	if f.rowCounts[schema] == nil {
		f.rowCounts[schema] = map[string]int64{}
	}
	f.rowCounts[schema][table] = n
	return n, nil
}

func (f *fakeAdapter) CreateIndexes(ctx context.Context, schema string, cat catalog.Catalog) error { return nil }
func (f *fakeAdapter) Analyze(ctx context.Context, schema string) error                            { return nil }

func (f *fakeAdapter) UpsertFromStaging(ctx context.Context, staging, production, table string, keyColumns, updatableColumns []string) (int64, error) {
	return f.rowCounts[staging][table], nil
}

func (f *fakeAdapter) DeleteMissingFromStaging(ctx context.Context, staging, production, table string, keyColumns []string) (int64, error) {
	f.hardDeletedTables = append(f.hardDeletedTables, table)
	return 0, nil
}

func (f *fakeAdapter) ReplaceChildRows(ctx context.Context, staging, production, table, groupColumn string, columns []string) (int64, error) {
	return f.rowCounts[staging][table], nil
}

func (f *fakeAdapter) ReadMetadata(ctx context.Context, schema string) (types.VersionRow, error) {
	v, ok := f.metadata[schema]
	if !ok {
		return types.VersionRow{}, types.ErrNoMetadata
	}
	return v, nil
}

func (f *fakeAdapter) WriteMetadata(ctx context.Context, schema string, row types.VersionRow) error {
	f.metadata[schema] = row
	return nil
}

func (f *fakeAdapter) InsertLoadHistory(ctx context.Context, schema string, row types.LoadHistoryRow) (int64, error) {
	return 1, nil
}

func (f *fakeAdapter) UpdateLoadHistory(ctx context.Context, schema string, row types.LoadHistoryRow) error {
	return nil
}

// ExecuteInTransaction stages every rename/metadata write against a
// private copy of the adapter's state, applying it back to f only if
// fn returns nil — mirroring the all-or-nothing guarantee a real SQL
// transaction gives the cutover.
func (f *fakeAdapter) ExecuteInTransaction(ctx context.Context, fn func(ctx context.Context, tx types.CutoverTx) error) error {
	tx := &fakeCutoverTx{f: f, schemas: map[string]bool{}, metadata: map[string]types.VersionRow{}}
	for k, v := range f.schemas {
		tx.schemas[k] = v
	}
	for k, v := range f.metadata {
		tx.metadata[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	f.schemas = tx.schemas
	for k, v := range tx.metadata {
		f.metadata[k] = v
	}
	f.renames = append(f.renames, tx.renames...)
	return nil
}

func (f *fakeAdapter) Close() {}

type fakeCutoverTx struct {
	f        *fakeAdapter
	schemas  map[string]bool
	metadata map[string]types.VersionRow
	renames  []string
}

func (t *fakeCutoverTx) RenameSchema(ctx context.Context, oldName, newName string) error {
	if t.f.failRenameInto != "" && newName == t.f.failRenameInto {
		return errors.New("simulated rename failure")
	}
	t.renames = append(t.renames, oldName+"->"+newName)
	if t.schemas[oldName] {
		delete(t.schemas, oldName)
		t.schemas[newName] = true
	}
	return nil
}

func (t *fakeCutoverTx) WriteMetadata(ctx context.Context, schema string, row types.VersionRow) error {
	t.metadata[schema] = row
	return nil
}

const miniDoc = `<?xml version="1.0"?>
<uniprot version="2024_05">
  <entry created="2020-01-01" modified="2020-01-01">
    <accession>P00001</accession>
    <name>MINI_HUMAN</name>
    <sequence length="3" mass="100">ABC</sequence>
  </entry>
</uniprot>
`

func gzipOf(t *testing.T, s string) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return bytes.NewReader(buf.Bytes())
}

func TestFullLoadSwapsProductionSchemaIn(t *testing.T) {
	da := newFakeAdapter()
	parser, err := xmlparse.New(gzipOf(t, miniDoc), types.ProfileStandard)
	require.NoError(t, err)

	outcome, err := FullLoad(context.Background(), da, parser, "uniprot", catalog.Default, Options{
		SpoolDir: t.TempDir(),
		Workers:  2,
		Profile:  types.ProfileStandard,
	})
	require.NoError(t, err)
	require.Equal(t, "2024_05", outcome.ReleaseVersion)
	require.True(t, da.schemas["uniprot"])

	var proteinRows int64 = -1
	for _, tc := range outcome.TableCounts {
		if tc.Table == "proteins" {
			proteinRows = tc.Rows
		}
	}
	require.Equal(t, int64(1), proteinRows)

	v, err := da.ReadMetadata(context.Background(), "uniprot")
	require.NoError(t, err)
	require.Equal(t, "2024_05", v.Version)
}

func TestFullLoadLeavesProductionUntouchedWhenCutoverFails(t *testing.T) {
	da := newFakeAdapter()
	da.schemas["uniprot"] = true
	da.metadata["uniprot"] = types.VersionRow{Version: "2024_01"}
	da.failRenameInto = "uniprot"

	parser, err := xmlparse.New(gzipOf(t, miniDoc), types.ProfileStandard)
	require.NoError(t, err)

	_, err = FullLoad(context.Background(), da, parser, "uniprot", catalog.Default, Options{
		SpoolDir: t.TempDir(),
		Workers:  2,
		Profile:  types.ProfileStandard,
	})
	require.Error(t, err)

	require.True(t, da.schemas["uniprot"], "production schema must still be present")
	v, err := da.ReadMetadata(context.Background(), "uniprot")
	require.NoError(t, err)
	require.Equal(t, "2024_01", v.Version, "production metadata must be untouched by the failed cutover")
}

func TestDeltaLoadMergesAndDropsScratchSchema(t *testing.T) {
	da := newFakeAdapter()
	parser, err := xmlparse.New(gzipOf(t, miniDoc), types.ProfileStandard)
	require.NoError(t, err)

	outcome, err := DeltaLoad(context.Background(), da, parser, "uniprot", catalog.Default, Options{
		SpoolDir: t.TempDir(),
		Workers:  1,
		Profile:  types.ProfileStandard,
	})
	require.NoError(t, err)
	require.Equal(t, "2024_05", outcome.ReleaseVersion)

	v, err := da.ReadMetadata(context.Background(), "uniprot")
	require.NoError(t, err)
	require.Equal(t, "2024_05", v.Version)

	for schema := range da.schemas {
		require.NotContains(t, schema, "_staging_")
	}
}

func TestDeltaLoadWithHardDeleteRemovesProteinsMissingFromStaging(t *testing.T) {
	da := newFakeAdapter()
	parser, err := xmlparse.New(gzipOf(t, miniDoc), types.ProfileStandard)
	require.NoError(t, err)

	_, err = DeltaLoad(context.Background(), da, parser, "uniprot", catalog.Default, Options{
		SpoolDir:    t.TempDir(),
		Workers:     1,
		Profile:     types.ProfileStandard,
		Deprecation: DeprecationHardDelete,
	})
	require.NoError(t, err)
	require.Contains(t, da.hardDeletedTables, "proteins")
}

func TestDeltaLoadRetainsDeprecatedRowsByDefault(t *testing.T) {
	da := newFakeAdapter()
	parser, err := xmlparse.New(gzipOf(t, miniDoc), types.ProfileStandard)
	require.NoError(t, err)

	_, err = DeltaLoad(context.Background(), da, parser, "uniprot", catalog.Default, Options{
		SpoolDir: t.TempDir(),
		Workers:  1,
		Profile:  types.ProfileStandard,
	})
	require.NoError(t, err)
	require.Empty(t, da.hardDeletedTables)
}
