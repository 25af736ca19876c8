package bulkload

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/gowthamrao/py-load-unitprot/internal/catalog"
	"github.com/gowthamrao/py-load-unitprot/internal/types"
	"github.com/stretchr/testify/require"
)

// fakeAdapter embeds the interface so only BulkIngest, the one method
// Run actually calls, needs a real implementation.
type fakeAdapter struct {
	types.DatabaseAdapter
	ingested map[string]string
	failOn   string
}

func (f *fakeAdapter) BulkIngest(ctx context.Context, schema, table string, columns []string, r io.Reader) (int64, error) {
	if table == f.failOn {
		return 0, os.ErrInvalid
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if f.ingested == nil {
		f.ingested = map[string]string{}
	}
	f.ingested[table] = string(data)
	return int64(len(data)), nil
}

func writeSpoolFile(t *testing.T, dir, table, contents string) {
	t.Helper()
	path := filepath.Join(dir, table+".tsv.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w := gzip.NewWriter(f)
	_, err = w.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestRunIngestsEveryTableInOrder(t *testing.T) {
	dir := t.TempDir()
	cat := catalog.Catalog{
		{Name: "taxonomy", Columns: []string{"ncbi_taxid"}},
		{Name: "proteins", Columns: []string{"primary_accession"}},
	}
	writeSpoolFile(t, dir, "taxonomy", "9606\n")
	writeSpoolFile(t, dir, "proteins", "P00001\n")

	da := &fakeAdapter{}
	counts, err := Run(context.Background(), da, dir, "uniprot_staging", cat)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	require.Equal(t, "taxonomy", counts[0].Table)
	require.Equal(t, "proteins", counts[1].Table)
	require.Equal(t, "9606\n", da.ingested["taxonomy"])
}

func TestRunWrapsIngestFailureAsBulkIngestFailure(t *testing.T) {
	dir := t.TempDir()
	cat := catalog.Catalog{
		{Name: "taxonomy", Columns: []string{"ncbi_taxid"}},
	}
	writeSpoolFile(t, dir, "taxonomy", "9606\n")

	da := &fakeAdapter{failOn: "taxonomy"}
	_, err := Run(context.Background(), da, dir, "uniprot_staging", cat)
	require.Error(t, err)
	var bif *types.BulkIngestFailure
	require.ErrorAs(t, err, &bif)
	require.Equal(t, "taxonomy", bif.Table)
}
