// Package loadstrategy implements the two ways a staged dataset is
// brought into production: a full load, which builds a parallel
// schema and swaps it in atomically, and a delta load, which merges
// staged rows directly into the existing production schema table by
// table.
package loadstrategy

import (
	"context"
	"fmt"
	"time"

	"github.com/gowthamrao/py-load-unitprot/internal/bulkload"
	"github.com/gowthamrao/py-load-unitprot/internal/catalog"
	"github.com/gowthamrao/py-load-unitprot/internal/spool"
	"github.com/gowthamrao/py-load-unitprot/internal/transform"
	"github.com/gowthamrao/py-load-unitprot/internal/types"
	"github.com/gowthamrao/py-load-unitprot/internal/xmlparse"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// upsertKeys declares, per key table, the column(s) UpsertFromStaging
// conflicts on. Every table not listed here is a child (relation)
// table merged with ReplaceChildRows instead.
var upsertKeys = map[string][]string{
	"taxonomy":  {"ncbi_taxid"},
	"proteins":  {"primary_accession"},
	"sequences": {"primary_accession"},
}

// childGroupColumn declares, per child table, the column that
// identifies "the set of rows belonging to one protein" for
// ReplaceChildRows.
var childGroupColumn = map[string]string{
	"accessions":          "protein_accession",
	"genes":               "protein_accession",
	"keywords":            "protein_accession",
	"protein_to_go":       "protein_accession",
	"protein_to_taxonomy": "protein_accession",
}

// DeprecationPolicy controls what DeltaLoad does with production rows
// whose protein is no longer present in the staged batch.
type DeprecationPolicy string

const (
	// DeprecationRetain leaves rows for proteins absent from the
	// staged batch untouched. Default.
	DeprecationRetain DeprecationPolicy = "retain"
	// DeprecationHardDelete removes proteins.primary_accession values
	// present in production but absent from the staged batch, along
	// with every row in a child table that references them.
	DeprecationHardDelete DeprecationPolicy = "hardDelete"
)

// Options configures a full or delta load run.
type Options struct {
	SpoolDir    string
	Workers     int
	Profile     types.Profile
	RunID       string
	Dataset     string // swissprot | trembl | both
	Deprecation DeprecationPolicy
}

// Outcome summarizes a completed run for the caller to log or persist.
type Outcome struct {
	TransformResult transform.Result
	TableCounts     []bulkload.TableCount
	ReleaseVersion  string
}

// FullLoad stages an entire dataset into a fresh schema, indexes and
// analyzes it, then atomically swaps it in for productionSchema:
// the current production schema (if any) is renamed aside rather than
// dropped, so a failed cutover never loses the prior release.
func FullLoad(
	ctx context.Context, da types.DatabaseAdapter, parser *xmlparse.Parser,
	productionSchema string, cat catalog.Catalog, opt Options,
) (Outcome, error) {
	spoolTables := cat.SpoolTables()

	tr, err := transform.Run(ctx, parser, opt.SpoolDir, spoolTables, transform.Options{
		Workers: opt.Workers,
		Profile: opt.Profile,
	})
	if err != nil {
		return Outcome{}, err
	}
	defer func() { _ = spool.Delete(opt.SpoolDir) }()

	stagingSchema := fmt.Sprintf("%s_staging_%s", productionSchema, tr.ReleaseVersion)

	if err := da.CreateSchema(ctx, stagingSchema); err != nil {
		return Outcome{}, errors.Wrap(err, "creating staging schema")
	}
	if err := da.ApplyTableDefinitions(ctx, stagingSchema, cat); err != nil {
		return Outcome{}, errors.Wrap(err, "applying table definitions to staging schema")
	}

	counts, err := bulkload.Run(ctx, da, opt.SpoolDir, stagingSchema, spoolTables)
	if err != nil {
		return Outcome{}, err
	}

	if err := da.CreateIndexes(ctx, stagingSchema, cat); err != nil {
		return Outcome{}, errors.Wrap(err, "creating staging indexes")
	}
	if err := da.Analyze(ctx, stagingSchema); err != nil {
		return Outcome{}, errors.Wrap(err, "analyzing staging schema")
	}

	version := types.VersionRow{
		Version:       tr.ReleaseVersion,
		ReleaseDate:   time.Now(),
		LoadTimestamp: time.Now(),
	}

	archiveSchema := fmt.Sprintf("%s_archive_%d", productionSchema, time.Now().Unix())
	err = da.ExecuteInTransaction(ctx, func(ctx context.Context, tx types.CutoverTx) error {
		if err := tx.RenameSchema(ctx, productionSchema, archiveSchema); err != nil {
			log.WithField("schema", productionSchema).Debug("no existing production schema to archive")
		}
		if err := tx.RenameSchema(ctx, stagingSchema, productionSchema); err != nil {
			return errors.Wrap(err, "renaming staging schema into production")
		}
		return tx.WriteMetadata(ctx, productionSchema, version)
	})
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{TransformResult: tr, TableCounts: counts, ReleaseVersion: tr.ReleaseVersion}, nil
}

// DeltaLoad stages an incremental dataset into a scratch schema and
// merges it into productionSchema table by table, in dependency order:
// key tables are upserted, child (relation) tables have their
// production membership replaced wholesale for every protein present
// in the staged batch.
func DeltaLoad(
	ctx context.Context, da types.DatabaseAdapter, parser *xmlparse.Parser,
	productionSchema string, cat catalog.Catalog, opt Options,
) (Outcome, error) {
	spoolTables := cat.SpoolTables()

	tr, err := transform.Run(ctx, parser, opt.SpoolDir, spoolTables, transform.Options{
		Workers: opt.Workers,
		Profile: opt.Profile,
	})
	if err != nil {
		return Outcome{}, err
	}
	defer func() { _ = spool.Delete(opt.SpoolDir) }()

	stagingSchema := fmt.Sprintf("%s_staging_%s", productionSchema, tr.ReleaseVersion)

	if err := da.CreateSchema(ctx, stagingSchema); err != nil {
		return Outcome{}, errors.Wrap(err, "creating staging schema")
	}
	if err := da.ApplyTableDefinitions(ctx, stagingSchema, cat); err != nil {
		return Outcome{}, errors.Wrap(err, "applying table definitions to staging schema")
	}

	counts, err := bulkload.Run(ctx, da, opt.SpoolDir, stagingSchema, spoolTables)
	if err != nil {
		return Outcome{}, err
	}

	for _, t := range cat.DeltaMergeOrder() {
		if keys, ok := upsertKeys[t.Name]; ok {
			updatable := updatableColumns(t, keys)
			if _, err := da.UpsertFromStaging(ctx, stagingSchema, productionSchema, t.Name, keys, updatable); err != nil {
				return Outcome{}, types.AsBulkIngestFailure(t.Name, err)
			}
			continue
		}
		group, ok := childGroupColumn[t.Name]
		if !ok {
			return Outcome{}, errors.Errorf("no merge policy declared for table %s", t.Name)
		}
		if _, err := da.ReplaceChildRows(ctx, stagingSchema, productionSchema, t.Name, group, t.Columns); err != nil {
			return Outcome{}, types.AsBulkIngestFailure(t.Name, err)
		}
	}

	if opt.Deprecation == DeprecationHardDelete {
		if _, err := da.DeleteMissingFromStaging(
			ctx, stagingSchema, productionSchema, "proteins", upsertKeys["proteins"],
		); err != nil {
			return Outcome{}, types.AsBulkIngestFailure("proteins", err)
		}
	}

	version := types.VersionRow{
		Version:       tr.ReleaseVersion,
		ReleaseDate:   time.Now(),
		LoadTimestamp: time.Now(),
	}
	if err := da.WriteMetadata(ctx, productionSchema, version); err != nil {
		return Outcome{}, errors.Wrap(err, "writing metadata after delta merge")
	}

	if err := da.DropSchema(ctx, stagingSchema); err != nil {
		log.WithField("schema", stagingSchema).WithError(err).Warn("failed to drop scratch schema after delta merge")
	}

	return Outcome{TransformResult: tr, TableCounts: counts, ReleaseVersion: tr.ReleaseVersion}, nil
}

func updatableColumns(t catalog.Table, keys []string) []string {
	keySet := make(map[string]bool, len(keys))
	for _, k := range keys {
		keySet[k] = true
	}
	var out []string
	for _, c := range t.Columns {
		if !keySet[c] {
			out = append(out, c)
		}
	}
	return out
}
