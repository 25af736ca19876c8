// Package metadata implements the metadata recorder: it tracks the
// current release version in a production schema and appends one
// load_history row per run, updating it once the run concludes.
package metadata

import (
	"context"
	"time"

	"github.com/gowthamrao/py-load-unitprot/internal/types"
	"github.com/pkg/errors"
)

// CurrentRelease returns the release currently recorded in schema, or
// the zero VersionRow and false if the schema has never been loaded.
func CurrentRelease(ctx context.Context, da types.DatabaseAdapter, schema string) (types.VersionRow, bool, error) {
	v, err := da.ReadMetadata(ctx, schema)
	if errors.Is(err, types.ErrNoMetadata) {
		return types.VersionRow{}, false, nil
	}
	if err != nil {
		return types.VersionRow{}, false, errors.Wrap(err, "reading current release")
	}
	return v, true, nil
}

// StartRun inserts a "running" load_history row and returns its id.
func StartRun(ctx context.Context, da types.DatabaseAdapter, schema, runID, mode, dataset string) (int64, error) {
	id, err := da.InsertLoadHistory(ctx, schema, types.LoadHistoryRow{
		RunID:     runID,
		Status:    "running",
		Mode:      mode,
		Dataset:   dataset,
		StartTime: time.Now(),
	})
	return id, errors.Wrap(err, "starting load history entry")
}

// FinishRun updates a load_history row to reflect the final outcome of
// a run. errMsg is empty on success.
func FinishRun(ctx context.Context, da types.DatabaseAdapter, schema string, id int64, status string, badEntryCount int64, errMsg string) error {
	err := da.UpdateLoadHistory(ctx, schema, types.LoadHistoryRow{
		ID:            id,
		Status:        status,
		EndTime:       time.Now(),
		ErrorMessage:  errMsg,
		BadEntryCount: badEntryCount,
	})
	return errors.Wrap(err, "finishing load history entry")
}
