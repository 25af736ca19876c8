package metadata

import (
	"context"
	"testing"
	"time"

	"github.com/gowthamrao/py-load-unitprot/internal/types"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	types.DatabaseAdapter
	version types.VersionRow
	hasRow  bool
	history map[int64]types.LoadHistoryRow
	nextID  int64
}

func (f *fakeAdapter) ReadMetadata(ctx context.Context, schema string) (types.VersionRow, error) {
	if !f.hasRow {
		return types.VersionRow{}, types.ErrNoMetadata
	}
	return f.version, nil
}

func (f *fakeAdapter) InsertLoadHistory(ctx context.Context, schema string, row types.LoadHistoryRow) (int64, error) {
	f.nextID++
	if f.history == nil {
		f.history = map[int64]types.LoadHistoryRow{}
	}
	row.ID = f.nextID
	f.history[f.nextID] = row
	return f.nextID, nil
}

func (f *fakeAdapter) UpdateLoadHistory(ctx context.Context, schema string, row types.LoadHistoryRow) error {
	existing, ok := f.history[row.ID]
	if !ok {
		return errNotFound{}
	}
	existing.Status = row.Status
	existing.EndTime = row.EndTime
	existing.ErrorMessage = row.ErrorMessage
	existing.BadEntryCount = row.BadEntryCount
	f.history[row.ID] = existing
	return nil
}

type errNotFound struct{}

func (errNotFound) Error() string { return "no load_history row with that id" }

func TestCurrentReleaseReportsAbsentSchema(t *testing.T) {
	da := &fakeAdapter{}
	_, ok, err := CurrentRelease(context.Background(), da, "uniprot")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCurrentReleaseReturnsRecordedVersion(t *testing.T) {
	da := &fakeAdapter{hasRow: true, version: types.VersionRow{Version: "2024_01"}}
	v, ok, err := CurrentRelease(context.Background(), da, "uniprot")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2024_01", v.Version)
}

func TestStartRunThenFinishRunUpdatesTheSameRow(t *testing.T) {
	da := &fakeAdapter{}
	id, err := StartRun(context.Background(), da, "uniprot", "run-1", "full", "swissprot")
	require.NoError(t, err)
	require.Equal(t, "running", da.history[id].Status)

	err = FinishRun(context.Background(), da, "uniprot", id, "succeeded", 3, "")
	require.NoError(t, err)
	require.Equal(t, "succeeded", da.history[id].Status)
	require.Equal(t, int64(3), da.history[id].BadEntryCount)
	require.False(t, da.history[id].EndTime.Before(da.history[id].StartTime.Add(-time.Second)))
}

