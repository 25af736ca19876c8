// Package pipeline is the single entry point the CLI calls: it wires a
// config.Settings into a database adapter and a load strategy, runs
// it, and records the outcome in load_history.
package pipeline

import (
	"context"
	"os"

	"github.com/gowthamrao/py-load-unitprot/internal/catalog"
	"github.com/gowthamrao/py-load-unitprot/internal/config"
	"github.com/gowthamrao/py-load-unitprot/internal/dbadapter"
	"github.com/gowthamrao/py-load-unitprot/internal/loadstrategy"
	"github.com/gowthamrao/py-load-unitprot/internal/metadata"
	"github.com/gowthamrao/py-load-unitprot/internal/types"
	"github.com/gowthamrao/py-load-unitprot/internal/xmlparse"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Run executes one full or delta load according to s and returns the
// outcome, or a typed error (see internal/types) describing why it
// failed.
func Run(ctx context.Context, s *config.Settings) (loadstrategy.Outcome, error) {
	if err := dbadapter.Preflight(s.DatabaseURL, s.ProductionSchema); err != nil {
		return loadstrategy.Outcome{}, &types.AdapterUnavailable{Cause: err}
	}

	da, err := dbadapter.New(ctx, s.DatabaseURL)
	if err != nil {
		return loadstrategy.Outcome{}, err
	}
	defer da.Close()

	if err := da.CreateSchema(ctx, s.ProductionSchema); err != nil {
		return loadstrategy.Outcome{}, errors.Wrap(err, "ensuring production schema exists")
	}
	if err := da.ApplyTableDefinitions(ctx, s.ProductionSchema, catalog.Default); err != nil {
		return loadstrategy.Outcome{}, errors.Wrap(err, "ensuring production tables exist")
	}

	runID := uuid.NewString()
	historyID, err := metadata.StartRun(ctx, da, s.ProductionSchema, runID, s.Mode, s.Dataset)
	if err != nil {
		return loadstrategy.Outcome{}, err
	}

	f, err := os.Open(s.SourcePath)
	if err != nil {
		finishErr := errors.Wrap(err, "opening source file")
		_ = metadata.FinishRun(ctx, da, s.ProductionSchema, historyID, "failed", 0, finishErr.Error())
		return loadstrategy.Outcome{}, finishErr
	}
	defer f.Close()

	parser, err := xmlparse.New(f, types.Profile(s.Profile))
	if err != nil {
		wrapped := errors.Wrap(err, "opening xml parser")
		_ = metadata.FinishRun(ctx, da, s.ProductionSchema, historyID, "failed", 0, wrapped.Error())
		return loadstrategy.Outcome{}, wrapped
	}

	opt := loadstrategy.Options{
		SpoolDir: s.SpoolDir,
		Workers:  s.Workers,
		Profile:  types.Profile(s.Profile),
		RunID:    runID,
		Dataset:  s.Dataset,
	}

	var outcome loadstrategy.Outcome
	if s.Mode == "full" {
		outcome, err = loadstrategy.FullLoad(ctx, da, parser, s.ProductionSchema, catalog.Default, opt)
	} else {
		outcome, err = loadstrategy.DeltaLoad(ctx, da, parser, s.ProductionSchema, catalog.Default, opt)
	}

	if err != nil {
		status := "failed"
		if errors.Is(err, types.ErrCanceled) {
			status = "cancelled"
			log.WithField("run_id", runID).Warn("load canceled")
		} else {
			log.WithError(err).WithField("run_id", runID).Error("load failed")
		}
		// ctx may already be canceled; the history update must still run.
		_ = metadata.FinishRun(context.WithoutCancel(ctx), da, s.ProductionSchema, historyID, status, outcome.TransformResult.EntriesInvalid, err.Error())
		return loadstrategy.Outcome{}, err
	}

	if err := metadata.FinishRun(ctx, da, s.ProductionSchema, historyID, "succeeded", outcome.TransformResult.EntriesInvalid, ""); err != nil {
		log.WithError(err).Warn("load succeeded but load_history update failed")
	}

	log.WithFields(log.Fields{
		"run_id":  runID,
		"mode":    s.Mode,
		"release": outcome.ReleaseVersion,
		"entries": outcome.TransformResult.EntriesOK,
		"invalid": outcome.TransformResult.EntriesInvalid,
	}).Info("load complete")

	return outcome, nil
}
