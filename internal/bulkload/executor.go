// Package bulkload implements the bulk load executor: it drives a
// database adapter to ingest every table's spool file into a target
// schema, one table per adapter-native transaction, and reports row
// counts per table.
package bulkload

import (
	"context"
	"time"

	"github.com/gowthamrao/py-load-unitprot/internal/catalog"
	"github.com/gowthamrao/py-load-unitprot/internal/spool"
	"github.com/gowthamrao/py-load-unitprot/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	sharedmetrics "github.com/gowthamrao/py-load-unitprot/internal/util/metrics"
)

var (
	rowsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pyloaduniprot",
		Subsystem: "bulkload",
		Name:      "rows_ingested_total",
		Help:      "Rows ingested into a staging table, by table.",
	}, sharedmetrics.TableLabels)

	ingestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pyloaduniprot",
		Subsystem: "bulkload",
		Name:      "ingest_seconds",
		Help:      "Time to COPY one table's spool file into staging.",
		Buckets:   sharedmetrics.LatencyBuckets,
	}, sharedmetrics.TableLabels)
)

// TableCount reports the number of rows ingested into one table.
type TableCount struct {
	Table string
	Rows  int64
}

// Run opens each table's spool file under spoolDir, in cat's
// dependency order, and ingests it into schema via da. It stops at the
// first failure and wraps it as a *types.BulkIngestFailure.
func Run(ctx context.Context, da types.DatabaseAdapter, spoolDir, schema string, cat catalog.Catalog) ([]TableCount, error) {
	var counts []TableCount
	for _, t := range cat {
		rc, err := spool.OpenForReading(spoolDir, t.Name)
		if err != nil {
			return counts, types.AsBulkIngestFailure(t.Name, err)
		}

		start := time.Now()
		n, err := da.BulkIngest(ctx, schema, t.Name, t.Columns, rc)
		_ = rc.Close()
		ingestLatency.WithLabelValues(t.Name).Observe(time.Since(start).Seconds())
		if err != nil {
			return counts, types.AsBulkIngestFailure(t.Name, err)
		}

		rowsIngested.WithLabelValues(t.Name).Add(float64(n))
		log.WithFields(log.Fields{"table": t.Name, "rows": n, "schema": schema}).Info("table ingested")
		counts = append(counts, TableCount{Table: t.Name, Rows: n})
	}
	return counts, nil
}
