// Package transform implements the parallel transform coordinator: a
// reader goroutine feeds raw entries to a pool of worker goroutines,
// each of which encodes one entry into row batches; a single writer
// goroutine serializes every batch to its table's spool file so that
// an entry's rows for all tables land together or not at all.
package transform

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gowthamrao/py-load-unitprot/internal/catalog"
	"github.com/gowthamrao/py-load-unitprot/internal/rowencode"
	"github.com/gowthamrao/py-load-unitprot/internal/spool"
	"github.com/gowthamrao/py-load-unitprot/internal/types"
	"github.com/gowthamrao/py-load-unitprot/internal/xmlparse"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	sharedmetrics "github.com/gowthamrao/py-load-unitprot/internal/util/metrics"
)

var (
	entriesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pyloaduniprot",
		Subsystem: "transform",
		Name:      "entries_total",
		Help:      "Entries processed by the transform coordinator, by outcome.",
	}, []string{"outcome"})

	batchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pyloaduniprot",
		Subsystem: "transform",
		Name:      "batch_encode_seconds",
		Help:      "Time to encode one entry into row batches.",
		Buckets:   sharedmetrics.LatencyBuckets,
	})

	queueStalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pyloaduniprot",
		Subsystem: "transform",
		Name:      "queue_stalls_total",
		Help:      "Channel operations that found the reader/writer queue empty or full, by queue and condition.",
	}, []string{"queue", "condition"})
)

// Result summarizes one coordinator run.
type Result struct {
	EntriesOK      int64
	EntriesInvalid int64
	ReleaseVersion string
}

// Options configures a Run.
type Options struct {
	Workers int
	Profile types.Profile
}

// Run reads every entry from parser, encodes it with Workers
// concurrent goroutines, and writes the resulting rows to spool files
// under spoolDir for every table in cat. It returns after the parser's
// entry channel closes and every in-flight batch has been written, or
// as soon as a TransformFailure occurs (in which case partial spool
// files are deleted before returning).
func Run(ctx context.Context, parser *xmlparse.Parser, spoolDir string, cat catalog.Catalog, opt Options) (Result, error) {
	if opt.Workers < 1 {
		opt.Workers = 1
	}

	tableNames := make([]string, len(cat))
	for i, t := range cat {
		tableNames[i] = t.Name
	}
	set, err := spool.Open(spoolDir, tableNames)
	if err != nil {
		return Result{}, errors.Wrap(err, "opening spool files")
	}

	parentCtx := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := parser.Entries(ctx)
	batches := make(chan *rowencode.Batch, opt.Workers*2)

	var invalidCount, okCount int64
	var firstErr error
	var errOnce sync.Once
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	// A run whose parent context is canceled externally (SIGTERM, a
	// deadline) must wind down the same way an internal fail() does,
	// rather than fall through to the batches-drained-cleanly path and
	// be reported as a success.
	go func() {
		select {
		case <-parentCtx.Done():
			fail(types.ErrCanceled)
		case <-ctx.Done():
		}
	}()

	var workerWG sync.WaitGroup
	for i := 0; i < opt.Workers; i++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			for {
				res, ok := recvEntry(entries, ctx)
				if !ok {
					return
				}
				if res.Err != nil {
					var invalid *types.InvalidEntry
					if errors.As(res.Err, &invalid) {
						atomic.AddInt64(&invalidCount, 1)
						entriesProcessed.WithLabelValues("invalid").Inc()
						log.WithField("accession", invalid.Accession).Warn(invalid.Error())
						continue
					}
					fail(&types.TransformFailure{Cause: res.Err})
					return
				}

				start := time.Now()
				batch := rowencode.Encode(res.Entry, opt.Profile)
				batchLatency.Observe(time.Since(start).Seconds())

				if !sendBatch(batches, batch, ctx) {
					return
				}
				atomic.AddInt64(&okCount, 1)
				entriesProcessed.WithLabelValues("ok").Inc()
			}
		}()
	}

	go func() {
		workerWG.Wait()
		close(batches)
	}()

	for {
		batch, ok := recvBatch(batches)
		if !ok {
			break
		}
		if err := writeBatch(set, cat, batch); err != nil {
			fail(&types.TransformFailure{Cause: err})
			break
		}
	}

	// Drain any remaining batches after a failure so worker goroutines
	// never block forever on a full channel.
	for range batches {
	}
	workerWG.Wait()

	// The watcher above may take the ctx.Done() branch when both
	// contexts are done at once, so check the parent directly.
	if parentCtx.Err() != nil {
		fail(types.ErrCanceled)
	}

	if closeErr := set.Close(); closeErr != nil && firstErr == nil {
		firstErr = errors.Wrap(closeErr, "closing spool files")
	}

	if firstErr != nil {
		_ = spool.Delete(spoolDir)
		return Result{}, firstErr
	}
	release := parser.Release()

	return Result{
		EntriesOK:      atomic.LoadInt64(&okCount),
		EntriesInvalid: atomic.LoadInt64(&invalidCount),
		ReleaseVersion: release.Tag,
	}, nil
}

// recvEntry receives the next result from entries, counting a stall
// whenever the channel was empty and the receive would otherwise have
// blocked. ok is false once entries is closed and drained, or ctx is
// done while waiting.
func recvEntry(entries <-chan xmlparse.EntryResult, ctx context.Context) (xmlparse.EntryResult, bool) {
	select {
	case res, ok := <-entries:
		return res, ok
	default:
		queueStalls.WithLabelValues("entries", "empty").Inc()
	}
	select {
	case res, ok := <-entries:
		return res, ok
	case <-ctx.Done():
		return xmlparse.EntryResult{}, false
	}
}

// sendBatch sends batch on batches, counting a stall whenever the
// channel was full and the send would otherwise have blocked. It
// reports false if ctx is done before the send completes.
func sendBatch(batches chan<- *rowencode.Batch, batch *rowencode.Batch, ctx context.Context) bool {
	select {
	case batches <- batch:
		return true
	default:
		queueStalls.WithLabelValues("batches", "full").Inc()
	}
	select {
	case batches <- batch:
		return true
	case <-ctx.Done():
		return false
	}
}

// recvBatch receives the next batch for the writer, counting a stall
// whenever the channel was empty and the receive would otherwise have
// blocked. ok is false once batches is closed and drained.
func recvBatch(batches <-chan *rowencode.Batch) (*rowencode.Batch, bool) {
	select {
	case b, ok := <-batches:
		return b, ok
	default:
		queueStalls.WithLabelValues("batches", "empty").Inc()
	}
	b, ok := <-batches
	return b, ok
}

func writeBatch(set *spool.Set, cat catalog.Catalog, batch *rowencode.Batch) error {
	for _, t := range cat {
		rows, ok := batch.Rows[t.Name]
		if !ok {
			continue
		}
		for _, row := range rows {
			if err := set.WriteLine(t.Name, rowencode.Line(row)); err != nil {
				return errors.Wrapf(err, "writing row to table %s", t.Name)
			}
		}
	}
	return nil
}
