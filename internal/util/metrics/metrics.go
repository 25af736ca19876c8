// Package metrics holds shared Prometheus label sets and histogram
// bucket boundaries so that every package's metrics stay consistent,
// factoring these out rather than repeating literal slices.
package metrics

// LatencyBuckets are the histogram buckets (in seconds) used by every
// duration metric in the pipeline.
var LatencyBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300}

// TableLabels is the label set used by metrics scoped to one target table.
var TableLabels = []string{"table"}

// RunLabels is the label set used by metrics scoped to one run (full
// or delta load).
var RunLabels = []string{"mode"}
