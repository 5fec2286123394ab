package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/synaptica-ai/warehouse-etl/pkg/common/models"
)

var (
	runsTotal          atomic.Int64
	runsFailed         atomic.Int64
	rowsExtracted      atomic.Int64
	recordsInserted    atomic.Int64
	recordsConflicted  atomic.Int64
	recordsFailed      atomic.Int64
	missingTables      atomic.Int64
	lastRunDurationMs  atomic.Int64
	lastRunSucceeded   atomic.Int64
	lastRunCompletedAt atomic.Int64
)

// ObserveRun folds a finished run into the counters.
func ObserveRun(run models.RunSummary) {
	runsTotal.Add(1)
	if run.Status == models.RunStatusFailed {
		runsFailed.Add(1)
		lastRunSucceeded.Store(0)
	} else {
		lastRunSucceeded.Store(1)
	}

	totals := run.Totals()
	rowsExtracted.Add(int64(run.TotalExtracted()))
	recordsInserted.Add(int64(totals.Inserted))
	recordsConflicted.Add(int64(totals.Conflicts))
	recordsFailed.Add(int64(totals.Failed))
	missingTables.Store(int64(len(run.MissingTables)))
	lastRunDurationMs.Store(run.Duration().Milliseconds())
	if run.CompletedAt != nil {
		lastRunCompletedAt.Store(run.CompletedAt.Unix())
	}
}

// Reset zeroes every counter. Used by tests.
func Reset() {
	for _, c := range []*atomic.Int64{
		&runsTotal, &runsFailed, &rowsExtracted, &recordsInserted, &recordsConflicted,
		&recordsFailed, &missingTables, &lastRunDurationMs, &lastRunSucceeded, &lastRunCompletedAt,
	} {
		c.Store(0)
	}
}

func Handler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	WritePrometheus(w)
}

func WritePrometheus(w io.Writer) {
	writeMetric(w, "etl_runs_total", "counter", "Number of ETL runs finished since start.", runsTotal.Load())
	writeMetric(w, "etl_runs_failed_total", "counter", "Number of ETL runs that failed.", runsFailed.Load())
	writeMetric(w, "etl_rows_extracted_total", "counter", "Source rows read across all runs.", rowsExtracted.Load())
	writeMetric(w, "etl_records_inserted_total", "counter", "Warehouse records inserted.", recordsInserted.Load())
	writeMetric(w, "etl_records_conflicts_total", "counter", "Warehouse records skipped as duplicates.", recordsConflicted.Load())
	writeMetric(w, "etl_records_failed_total", "counter", "Warehouse records rejected by the store.", recordsFailed.Load())
	writeMetric(w, "etl_last_run_missing_tables", "gauge", "Source tables that could not be read in the latest run.", missingTables.Load())
	writeMetric(w, "etl_last_run_duration_milliseconds", "gauge", "Wall time of the latest run.", lastRunDurationMs.Load())
	writeMetric(w, "etl_last_run_success", "gauge", "1 if the latest run completed, 0 if it failed.", lastRunSucceeded.Load())
	writeMetric(w, "etl_last_run_completed_timestamp_seconds", "gauge", "Unix time the latest run finished.", lastRunCompletedAt.Load())
}

func writeMetric(w io.Writer, name, kind, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %d\n", name, value)
}
