// Package metrics holds the process-wide operational counters. Everything is
// a plain atomic so the hot path never blocks on instrumentation.
package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	SamplesReceived  atomic.Int64
	SamplesDropped   atomic.Int64
	SamplesProcessed atomic.Int64

	DBWriteSuccess    atomic.Int64
	DBWriteFailures   atomic.Int64
	DBChannelDrops    atomic.Int64
	StateChannelDrops atomic.Int64
	AlertChannelDrops atomic.Int64

	AlertsCreated        atomic.Int64
	AlertPublishFailures atomic.Int64

	RollupRowFailures atomic.Int64
)

func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "fleetwatch_samples_received_total %d\n", SamplesReceived.Load())
	fmt.Fprintf(w, "fleetwatch_samples_dropped_total %d\n", SamplesDropped.Load())
	fmt.Fprintf(w, "fleetwatch_samples_processed_total %d\n", SamplesProcessed.Load())
	fmt.Fprintf(w, "fleetwatch_db_write_success_total %d\n", DBWriteSuccess.Load())
	fmt.Fprintf(w, "fleetwatch_db_write_failures_total %d\n", DBWriteFailures.Load())
	fmt.Fprintf(w, "fleetwatch_db_channel_drops_total %d\n", DBChannelDrops.Load())
	fmt.Fprintf(w, "fleetwatch_state_channel_drops_total %d\n", StateChannelDrops.Load())
	fmt.Fprintf(w, "fleetwatch_alert_channel_drops_total %d\n", AlertChannelDrops.Load())
	fmt.Fprintf(w, "fleetwatch_alerts_created_total %d\n", AlertsCreated.Load())
	fmt.Fprintf(w, "fleetwatch_alert_publish_failures_total %d\n", AlertPublishFailures.Load())
	fmt.Fprintf(w, "fleetwatch_rollup_row_failures_total %d\n", RollupRowFailures.Load())
}
