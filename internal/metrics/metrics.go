// Package metrics tracks in-process operational counters for the core.
//
// The HTTP surface that would normally export these (spec.md §6.4) is out
// of core scope, so this stays a plain atomic-counter struct rather than a
// Prometheus registry — there is no component left to scrape it.
package metrics

import "sync/atomic"

// Counters aggregates counts across the core's main subsystems. All fields
// are safe for concurrent use.
type Counters struct {
	ImportsOK       atomic.Int64
	ImportsFailed   atomic.Int64
	StoreReads      atomic.Int64
	StoreWrites     atomic.Int64
	StoreConflicts  atomic.Int64
	DRCRuns         atomic.Int64
	ViolationsFound atomic.Int64
	FixesApplied    atomic.Int64
	FixesRejected   atomic.Int64
	FixesManual     atomic.Int64
	ClientRequests  atomic.Int64
	ClientStale     atomic.Int64
	ClientTimeouts  atomic.Int64
}

// Global is the process-wide counter set. Tests may construct their own
// *Counters instead of using this one.
var Global = &Counters{}

// Snapshot is a point-in-time copy suitable for logging or JSON encoding.
type Snapshot struct {
	ImportsOK       int64 `json:"imports_ok"`
	ImportsFailed   int64 `json:"imports_failed"`
	StoreReads      int64 `json:"store_reads"`
	StoreWrites     int64 `json:"store_writes"`
	StoreConflicts  int64 `json:"store_conflicts"`
	DRCRuns         int64 `json:"drc_runs"`
	ViolationsFound int64 `json:"violations_found"`
	FixesApplied    int64 `json:"fixes_applied"`
	FixesRejected   int64 `json:"fixes_rejected"`
	FixesManual     int64 `json:"fixes_manual"`
	ClientRequests  int64 `json:"client_requests"`
	ClientStale     int64 `json:"client_stale"`
	ClientTimeouts  int64 `json:"client_timeouts"`
}

// Snap takes an atomic snapshot of the counters.
func (c *Counters) Snap() Snapshot {
	return Snapshot{
		ImportsOK:       c.ImportsOK.Load(),
		ImportsFailed:   c.ImportsFailed.Load(),
		StoreReads:      c.StoreReads.Load(),
		StoreWrites:     c.StoreWrites.Load(),
		StoreConflicts:  c.StoreConflicts.Load(),
		DRCRuns:         c.DRCRuns.Load(),
		ViolationsFound: c.ViolationsFound.Load(),
		FixesApplied:    c.FixesApplied.Load(),
		FixesRejected:   c.FixesRejected.Load(),
		FixesManual:     c.FixesManual.Load(),
		ClientRequests:  c.ClientRequests.Load(),
		ClientStale:     c.ClientStale.Load(),
		ClientTimeouts:  c.ClientTimeouts.Load(),
	}
}
