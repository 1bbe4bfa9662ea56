package ingest

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// Metrics tracks operational counters across the ingest engine.
var metrics struct {
	DiscoverRequests   atomic.Int64
	DriveFolderFetches atomic.Int64
	DriveProbes        atomic.Int64
	DriveInfoLookups   atomic.Int64
	Downloads          atomic.Int64
	DownloadErrors     atomic.Int64
	Uploads            atomic.Int64
	UploadErrors       atomic.Int64
	FilesFailed        atomic.Int64
	TriggerDispatches  atomic.Int64
	PollTimeouts       atomic.Int64
}

// GetMetrics returns a snapshot of all counters including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"discover_requests":    metrics.DiscoverRequests.Load(),
		"drive_folder_fetches": metrics.DriveFolderFetches.Load(),
		"drive_probes":         metrics.DriveProbes.Load(),
		"drive_info_lookups":   metrics.DriveInfoLookups.Load(),
		"downloads":            metrics.Downloads.Load(),
		"download_errors":      metrics.DownloadErrors.Load(),
		"uploads":              metrics.Uploads.Load(),
		"upload_errors":        metrics.UploadErrors.Load(),
		"files_failed":         metrics.FilesFailed.Load(),
		"trigger_dispatches":   metrics.TriggerDispatches.Load(),
		"poll_timeouts":        metrics.PollTimeouts.Load(),
		"probe_cache_hits":     hits,
		"probe_cache_misses":   misses,
	}
}

// FormatMetrics returns metrics as a simple text format for the HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s %d\n", k, m[k])
	}
	return b.String()
}
