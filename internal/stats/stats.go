// Package stats holds the lock-free counters ServerStats aggregates for
// INFO: request counts by kind, replication event counters, and per-table
// document counts pulled live from the catalog rather than duplicated here.
package stats

import "sync/atomic"

// ServerStats is shared by every connection handler; every field is an
// atomic so no lock is ever taken on the request path.
type ServerStats struct {
	SearchRequests atomic.Int64
	CountRequests  atomic.Int64
	GetRequests    atomic.Int64
	ErrorResponses atomic.Int64

	ReplicationEventsApplied atomic.Int64
	ReplicationEventsDropped atomic.Int64

	CacheHits   atomic.Int64
	CacheMisses atomic.Int64

	startUnixSeconds int64
}

// New returns a zeroed ServerStats stamped with the process start time.
func New(startUnixSeconds int64) *ServerStats {
	return &ServerStats{startUnixSeconds: startUnixSeconds}
}

// UptimeSeconds reports elapsed seconds since New, given the current time.
func (s *ServerStats) UptimeSeconds(nowUnixSeconds int64) int64 {
	return nowUnixSeconds - s.startUnixSeconds
}

// Snapshot is an immutable copy for INFO rendering.
type Snapshot struct {
	SearchRequests           int64
	CountRequests            int64
	GetRequests              int64
	ErrorResponses           int64
	ReplicationEventsApplied int64
	ReplicationEventsDropped int64
	CacheHits                int64
	CacheMisses              int64
}

// Snapshot reads every counter without blocking any writer.
func (s *ServerStats) Snapshot() Snapshot {
	return Snapshot{
		SearchRequests:           s.SearchRequests.Load(),
		CountRequests:            s.CountRequests.Load(),
		GetRequests:              s.GetRequests.Load(),
		ErrorResponses:           s.ErrorResponses.Load(),
		ReplicationEventsApplied: s.ReplicationEventsApplied.Load(),
		ReplicationEventsDropped: s.ReplicationEventsDropped.Load(),
		CacheHits:                s.CacheHits.Load(),
		CacheMisses:              s.CacheMisses.Load(),
	}
}
