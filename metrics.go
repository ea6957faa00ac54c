package upd

import "sync/atomic"

// Metrics holds the Iso-level atomic counters, following the teacher's
// metrics.go pattern of plain atomic fields read out via a Snapshot
// struct rather than a pull-based registry.
type Metrics struct {
	requests     atomic.Int64
	filesCreated atomic.Int64
	filesDeleted atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of an Iso's counters.
type MetricsSnapshot struct {
	Requests     int64
	FilesCreated int64
	FilesDeleted int64
	FilesLive    int64
}

// Snapshot reads every counter. It is not atomic across fields, which
// matches the teacher's metrics: individual counters are exact, the
// combination is advisory.
func (m *Metrics) Snapshot() MetricsSnapshot {
	created := m.filesCreated.Load()
	deleted := m.filesDeleted.Load()
	return MetricsSnapshot{
		Requests:     m.requests.Load(),
		FilesCreated: created,
		FilesDeleted: deleted,
		FilesLive:    created - deleted,
	}
}
