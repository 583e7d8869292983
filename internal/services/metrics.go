package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	QuorumReadsTotal      *prometheus.CounterVec
	RejectedCopiesTotal   *prometheus.CounterVec
	AllocatorOpsTotal     *prometheus.CounterVec
	FreeSectors           prometheus.Gauge
	FreeListEntries       prometheus.Gauge
	ContentBytesReadTotal prometheus.Counter
	SkippedEntriesTotal   *prometheus.CounterVec
	DirectoriesUnpacked   prometheus.Counter
}

// NewMetrics registers the engine collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		QuorumReadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agcfs_quorum_reads_total",
				Help: "Redundant record reads by record type and outcome",
			},
			[]string{"record", "status"},
		),
		RejectedCopiesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agcfs_rejected_copies_total",
				Help: "Record copies that were unreadable or failed validation",
			},
			[]string{"record"},
		),
		AllocatorOpsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agcfs_allocator_operations_total",
				Help: "Free-space allocator operations by kind and outcome",
			},
			[]string{"operation", "status"},
		),
		FreeSectors: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "agcfs_free_sectors",
				Help: "Sectors currently on the free list",
			},
		),
		FreeListEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "agcfs_free_list_entries",
				Help: "Entries currently on the free list",
			},
		),
		ContentBytesReadTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "agcfs_content_bytes_read_total",
				Help: "File content bytes returned to callers",
			},
		),
		SkippedEntriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agcfs_skipped_directory_entries_total",
				Help: "Directory entries skipped while building the tree",
			},
			[]string{"reason"},
		),
		DirectoriesUnpacked: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "agcfs_directories_unpacked_total",
				Help: "Directories materialized into the node arena",
			},
		),
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) observeQuorum(record string, rejected int, err error) {
	if m == nil {
		return
	}
	m.QuorumReadsTotal.WithLabelValues(record, statusLabel(err)).Inc()
	if rejected > 0 {
		m.RejectedCopiesTotal.WithLabelValues(record).Add(float64(rejected))
	}
}

func (m *Metrics) observeAllocator(op string, err error, entries int, freeSectors uint64) {
	if m == nil {
		return
	}
	m.AllocatorOpsTotal.WithLabelValues(op, statusLabel(err)).Inc()
	m.FreeListEntries.Set(float64(entries))
	m.FreeSectors.Set(float64(freeSectors))
}

func (m *Metrics) observeContentRead(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ContentBytesReadTotal.Add(float64(n))
}

func (m *Metrics) observeSkippedEntry(reason string) {
	if m == nil {
		return
	}
	m.SkippedEntriesTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) observeUnpacked() {
	if m == nil {
		return
	}
	m.DirectoriesUnpacked.Inc()
}
