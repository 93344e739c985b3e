package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "possync_records_total",
			Help: "Record sync outcomes by result and kind",
		},
		[]string{"result", "kind"}, // synced|failed , transaction|inventory
	)

	PendingRecords = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "possync_pending_records",
			Help: "Records awaiting sync by kind, sampled at cycle end",
		},
		[]string{"kind"},
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "possync_cycle_duration_seconds",
			Help:    "Full synchronization cycle duration",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		RecordsTotal,
		PendingRecords,
		CycleDuration,
	)
}
