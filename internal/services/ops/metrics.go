package ops

import (
	"github.com/prometheus/client_golang/prometheus"

	"tickkit/internal/storage"
)

type metrics struct {
	reg *prometheus.Registry

	ticks        prometheus.Counter
	due          *prometheus.CounterVec
	invocations  *prometheus.CounterVec
	purged       prometheus.Counter
	recovered    prometheus.Counter
	registered   *prometheus.GaugeVec
	tickDuration prometheus.Histogram
}

func newMetrics() *metrics {
	m := &metrics{reg: prometheus.NewRegistry()}

	m.ticks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tickd_ticks_total",
		Help: "Completed frames (update + late pass).",
	})
	m.due = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tickd_due_total",
		Help: "Entries whose due check held, per phase.",
	}, []string{"phase"})
	m.invocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tickd_invocations_total",
		Help: "Task callbacks invoked, per phase.",
	}, []string{"phase"})
	m.purged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tickd_purged_total",
		Help: "Expired registrants removed defensively.",
	})
	m.recovered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tickd_recovered_panics_total",
		Help: "Task panics isolated by the scheduler.",
	})
	m.registered = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tickd_registered_tasks",
		Help: "Live schedule entries, per phase.",
	}, []string{"phase"})
	m.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tickd_tick_duration_seconds",
		Help:    "Wall time spent dispatching one frame.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16), // 10µs .. ~330ms
	})

	m.reg.MustRegister(m.ticks, m.due, m.invocations, m.purged, m.recovered, m.registered, m.tickDuration)
	return m
}

func (m *metrics) observe(row storage.FrameRow) {
	m.ticks.Inc()
	m.due.WithLabelValues("update").Add(float64(row.Due))
	m.due.WithLabelValues("late").Add(float64(row.LateDue))
	m.invocations.WithLabelValues("update").Add(float64(row.Invoked))
	m.invocations.WithLabelValues("late").Add(float64(row.LateInvoke))
	m.purged.Add(float64(row.Purged))
	m.recovered.Add(float64(row.Recovered))
	m.registered.WithLabelValues("update").Set(float64(row.Registered))
	m.registered.WithLabelValues("late").Set(float64(row.LateReg))
	m.tickDuration.Observe(row.Elapsed.Seconds())
}
