package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kjannette/watchtower-backend/internal/dashboard"
)

const (
	resultOK      = "ok"
	resultNoData  = "no_data"
	resultPinned  = "pinned"
	resultFailure = "error"
)

// Metrics are the poller's prometheus collectors.
type Metrics struct {
	Polls        *prometheus.CounterVec
	Ingestions   prometheus.Counter
	MarketsHeld  prometheus.GaugeFunc
	PollDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg when non-nil.
// MarketsHeld reads store on every scrape, so uploads are counted too.
func NewMetrics(reg prometheus.Registerer, store *dashboard.Store) *Metrics {
	m := &Metrics{
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watchtower",
			Subsystem: "poller",
			Name:      "polls_total",
			Help:      "Report polls by result.",
		}, []string{"result"}),
		Ingestions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "watchtower",
			Subsystem: "poller",
			Name:      "ingestions_total",
			Help:      "Reports ingested from a storage path not seen before.",
		}),
		MarketsHeld: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "watchtower",
			Name:      "markets_held",
			Help:      "Records in the collection currently served.",
		}, func() float64 { return float64(len(store.Load().Records)) }),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "watchtower",
			Subsystem: "poller",
			Name:      "poll_duration_seconds",
			Help:      "Time spent per poll.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Polls, m.Ingestions, m.MarketsHeld, m.PollDuration)
	}
	return m
}
