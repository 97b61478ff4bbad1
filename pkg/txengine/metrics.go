package txengine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// transactionMetrics holds the Prometheus collectors a Registry updates
// as transactions move through their lifecycle: one promauto-registered
// collector per observable event, no hand-rolled aggregation.
type transactionMetrics struct {
	started            prometheus.Counter
	responses          prometheus.Counter
	timeouts           prometheus.Counter
	cancellations      prometheus.Counter
	retransmitFailures prometheus.Counter
	active             prometheus.Gauge
}

// NewMetrics registers the txengine collector set against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// global registry across test runs; pass prometheus.DefaultRegisterer in
// a long-running process.
func NewMetrics(reg prometheus.Registerer) *transactionMetrics {
	factory := promauto.With(reg)
	return &transactionMetrics{
		started: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "txengine",
			Name:      "transactions_started_total",
			Help:      "Client transactions that completed their initial send and were armed.",
		}),
		responses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "txengine",
			Name:      "responses_delivered_total",
			Help:      "Matched responses delivered to a transaction's collector.",
		}),
		timeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "txengine",
			Name:      "timeouts_total",
			Help:      "Transactions that exhausted their retransmission schedule with no match.",
		}),
		cancellations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "txengine",
			Name:      "cancellations_total",
			Help:      "Transactions ended by an explicit Cancel call.",
		}),
		retransmitFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "txengine",
			Name:      "retransmit_failures_total",
			Help:      "AccessLayer.Send errors observed on a retransmission attempt.",
		}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "txengine",
			Name:      "transactions_armed",
			Help:      "Client transactions currently in the Armed state.",
		}),
	}
}
