package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the ingestion loop and the publish path.
var (
	ReceiptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zap_receipts_total",
			Help: "Total number of zap receipt events drained from relays",
		},
	)

	UnknownAmountsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zap_unknown_amounts_total",
			Help: "Total number of accepted receipts whose amount could not be resolved",
		},
	)

	RepliesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zap_replies_total",
			Help: "Total number of acknowledgement replies published",
		},
	)

	StoreErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zap_store_errors_total",
			Help: "Total number of receipts skipped due to storage errors",
		},
	)

	PublishFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zap_publish_failures_total",
			Help: "Total number of publish attempts that exhausted all fallbacks",
		},
	)
)

// Register registers all collectors with the default registry.
func Register() {
	prometheus.MustRegister(ReceiptsTotal)
	prometheus.MustRegister(UnknownAmountsTotal)
	prometheus.MustRegister(RepliesTotal)
	prometheus.MustRegister(StoreErrorsTotal)
	prometheus.MustRegister(PublishFailuresTotal)
}
