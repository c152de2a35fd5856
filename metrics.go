package navi

import (
	"github.com/prometheus/client_golang/prometheus"
)

// failure reasons used as metric labels.
const (
	reasonSerialization = "serialization"
	reasonBroker        = "broker"
	reasonCallback      = "callback"
)

var (
	publishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "navi",
			Name:      "published_total",
			Help:      "Total number of messages published",
		},
		[]string{"exchange"},
	)

	publishFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "navi",
			Name:      "publish_failures_total",
			Help:      "Total number of messages which could not be published",
		},
		[]string{"exchange", "reason"},
	)

	consumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "navi",
			Name:      "consumed_total",
			Help:      "Total number of messages handed to a listener callback",
		},
		[]string{"queue"},
	)

	droppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "navi",
			Name:      "dropped_total",
			Help:      "Total number of delivered messages which failed to be handled",
		},
		[]string{"queue", "reason"},
	)
)

// RegisterMetrics registers the navi counters with r.
func RegisterMetrics(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{publishedTotal, publishFailuresTotal, consumedTotal, droppedTotal} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}
