package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartAddTotal counts cart add operations by outcome (created, merged).
	CartAddTotal *prometheus.CounterVec
	// CartPersistFailures counts best-effort persistence saves that failed.
	CartPersistFailures prometheus.Counter
	// CartEventsEmitted counts acknowledgment events fanned out by topic.
	CartEventsEmitted *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers cart-domain Prometheus
// collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartAddTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_add_total",
			Help:      "Count of cart add operations by merge outcome.",
		}, []string{"outcome"})
		CartPersistFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_persist_failures_total",
			Help:      "Number of cart state saves that failed.",
		})
		CartEventsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_events_emitted_total",
			Help:      "Count of cart acknowledgment events by topic.",
		}, []string{"topic"})

		reg.MustRegister(CartAddTotal, CartPersistFailures, CartEventsEmitted)
	})
}

// IncCartAdd records one add operation outcome. Safe before registration.
func IncCartAdd(outcome string) {
	if CartAddTotal != nil {
		CartAddTotal.WithLabelValues(outcome).Inc()
	}
}

// IncCartPersistFailure records one failed persistence save.
func IncCartPersistFailure() {
	if CartPersistFailures != nil {
		CartPersistFailures.Inc()
	}
}

// IncCartEvent records one emitted acknowledgment event.
func IncCartEvent(topic string) {
	if CartEventsEmitted != nil {
		CartEventsEmitted.WithLabelValues(topic).Inc()
	}
}
