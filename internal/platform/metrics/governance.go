package metrics

import (
	"net/http"

	"consortium/contexts/governance/governance-engine/domain/entities"
	"consortium/contexts/governance/governance-engine/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "consortium"

// Governance implements ports.Metrics on its own registry.
type Governance struct {
	registry         *prometheus.Registry
	outcomes         *prometheus.CounterVec
	votes            *prometheus.CounterVec
	dispatchFailures *prometheus.CounterVec
	outboxPublished  prometheus.Counter
}

func NewGovernance() *Governance {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Governance{
		registry: registry,
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "governance",
			Name:      "transaction_outcomes_total",
			Help:      "transactions that reached a terminal status, by status",
		}, []string{"status"}),
		votes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "governance",
			Name:      "votes_total",
			Help:      "accepted votes, by kind",
		}, []string{"kind"}),
		dispatchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "governance",
			Name:      "dispatch_failures_total",
			Help:      "outbound calls that failed and rolled back their transaction, by reason",
		}, []string{"reason"}),
		outboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "governance",
			Name:      "outbox_published_total",
			Help:      "outbox events relayed to the event bus",
		}),
	}
}

func (g *Governance) ObserveOutcome(status entities.TransactionStatus) {
	g.outcomes.WithLabelValues(string(status)).Inc()
}

func (g *Governance) ObserveDispatchFailure(reason string) {
	g.dispatchFailures.WithLabelValues(reason).Inc()
}

func (g *Governance) ObserveVote(kind string) {
	g.votes.WithLabelValues(kind).Inc()
}

func (g *Governance) ObserveOutboxPublished(n int) {
	if n > 0 {
		g.outboxPublished.Add(float64(n))
	}
}

// Handler serves the registry in the Prometheus text format.
func (g *Governance) Handler() http.Handler {
	return promhttp.HandlerFor(g.registry, promhttp.HandlerOpts{Registry: g.registry})
}

func (g *Governance) Registry() *prometheus.Registry {
	return g.registry
}

var _ ports.Metrics = (*Governance)(nil)
