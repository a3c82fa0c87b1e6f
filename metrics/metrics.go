// Package metrics exposes committed rounds as Prometheus metrics. A Collector
// is a consensus.RoundObserver: register it on the coordinator and every
// committed round updates the counters and the per-node trust gauge.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luca-patrignani/trust-consensus/consensus"
)

const namespace = "trustsim"

type Collector struct {
	registry    *prometheus.Registry
	rounds      prometheus.Counter
	wins        *prometheus.CounterVec
	resolutions *prometheus.CounterVec
	excluded    prometheus.Counter
	trust       *prometheus.GaugeVec
}

// NewCollector creates the collectors on a dedicated registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Number of committed rounds",
		}),
		wins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candidate_wins_total",
				Help:      "Number of rounds won per candidate",
			},
			[]string{"candidate"},
		),
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_total",
				Help:      "Number of rounds decided by each winner selection step",
			},
			[]string{"stage"},
		),
		excluded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "excluded_votes_total",
			Help:      "Number of votes dropped because their voter was malicious",
		}),
		trust: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "node_trust_score",
				Help:      "Trust score of each node after the last committed round",
			},
			[]string{"node"},
		),
	}
	c.registry.MustRegister(c.rounds, c.wins, c.resolutions, c.excluded, c.trust)
	return c
}

// OnRound records a committed round.
func (c *Collector) OnRound(result consensus.RoundResult) {
	c.rounds.Inc()
	c.wins.WithLabelValues(string(result.Winner)).Inc()
	c.resolutions.WithLabelValues(result.Resolution.String()).Inc()
	c.excluded.Add(float64(result.Excluded))
	for id, v := range result.Trust {
		c.trust.WithLabelValues(strconv.Itoa(id)).Set(v)
	}
}

// Registry returns the registry holding the collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collected metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
