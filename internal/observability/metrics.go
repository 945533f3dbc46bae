// Package observability holds the Prometheus metrics collector shared by
// the graph service components.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds all Prometheus metrics for the graph service. It owns
// its registry and is injected into components by the composition root,
// so independent service instances never share counters.
type Collector struct {
	registry *prometheus.Registry

	// Store metrics
	QueryDuration *prometheus.HistogramVec
	QueryFailures *prometheus.CounterVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheErrors prometheus.Counter

	// Generator metrics
	GraphGenerations  prometheus.Counter
	FailedGenerations prometheus.Counter

	// Analyzer metrics
	AnalysisQueries *prometheus.CounterVec

	// BreakerState is 0 closed, 1 half-open, 2 open, per dependency.
	BreakerState *prometheus.GaugeVec
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_query_duration_seconds",
				Help:      "Graph store query duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		QueryFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_query_failures_total",
				Help:      "Total number of failed graph store queries",
			},
			[]string{"mode"},
		),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		}),
		CacheErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Total number of cache operation errors",
		}),
		GraphGenerations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_generations_total",
			Help:      "Total number of generated subgraphs",
		}),
		FailedGenerations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_generations_failed_total",
			Help:      "Total number of failed subgraph generations",
		}),
		AnalysisQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analysis_queries_total",
				Help:      "Total number of graph analysis queries",
			},
			[]string{"operation"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"dependency"},
		),
	}

	registry.MustRegister(
		c.QueryDuration,
		c.QueryFailures,
		c.CacheHits,
		c.CacheMisses,
		c.CacheErrors,
		c.GraphGenerations,
		c.FailedGenerations,
		c.AnalysisQueries,
		c.BreakerState,
	)
	return c
}

// Registry exposes the underlying registry for the metrics endpoint.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
