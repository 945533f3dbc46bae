// Package analyzer computes derived metrics over the knowledge graph:
// centrality, similarity, shortest paths and communities. Every entry
// point validates its algorithm name against an allow-list, materializes
// an in-memory undirected weighted graph from the store, runs the
// algorithm in a bounded worker slot and caches the result.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"artgraph-backend/internal/cache"
	"artgraph-backend/internal/domain"
	"artgraph-backend/internal/errors"
	"artgraph-backend/internal/observability"
)

// Source is the slice of the graph store the analyzer depends on.
type Source interface {
	FetchGraph(ctx context.Context, nodeTypes []domain.NodeType) ([]*domain.Node, []*domain.Relationship, error)
}

// Config bounds analysis work.
type Config struct {
	CacheTTL time.Duration
	// MaxHops caps shortest-path searches.
	MaxHops int
	// Workers bounds concurrent CPU-heavy computations so analysis
	// never monopolizes the scheduler.
	Workers int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL: time.Hour,
		MaxHops:  6,
		Workers:  runtime.GOMAXPROCS(0),
	}
}

// Allow-lists for algorithm and metric names. Unknown names fail fast
// before any store query executes.
var (
	centralityKinds = map[string]struct{}{
		"degree":      {},
		"betweenness": {},
		"eigenvector": {},
		"pagerank":    {},
	}
	similarityMetrics = map[string]struct{}{
		"jaccard":   {},
		"cosine":    {},
		"euclidean": {},
	}
	communityAlgorithms = map[string]struct{}{
		"louvain":           {},
		"label_propagation": {},
		"modularity":        {},
	}
)

// Analyzer computes graph metrics.
type Analyzer struct {
	source  Source
	cache   *cache.Layer
	cfg     Config
	logger  *zap.Logger
	metrics *observability.Collector
	sem     chan struct{}
}

// New creates an analyzer. Metrics may be nil.
func New(source Source, cacheLayer *cache.Layer, cfg Config, logger *zap.Logger, metrics *observability.Collector) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = 6
	}
	return &Analyzer{
		source:  source,
		cache:   cacheLayer,
		cfg:     cfg,
		logger:  logger.Named("graph_analyzer"),
		metrics: metrics,
		sem:     make(chan struct{}, cfg.Workers),
	}
}

// acquire takes a worker slot for CPU-bound work, honoring cancellation.
func (a *Analyzer) acquire(ctx context.Context) error {
	select {
	case a.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return errors.Timeout("ANALYSIS_TIMEOUT", "analysis deadline exceeded").WithCause(ctx.Err())
	}
}

func (a *Analyzer) release() {
	<-a.sem
}

func (a *Analyzer) countQuery(operation string) {
	if a.metrics != nil {
		a.metrics.AnalysisQueries.WithLabelValues(operation).Inc()
	}
}

// cacheKey builds a namespaced key from the operation and its parameters.
func cacheKey(operation string, parts ...string) string {
	h := xxhash.New()
	for _, p := range parts {
		h.WriteString(p)
		h.WriteString("|")
	}
	return fmt.Sprintf("analysis:%s:%016x", operation, h.Sum64())
}

// cachedResult loads and decodes a cached analysis result into out,
// reporting whether it was found.
func (a *Analyzer) cachedResult(ctx context.Context, key string, out any) bool {
	data, ok := a.cache.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		a.cache.Invalidate(ctx, key)
		return false
	}
	return true
}

// storeResult caches an analysis result, logging rather than failing on
// oversized payloads.
func (a *Analyzer) storeResult(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, data, a.cfg.CacheTTL); err != nil {
		a.logger.Warn("analysis result not cacheable", zap.String("key", key), zap.Error(err))
	}
}

// loadGraph fetches the node/relationship sets and builds the in-memory
// undirected weighted graph.
func (a *Analyzer) loadGraph(ctx context.Context, nodeTypes []domain.NodeType) (*memGraph, error) {
	nodes, rels, err := a.source.FetchGraph(ctx, nodeTypes)
	if err != nil {
		return nil, err
	}
	return buildGraph(nodes, rels), nil
}

// typeFilterKey canonicalizes a node-type filter for cache keys.
func typeFilterKey(nodeTypes []domain.NodeType) string {
	types := make([]string, len(nodeTypes))
	for i, t := range nodeTypes {
		types[i] = string(t)
	}
	sort.Strings(types)
	key := ""
	for _, t := range types {
		key += t + ","
	}
	return key
}

// GraphMetrics summarizes the overall shape of the fetched graph.
type GraphMetrics struct {
	NodeCount     int     `json:"node_count"`
	EdgeCount     int     `json:"edge_count"`
	Density       float64 `json:"density"`
	AvgClustering float64 `json:"avg_clustering"`
	AvgDegree     float64 `json:"avg_degree"`
}

// Metrics computes density, average clustering coefficient and average
// degree over the whole graph.
func (a *Analyzer) Metrics(ctx context.Context) (*GraphMetrics, error) {
	a.countQuery("metrics")
	key := cacheKey("metrics")
	var cached GraphMetrics
	if a.cachedResult(ctx, key, &cached) {
		return &cached, nil
	}

	g, err := a.loadGraph(ctx, nil)
	if err != nil {
		return nil, err
	}
	if err := a.acquire(ctx); err != nil {
		return nil, err
	}
	defer a.release()

	result := &GraphMetrics{
		NodeCount:     g.order(),
		EdgeCount:     g.size(),
		Density:       g.density(),
		AvgClustering: g.averageClustering(),
		AvgDegree:     g.averageDegree(),
	}
	a.storeResult(ctx, key, result)
	return result, nil
}

// nodeByID returns the node for an id in the fetched graph, or NotFound.
func nodeByID(g *memGraph, id uuid.UUID) (*domain.Node, error) {
	idx, ok := g.index[id]
	if !ok {
		return nil, errors.NotFound("NODE_NOT_FOUND",
			fmt.Sprintf("node %s not found", id)).WithResource("node")
	}
	return g.nodes[idx], nil
}
