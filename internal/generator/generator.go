// Package generator builds bounded-depth subgraphs rooted at an artwork.
// Expansion is breadth-first: levels run strictly in order, batches inside
// a level run concurrently and merge by set union, and in-flight requests
// for the same cache key are coalesced.
package generator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"artgraph-backend/internal/cache"
	"artgraph-backend/internal/domain"
	"artgraph-backend/internal/errors"
	"artgraph-backend/internal/observability"
)

// Source is the slice of the graph store the generator depends on.
type Source interface {
	GetNode(ctx context.Context, id uuid.UUID) (*domain.Node, error)
	Neighborhood(ctx context.Context, ids []uuid.UUID, relTypes []domain.RelationshipType) ([]domain.NeighborEdge, error)
}

// Config bounds subgraph generation.
type Config struct {
	MaxDepth         int
	MaxGraphSize     int
	BatchSize        int
	CacheTTL         time.Duration
	LayoutIterations int
}

// DefaultConfig mirrors the production limits: depth 3, 1000 nodes,
// batches of 50, results cached for an hour.
func DefaultConfig() Config {
	return Config{
		MaxDepth:         3,
		MaxGraphSize:     1000,
		BatchSize:        50,
		CacheTTL:         time.Hour,
		LayoutIterations: 50,
	}
}

// Options narrows which relationships are traversed. The zero value
// traverses everything.
type Options struct {
	RelationshipTypes []domain.RelationshipType
}

// fingerprint hashes the options into the cache key so that different
// traversal filters never collide.
func (o Options) fingerprint() uint64 {
	types := make([]string, len(o.RelationshipTypes))
	for i, t := range o.RelationshipTypes {
		types[i] = string(t)
	}
	sort.Strings(types)

	h := xxhash.New()
	for _, t := range types {
		h.WriteString(t)
		h.WriteString("|")
	}
	return h.Sum64()
}

// CacheKey derives the cache key for one generation request.
func CacheKey(artworkID uuid.UUID, depth int, opts Options) string {
	return fmt.Sprintf("graph:%s:%d:%016x", artworkID, depth, opts.fingerprint())
}

// Generator produces cached, bounded subgraphs rooted at artworks.
type Generator struct {
	source  Source
	cache   *cache.Layer
	cfg     Config
	logger  *zap.Logger
	metrics *observability.Collector
	flight  singleflight.Group
}

// New creates a generator. Metrics may be nil.
func New(source Source, cacheLayer *cache.Layer, cfg Config, logger *zap.Logger, metrics *observability.Collector) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		source:  source,
		cache:   cacheLayer,
		cfg:     cfg,
		logger:  logger.Named("graph_generator"),
		metrics: metrics,
	}
}

// Generate returns the subgraph reachable from the artwork within depth
// hops. Cached results are returned unchanged; concurrent calls for the
// same key share one execution.
func (g *Generator) Generate(ctx context.Context, artworkID uuid.UUID, depth int, opts Options) (*domain.Subgraph, error) {
	if depth < 0 || depth > g.cfg.MaxDepth {
		return nil, errors.Validation("DEPTH_OUT_OF_RANGE",
			fmt.Sprintf("depth %d must be between 0 and %d", depth, g.cfg.MaxDepth))
	}

	key := CacheKey(artworkID, depth, opts)
	if data, ok := g.cache.Get(ctx, key); ok {
		if sg, err := domain.DecodeSubgraph(data); err == nil {
			return sg, nil
		}
		// A corrupt entry is dropped and regenerated.
		g.cache.Invalidate(ctx, key)
	}

	// Coalesced waiters share the leader's context: when the leader's
	// deadline expires, every waiter observes the same Timeout regardless
	// of its own deadline.
	result, err, shared := g.flight.Do(key, func() (any, error) {
		return g.generate(ctx, artworkID, depth, opts, key)
	})
	if err != nil {
		if g.metrics != nil {
			g.metrics.FailedGenerations.Inc()
		}
		return nil, err
	}
	if shared {
		g.logger.Debug("generation coalesced with in-flight request", zap.String("key", key))
	}
	return result.(*domain.Subgraph), nil
}

// Invalidate drops the cached subgraph for one request shape.
func (g *Generator) Invalidate(ctx context.Context, artworkID uuid.UUID, depth int, opts Options) bool {
	return g.cache.Invalidate(ctx, CacheKey(artworkID, depth, opts))
}

// Expand grows an already generated graph by pulling in direct neighbors
// of the given node type around every current node, then refreshes the
// cache entry. The graph must already be cached; Expand never triggers a
// fresh generation.
func (g *Generator) Expand(ctx context.Context, artworkID uuid.UUID, depth int, opts Options, expandType domain.NodeType) (*domain.Subgraph, error) {
	if depth < 0 || depth > g.cfg.MaxDepth {
		return nil, errors.Validation("DEPTH_OUT_OF_RANGE",
			fmt.Sprintf("depth %d must be between 0 and %d", depth, g.cfg.MaxDepth))
	}
	if _, err := domain.ParseNodeType(string(expandType)); err != nil {
		return nil, err
	}

	key := CacheKey(artworkID, depth, opts)
	data, ok := g.cache.Get(ctx, key)
	if !ok {
		return nil, errors.NotFound("GRAPH_NOT_GENERATED",
			fmt.Sprintf("no cached graph for artwork %s at depth %d", artworkID, depth)).
			WithResource("subgraph")
	}
	sg, err := domain.DecodeSubgraph(data)
	if err != nil {
		g.cache.Invalidate(ctx, key)
		return nil, errors.Internal("CORRUPT_CACHE_ENTRY", "cached graph could not be decoded").WithCause(err)
	}

	frontier := make([]uuid.UUID, 0, len(sg.Nodes))
	for id := range sg.Nodes {
		frontier = append(frontier, id)
	}
	// Expansion traverses every relationship type; the node-type filter
	// alone decides which new neighbors join the graph.
	if _, err := g.expandFrontier(ctx, sg, frontier, Options{}, func(n *domain.Node) bool {
		return n.Type == expandType
	}); err != nil {
		return nil, err
	}

	assignLayout(sg, g.cfg.LayoutIterations)
	sg.Seal()

	if encoded, err := sg.Encode(); err == nil {
		if err := g.cache.Set(ctx, key, encoded, g.cfg.CacheTTL); err != nil {
			g.logger.Warn("expanded subgraph not cacheable", zap.String("key", key), zap.Error(err))
		}
	}

	g.logger.Info("expanded subgraph",
		zap.String("artwork_id", artworkID.String()),
		zap.String("expansion_type", string(expandType)),
		zap.Int("nodes", len(sg.Nodes)),
		zap.Int("relationships", len(sg.Relationships)),
	)
	return sg, nil
}

func (g *Generator) generate(ctx context.Context, artworkID uuid.UUID, depth int, opts Options, key string) (*domain.Subgraph, error) {
	start := time.Now()

	root, err := g.source.GetNode(ctx, artworkID)
	if err != nil {
		return nil, err
	}
	if !root.IsArtwork() {
		return nil, errors.NotFound("ARTWORK_NOT_FOUND",
			fmt.Sprintf("node %s is not an artwork", artworkID)).WithResource("artwork")
	}

	sg := domain.NewSubgraph(root, depth)
	if err := g.expand(ctx, sg, depth, opts); err != nil {
		return nil, err
	}

	assignLayout(sg, g.cfg.LayoutIterations)
	sg.Seal()

	if data, err := sg.Encode(); err == nil {
		if err := g.cache.Set(ctx, key, data, g.cfg.CacheTTL); err != nil {
			g.logger.Warn("generated subgraph not cacheable", zap.String("key", key), zap.Error(err))
		}
	}

	if g.metrics != nil {
		g.metrics.GraphGenerations.Inc()
	}
	g.logger.Info("generated subgraph",
		zap.String("artwork_id", artworkID.String()),
		zap.Int("depth", depth),
		zap.Int("nodes", len(sg.Nodes)),
		zap.Int("relationships", len(sg.Relationships)),
		zap.Bool("truncated", sg.Metadata.Truncated),
		zap.Duration("elapsed", time.Since(start)),
	)
	return sg, nil
}

// expand runs the level-by-level breadth-first traversal and records the
// achieved depth in the metadata. Level N+1 never starts before every
// batch of level N has resolved; on any failure the partially merged
// frontier is discarded with the whole call.
func (g *Generator) expand(ctx context.Context, sg *domain.Subgraph, depth int, opts Options) error {
	frontier := []uuid.UUID{sg.Metadata.RootID}
	achieved := 0

	for level := 0; level < depth && len(frontier) > 0 && !sg.Metadata.Truncated; level++ {
		next, err := g.expandFrontier(ctx, sg, frontier, opts, nil)
		if err != nil {
			return err
		}
		if len(next) > 0 {
			achieved = level + 1
		}
		frontier = next
	}
	sg.Metadata.Depth = achieved
	return nil
}

// expandFrontier resolves one breadth level. Batches run concurrently and
// merge by set union, so batch order is irrelevant. keep, when non-nil,
// filters which unknown neighbors join the graph; edges closing onto
// already-known nodes always merge. Returns the ids of the added nodes.
func (g *Generator) expandFrontier(ctx context.Context, sg *domain.Subgraph, frontier []uuid.UUID, opts Options, keep func(*domain.Node) bool) ([]uuid.UUID, error) {
	batches := chunk(frontier, g.cfg.BatchSize)
	results := make([][]domain.NeighborEdge, len(batches))

	eg, ectx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		i, batch := i, batch
		eg.Go(func() error {
			edges, err := g.source.Neighborhood(ectx, batch, opts.RelationshipTypes)
			if err != nil {
				return err
			}
			results[i] = edges
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, errors.Timeout("GENERATION_TIMEOUT",
				"subgraph generation deadline exceeded").WithCause(ctx.Err())
		}
		return nil, err
	}

	var next []uuid.UUID
	for _, edges := range results {
		for _, edge := range edges {
			known := sg.HasNode(edge.Neighbor.UUID)
			if !known {
				if keep != nil && !keep(edge.Neighbor) {
					continue
				}
				if len(sg.Nodes) >= g.cfg.MaxGraphSize {
					sg.Metadata.Truncated = true
					continue
				}
				sg.AddNode(edge.Neighbor)
				next = append(next, edge.Neighbor.UUID)
			}
			// An edge closing onto an already-known node forms a cycle.
			if sg.AddRelationship(edge.Relationship) && known {
				sg.Metadata.ContainsCycles = true
			}
		}
	}
	return next, nil
}

func chunk(ids []uuid.UUID, size int) [][]uuid.UUID {
	if size <= 0 {
		size = 1
	}
	var out [][]uuid.UUID
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
