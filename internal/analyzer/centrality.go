package analyzer

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"artgraph-backend/internal/domain"
	"artgraph-backend/internal/errors"
)

// PageRank constants.
const (
	pagerankDamping     = 0.85
	pagerankIterations  = 100
	pagerankConvergence = 1e-4
)

// CentralityScore is one node's score for a centrality measure.
type CentralityScore struct {
	NodeID uuid.UUID       `json:"node_id"`
	Type   domain.NodeType `json:"type"`
	Label  string          `json:"label"`
	Score  float64         `json:"score"`
}

// Centrality scores every node in the (optionally type-filtered) graph by
// the named measure and returns the scores sorted descending. Supported
// measures are degree, betweenness, eigenvector and pagerank.
func (a *Analyzer) Centrality(ctx context.Context, kind string, nodeTypes []domain.NodeType) ([]CentralityScore, error) {
	if _, ok := centralityKinds[kind]; !ok {
		return nil, errors.Validation("UNKNOWN_CENTRALITY",
			fmt.Sprintf("unknown centrality measure %q", kind))
	}
	for _, t := range nodeTypes {
		if _, err := domain.ParseNodeType(string(t)); err != nil {
			return nil, err
		}
	}
	a.countQuery("centrality_" + kind)

	key := cacheKey("centrality", kind, typeFilterKey(nodeTypes))
	var cached []CentralityScore
	if a.cachedResult(ctx, key, &cached) {
		return cached, nil
	}

	g, err := a.loadGraph(ctx, nodeTypes)
	if err != nil {
		return nil, err
	}
	if err := a.acquire(ctx); err != nil {
		return nil, err
	}
	defer a.release()

	var scores []float64
	switch kind {
	case "degree":
		scores = degreeCentrality(g)
	case "betweenness":
		scores = betweennessCentrality(g)
	case "eigenvector":
		scores = eigenvectorCentrality(g)
	case "pagerank":
		scores = pagerank(g)
	}

	result := make([]CentralityScore, g.order())
	for i := range result {
		result[i] = CentralityScore{
			NodeID: g.ids[i],
			Type:   g.nodes[i].Type,
			Label:  g.nodes[i].Label,
			Score:  scores[i],
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].NodeID.String() < result[j].NodeID.String()
	})

	a.storeResult(ctx, key, result)
	return result, nil
}

// degreeCentrality normalizes degree by the maximum possible (n-1).
func degreeCentrality(g *memGraph) []float64 {
	n := g.order()
	scores := make([]float64, n)
	if n < 2 {
		return scores
	}
	for i := 0; i < n; i++ {
		scores[i] = float64(g.degree(i)) / float64(n-1)
	}
	return scores
}

// betweennessCentrality implements Brandes' accumulation over unweighted
// shortest paths, normalized to the maximum score.
func betweennessCentrality(g *memGraph) []float64 {
	n := g.order()
	scores := make([]float64, n)

	for s := 0; s < n; s++ {
		stack := make([]int, 0, n)
		preds := make([][]int, n)
		sigma := make([]float64, n)
		dist := make([]int, n)
		for i := range dist {
			dist[i] = -1
		}
		sigma[s] = 1
		dist[s] = 0

		queue := []int{s}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, e := range g.adj[v] {
				w := e.to
				if dist[w] < 0 {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					preds[w] = append(preds[w], v)
				}
			}
		}

		delta := make([]float64, n)
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range preds[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != s {
				scores[w] += delta[w]
			}
		}
	}

	// Each undirected shortest path is counted from both endpoints.
	for i := range scores {
		scores[i] /= 2
	}
	normalize(scores)
	return scores
}

// eigenvectorCentrality runs power iteration on the adjacency matrix.
func eigenvectorCentrality(g *memGraph) []float64 {
	n := g.order()
	if n == 0 {
		return nil
	}
	v := make([]float64, n)
	for i := range v {
		v[i] = 1.0 / float64(n)
	}

	next := make([]float64, n)
	for iter := 0; iter < pagerankIterations; iter++ {
		for i := range next {
			next[i] = 0
		}
		for i := 0; i < n; i++ {
			for _, e := range g.adj[i] {
				next[e.to] += v[i] * e.weight
			}
		}
		l2normalize(next)

		diff := 0.0
		for i := range v {
			diff += math.Abs(next[i] - v[i])
		}
		copy(v, next)
		if diff < pagerankConvergence {
			break
		}
	}
	normalize(v)
	return v
}

// pagerank runs weighted PageRank with damping 0.85 until the total score
// movement drops below the convergence threshold.
func pagerank(g *memGraph) []float64 {
	n := g.order()
	if n == 0 {
		return nil
	}
	ranks := make([]float64, n)
	for i := range ranks {
		ranks[i] = 1.0 / float64(n)
	}

	outWeight := make([]float64, n)
	for i := 0; i < n; i++ {
		for _, e := range g.adj[i] {
			outWeight[i] += e.weight
		}
	}

	base := (1 - pagerankDamping) / float64(n)
	next := make([]float64, n)
	for iter := 0; iter < pagerankIterations; iter++ {
		dangling := 0.0
		for i := 0; i < n; i++ {
			if outWeight[i] == 0 {
				dangling += ranks[i]
			}
		}
		for i := range next {
			next[i] = base + pagerankDamping*dangling/float64(n)
		}
		for i := 0; i < n; i++ {
			if outWeight[i] == 0 {
				continue
			}
			share := pagerankDamping * ranks[i] / outWeight[i]
			for _, e := range g.adj[i] {
				next[e.to] += share * e.weight
			}
		}

		diff := 0.0
		for i := range ranks {
			diff += math.Abs(next[i] - ranks[i])
		}
		copy(ranks, next)
		if diff < pagerankConvergence {
			break
		}
	}
	return ranks
}
