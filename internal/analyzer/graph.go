package analyzer

import (
	"math"

	"github.com/google/uuid"

	"artgraph-backend/internal/domain"
)

// halfEdge is one direction of an undirected edge.
type halfEdge struct {
	to     int
	weight float64
	rel    *domain.Relationship
}

// memGraph is the in-memory undirected weighted graph analysis runs on.
// Nodes live in an indexed arena and edges reference them by position, so
// cyclic structures never form recursive references.
type memGraph struct {
	ids   []uuid.UUID
	index map[uuid.UUID]int
	nodes []*domain.Node
	adj   [][]halfEdge
	edges int
}

// buildGraph materializes the fetched node/relationship sets. Every
// relationship contributes one undirected edge; self-loops and edges with
// missing endpoints are skipped.
func buildGraph(nodes []*domain.Node, rels []*domain.Relationship) *memGraph {
	g := &memGraph{
		ids:   make([]uuid.UUID, 0, len(nodes)),
		index: make(map[uuid.UUID]int, len(nodes)),
		nodes: make([]*domain.Node, 0, len(nodes)),
	}
	for _, node := range nodes {
		if _, ok := g.index[node.UUID]; ok {
			continue
		}
		g.index[node.UUID] = len(g.ids)
		g.ids = append(g.ids, node.UUID)
		g.nodes = append(g.nodes, node)
	}
	g.adj = make([][]halfEdge, len(g.ids))

	for _, rel := range rels {
		i, iok := g.index[rel.SourceID]
		j, jok := g.index[rel.TargetID]
		if !iok || !jok || i == j {
			continue
		}
		w := rel.Weight()
		g.adj[i] = append(g.adj[i], halfEdge{to: j, weight: w, rel: rel})
		g.adj[j] = append(g.adj[j], halfEdge{to: i, weight: w, rel: rel})
		g.edges++
	}
	return g
}

// order returns the node count.
func (g *memGraph) order() int { return len(g.ids) }

// size returns the undirected edge count.
func (g *memGraph) size() int { return g.edges }

func (g *memGraph) degree(i int) int { return len(g.adj[i]) }

// neighborSet returns the distinct neighbor indices of node i.
func (g *memGraph) neighborSet(i int) map[int]struct{} {
	set := make(map[int]struct{}, len(g.adj[i]))
	for _, e := range g.adj[i] {
		set[e.to] = struct{}{}
	}
	return set
}

func (g *memGraph) density() float64 {
	n := float64(g.order())
	if n < 2 {
		return 0
	}
	return 2 * float64(g.edges) / (n * (n - 1))
}

func (g *memGraph) averageDegree() float64 {
	n := g.order()
	if n == 0 {
		return 0
	}
	total := 0
	for i := range g.adj {
		total += len(g.adj[i])
	}
	return float64(total) / float64(n)
}

// averageClustering computes the mean local clustering coefficient.
func (g *memGraph) averageClustering() float64 {
	n := g.order()
	if n == 0 {
		return 0
	}
	total := 0.0
	for i := 0; i < n; i++ {
		neighbors := g.neighborSet(i)
		k := len(neighbors)
		if k < 2 {
			continue
		}
		links := 0
		for u := range neighbors {
			for _, e := range g.adj[u] {
				if _, ok := neighbors[e.to]; ok && e.to > u {
					links++
				}
			}
		}
		total += 2.0 * float64(links) / (float64(k) * float64(k-1))
	}
	return total / float64(n)
}

// normalize scales a score map so the maximum is 1; used for score maps
// whose absolute magnitudes carry no meaning.
func normalize(scores []float64) {
	max := 0.0
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	if max <= 0 {
		return
	}
	for i := range scores {
		scores[i] /= max
	}
}

// l2normalize scales a vector to unit length.
func l2normalize(v []float64) {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	norm := math.Sqrt(sum)
	if norm <= 0 {
		return
	}
	for i := range v {
		v[i] /= norm
	}
}
