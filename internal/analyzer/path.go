package analyzer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"artgraph-backend/internal/domain"
	"artgraph-backend/internal/errors"
)

// Path is an ordered node/relationship walk. Both slices are empty when
// the target is unreachable within the hop limit.
type Path struct {
	Nodes         []*domain.Node         `json:"nodes"`
	Relationships []*domain.Relationship `json:"relationships"`
}

// Found reports whether the walk reaches the target.
func (p *Path) Found() bool { return len(p.Nodes) > 0 }

// Hops returns the number of relationships on the walk.
func (p *Path) Hops() int { return len(p.Relationships) }

// arrival records how the search first reached a node.
type arrival struct {
	prev int
	via  *domain.Relationship
}

// ShortestPath finds the minimum-hop walk from source to target using
// only the allowed relationship types. maxHops must be between 1 and the
// configured cap.
func (a *Analyzer) ShortestPath(ctx context.Context, sourceID, targetID uuid.UUID, relTypes []domain.RelationshipType, maxHops int) (*Path, error) {
	if maxHops < 1 || maxHops > a.cfg.MaxHops {
		return nil, errors.Validation("MAX_HOPS_OUT_OF_RANGE",
			fmt.Sprintf("max hops %d must be between 1 and %d", maxHops, a.cfg.MaxHops))
	}
	for _, t := range relTypes {
		if _, err := domain.ParseRelationshipType(string(t)); err != nil {
			return nil, err
		}
	}
	a.countQuery("shortest_path")

	allowed := make(map[domain.RelationshipType]struct{}, len(relTypes))
	typeKey := ""
	for _, t := range relTypes {
		allowed[t] = struct{}{}
		typeKey += string(t) + ","
	}

	key := cacheKey("shortest_path", sourceID.String(), targetID.String(), typeKey, strconv.Itoa(maxHops))
	var cached Path
	if a.cachedResult(ctx, key, &cached) {
		return &cached, nil
	}

	g, err := a.loadGraph(ctx, nil)
	if err != nil {
		return nil, err
	}
	if _, err := nodeByID(g, sourceID); err != nil {
		return nil, err
	}
	if _, err := nodeByID(g, targetID); err != nil {
		return nil, err
	}

	if err := a.acquire(ctx); err != nil {
		return nil, err
	}
	defer a.release()

	path := bfsPath(g, g.index[sourceID], g.index[targetID], allowed, maxHops)
	a.storeResult(ctx, key, path)
	return path, nil
}

// bfsPath runs a breadth-first search bounded by maxHops, recording the
// edge used to reach each node so the walk can be reconstructed.
func bfsPath(g *memGraph, source, target int, allowed map[domain.RelationshipType]struct{}, maxHops int) *Path {
	if source == target {
		return &Path{Nodes: []*domain.Node{g.nodes[source]}, Relationships: []*domain.Relationship{}}
	}

	visited := map[int]arrival{source: {prev: -1}}
	frontier := []int{source}

	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		var next []int
		for _, u := range frontier {
			for _, e := range g.adj[u] {
				if len(allowed) > 0 {
					if _, ok := allowed[e.rel.Type]; !ok {
						continue
					}
				}
				if _, seen := visited[e.to]; seen {
					continue
				}
				visited[e.to] = arrival{prev: u, via: e.rel}
				if e.to == target {
					return reconstruct(g, visited, target)
				}
				next = append(next, e.to)
			}
		}
		frontier = next
	}
	return &Path{Nodes: []*domain.Node{}, Relationships: []*domain.Relationship{}}
}

// reconstruct walks the arrival chain backwards from target and reverses
// it into source-to-target order.
func reconstruct(g *memGraph, visited map[int]arrival, target int) *Path {
	var nodes []*domain.Node
	var rels []*domain.Relationship
	for at := target; at != -1; {
		nodes = append(nodes, g.nodes[at])
		step := visited[at]
		if step.via != nil {
			rels = append(rels, step.via)
		}
		at = step.prev
	}
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
	for i, j := 0, len(rels)-1; i < j; i, j = i+1, j-1 {
		rels[i], rels[j] = rels[j], rels[i]
	}
	return &Path{Nodes: nodes, Relationships: rels}
}
