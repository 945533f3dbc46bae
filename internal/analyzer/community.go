package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"artgraph-backend/internal/errors"
)

const communityPasses = 10

// Community is one detected cluster of related nodes.
type Community struct {
	ID      int         `json:"id"`
	NodeIDs []uuid.UUID `json:"node_ids"`
	Size    int         `json:"size"`
}

// Communities partitions the graph with the named algorithm and returns
// the clusters of at least minSize nodes, largest first. Supported
// algorithms are louvain, label_propagation and modularity.
func (a *Analyzer) Communities(ctx context.Context, algorithm string, minSize int) ([]Community, error) {
	if _, ok := communityAlgorithms[algorithm]; !ok {
		return nil, errors.Validation("UNKNOWN_COMMUNITY_ALGORITHM",
			fmt.Sprintf("unknown community algorithm %q", algorithm))
	}
	if minSize < 1 {
		return nil, errors.Validation("INVALID_MIN_SIZE", "min size must be at least 1")
	}
	a.countQuery("community_" + algorithm)

	key := cacheKey("community", algorithm, strconv.Itoa(minSize))
	var cached []Community
	if a.cachedResult(ctx, key, &cached) {
		return cached, nil
	}

	g, err := a.loadGraph(ctx, nil)
	if err != nil {
		return nil, err
	}
	if err := a.acquire(ctx); err != nil {
		return nil, err
	}
	defer a.release()

	var labels []int
	switch algorithm {
	case "louvain":
		labels = louvain(g)
	case "label_propagation":
		labels = labelPropagation(g)
	case "modularity":
		labels = greedyModularity(g)
	}

	result := collectCommunities(g, labels, minSize)
	a.storeResult(ctx, key, result)
	return result, nil
}

// collectCommunities groups nodes by label, drops clusters below minSize
// and orders the rest largest first with a deterministic tie-break.
func collectCommunities(g *memGraph, labels []int, minSize int) []Community {
	byLabel := make(map[int][]uuid.UUID)
	for i, label := range labels {
		byLabel[label] = append(byLabel[label], g.ids[i])
	}

	result := make([]Community, 0, len(byLabel))
	for _, members := range byLabel {
		if len(members) < minSize {
			continue
		}
		sort.Slice(members, func(i, j int) bool {
			return members[i].String() < members[j].String()
		})
		result = append(result, Community{NodeIDs: members, Size: len(members)})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Size != result[j].Size {
			return result[i].Size > result[j].Size
		}
		return result[i].NodeIDs[0].String() < result[j].NodeIDs[0].String()
	})
	for i := range result {
		result[i].ID = i
	}
	return result
}

// louvain runs the local-move phase of the Louvain method: each node
// greedily joins the neighboring community with the highest modularity
// gain until no move improves the partition.
func louvain(g *memGraph) []int {
	n := g.order()
	labels := make([]int, n)
	for i := range labels {
		labels[i] = i
	}
	if g.size() == 0 {
		return labels
	}

	totalWeight := 0.0
	strength := make([]float64, n)
	for i := 0; i < n; i++ {
		for _, e := range g.adj[i] {
			strength[i] += e.weight
			totalWeight += e.weight
		}
	}
	// Each edge was summed from both endpoints.
	m2 := totalWeight

	communityStrength := make([]float64, n)
	copy(communityStrength, strength)

	for pass := 0; pass < communityPasses; pass++ {
		moved := false
		for i := 0; i < n; i++ {
			current := labels[i]

			// Weight from i into each neighboring community.
			linkWeight := make(map[int]float64)
			for _, e := range g.adj[i] {
				linkWeight[labels[e.to]] += e.weight
			}

			communityStrength[current] -= strength[i]

			bestLabel := current
			bestGain := linkWeight[current] - communityStrength[current]*strength[i]/m2
			for label, w := range linkWeight {
				gain := w - communityStrength[label]*strength[i]/m2
				if gain > bestGain || (gain == bestGain && label < bestLabel) {
					bestGain = gain
					bestLabel = label
				}
			}

			communityStrength[bestLabel] += strength[i]
			if bestLabel != current {
				labels[i] = bestLabel
				moved = true
			}
		}
		if !moved {
			break
		}
	}
	return labels
}

// labelPropagation iteratively assigns each node the label carried by the
// plurality of its neighbors, weighted by edge weight.
func labelPropagation(g *memGraph) []int {
	n := g.order()
	labels := make([]int, n)
	for i := range labels {
		labels[i] = i
	}

	for pass := 0; pass < communityPasses; pass++ {
		changed := false
		for i := 0; i < n; i++ {
			if len(g.adj[i]) == 0 {
				continue
			}
			weight := make(map[int]float64)
			for _, e := range g.adj[i] {
				weight[labels[e.to]] += e.weight
			}
			best := labels[i]
			bestWeight := weight[best]
			for label, w := range weight {
				if w > bestWeight || (w == bestWeight && label < best) {
					best = label
					bestWeight = w
				}
			}
			if best != labels[i] {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return labels
}

// greedyModularity repeatedly merges the pair of connected communities
// whose merge yields the largest modularity gain, stopping when no merge
// improves it.
func greedyModularity(g *memGraph) []int {
	n := g.order()
	labels := make([]int, n)
	for i := range labels {
		labels[i] = i
	}
	if g.size() == 0 {
		return labels
	}

	strength := make([]float64, n)
	m2 := 0.0
	for i := 0; i < n; i++ {
		for _, e := range g.adj[i] {
			strength[i] += e.weight
			m2 += e.weight
		}
	}

	communityStrength := make([]float64, n)
	copy(communityStrength, strength)

	for {
		// Aggregate inter-community edge weights under current labels.
		type pair struct{ a, b int }
		between := make(map[pair]float64)
		for i := 0; i < n; i++ {
			for _, e := range g.adj[i] {
				la, lb := labels[i], labels[e.to]
				if la == lb {
					continue
				}
				if la > lb {
					la, lb = lb, la
				}
				// Halved because each undirected edge appears twice.
				between[pair{la, lb}] += e.weight / 2
			}
		}
		if len(between) == 0 {
			break
		}

		bestGain := 0.0
		var bestPair pair
		for p, w := range between {
			gain := 2 * (w/m2 - communityStrength[p.a]*communityStrength[p.b]/(m2*m2))
			if gain > bestGain || (gain == bestGain && gain > 0 && (p.a < bestPair.a || (p.a == bestPair.a && p.b < bestPair.b))) {
				bestGain = gain
				bestPair = p
			}
		}
		if bestGain <= 0 {
			break
		}

		for i := range labels {
			if labels[i] == bestPair.b {
				labels[i] = bestPair.a
			}
		}
		communityStrength[bestPair.a] += communityStrength[bestPair.b]
		communityStrength[bestPair.b] = 0
	}
	return labels
}
