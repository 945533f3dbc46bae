package generator

import (
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"artgraph-backend/internal/domain"
)

// assignLayout computes force-directed 2-D coordinates (Fruchterman and
// Reingold) and writes them into each node's position property for
// downstream visualization. Initial placement is seeded from the node id
// so repeated runs start from the same state.
func assignLayout(sg *domain.Subgraph, iterations int) {
	n := len(sg.Nodes)
	if n == 0 {
		return
	}

	ids := make([]uuid.UUID, 0, n)
	for id := range sg.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	index := make(map[uuid.UUID]int, n)
	posX := make([]float64, n)
	posY := make([]float64, n)
	for i, id := range ids {
		index[id] = i
		posX[i], posY[i] = seedPosition(id)
	}

	if n == 1 {
		writePositions(sg, ids, posX, posY)
		return
	}

	// Ideal edge length for a unit layout area.
	k := math.Sqrt(1.0 / float64(n))
	dispX := make([]float64, n)
	dispY := make([]float64, n)

	for iter := 0; iter < iterations; iter++ {
		for i := range dispX {
			dispX[i], dispY[i] = 0, 0
		}

		// Repulsive forces between every node pair.
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				dx := posX[i] - posX[j]
				dy := posY[i] - posY[j]
				dist := math.Hypot(dx, dy)
				if dist < 1e-9 {
					dist = 1e-9
					dx = 1e-9
				}
				force := k * k / dist
				dispX[i] += dx / dist * force
				dispY[i] += dy / dist * force
				dispX[j] -= dx / dist * force
				dispY[j] -= dy / dist * force
			}
		}

		// Attractive forces along relationships.
		for _, rel := range sg.Relationships {
			i, iok := index[rel.SourceID]
			j, jok := index[rel.TargetID]
			if !iok || !jok {
				continue
			}
			dx := posX[i] - posX[j]
			dy := posY[i] - posY[j]
			dist := math.Hypot(dx, dy)
			if dist < 1e-9 {
				continue
			}
			force := dist * dist / k
			dispX[i] -= dx / dist * force
			dispY[i] -= dy / dist * force
			dispX[j] += dx / dist * force
			dispY[j] += dy / dist * force
		}

		// Cooling schedule limits per-iteration displacement.
		temp := 0.1 * (1.0 - float64(iter)/float64(iterations))
		for i := 0; i < n; i++ {
			disp := math.Hypot(dispX[i], dispY[i])
			if disp < 1e-9 {
				continue
			}
			limited := math.Min(disp, temp)
			posX[i] += dispX[i] / disp * limited
			posY[i] += dispY[i] / disp * limited
		}
	}

	writePositions(sg, ids, posX, posY)
}

func writePositions(sg *domain.Subgraph, ids []uuid.UUID, posX, posY []float64) {
	for i, id := range ids {
		node := sg.Nodes[id]
		if node.Properties == nil {
			node.Properties = domain.Properties{}
		}
		node.Properties["position"] = domain.PositionValue(domain.Position{X: posX[i], Y: posY[i]})
	}
}

// seedPosition maps a node id onto the unit square deterministically.
func seedPosition(id uuid.UUID) (float64, float64) {
	h := xxhash.Sum64(id[:])
	x := float64(h&0xFFFFFFFF) / float64(0xFFFFFFFF)
	y := float64(h>>32) / float64(0xFFFFFFFF)
	return x, y
}
