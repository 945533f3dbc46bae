package analyzer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"artgraph-backend/internal/errors"
)

// SimilarityScore is one candidate artwork ranked against the source.
type SimilarityScore struct {
	NodeID uuid.UUID `json:"node_id"`
	Label  string    `json:"label"`
	Score  float64   `json:"score"`
	Shared int       `json:"shared_neighbors"`
}

// SimilarArtworks ranks artworks by neighborhood overlap with the source
// artwork. Candidates must share at least one neighbor; the top limit
// scores are returned in descending order with a deterministic tie-break.
// Supported metrics are jaccard, cosine and euclidean.
func (a *Analyzer) SimilarArtworks(ctx context.Context, artworkID uuid.UUID, metric string, limit int) ([]SimilarityScore, error) {
	if _, ok := similarityMetrics[metric]; !ok {
		return nil, errors.Validation("UNKNOWN_SIMILARITY_METRIC",
			fmt.Sprintf("unknown similarity metric %q", metric))
	}
	if limit < 1 {
		return nil, errors.Validation("INVALID_LIMIT", "limit must be at least 1")
	}
	a.countQuery("similarity_" + metric)

	key := cacheKey("similarity", artworkID.String(), metric, strconv.Itoa(limit))
	var cached []SimilarityScore
	if a.cachedResult(ctx, key, &cached) {
		return cached, nil
	}

	g, err := a.loadGraph(ctx, nil)
	if err != nil {
		return nil, err
	}
	source, err := nodeByID(g, artworkID)
	if err != nil {
		return nil, err
	}
	if !source.IsArtwork() {
		return nil, errors.Validation("NOT_AN_ARTWORK",
			fmt.Sprintf("node %s is not an artwork", artworkID))
	}

	if err := a.acquire(ctx); err != nil {
		return nil, err
	}
	defer a.release()

	result := rankSimilar(g, g.index[artworkID], metric, limit)
	a.storeResult(ctx, key, result)
	return result, nil
}

func rankSimilar(g *memGraph, source int, metric string, limit int) []SimilarityScore {
	srcSet := g.neighborSet(source)

	// Candidates are artworks two hops away: anything sharing a neighbor.
	candidates := make(map[int]struct{})
	for u := range srcSet {
		for _, e := range g.adj[u] {
			c := e.to
			if c == source {
				continue
			}
			if g.nodes[c].IsArtwork() {
				candidates[c] = struct{}{}
			}
		}
	}

	scores := make([]SimilarityScore, 0, len(candidates))
	for c := range candidates {
		candSet := g.neighborSet(c)
		shared := 0
		for u := range srcSet {
			if _, ok := candSet[u]; ok {
				shared++
			}
		}
		if shared == 0 {
			continue
		}
		scores = append(scores, SimilarityScore{
			NodeID: g.ids[c],
			Label:  g.nodes[c].Label,
			Score:  similarityScore(metric, shared, len(srcSet), len(candSet)),
			Shared: shared,
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].NodeID.String() < scores[j].NodeID.String()
	})
	if len(scores) > limit {
		scores = scores[:limit]
	}
	return scores
}

func similarityScore(metric string, shared, sizeA, sizeB int) float64 {
	switch metric {
	case "jaccard":
		union := sizeA + sizeB - shared
		if union == 0 {
			return 0
		}
		return float64(shared) / float64(union)
	case "cosine":
		if sizeA == 0 || sizeB == 0 {
			return 0
		}
		return float64(shared) / math.Sqrt(float64(sizeA)*float64(sizeB))
	case "euclidean":
		// Distance between binary neighborhood vectors; closeness in (0, 1].
		dist := math.Sqrt(float64(sizeA + sizeB - 2*shared))
		return 1.0 / (1.0 + dist)
	}
	return 0
}
