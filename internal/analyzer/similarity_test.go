package analyzer

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artgraph-backend/internal/domain"
	"artgraph-backend/internal/errors"
)

// similarityFixture: two artworks sharing two of three neighbors, plus an
// unrelated artwork.
func similarityFixture(t *testing.T) (*graphFixture, *domain.Node, *domain.Node, *domain.Node) {
	f := &graphFixture{}
	source := f.artwork(t, "source")
	candidate := f.artwork(t, "candidate")
	unrelated := f.artwork(t, "unrelated")

	shared1 := f.artist(t, "shared painter")
	shared2 := f.artwork(t, "shared neighbor")
	sourceOnly := f.artwork(t, "source only")

	f.link(t, source, shared1)
	f.link(t, source, shared2)
	f.link(t, source, sourceOnly)
	f.link(t, candidate, shared1)
	f.link(t, candidate, shared2)
	f.link(t, unrelated, f.artwork(t, "elsewhere"))

	return f, source, candidate, unrelated
}

func TestAnalyzer_SimilarArtworks_Jaccard(t *testing.T) {
	f, source, candidate, unrelated := similarityFixture(t)

	scores, err := testAnalyzer(f).SimilarArtworks(context.Background(), source.UUID, "jaccard", 10)
	require.NoError(t, err)

	require.Len(t, scores, 1, "only candidates sharing a neighbor qualify")
	assert.Equal(t, candidate.UUID, scores[0].NodeID)
	assert.Equal(t, 2, scores[0].Shared)
	// |A∩B| = 2, |A∪B| = 3
	assert.InDelta(t, 2.0/3.0, scores[0].Score, 1e-9)

	for _, s := range scores {
		assert.NotEqual(t, unrelated.UUID, s.NodeID)
	}
}

func TestAnalyzer_SimilarArtworks_Cosine(t *testing.T) {
	f, source, candidate, _ := similarityFixture(t)

	scores, err := testAnalyzer(f).SimilarArtworks(context.Background(), source.UUID, "cosine", 10)
	require.NoError(t, err)

	require.Len(t, scores, 1)
	assert.Equal(t, candidate.UUID, scores[0].NodeID)
	// 2 / sqrt(3*2)
	assert.InDelta(t, 2.0/math.Sqrt(6), scores[0].Score, 1e-9)
}

func TestAnalyzer_SimilarArtworks_Euclidean(t *testing.T) {
	f, source, _, _ := similarityFixture(t)

	scores, err := testAnalyzer(f).SimilarArtworks(context.Background(), source.UUID, "euclidean", 10)
	require.NoError(t, err)

	require.Len(t, scores, 1)
	// dist = sqrt(3 + 2 - 2*2) = 1
	assert.InDelta(t, 0.5, scores[0].Score, 1e-9)
}

func TestAnalyzer_SimilarArtworks_LimitAndOrder(t *testing.T) {
	f := &graphFixture{}
	source := f.artwork(t, "source")
	hub := f.artist(t, "hub")
	f.link(t, source, hub)

	// Several candidates hang off the shared hub with varying extra degree,
	// giving distinct jaccard scores.
	for i := 0; i < 5; i++ {
		cand := f.artwork(t, "candidate")
		f.link(t, cand, hub)
		for j := 0; j < i; j++ {
			f.link(t, cand, f.artwork(t, "padding"))
		}
	}

	scores, err := testAnalyzer(f).SimilarArtworks(context.Background(), source.UUID, "jaccard", 3)
	require.NoError(t, err)

	require.Len(t, scores, 3)
	for i := 1; i < len(scores); i++ {
		assert.GreaterOrEqual(t, scores[i-1].Score, scores[i].Score)
	}
}

func TestAnalyzer_SimilarArtworks_Validation(t *testing.T) {
	f, source, _, _ := similarityFixture(t)
	analyzer := testAnalyzer(f)
	ctx := context.Background()

	_, err := analyzer.SimilarArtworks(ctx, source.UUID, "hamming", 10)
	assert.True(t, errors.IsValidation(err))

	_, err = analyzer.SimilarArtworks(ctx, source.UUID, "jaccard", 0)
	assert.True(t, errors.IsValidation(err))
}

func TestAnalyzer_SimilarArtworks_SourceMustBeArtwork(t *testing.T) {
	f := &graphFixture{}
	painter := f.artist(t, "painter")
	f.link(t, f.artwork(t, "a"), painter)

	_, err := testAnalyzer(f).SimilarArtworks(context.Background(), painter.UUID, "jaccard", 10)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}
