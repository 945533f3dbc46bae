package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artgraph-backend/internal/errors"
)

func TestNewArtwork_ChecksumPresent(t *testing.T) {
	art, err := NewArtwork("Impression, Sunrise", 1872, "oil on canvas", nil, "curator")
	require.NoError(t, err)

	assert.True(t, art.IsArtwork())
	assert.Contains(t, art.Properties, "checksum")
	assert.True(t, art.VerifyIntegrity())
}

func TestNewArtwork_EmptyTitleRejected(t *testing.T) {
	_, err := NewArtwork("   ", 1872, "oil on canvas", nil, "curator")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestArtwork_UpdateMetadataRecomputesChecksum(t *testing.T) {
	art, err := NewArtwork("Water Lilies", 1906, "oil on canvas", nil, "curator")
	require.NoError(t, err)
	before, _ := art.Properties["checksum"].AsString()

	updated, err := art.UpdateMetadata(Properties{
		"location": StringValue("Musée de l'Orangerie"),
	}, "archivist")
	require.NoError(t, err)

	after, _ := updated.Properties["checksum"].AsString()
	assert.NotEqual(t, before, after)
	assert.True(t, updated.VerifyIntegrity())
	assert.Equal(t, int64(2), updated.Version)

	// The original still verifies against its own checksum.
	assert.True(t, art.VerifyIntegrity())
}

func TestArtwork_VerifyIntegrityDetectsTampering(t *testing.T) {
	art, err := NewArtwork("The Starry Night", 1889, "oil on canvas", nil, "curator")
	require.NoError(t, err)

	art.Properties["title"] = StringValue("A Forgery")
	assert.False(t, art.VerifyIntegrity())
}

func TestArtwork_VerifyIntegrityMissingChecksum(t *testing.T) {
	art, err := NewArtwork("Guernica", 1937, "oil on canvas", nil, "curator")
	require.NoError(t, err)

	delete(art.Properties, "checksum")
	assert.False(t, art.VerifyIntegrity())
}

func TestArtworkFromNode(t *testing.T) {
	node, err := NewNode(NodeTypeArtwork, Properties{
		"title":  StringValue("Las Meninas"),
		"year":   IntValue(1656),
		"medium": StringValue("oil on canvas"),
	}, "curator")
	require.NoError(t, err)

	art, err := ArtworkFromNode(node)
	require.NoError(t, err)
	assert.Equal(t, node.UUID, art.UUID)

	artist, err := NewNode(NodeTypeArtist, artistProps(), "curator")
	require.NoError(t, err)
	_, err = ArtworkFromNode(artist)
	assert.True(t, errors.IsValidation(err))
}

func TestArtwork_ChecksumDeterministic(t *testing.T) {
	art, err := NewArtwork("The Kiss", 1908, "oil and gold leaf", Properties{
		"location": StringValue("Belvedere"),
	}, "curator")
	require.NoError(t, err)

	first := art.computeChecksum()
	second := art.computeChecksum()
	assert.Equal(t, first, second)
}
