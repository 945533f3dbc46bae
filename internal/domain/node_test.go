package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artgraph-backend/internal/errors"
)

func artistProps() Properties {
	return Properties{
		"name":       StringValue("Claude Monet"),
		"birth_year": IntValue(1840),
	}
}

func TestNewNode_Success(t *testing.T) {
	node, err := NewNode(NodeTypeArtist, artistProps(), "curator")
	require.NoError(t, err)

	assert.Equal(t, NodeTypeArtist, node.Type)
	assert.Equal(t, "Artist", node.Label)
	assert.Equal(t, int64(1), node.Version)
	assert.Equal(t, "curator", node.LastModifiedBy)
	assert.NotEqual(t, node.UUID.String(), "00000000-0000-0000-0000-000000000000")
	assert.False(t, node.CreatedAt.IsZero())
}

func TestNewNode_InvalidType(t *testing.T) {
	_, err := NewNode(NodeType("SCULPTURE_GARDEN"), nil, "curator")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestNewNode_MissingRequiredProperties(t *testing.T) {
	tests := []struct {
		name     string
		nodeType NodeType
		props    Properties
	}{
		{
			name:     "artist without birth year",
			nodeType: NodeTypeArtist,
			props:    Properties{"name": StringValue("Claude Monet")},
		},
		{
			name:     "artwork without medium",
			nodeType: NodeTypeArtwork,
			props: Properties{
				"title": StringValue("Impression, Sunrise"),
				"year":  IntValue(1872),
			},
		},
		{
			name:     "movement without period",
			nodeType: NodeTypeMovement,
			props:    Properties{"name": StringValue("Impressionism")},
		},
		{
			name:     "technique without description",
			nodeType: NodeTypeTechnique,
			props:    Properties{"name": StringValue("Impasto")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNode(tt.nodeType, tt.props, "curator")
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
		})
	}
}

func TestNewNode_TypesWithoutSchemaNeedNoProperties(t *testing.T) {
	for _, nodeType := range []NodeType{NodeTypePeriod, NodeTypeLocation, NodeTypeMaterial} {
		node, err := NewNode(nodeType, nil, "")
		require.NoError(t, err)
		assert.Equal(t, "system", node.LastModifiedBy)
	}
}

func TestNode_WithUpdatedProperties(t *testing.T) {
	node, err := NewNode(NodeTypeArtist, artistProps(), "curator")
	require.NoError(t, err)

	updated, err := node.WithUpdatedProperties(Properties{
		"death_year": IntValue(1926),
	}, "archivist")
	require.NoError(t, err)

	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, "archivist", updated.LastModifiedBy)
	assert.Contains(t, updated.Properties, "death_year")

	// The original is untouched.
	assert.Equal(t, int64(1), node.Version)
	assert.NotContains(t, node.Properties, "death_year")
}

func TestNode_WithUpdatedProperties_CannotBreakSchema(t *testing.T) {
	node, err := NewNode(NodeTypeArtist, artistProps(), "curator")
	require.NoError(t, err)

	// Overwrite a required property with too much data.
	huge := make([]byte, MaxStringValueLen+1)
	_, err = node.WithUpdatedProperties(Properties{
		"name": StringValue(string(huge)),
	}, "vandal")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestParseNodeType(t *testing.T) {
	parsed, err := ParseNodeType("ARTWORK")
	require.NoError(t, err)
	assert.Equal(t, NodeTypeArtwork, parsed)

	_, err = ParseNodeType("artwork")
	assert.True(t, errors.IsValidation(err))
}

func TestNode_IsArtwork(t *testing.T) {
	artist, err := NewNode(NodeTypeArtist, artistProps(), "")
	require.NoError(t, err)
	assert.False(t, artist.IsArtwork())
}
