package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artgraph-backend/internal/errors"
)

func TestNewRelationship_Success(t *testing.T) {
	source, target := uuid.New(), uuid.New()

	rel, err := NewRelationship(RelCreatedBy, source, target, Properties{
		"start_date": StringValue("1872"),
		"confidence": FloatValue(0.95),
	}, "curator")
	require.NoError(t, err)

	assert.Equal(t, RelCreatedBy, rel.Type)
	assert.Equal(t, source, rel.SourceID)
	assert.Equal(t, target, rel.TargetID)
	assert.Equal(t, int64(1), rel.Version)

	require.Len(t, rel.AuditTrail, 1)
	assert.Equal(t, "created", rel.AuditTrail[0].Action)
	assert.Equal(t, "curator", rel.AuditTrail[0].Actor)
}

func TestNewRelationship_SelfLoopRejected(t *testing.T) {
	id := uuid.New()
	_, err := NewRelationship(RelContemporaryOf, id, id, nil, "curator")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestNewRelationship_UnknownType(t *testing.T) {
	_, err := NewRelationship(RelationshipType("PAINTED_OVER"), uuid.New(), uuid.New(), nil, "")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestNewRelationship_UnknownPropertyRejected(t *testing.T) {
	_, err := NewRelationship(RelContemporaryOf, uuid.New(), uuid.New(), Properties{
		"color": StringValue("blue"),
	}, "")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestNewRelationship_MissingRequiredProperties(t *testing.T) {
	tests := []struct {
		name    string
		relType RelationshipType
		props   Properties
	}{
		{"created_by without confidence", RelCreatedBy, Properties{"start_date": StringValue("1872")}},
		{"belongs_to without confidence", RelBelongsTo, Properties{}},
		{"influenced_by without end date", RelInfluencedBy, Properties{
			"strength":   FloatValue(0.7),
			"start_date": StringValue("1870"),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRelationship(tt.relType, uuid.New(), uuid.New(), tt.props, "")
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
		})
	}
}

func TestRelationship_WithUpdatedProperties_AppendsAudit(t *testing.T) {
	rel, err := NewRelationship(RelBelongsTo, uuid.New(), uuid.New(), Properties{
		"confidence": FloatValue(0.6),
	}, "curator")
	require.NoError(t, err)

	updated, err := rel.WithUpdatedProperties(Properties{
		"confidence": FloatValue(0.9),
	}, "reviewer")
	require.NoError(t, err)

	assert.Equal(t, int64(2), updated.Version)
	require.Len(t, updated.AuditTrail, 2)
	assert.Equal(t, "created", updated.AuditTrail[0].Action)
	assert.Equal(t, "updated", updated.AuditTrail[1].Action)
	assert.Equal(t, "reviewer", updated.AuditTrail[1].Actor)

	// The original trail is never rewritten.
	require.Len(t, rel.AuditTrail, 1)
	conf, ok := rel.Properties["confidence"].Float()
	require.True(t, ok)
	assert.Equal(t, 0.6, conf)
}

func TestRelationship_Weight(t *testing.T) {
	source, target := uuid.New(), uuid.New()

	withStrength, err := NewRelationship(RelInfluencedBy, source, target, Properties{
		"strength":   FloatValue(0.8),
		"confidence": FloatValue(0.5),
		"start_date": StringValue("1870"),
		"end_date":   StringValue("1880"),
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 0.8, withStrength.Weight())

	withConfidence, err := NewRelationship(RelBelongsTo, source, target, Properties{
		"confidence": FloatValue(0.5),
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 0.5, withConfidence.Weight())

	bare, err := NewRelationship(RelContemporaryOf, source, target, nil, "")
	require.NoError(t, err)
	assert.Equal(t, 1.0, bare.Weight())
}

func TestParseRelationshipType(t *testing.T) {
	parsed, err := ParseRelationshipType("INFLUENCED_BY")
	require.NoError(t, err)
	assert.Equal(t, RelInfluencedBy, parsed)

	_, err = ParseRelationshipType("INSPIRED")
	assert.True(t, errors.IsValidation(err))
}
