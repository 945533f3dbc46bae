package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"artgraph-backend/internal/errors"
)

// RelationshipType enumerates the edge categories of the knowledge graph.
type RelationshipType string

const (
	RelCreatedBy      RelationshipType = "CREATED_BY"
	RelBelongsTo      RelationshipType = "BELONGS_TO"
	RelInfluencedBy   RelationshipType = "INFLUENCED_BY"
	RelLocatedIn      RelationshipType = "LOCATED_IN"
	RelUsesTechnique  RelationshipType = "USES_TECHNIQUE"
	RelMadeWith       RelationshipType = "MADE_WITH"
	RelContemporaryOf RelationshipType = "CONTEMPORARY_OF"
	RelStudiedUnder   RelationshipType = "STUDIED_UNDER"
)

var relationshipTypes = map[RelationshipType]struct{}{
	RelCreatedBy:      {},
	RelBelongsTo:      {},
	RelInfluencedBy:   {},
	RelLocatedIn:      {},
	RelUsesTechnique:  {},
	RelMadeWith:       {},
	RelContemporaryOf: {},
	RelStudiedUnder:   {},
}

// allowedRelationshipProperties is the closed set of property keys an edge
// may carry. Unknown keys are rejected at creation.
var allowedRelationshipProperties = map[string]struct{}{
	"strength":   {},
	"confidence": {},
	"start_date": {},
	"end_date":   {},
	"source":     {},
	"metadata":   {},
}

// requiredRelationshipProperties lists the properties each edge type must
// carry at creation time.
var requiredRelationshipProperties = map[RelationshipType][]string{
	RelCreatedBy:    {"start_date", "confidence"},
	RelBelongsTo:    {"confidence"},
	RelInfluencedBy: {"strength", "start_date", "end_date"},
}

// ParseRelationshipType validates a raw type string.
func ParseRelationshipType(raw string) (RelationshipType, error) {
	t := RelationshipType(raw)
	if _, ok := relationshipTypes[t]; !ok {
		return "", errors.Validation("INVALID_RELATIONSHIP_TYPE",
			fmt.Sprintf("invalid relationship type %q", raw))
	}
	return t, nil
}

// AuditEntry records one mutation of a relationship. The trail is
// append-only.
type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
}

// Relationship represents a typed edge between two nodes.
type Relationship struct {
	UUID       uuid.UUID        `json:"uuid"`
	Type       RelationshipType `json:"type"`
	SourceID   uuid.UUID        `json:"source_id"`
	TargetID   uuid.UUID        `json:"target_id"`
	Properties Properties       `json:"properties"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
	Version    int64            `json:"version"`
	AuditTrail []AuditEntry     `json:"audit_trail,omitempty"`
}

// NewRelationship creates an edge with full invariant validation: the type
// must be known, source and target must differ, property keys must come
// from the allowed set and the type-specific required properties must be
// present.
func NewRelationship(relType RelationshipType, sourceID, targetID uuid.UUID, props Properties, actor string) (*Relationship, error) {
	if _, ok := relationshipTypes[relType]; !ok {
		return nil, errors.Validation("INVALID_RELATIONSHIP_TYPE",
			fmt.Sprintf("invalid relationship type %q", relType))
	}
	if sourceID == targetID {
		return nil, errors.Validation("SELF_RELATIONSHIP",
			"relationship source and target must differ").WithResource("relationship")
	}
	if props == nil {
		props = Properties{}
	}
	if err := validateRelationshipProperties(relType, props); err != nil {
		return nil, err
	}
	if actor == "" {
		actor = "system"
	}

	now := time.Now().UTC()
	return &Relationship{
		UUID:       uuid.New(),
		Type:       relType,
		SourceID:   sourceID,
		TargetID:   targetID,
		Properties: props.Clone(),
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    1,
		AuditTrail: []AuditEntry{{Timestamp: now, Actor: actor, Action: "created"}},
	}, nil
}

func validateRelationshipProperties(relType RelationshipType, props Properties) error {
	if err := props.Validate(); err != nil {
		return err
	}
	for key := range props {
		if _, ok := allowedRelationshipProperties[key]; !ok {
			return errors.Validation("UNKNOWN_RELATIONSHIP_PROPERTY",
				fmt.Sprintf("property %q is not allowed on relationships", key)).
				WithResource("relationship")
		}
	}
	for _, required := range requiredRelationshipProperties[relType] {
		if _, ok := props[required]; !ok {
			return errors.Validation("MISSING_REQUIRED_PROPERTY",
				fmt.Sprintf("missing required property %q for relationship type %s", required, relType)).
				WithResource("relationship")
		}
	}
	return nil
}

// WithUpdatedProperties returns a copy of the relationship with the merged
// property set, the next version and a new audit entry appended. The audit
// trail is never rewritten, only extended.
func (r *Relationship) WithUpdatedProperties(updates Properties, actor string) (*Relationship, error) {
	merged := r.Properties.Clone()
	for k, v := range updates {
		merged[k] = v
	}
	if err := validateRelationshipProperties(r.Type, merged); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	next := *r
	next.Properties = merged
	next.Version = r.Version + 1
	next.UpdatedAt = now

	trail := make([]AuditEntry, len(r.AuditTrail), len(r.AuditTrail)+1)
	copy(trail, r.AuditTrail)
	next.AuditTrail = append(trail, AuditEntry{
		Timestamp: now,
		Actor:     actor,
		Action:    "updated",
		Detail:    fmt.Sprintf("%d properties changed", len(updates)),
	})
	return &next, nil
}

// Weight returns the edge weight used by analysis algorithms: strength if
// present, otherwise confidence, otherwise 1.0.
func (r *Relationship) Weight() float64 {
	if v, ok := r.Properties["strength"]; ok {
		if f, ok := v.Float(); ok {
			return f
		}
	}
	if v, ok := r.Properties["confidence"]; ok {
		if f, ok := v.Float(); ok {
			return f
		}
	}
	return 1.0
}
