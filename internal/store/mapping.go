package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"artgraph-backend/internal/domain"
	"artgraph-backend/internal/errors"
)

// Reserved record keys. Domain properties are stored flattened alongside
// them, so these names can never be used as property keys on the wire.
var reservedNodeKeys = map[string]struct{}{
	"uuid":             {},
	"type":             {},
	"label":            {},
	"version":          {},
	"created_at":       {},
	"updated_at":       {},
	"last_modified_by": {},
}

var reservedRelKeys = map[string]struct{}{
	"uuid":        {},
	"version":     {},
	"created_at":  {},
	"updated_at":  {},
	"audit_trail": {},
}

// nodeToRecord flattens a node into store properties.
func nodeToRecord(node *domain.Node) map[string]any {
	record := map[string]any{
		"uuid":             node.UUID.String(),
		"type":             string(node.Type),
		"label":            node.Label,
		"version":          node.Version,
		"created_at":       node.CreatedAt,
		"updated_at":       node.UpdatedAt,
		"last_modified_by": node.LastModifiedBy,
	}
	for key, value := range node.Properties {
		if _, reserved := reservedNodeKeys[key]; reserved {
			continue
		}
		record[key] = value.Native()
	}
	return record
}

// nodeFromRecord rebuilds a node from a store row.
func nodeFromRecord(raw any) (*domain.Node, error) {
	record, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.Internal("MALFORMED_RECORD",
			fmt.Sprintf("expected node record map, got %T", raw))
	}

	id, err := uuid.Parse(asString(record["uuid"]))
	if err != nil {
		return nil, errors.Internal("MALFORMED_RECORD", "node record has invalid uuid").WithCause(err)
	}
	nodeType, err := domain.ParseNodeType(asString(record["type"]))
	if err != nil {
		return nil, err
	}
	version, _ := asInt(record["version"])

	props := domain.Properties{}
	for key, value := range record {
		if _, reserved := reservedNodeKeys[key]; reserved {
			continue
		}
		pv, err := domain.FromNative(value)
		if err != nil {
			return nil, err
		}
		props[key] = pv
	}

	return &domain.Node{
		UUID:           id,
		Type:           nodeType,
		Label:          asString(record["label"]),
		Properties:     props,
		CreatedAt:      asTime(record["created_at"]),
		UpdatedAt:      asTime(record["updated_at"]),
		Version:        version,
		LastModifiedBy: asString(record["last_modified_by"]),
	}, nil
}

// relationshipToRecord flattens a relationship into store properties. The
// audit trail is serialized to JSON because the store only holds scalar
// property values.
func relationshipToRecord(rel *domain.Relationship) map[string]any {
	record := map[string]any{
		"uuid":       rel.UUID.String(),
		"version":    rel.Version,
		"created_at": rel.CreatedAt,
		"updated_at": rel.UpdatedAt,
	}
	if trail, err := json.Marshal(rel.AuditTrail); err == nil {
		record["audit_trail"] = string(trail)
	}
	for key, value := range rel.Properties {
		if _, reserved := reservedRelKeys[key]; reserved {
			continue
		}
		record[key] = value.Native()
	}
	return record
}

// relationshipFromRecord rebuilds a relationship from a store row holding
// rel, rel_type, source_uuid and target_uuid columns.
func relationshipFromRecord(row map[string]any) (*domain.Relationship, error) {
	record, ok := row["rel"].(map[string]any)
	if !ok {
		return nil, errors.Internal("MALFORMED_RECORD",
			fmt.Sprintf("expected relationship record map, got %T", row["rel"]))
	}

	id, err := uuid.Parse(asString(record["uuid"]))
	if err != nil {
		return nil, errors.Internal("MALFORMED_RECORD", "relationship record has invalid uuid").WithCause(err)
	}
	relType, err := domain.ParseRelationshipType(asString(row["rel_type"]))
	if err != nil {
		return nil, err
	}
	sourceID, err := uuid.Parse(asString(row["source_uuid"]))
	if err != nil {
		return nil, errors.Internal("MALFORMED_RECORD", "relationship record has invalid source uuid").WithCause(err)
	}
	targetID, err := uuid.Parse(asString(row["target_uuid"]))
	if err != nil {
		return nil, errors.Internal("MALFORMED_RECORD", "relationship record has invalid target uuid").WithCause(err)
	}
	version, _ := asInt(record["version"])

	var trail []domain.AuditEntry
	if raw := asString(record["audit_trail"]); raw != "" {
		// A corrupt trail is logged upstream as a mapping failure; the
		// relationship itself is still usable.
		_ = json.Unmarshal([]byte(raw), &trail)
	}

	props := domain.Properties{}
	for key, value := range record {
		if _, reserved := reservedRelKeys[key]; reserved {
			continue
		}
		pv, err := domain.FromNative(value)
		if err != nil {
			return nil, err
		}
		props[key] = pv
	}

	return &domain.Relationship{
		UUID:       id,
		Type:       relType,
		SourceID:   sourceID,
		TargetID:   targetID,
		Properties: props,
		CreatedAt:  asTime(record["created_at"]),
		UpdatedAt:  asTime(record["updated_at"]),
		Version:    version,
		AuditTrail: trail,
	}, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func asTime(v any) time.Time {
	if t, ok := v.(time.Time); ok {
		return t
	}
	return time.Time{}
}
