// Package domain holds the entity model for the art knowledge graph:
// typed nodes, relationships, artwork specializations and transient
// subgraphs. Entities are created through factory functions that enforce
// every invariant, so a constructed value is always valid.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"artgraph-backend/internal/errors"
)

// NodeType enumerates the vertex categories of the knowledge graph.
type NodeType string

const (
	NodeTypeArtwork   NodeType = "ARTWORK"
	NodeTypeArtist    NodeType = "ARTIST"
	NodeTypeMovement  NodeType = "MOVEMENT"
	NodeTypeTechnique NodeType = "TECHNIQUE"
	NodeTypePeriod    NodeType = "PERIOD"
	NodeTypeLocation  NodeType = "LOCATION"
	NodeTypeMaterial  NodeType = "MATERIAL"
)

// nodeLabels maps each type to its display label.
var nodeLabels = map[NodeType]string{
	NodeTypeArtwork:   "Artwork",
	NodeTypeArtist:    "Artist",
	NodeTypeMovement:  "Art Movement",
	NodeTypeTechnique: "Technique",
	NodeTypePeriod:    "Time Period",
	NodeTypeLocation:  "Location",
	NodeTypeMaterial:  "Material",
}

// requiredNodeProperties lists the properties each node type must carry.
// Types absent from the map have no required properties.
var requiredNodeProperties = map[NodeType][]string{
	NodeTypeArtwork:   {"title", "year", "medium"},
	NodeTypeArtist:    {"name", "birth_year"},
	NodeTypeMovement:  {"name", "period"},
	NodeTypeTechnique: {"name", "description"},
}

// ParseNodeType validates a raw type string.
func ParseNodeType(raw string) (NodeType, error) {
	t := NodeType(raw)
	if _, ok := nodeLabels[t]; !ok {
		return "", errors.Validation("INVALID_NODE_TYPE",
			fmt.Sprintf("invalid node type %q", raw))
	}
	return t, nil
}

// Label returns the display label for the type.
func (t NodeType) Label() string { return nodeLabels[t] }

// Node represents a vertex in the art knowledge graph.
type Node struct {
	UUID           uuid.UUID  `json:"uuid"`
	Type           NodeType   `json:"type"`
	Label          string     `json:"label"`
	Properties     Properties `json:"properties"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Version        int64      `json:"version"`
	LastModifiedBy string     `json:"last_modified_by"`
}

// NewNode creates a node with full invariant validation: the type must be
// one of the fixed set and the type-specific required properties must be
// present. Version always starts at 1.
func NewNode(nodeType NodeType, props Properties, modifiedBy string) (*Node, error) {
	if _, ok := nodeLabels[nodeType]; !ok {
		return nil, errors.Validation("INVALID_NODE_TYPE",
			fmt.Sprintf("invalid node type %q", nodeType))
	}
	if props == nil {
		props = Properties{}
	}
	if err := validateNodeProperties(nodeType, props); err != nil {
		return nil, err
	}
	if modifiedBy == "" {
		modifiedBy = "system"
	}

	now := time.Now().UTC()
	return &Node{
		UUID:           uuid.New(),
		Type:           nodeType,
		Label:          nodeLabels[nodeType],
		Properties:     props.Clone(),
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        1,
		LastModifiedBy: modifiedBy,
	}, nil
}

// validateNodeProperties enforces the per-type required property schema
// plus the generic size bounds.
func validateNodeProperties(nodeType NodeType, props Properties) error {
	if err := props.Validate(); err != nil {
		return err
	}
	for _, required := range requiredNodeProperties[nodeType] {
		if _, ok := props[required]; !ok {
			return errors.Validation("MISSING_REQUIRED_PROPERTY",
				fmt.Sprintf("missing required property %q for node type %s", required, nodeType)).
				WithResource("node")
		}
	}
	return nil
}

// WithUpdatedProperties returns a copy of the node carrying the merged
// property set, the next version and a fresh updated timestamp. The copy
// represents the intended post-update state; persistence must apply it
// with a compare-and-set on the current version.
func (n *Node) WithUpdatedProperties(updates Properties, modifiedBy string) (*Node, error) {
	merged := n.Properties.Clone()
	for k, v := range updates {
		merged[k] = v
	}
	if err := validateNodeProperties(n.Type, merged); err != nil {
		return nil, err
	}

	next := *n
	next.Properties = merged
	next.Version = n.Version + 1
	next.UpdatedAt = time.Now().UTC()
	next.LastModifiedBy = modifiedBy
	return &next, nil
}

// IsArtwork reports whether the node is an artwork vertex.
func (n *Node) IsArtwork() bool { return n.Type == NodeTypeArtwork }
