package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SubgraphMetadata describes how a subgraph was generated. Depth is the
// achieved traversal depth: the farthest level that contributed a node,
// which is less than the requested depth when the reachable set is
// exhausted or truncation stops expansion early.
type SubgraphMetadata struct {
	RootID            uuid.UUID `json:"root_id"`
	Depth             int       `json:"depth"`
	Truncated         bool      `json:"truncated"`
	ContainsCycles    bool      `json:"contains_cycles"`
	NodeCount         int       `json:"node_count"`
	RelationshipCount int       `json:"relationship_count"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// Subgraph is the transient, bounded set of nodes and relationships
// reachable from a root artwork. Nodes live in a UUID-keyed map and
// relationships in an explicit edge list referencing them by id, so the
// logically cyclic graph never forms nested recursive references.
type Subgraph struct {
	Nodes         map[uuid.UUID]*Node `json:"nodes"`
	Relationships []*Relationship     `json:"relationships"`
	Metadata      SubgraphMetadata    `json:"metadata"`

	relIndex map[uuid.UUID]struct{}
}

// NewSubgraph creates an empty subgraph rooted at the given node.
func NewSubgraph(root *Node, depth int) *Subgraph {
	sg := &Subgraph{
		Nodes:    map[uuid.UUID]*Node{root.UUID: root},
		Metadata: SubgraphMetadata{RootID: root.UUID, Depth: depth},
		relIndex: map[uuid.UUID]struct{}{},
	}
	return sg
}

// HasNode reports whether the node id is already part of the subgraph.
func (sg *Subgraph) HasNode(id uuid.UUID) bool {
	_, ok := sg.Nodes[id]
	return ok
}

// AddNode inserts the node if absent and reports whether it was added.
func (sg *Subgraph) AddNode(node *Node) bool {
	if _, ok := sg.Nodes[node.UUID]; ok {
		return false
	}
	sg.Nodes[node.UUID] = node
	return true
}

// AddRelationship inserts the relationship if its uuid is new and both
// endpoints exist in the node set. Returns whether it was added.
func (sg *Subgraph) AddRelationship(rel *Relationship) bool {
	if _, ok := sg.relIndex[rel.UUID]; ok {
		return false
	}
	if !sg.HasNode(rel.SourceID) || !sg.HasNode(rel.TargetID) {
		return false
	}
	sg.relIndex[rel.UUID] = struct{}{}
	sg.Relationships = append(sg.Relationships, rel)
	return true
}

// Seal finalizes the metadata counters and timestamp.
func (sg *Subgraph) Seal() {
	sg.Metadata.NodeCount = len(sg.Nodes)
	sg.Metadata.RelationshipCount = len(sg.Relationships)
	sg.Metadata.GeneratedAt = time.Now().UTC()
}

// Encode serializes the subgraph for caching.
func (sg *Subgraph) Encode() ([]byte, error) {
	return json.Marshal(sg)
}

// DecodeSubgraph restores a cached subgraph and rebuilds the internal
// relationship index.
func DecodeSubgraph(data []byte) (*Subgraph, error) {
	var sg Subgraph
	if err := json.Unmarshal(data, &sg); err != nil {
		return nil, err
	}
	sg.relIndex = make(map[uuid.UUID]struct{}, len(sg.Relationships))
	for _, rel := range sg.Relationships {
		sg.relIndex[rel.UUID] = struct{}{}
	}
	return &sg, nil
}

// NeighborEdge pairs one relationship with the node on its far side, as
// returned by a frontier expansion query.
type NeighborEdge struct {
	Relationship *Relationship
	Neighbor     *Node
}
