package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"artgraph-backend/internal/errors"
)

// checksumProperty is the reserved property holding the integrity checksum.
const checksumProperty = "checksum"

// Artwork is the ARTWORK node specialization. Beyond the generic node
// invariants it maintains an integrity checksum over its metadata that is
// recomputed on every write.
type Artwork struct {
	Node
}

// NewArtwork creates an artwork node. Title, year and medium are the
// required metadata; extra holds any additional properties.
func NewArtwork(title string, year int64, medium string, extra Properties, modifiedBy string) (*Artwork, error) {
	if strings.TrimSpace(title) == "" {
		return nil, errors.Validation("EMPTY_TITLE", "artwork title must be non-empty")
	}
	props := Properties{}
	for k, v := range extra {
		props[k] = v
	}
	props["title"] = StringValue(title)
	props["year"] = IntValue(year)
	props["medium"] = StringValue(medium)

	node, err := NewNode(NodeTypeArtwork, props, modifiedBy)
	if err != nil {
		return nil, err
	}
	art := &Artwork{Node: *node}
	art.Properties[checksumProperty] = StringValue(art.computeChecksum())
	return art, nil
}

// ArtworkFromNode wraps an existing ARTWORK node.
func ArtworkFromNode(node *Node) (*Artwork, error) {
	if !node.IsArtwork() {
		return nil, errors.Validation("NOT_AN_ARTWORK",
			fmt.Sprintf("node %s has type %s, expected ARTWORK", node.UUID, node.Type))
	}
	return &Artwork{Node: *node}, nil
}

// UpdateMetadata merges the given property updates and recomputes the
// checksum. The returned copy carries the next version for a
// compare-and-set write.
func (a *Artwork) UpdateMetadata(updates Properties, modifiedBy string) (*Artwork, error) {
	next, err := a.Node.WithUpdatedProperties(updates, modifiedBy)
	if err != nil {
		return nil, err
	}
	updated := &Artwork{Node: *next}
	updated.Properties[checksumProperty] = StringValue(updated.computeChecksum())
	return updated, nil
}

// VerifyIntegrity recomputes the checksum and compares it against the
// stored one.
func (a *Artwork) VerifyIntegrity() bool {
	stored, ok := a.Properties[checksumProperty]
	if !ok {
		return false
	}
	current, ok := stored.AsString()
	if !ok {
		return false
	}
	return current == a.computeChecksum()
}

// computeChecksum hashes the metadata properties in key order. The
// checksum property itself is excluded from the digest.
func (a *Artwork) computeChecksum() string {
	keys := make([]string, 0, len(a.Properties))
	for k := range a.Properties {
		if k == checksumProperty {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v;", k, a.Properties[k].Native())
	}
	return hex.EncodeToString(h.Sum(nil))
}
