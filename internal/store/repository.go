package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"artgraph-backend/internal/domain"
	"artgraph-backend/internal/errors"
)

// Cypher executed by the repository. Relationship types are interpolated
// from the validated enum because Cypher cannot parameterize them.
const (
	createNodeQuery = `CREATE (n:Node) SET n = $props RETURN n.uuid AS uuid`

	getNodeQuery = `MATCH (n:Node {uuid: $uuid}) RETURN n{.*} AS node`

	updateNodeQuery = `
		MATCH (n:Node {uuid: $uuid})
		WHERE n.version = $expected_version
		SET n += $props
		RETURN n.version AS version`

	nodeRelCountQuery = `
		MATCH (n:Node {uuid: $uuid})
		OPTIONAL MATCH (n)-[r]-()
		RETURN count(r) AS rel_count`

	deleteNodeQuery = `MATCH (n:Node {uuid: $uuid}) DELETE n`

	createRelationshipQuery = `
		MATCH (s:Node {uuid: $source_uuid}), (t:Node {uuid: $target_uuid})
		CREATE (s)-[r:%s]->(t)
		SET r = $props
		RETURN r.uuid AS uuid`

	neighborhoodQuery = `
		MATCH (n:Node)-[r]-(m:Node)
		WHERE n.uuid IN $ids AND (size($types) = 0 OR type(r) IN $types)
		RETURN DISTINCT m{.*} AS neighbor, r{.*} AS rel, type(r) AS rel_type,
		       startNode(r).uuid AS source_uuid, endNode(r).uuid AS target_uuid`

	fetchNodesQuery = `
		MATCH (n:Node)
		WHERE size($types) = 0 OR n.type IN $types
		RETURN n{.*} AS node`

	fetchRelationshipsQuery = `
		MATCH (s:Node)-[r]->(t:Node)
		RETURN r{.*} AS rel, type(r) AS rel_type,
		       s.uuid AS source_uuid, t.uuid AS target_uuid`

	countNodesQuery = `MATCH (n:Node) RETURN count(n) AS total`
)

// GraphRepository provides typed node and relationship operations on top
// of the query executor.
type GraphRepository struct {
	exec   Executor
	logger *zap.Logger
}

// NewGraphRepository creates a repository over the given executor.
func NewGraphRepository(exec Executor, logger *zap.Logger) *GraphRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphRepository{exec: exec, logger: logger.Named("graph_repository")}
}

// CreateNode persists a validated node.
func (r *GraphRepository) CreateNode(ctx context.Context, node *domain.Node) error {
	params := map[string]any{"props": nodeToRecord(node)}
	rows, err := r.exec.ExecuteQuery(ctx, createNodeQuery, params, QueryOptions{Write: true})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.Internal("CREATE_NODE_FAILED", "node creation returned no rows").
			WithResource("node")
	}
	r.logger.Info("created node",
		zap.String("uuid", node.UUID.String()),
		zap.String("type", string(node.Type)),
	)
	return nil
}

// GetNode fetches a node by id, returning NotFound when absent.
func (r *GraphRepository) GetNode(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	params := map[string]any{"uuid": id.String()}
	rows, err := r.exec.ExecuteQuery(ctx, getNodeQuery, params, QueryOptions{})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.NotFound("NODE_NOT_FOUND",
			fmt.Sprintf("node %s not found", id)).WithResource("node")
	}
	return nodeFromRecord(rows[0]["node"])
}

// UpdateNode applies an optimistic-concurrency write: the updated node
// carries the next version and the store only accepts it if the persisted
// version still equals the previous one. A lost race surfaces as Conflict.
func (r *GraphRepository) UpdateNode(ctx context.Context, updated *domain.Node) error {
	params := map[string]any{
		"uuid":             updated.UUID.String(),
		"expected_version": updated.Version - 1,
		"props":            nodeToRecord(updated),
	}
	rows, err := r.exec.ExecuteQuery(ctx, updateNodeQuery, params, QueryOptions{Write: true})
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		return nil
	}

	// No row matched: the node is gone or another writer won the race.
	if _, err := r.GetNode(ctx, updated.UUID); err != nil {
		return err
	}
	return errors.Conflict("VERSION_CONFLICT",
		fmt.Sprintf("node %s was modified concurrently, expected version %d",
			updated.UUID, updated.Version-1)).WithResource("node")
}

// DeleteNode removes a node that has no remaining relationships.
func (r *GraphRepository) DeleteNode(ctx context.Context, id uuid.UUID) error {
	params := map[string]any{"uuid": id.String()}
	rows, err := r.exec.ExecuteQuery(ctx, nodeRelCountQuery, params, QueryOptions{})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.NotFound("NODE_NOT_FOUND",
			fmt.Sprintf("node %s not found", id)).WithResource("node")
	}
	if count, _ := asInt(rows[0]["rel_count"]); count > 0 {
		return errors.Validation("NODE_HAS_RELATIONSHIPS",
			fmt.Sprintf("node %s still has %d relationships", id, count)).WithResource("node")
	}
	_, err = r.exec.ExecuteQuery(ctx, deleteNodeQuery, params, QueryOptions{Write: true})
	return err
}

// CreateRelationship persists a validated relationship between existing
// nodes.
func (r *GraphRepository) CreateRelationship(ctx context.Context, rel *domain.Relationship) error {
	query := fmt.Sprintf(createRelationshipQuery, rel.Type)
	params := map[string]any{
		"source_uuid": rel.SourceID.String(),
		"target_uuid": rel.TargetID.String(),
		"props":       relationshipToRecord(rel),
	}
	rows, err := r.exec.ExecuteQuery(ctx, query, params, QueryOptions{Write: true})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.NotFound("ENDPOINT_NOT_FOUND",
			"relationship endpoints do not both exist").WithResource("relationship")
	}
	return nil
}

// Neighborhood expands one frontier batch: every relationship touching
// the given node ids (optionally filtered by type) together with the node
// on the far side.
func (r *GraphRepository) Neighborhood(ctx context.Context, ids []uuid.UUID, relTypes []domain.RelationshipType) ([]domain.NeighborEdge, error) {
	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}
	typeStrings := make([]string, len(relTypes))
	for i, t := range relTypes {
		typeStrings[i] = string(t)
	}

	params := map[string]any{"ids": idStrings, "types": typeStrings}
	rows, err := r.exec.ExecuteQuery(ctx, neighborhoodQuery, params, QueryOptions{})
	if err != nil {
		return nil, err
	}

	edges := make([]domain.NeighborEdge, 0, len(rows))
	for _, row := range rows {
		neighbor, err := nodeFromRecord(row["neighbor"])
		if err != nil {
			return nil, err
		}
		rel, err := relationshipFromRecord(row)
		if err != nil {
			return nil, err
		}
		edges = append(edges, domain.NeighborEdge{Relationship: rel, Neighbor: neighbor})
	}
	return edges, nil
}

// FetchGraph loads the full node and relationship sets, optionally
// filtered by node type, for in-memory analysis.
func (r *GraphRepository) FetchGraph(ctx context.Context, nodeTypes []domain.NodeType) ([]*domain.Node, []*domain.Relationship, error) {
	typeStrings := make([]string, len(nodeTypes))
	for i, t := range nodeTypes {
		typeStrings[i] = string(t)
	}

	nodeRows, err := r.exec.ExecuteQuery(ctx, fetchNodesQuery, map[string]any{"types": typeStrings}, QueryOptions{})
	if err != nil {
		return nil, nil, err
	}
	nodes := make([]*domain.Node, 0, len(nodeRows))
	known := make(map[uuid.UUID]struct{}, len(nodeRows))
	for _, row := range nodeRows {
		node, err := nodeFromRecord(row["node"])
		if err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, node)
		known[node.UUID] = struct{}{}
	}

	relRows, err := r.exec.ExecuteQuery(ctx, fetchRelationshipsQuery, nil, QueryOptions{})
	if err != nil {
		return nil, nil, err
	}
	rels := make([]*domain.Relationship, 0, len(relRows))
	for _, row := range relRows {
		rel, err := relationshipFromRecord(row)
		if err != nil {
			return nil, nil, err
		}
		// Drop edges whose endpoints were filtered out of the node set.
		if _, ok := known[rel.SourceID]; !ok {
			continue
		}
		if _, ok := known[rel.TargetID]; !ok {
			continue
		}
		rels = append(rels, rel)
	}
	return nodes, rels, nil
}

// CountNodes returns the total node count.
func (r *GraphRepository) CountNodes(ctx context.Context) (int64, error) {
	rows, err := r.exec.ExecuteQuery(ctx, countNodesQuery, nil, QueryOptions{})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	total, _ := asInt(rows[0]["total"])
	return total, nil
}
