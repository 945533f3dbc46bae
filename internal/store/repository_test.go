package store

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"artgraph-backend/internal/domain"
	"artgraph-backend/internal/errors"
)

// scriptedExecutor returns canned rows per query substring, in order of
// registration, and records every executed query.
type scriptedExecutor struct {
	scripts  []script
	executed []string
}

type script struct {
	match string
	rows  []map[string]any
	err   error
}

func (s *scriptedExecutor) on(match string, rows []map[string]any, err error) {
	s.scripts = append(s.scripts, script{match: match, rows: rows, err: err})
}

func (s *scriptedExecutor) ExecuteQuery(_ context.Context, query string, _ map[string]any, _ QueryOptions) ([]map[string]any, error) {
	s.executed = append(s.executed, query)
	for i, sc := range s.scripts {
		if strings.Contains(query, sc.match) {
			s.scripts = append(s.scripts[:i], s.scripts[i+1:]...)
			return sc.rows, sc.err
		}
	}
	return nil, nil
}

func testArtist(t *testing.T) *domain.Node {
	t.Helper()
	node, err := domain.NewNode(domain.NodeTypeArtist, domain.Properties{
		"name":       domain.StringValue("Berthe Morisot"),
		"birth_year": domain.IntValue(1841),
	}, "test")
	require.NoError(t, err)
	return node
}

func TestGraphRepository_CreateNode(t *testing.T) {
	exec := &scriptedExecutor{}
	node := testArtist(t)
	exec.on("CREATE (n:Node)", []map[string]any{{"uuid": node.UUID.String()}}, nil)

	repo := NewGraphRepository(exec, zap.NewNop())
	require.NoError(t, repo.CreateNode(context.Background(), node))
}

func TestGraphRepository_GetNode_RoundTrip(t *testing.T) {
	exec := &scriptedExecutor{}
	node := testArtist(t)
	exec.on("RETURN n{.*} AS node", []map[string]any{{"node": nodeToRecord(node)}}, nil)

	repo := NewGraphRepository(exec, zap.NewNop())
	got, err := repo.GetNode(context.Background(), node.UUID)
	require.NoError(t, err)

	assert.Equal(t, node.UUID, got.UUID)
	assert.Equal(t, domain.NodeTypeArtist, got.Type)
	assert.Equal(t, node.Version, got.Version)
	name, ok := got.Properties["name"].AsString()
	require.True(t, ok)
	assert.Equal(t, "Berthe Morisot", name)
}

func TestGraphRepository_GetNode_NotFound(t *testing.T) {
	repo := NewGraphRepository(&scriptedExecutor{}, zap.NewNop())
	_, err := repo.GetNode(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestGraphRepository_UpdateNode_Success(t *testing.T) {
	exec := &scriptedExecutor{}
	node := testArtist(t)
	updated, err := node.WithUpdatedProperties(domain.Properties{
		"death_year": domain.IntValue(1895),
	}, "test")
	require.NoError(t, err)
	exec.on("n.version = $expected_version", []map[string]any{{"version": updated.Version}}, nil)

	repo := NewGraphRepository(exec, zap.NewNop())
	require.NoError(t, repo.UpdateNode(context.Background(), updated))
}

func TestGraphRepository_UpdateNode_ConflictVsNotFound(t *testing.T) {
	node := testArtist(t)
	updated, err := node.WithUpdatedProperties(nil, "test")
	require.NoError(t, err)

	t.Run("node gone entirely", func(t *testing.T) {
		exec := &scriptedExecutor{}
		// CAS matches nothing and the follow-up read finds nothing.
		repo := NewGraphRepository(exec, zap.NewNop())
		err := repo.UpdateNode(context.Background(), updated)
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("version moved underneath", func(t *testing.T) {
		exec := &scriptedExecutor{}
		// CAS matches nothing but the node still exists at another version.
		exec.on("RETURN n{.*} AS node", []map[string]any{{"node": nodeToRecord(node)}}, nil)
		repo := NewGraphRepository(exec, zap.NewNop())
		err := repo.UpdateNode(context.Background(), updated)
		require.Error(t, err)
		assert.True(t, errors.IsConflict(err))
		assert.True(t, errors.IsRetryable(err))
	})
}

func TestGraphRepository_DeleteNode_GuardsRelationships(t *testing.T) {
	node := testArtist(t)

	t.Run("delete with relationships rejected", func(t *testing.T) {
		exec := &scriptedExecutor{}
		exec.on("count(r) AS rel_count", []map[string]any{{"rel_count": int64(3)}}, nil)
		repo := NewGraphRepository(exec, zap.NewNop())
		err := repo.DeleteNode(context.Background(), node.UUID)
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("isolated node deleted", func(t *testing.T) {
		exec := &scriptedExecutor{}
		exec.on("count(r) AS rel_count", []map[string]any{{"rel_count": int64(0)}}, nil)
		repo := NewGraphRepository(exec, zap.NewNop())
		require.NoError(t, repo.DeleteNode(context.Background(), node.UUID))
		require.Len(t, exec.executed, 2)
		assert.Contains(t, exec.executed[1], "DELETE n")
	})

	t.Run("absent node", func(t *testing.T) {
		exec := &scriptedExecutor{}
		repo := NewGraphRepository(exec, zap.NewNop())
		err := repo.DeleteNode(context.Background(), node.UUID)
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestGraphRepository_CreateRelationship(t *testing.T) {
	rel, err := domain.NewRelationship(domain.RelCreatedBy, uuid.New(), uuid.New(), domain.Properties{
		"start_date": domain.StringValue("1872"),
		"confidence": domain.FloatValue(0.9),
	}, "test")
	require.NoError(t, err)

	t.Run("success interpolates validated type", func(t *testing.T) {
		exec := &scriptedExecutor{}
		exec.on("CREATE (s)-[r:CREATED_BY]->(t)", []map[string]any{{"uuid": rel.UUID.String()}}, nil)
		repo := NewGraphRepository(exec, zap.NewNop())
		require.NoError(t, repo.CreateRelationship(context.Background(), rel))
	})

	t.Run("missing endpoint", func(t *testing.T) {
		exec := &scriptedExecutor{}
		repo := NewGraphRepository(exec, zap.NewNop())
		err := repo.CreateRelationship(context.Background(), rel)
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestGraphRepository_Neighborhood_MapsRows(t *testing.T) {
	artist := testArtist(t)
	artworkID := uuid.New()
	rel, err := domain.NewRelationship(domain.RelCreatedBy, artworkID, artist.UUID, domain.Properties{
		"start_date": domain.StringValue("1872"),
		"confidence": domain.FloatValue(0.9),
	}, "test")
	require.NoError(t, err)

	exec := &scriptedExecutor{}
	exec.on("AS neighbor", []map[string]any{{
		"neighbor":    nodeToRecord(artist),
		"rel":         relationshipToRecord(rel),
		"rel_type":    "CREATED_BY",
		"source_uuid": artworkID.String(),
		"target_uuid": artist.UUID.String(),
	}}, nil)

	repo := NewGraphRepository(exec, zap.NewNop())
	edges, err := repo.Neighborhood(context.Background(), []uuid.UUID{artworkID}, nil)
	require.NoError(t, err)
	require.Len(t, edges, 1)

	assert.Equal(t, artist.UUID, edges[0].Neighbor.UUID)
	assert.Equal(t, domain.RelCreatedBy, edges[0].Relationship.Type)
	assert.Equal(t, artworkID, edges[0].Relationship.SourceID)
	require.Len(t, edges[0].Relationship.AuditTrail, 1)
	assert.Equal(t, "created", edges[0].Relationship.AuditTrail[0].Action)
}

func TestGraphRepository_FetchGraph_DropsDanglingEdges(t *testing.T) {
	artist := testArtist(t)
	rel, err := domain.NewRelationship(domain.RelStudiedUnder, artist.UUID, uuid.New(), nil, "test")
	require.NoError(t, err)

	exec := &scriptedExecutor{}
	exec.on("AS node", []map[string]any{{"node": nodeToRecord(artist)}}, nil)
	exec.on("AS rel", []map[string]any{{
		"rel":         relationshipToRecord(rel),
		"rel_type":    "STUDIED_UNDER",
		"source_uuid": rel.SourceID.String(),
		"target_uuid": rel.TargetID.String(),
	}}, nil)

	repo := NewGraphRepository(exec, zap.NewNop())
	nodes, rels, err := repo.FetchGraph(context.Background(), nil)
	require.NoError(t, err)

	assert.Len(t, nodes, 1)
	assert.Empty(t, rels, "edge pointing outside the node set must be dropped")
}

func TestGraphRepository_CountNodes(t *testing.T) {
	exec := &scriptedExecutor{}
	exec.on("count(n) AS total", []map[string]any{{"total": int64(42)}}, nil)

	repo := NewGraphRepository(exec, zap.NewNop())
	total, err := repo.CountNodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), total)
}
