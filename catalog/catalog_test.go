package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func standardUserFollowsCatalog() *Catalog {
	user := &NodeSchema{
		Label:     "User",
		Database:  "graph",
		Table:     "users",
		IDColumns: []string{"user_id"},
		Properties: map[string]string{
			"user_id": "user_id",
			"name":    "name",
		},
	}
	follows := &EdgeSchema{
		Type:     "FOLLOWS",
		Database: "graph",
		Table:    "follows",
		From:     EdgeEndpoint{NodeLabel: "User", IDColumn: "follower_id"},
		To:       EdgeEndpoint{NodeLabel: "User", IDColumn: "followed_id"},
	}
	return New([]*NodeSchema{user}, []*EdgeSchema{follows})
}

func TestCatalogResolvesProperty(t *testing.T) {
	c := standardUserFollowsCatalog()
	n, err := c.Node("User")
	require.NoError(t, err)
	col, err := n.Column("name")
	require.NoError(t, err)
	require.Equal(t, "name", col)

	_, err = n.Column("nonexistent")
	require.Error(t, err)
}

func TestClassifyStandard(t *testing.T) {
	c := standardUserFollowsCatalog()
	ctx, err := c.Classify("FOLLOWS", "User", "User")
	require.NoError(t, err)
	require.Equal(t, Standard, ctx.Kind)
	require.Equal(t, "follower_id", ctx.Edge.From.IDColumn)
	require.Equal(t, "followed_id", ctx.Edge.To.IDColumn)
}

func TestClassifyFkEdge(t *testing.T) {
	manager := &NodeSchema{
		Label:     "Employee",
		Table:     "employees",
		IDColumns: []string{"id"},
		Properties: map[string]string{
			"id":         "id",
			"manager_id": "manager_id",
		},
	}
	reportsTo := &EdgeSchema{
		Type:       "REPORTS_TO",
		Virtual:    true,
		FKJoinSide: JoinSideLeft,
		From:       EdgeEndpoint{NodeLabel: "Employee", IDColumn: "manager_id"},
		To:         EdgeEndpoint{NodeLabel: "Employee", IDColumn: "id"},
	}
	c := New([]*NodeSchema{manager}, []*EdgeSchema{reportsTo})
	ctx, err := c.Classify("REPORTS_TO", "Employee", "Employee")
	require.NoError(t, err)
	require.Equal(t, FkEdge, ctx.Kind)
	require.Equal(t, JoinSideLeft, ctx.JoinSide)
}

func TestClassifyDenormalized(t *testing.T) {
	user := &NodeSchema{Label: "User", Denormalized: true, Properties: map[string]string{"name": "follower_name"}}
	follows := &EdgeSchema{
		Type:                       "FOLLOWS",
		Table:                      "follows",
		From:                       EdgeEndpoint{NodeLabel: "User", IDColumn: "follower_id"},
		To:                         EdgeEndpoint{NodeLabel: "User", IDColumn: "followed_id"},
		DenormalizedFromProperties: map[string]string{"name": "follower_name"},
		DenormalizedToProperties:   map[string]string{"name": "followed_name"},
	}
	c := New([]*NodeSchema{user}, []*EdgeSchema{follows})
	ctx, err := c.Classify("FOLLOWS", "User", "User")
	require.NoError(t, err)
	require.Equal(t, Denormalized, ctx.Kind)
}

func TestClassifyPolymorphic(t *testing.T) {
	user := &NodeSchema{Label: "User", Table: "users", IDColumns: []string{"id"}, Properties: map[string]string{"id": "id"}}
	edge := &EdgeSchema{
		Type:       "LIKES",
		Table:      "interactions",
		TypeColumn: "interaction_type",
		TypeValue:  "LIKE",
		From:       EdgeEndpoint{NodeLabel: "User", IDColumn: "actor_id"},
		To:         EdgeEndpoint{NodeLabel: "User", IDColumn: "target_id"},
	}
	c := New([]*NodeSchema{user}, []*EdgeSchema{edge})
	ctx, err := c.Classify("LIKES", "User", "User")
	require.NoError(t, err)
	require.Equal(t, Polymorphic, ctx.Kind)
}

func TestRegistryAtomicSwap(t *testing.T) {
	r := NewRegistry(standardUserFollowsCatalog())
	first := r.Current()
	r.Swap(New(nil, nil))
	second := r.Current()
	require.NotSame(t, first, second)
}
