package catalogfixture

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const socialFixture = `
nodes:
  - label: User
    database: graph
    table: users
    id_columns: [user_id]
    properties:
      user_id: user_id
      name: display_name
edges:
  - type: FOLLOWS
    database: graph
    table: follows
    from:
      node_label: User
      id_column: follower_id
    to:
      node_label: User
      id_column: followed_id
  - type: REPORTS_TO
    virtual: true
    fk_join_side: left
    from:
      node_label: User
      id_column: manager_id
    to:
      node_label: User
      id_column: user_id
`

func TestLoadBytesBuildsCatalog(t *testing.T) {
	cat, err := LoadBytes([]byte(socialFixture))
	require.NoError(t, err)

	user, err := cat.Node("User")
	require.NoError(t, err)
	require.Equal(t, []string{"user_id"}, user.IDColumns)
	col, err := user.Column("name")
	require.NoError(t, err)
	require.Equal(t, "display_name", col)

	follows, err := cat.Edge("FOLLOWS")
	require.NoError(t, err)
	require.False(t, follows.Virtual)
	require.Equal(t, "follower_id", follows.From.IDColumn)

	reportsTo, err := cat.Edge("REPORTS_TO")
	require.NoError(t, err)
	require.True(t, reportsTo.Virtual)
}

func TestLoadBytesRejectsInvalidYAML(t *testing.T) {
	_, err := LoadBytes([]byte("not: [valid"))
	require.Error(t, err)
}
