package persist

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ogm/internal/graph"
	"github.com/roach88/ogm/internal/graph/memgraph"
	"github.com/roach88/ogm/internal/testutil"
)

func TestOwnership(t *testing.T) {
	repo := testutil.PeopleRepository(t)

	tests := []struct {
		member     string
		ownsSingle bool
		ownsMulti  bool
	}{
		{"Person.manager", true, false},
		{"Person.department", false, false},
		{"Person.address", true, false},
		{"Address.resident", false, false},
		{"Person.tasks", false, true},
		{"Person.projects", false, true},
		{"Project.members", false, false},
		{"Department.staff", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.member, func(t *testing.T) {
			class, name, _ := strings.Cut(tt.member, ".")
			m := repo.Class(class).Member(name)
			require.NotNil(t, m)
			if m.Relation.SingleValued() {
				assert.Equal(t, tt.ownsSingle, OwnsSingle(m))
			}
			assert.Equal(t, tt.ownsMulti, OwnsMulti(m))
		})
	}
}

func TestSyncMulti_MapValueTag(t *testing.T) {
	repo := testutil.PeopleRepository(t)
	m := repo.Class("Person").Member("badges")
	g := memgraph.New(graph.NewSequenceGenerator("n"))
	owner, err := g.CreateNode("Person")
	require.NoError(t, err)
	badge, err := g.CreateNode("Badge")
	require.NoError(t, err)

	s := NewRelationshipSynchronizer(owner, true)
	require.NoError(t, s.SyncMulti(m, Elements{
		Nodes:  []graph.Node{badge},
		Values: []any{int64(3)},
	}))

	edges, err := graph.FieldEdges(owner, graph.MultiValued, "badges")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	v, ok, err := edges[0].Property(graph.PropMapValue)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), v)
}

func TestSyncSingle_KeepsFirstMatchingEdge(t *testing.T) {
	repo := testutil.PeopleRepository(t)
	m := repo.Class("Person").Member("manager")
	g := memgraph.New(graph.NewSequenceGenerator("n"))
	owner, err := g.CreateNode("Person")
	require.NoError(t, err)
	boss, err := g.CreateNode("Person")
	require.NoError(t, err)

	// Two stray edges for the same field collapse to one.
	for i := 0; i < 2; i++ {
		e, err := owner.CreateEdgeTo(boss, graph.SingleValued)
		require.NoError(t, err)
		require.NoError(t, e.SetProperty(graph.PropFieldName, "manager"))
	}

	require.NoError(t, NewRelationshipSynchronizer(owner, false).SyncSingle(m, boss))
	edges, err := graph.FieldEdges(owner, graph.SingleValued, "manager")
	require.NoError(t, err)
	assert.Len(t, edges, 1)
	assert.Equal(t, 1, g.EdgeCount())
}

func TestSyncSingle_IgnoresIncomingEdges(t *testing.T) {
	repo := testutil.PeopleRepository(t)
	m := repo.Class("Person").Member("manager")
	g := memgraph.New(graph.NewSequenceGenerator("n"))
	a, err := g.CreateNode("Person")
	require.NoError(t, err)
	b, err := g.CreateNode("Person")
	require.NoError(t, err)

	require.NoError(t, NewRelationshipSynchronizer(b, true).SyncSingle(m, a))
	require.NoError(t, NewRelationshipSynchronizer(a, false).SyncSingle(m, nil))

	// b -> a survives: a only manages its own outgoing edges.
	assert.Equal(t, 1, g.EdgeCount())
}
