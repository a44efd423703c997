package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ogm/internal/graph"
	"github.com/roach88/ogm/internal/graph/memgraph"
	"github.com/roach88/ogm/internal/store"
	"github.com/roach88/ogm/internal/testutil"
)

func newMemSession(t *testing.T) (*Session, *memgraph.Graph) {
	t.Helper()
	g := memgraph.New(graph.NewSequenceGenerator("n"))
	return New(g, testutil.PeopleRepository(t), nil), g
}

func person(id, name string) *Object {
	return &Object{Class: "Person", ID: id, Fields: map[string]any{"name": name}}
}

func property(t *testing.T, pc graph.PropertyContainer, key string) any {
	t.Helper()
	v, ok, err := pc.Property(key)
	require.NoError(t, err)
	require.True(t, ok, "property %q missing", key)
	return v
}

func TestSave_InsertCascades(t *testing.T) {
	s, g := newMemSession(t)

	boss := person("", "Grace")
	ada := person("", "Ada")
	ada.Fields["manager"] = boss
	ada.Fields["tasks"] = []any{
		&Object{Class: "Task", Fields: map[string]any{"title": "compile"}},
		&Object{Class: "Task", Fields: map[string]any{"title": "persist", "done": true}},
	}

	n, err := s.Save(ada)
	require.NoError(t, err)
	assert.Equal(t, 4, g.NodeCount())
	assert.Equal(t, 3, g.EdgeCount())
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, "Ada", property(t, n, "name"))
	assert.Equal(t, []string{"Person"}, n.Labels())

	managers, err := graph.FieldEdges(n, graph.SingleValued, "manager")
	require.NoError(t, err)
	require.Len(t, managers, 1)
	bossNode, err := s.Node(boss)
	require.NoError(t, err)
	assert.True(t, graph.SameNode(bossNode, managers[0].EndNode()))

	tasks, err := graph.FieldEdges(n, graph.MultiValued, "tasks")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, int64(0), property(t, tasks[0], graph.PropIndex))
	assert.Equal(t, "persist", property(t, tasks[1].EndNode(), "title"))
	assert.Equal(t, true, property(t, tasks[1].EndNode(), "done"))
}

func TestSave_Cycle(t *testing.T) {
	s, g := newMemSession(t)

	a := person("", "A")
	b := person("", "B")
	a.Fields["manager"] = b
	b.Fields["manager"] = a

	_, err := s.Save(a)
	require.NoError(t, err)
	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 2, g.EdgeCount())

	for _, o := range []*Object{a, b} {
		n, err := s.Node(o)
		require.NoError(t, err)
		edges, err := graph.FieldEdges(n, graph.SingleValued, "manager")
		require.NoError(t, err)
		require.Len(t, edges, 1, "manager edges of %s", o.Fields["name"])
	}
}

func TestSave_Update(t *testing.T) {
	s, g := newMemSession(t)

	p := person("", "Ada")
	p.Fields["score"] = 10
	first, err := s.Save(p)
	require.NoError(t, err)

	p.Fields["name"] = "Ada L."
	delete(p.Fields, "score")
	second, err := s.Save(p)
	require.NoError(t, err)

	assert.Equal(t, first.ID(), second.ID())
	assert.Equal(t, 1, g.NodeCount())
	assert.Equal(t, "Ada L.", property(t, second, "name"))
	has, err := second.HasProperty("score")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSave_IdentityByID(t *testing.T) {
	s, g := newMemSession(t)

	first, err := s.Save(person("p1", "Ada"))
	require.NoError(t, err)

	again := person("p1", "Ada Lovelace")
	second, err := s.Save(again)
	require.NoError(t, err)

	assert.Equal(t, first.ID(), second.ID())
	assert.Equal(t, 1, g.NodeCount())
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, "Ada Lovelace", property(t, second, "name"))

	// Same ID in another class is another object.
	_, err = s.Save(&Object{Class: "Task", ID: "p1", Fields: map[string]any{"title": "x"}})
	require.NoError(t, err)
	assert.Equal(t, 2, g.NodeCount())
}

func TestSave_SharedReferenceByID(t *testing.T) {
	s, g := newMemSession(t)

	a := person("a", "A")
	a.Fields["manager"] = person("boss", "Boss")
	b := person("b", "B")
	b.Fields["manager"] = &Object{Class: "Person", ID: "boss", Fields: map[string]any{"name": "Boss"}}

	_, err := s.Save(a)
	require.NoError(t, err)
	_, err = s.Save(b)
	require.NoError(t, err)

	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, 2, g.EdgeCount())
}

func TestSave_Embedded(t *testing.T) {
	s, g := newMemSession(t)

	p := person("", "Ada")
	p.Fields["address"] = &Object{Class: "Address", Fields: map[string]any{
		"street": "Main St",
		"city":   "London",
		"geo":    &Object{Class: "Geo", Fields: map[string]any{"lat": 51.5, "lon": -0.12}},
	}}

	n, err := s.Save(p)
	require.NoError(t, err)
	assert.Equal(t, 1, g.NodeCount())
	assert.Equal(t, "Main St", property(t, n, "address.street"))
	assert.Equal(t, "London", property(t, n, "home_city"))
	assert.Equal(t, 51.5, property(t, n, "address.geo.lat"))
	assert.Equal(t, 1, s.Len())
}

func TestSave_Materialized(t *testing.T) {
	s, _ := newMemSession(t)

	p := person("", "Ada")
	p.Fields["nickname"] = "ada"
	_, err := s.Save(p)
	require.NoError(t, err)

	assert.True(t, s.Materialized(p, "name"))
	assert.False(t, s.Materialized(p, "nickname"))
	assert.False(t, s.Materialized(person("", "x"), "name"))
}

func TestSave_MaterializedResetOnUpdate(t *testing.T) {
	s, _ := newMemSession(t)
	p := person("", "Ada")
	p.Fields["status"] = "ACTIVE"
	_, err := s.Save(p)
	require.NoError(t, err)
	assert.True(t, s.Materialized(p, "status"))

	delete(p.Fields, "status")
	_, err = s.Save(p)
	require.NoError(t, err)
	assert.True(t, s.Materialized(p, "name"))
	assert.False(t, s.Materialized(p, "status"))
}

func TestAttach(t *testing.T) {
	s, g := newMemSession(t)

	existing, err := g.CreateNode("Person")
	require.NoError(t, err)

	p := person("", "Ada")
	require.NoError(t, s.Attach(p, existing.ID()))
	n, err := s.Save(p)
	require.NoError(t, err)

	assert.Equal(t, existing.ID(), n.ID())
	assert.Equal(t, 1, g.NodeCount())
	assert.Equal(t, "Ada", property(t, n, "name"))

	err = s.Attach(person("", "Ghost"), "missing")
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestSession_Errors(t *testing.T) {
	s, _ := newMemSession(t)

	_, err := s.Save(&Object{Class: "Unknown"})
	assert.ErrorContains(t, err, `no metadata for class "Unknown"`)

	_, err = s.Save(&Object{Class: "Assignment", Fields: map[string]any{"role": "lead"}})
	assert.ErrorContains(t, err, "mapped as an edge")

	_, err = s.PersistIfNew("not an object")
	assert.ErrorContains(t, err, "not a session object")

	_, err = s.Node(person("", "nobody"))
	assert.ErrorIs(t, err, ErrNotManaged)

	p := person("", "Ada")
	p.Fields["tasks"] = []any{nil}
	_, err = s.Save(p)
	assert.ErrorContains(t, err, "NULL_ELEMENT")
}

func TestSave_SQLiteStore(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "graph.db"), store.WithIDGenerator(graph.NewSequenceGenerator("n")))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	tx, err := st.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	dept := &Object{Class: "Department", Fields: map[string]any{"name": "R&D"}}
	ada := person("", "Ada")
	ada.Fields["department"] = dept
	dept.Fields["staff"] = []any{ada}
	ada.Fields["badges"] = map[string]any{
		"gold": &Object{Class: "Badge", Fields: map[string]any{"label": "Gold"}},
	}

	s := New(tx, testutil.PeopleRepository(t), nil)
	_, err = s.Save(dept)
	require.NoError(t, err)

	// Re-saving rewrites the staff edges instead of duplicating them.
	_, err = s.Save(dept)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Nodes)
	// staff (department's inverse writes no edge) + badges
	assert.Equal(t, 2, stats.Edges)
}
