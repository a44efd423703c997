package meta_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ogm/internal/meta"
	"github.com/roach88/ogm/internal/testutil"
)

func TestResolve_RelationKinds(t *testing.T) {
	repo := testutil.PeopleRepository(t)

	tests := []struct {
		class  string
		member string
		want   meta.RelationKind
	}{
		{"Person", "name", meta.RelationNone},
		{"Person", "profile", meta.RelationNone},
		{"Person", "address", meta.OneToOneBi},
		{"Person", "manager", meta.ManyToOneUni},
		{"Person", "department", meta.ManyToOneBi},
		{"Person", "tasks", meta.OneToManyUni},
		{"Person", "history", meta.OneToManyUni},
		{"Person", "projects", meta.ManyToManyBi},
		{"Person", "badges", meta.OneToManyUni},
		{"Address", "resident", meta.OneToOneBi},
		{"Address", "geo", meta.OneToOneUni},
		{"Geo", "place", meta.OneToOneUni},
		{"Department", "staff", meta.OneToManyBi},
		{"Project", "members", meta.ManyToManyBi},
		{"Assignment", "task", meta.OneToOneUni},
	}

	for _, tt := range tests {
		t.Run(tt.class+"."+tt.member, func(t *testing.T) {
			m := repo.Class(tt.class).Member(tt.member)
			require.NotNil(t, m)
			assert.Equal(t, tt.want, m.Relation, "got %s", m.Relation)
		})
	}
}

func TestResolve_RelatedMembers(t *testing.T) {
	repo := testutil.PeopleRepository(t)

	dept := repo.Class("Person").Member("department")
	require.NotNil(t, dept.Related())
	assert.Equal(t, "staff", dept.Related().Name)

	staff := repo.Class("Department").Member("staff")
	require.NotNil(t, staff.Related())
	assert.Equal(t, "department", staff.Related().Name)

	assert.Nil(t, repo.Class("Person").Member("tasks").Related())
}

func TestRelationKind_Predicates(t *testing.T) {
	assert.True(t, meta.OneToOneUni.SingleValued())
	assert.True(t, meta.ManyToOneBi.SingleValued())
	assert.False(t, meta.OneToManyBi.SingleValued())
	assert.True(t, meta.ManyToManyBi.MultiValued())
	assert.False(t, meta.RelationNone.MultiValued())
	assert.True(t, meta.OneToManyBi.Bidirectional())
	assert.False(t, meta.ManyToOneUni.Bidirectional())
	assert.Equal(t, "many-to-one-bi", meta.ManyToOneBi.String())
}

func TestClass_InheritedMembersAndLabels(t *testing.T) {
	repo := testutil.PeopleRepository(t)

	emp := repo.Class("Employee")
	require.NotNil(t, emp.Member("name"), "inherited member")
	require.NotNil(t, emp.Member("salary"))
	assert.Equal(t, []string{"Employee", "Person"}, emp.Labels())

	all := emp.AllMembers()
	assert.Equal(t, "name", all[0].Name)
	assert.Equal(t, "salary", all[len(all)-1].Name)

	subs := repo.Subclasses("Person")
	require.Len(t, subs, 1)
	assert.Equal(t, "Employee", subs[0].Name)
}

func TestRepository_ClassOf(t *testing.T) {
	repo := testutil.PeopleRepository(t)

	type Task struct{ Title string }
	c, err := repo.ClassOf(&Task{})
	require.NoError(t, err)
	assert.Equal(t, "Task", c.Name)

	_, err = repo.ClassOf(struct{}{})
	assert.Error(t, err)

	_, err = repo.ClassOf(nil)
	assert.Error(t, err)
}

func TestNewRepository_Errors(t *testing.T) {
	tests := []struct {
		name    string
		classes []*meta.Class
		errMsg  string
	}{
		{
			name:    "duplicate class",
			classes: []*meta.Class{{Name: "A"}, {Name: "A"}},
			errMsg:  "duplicate class",
		},
		{
			name:    "unknown superclass",
			classes: []*meta.Class{{Name: "A", Super: "B"}},
			errMsg:  "unknown superclass",
		},
		{
			name: "mapped-by target missing",
			classes: []*meta.Class{
				{Name: "A", Members: []*meta.Member{{Name: "b", Type: "B", MappedBy: "nope"}}},
				{Name: "B"},
			},
			errMsg: "mapped-by",
		},
		{
			name: "mapped-by on scalar",
			classes: []*meta.Class{
				{Name: "A", Members: []*meta.Member{{Name: "n", Type: "string", MappedBy: "x"}}},
			},
			errMsg: "non-relation",
		},
		{
			name: "duplicate member",
			classes: []*meta.Class{
				{Name: "A", Members: []*meta.Member{{Name: "n", Type: "string"}, {Name: "n", Type: "int"}}},
			},
			errMsg: "duplicate member",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := meta.NewRepository(tt.classes...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestPropertyName(t *testing.T) {
	repo := testutil.PeopleRepository(t)
	person := repo.Class("Person")
	address := repo.Class("Address")
	geo := repo.Class("Geo")

	emp := repo.Class("Employee")
	assert.Equal(t, "pay", meta.PropertyName(nil, emp.Member("salary")))
	assert.Equal(t, "name", meta.PropertyName(nil, person.Member("name")))

	chain := []*meta.Member{person.Member("address")}
	assert.Equal(t, "home_city", meta.PropertyName(chain, address.Member("city")), "override column")
	assert.Equal(t, "address.street", meta.PropertyName(chain, address.Member("street")))

	nested := append(chain, address.Member("geo"))
	assert.Equal(t, "address.geo.lat", meta.PropertyName(nested, geo.Member("lat")))
}

func TestIsEmbedded(t *testing.T) {
	repo := testutil.PeopleRepository(t)
	person := repo.Class("Person")
	address := repo.Class("Address")

	assert.True(t, meta.IsEmbedded(nil, person.Member("address")))
	assert.False(t, meta.IsEmbedded(nil, person.Member("manager")))
	// listed in the owner's overrides counts as embedded
	owner := &meta.Member{Name: "home", EmbeddedMembers: []meta.EmbeddedOverride{{Member: "resident"}}}
	assert.True(t, meta.IsEmbedded([]*meta.Member{owner}, address.Member("resident")))
}
