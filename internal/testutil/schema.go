package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ogm/internal/meta"
)

// PeopleClasses returns the fixture schema shared by persistence and query
// tests. The same schema is available as CUE in internal/meta/testdata/schema.
//
//	Person ─ address (embedded Address ─ geo (embedded Geo))
//	       ─ manager        many-to-one, unidirectional
//	       ─ department     many-to-one, inverse of Department.staff
//	       ─ tasks          list, one-to-many
//	       ─ history        array, one-to-many
//	       ─ projects       set, many-to-many owner side
//	       ─ badges         map string → Badge
//	Employee extends Person
//	Assignment is stored as an edge
func PeopleClasses() []*meta.Class {
	return []*meta.Class{
		{
			Name: "Person",
			Members: []*meta.Member{
				{Name: "name", Type: "string"},
				{Name: "status", Type: "string"},
				{Name: "score", Type: "int"},
				{Name: "nickname", Type: "string", Persistence: meta.NotPersistent},
				{Name: "born", Type: "time"},
				{Name: "profile", Type: "map", Serialized: true},
				{
					Name: "address", Type: "Address", Embedded: true,
					EmbeddedMembers: []meta.EmbeddedOverride{{Member: "city", Column: "home_city"}},
				},
				{Name: "manager", Type: "Person", Cardinality: "many-to-one"},
				{Name: "department", Type: "Department"},
				{Name: "tasks", Type: "Task", Container: meta.ContainerList},
				{Name: "history", Type: "Task", Container: meta.ContainerArray},
				{Name: "projects", Type: "Project", Container: meta.ContainerSet},
				{Name: "badges", Type: "Badge", Container: meta.ContainerMap, Key: "string"},
				{Name: "archived", Type: "Task", Container: meta.ContainerList, SerializedElement: true},
				{Name: "previous", Type: "Address", Container: meta.ContainerList, Embedded: true},
			},
		},
		{
			Name:  "Employee",
			Super: "Person",
			Members: []*meta.Member{
				{Name: "salary", Type: "float", Column: "pay"},
			},
		},
		{
			Name: "Address",
			Members: []*meta.Member{
				{Name: "street", Type: "string"},
				{Name: "city", Type: "string"},
				{Name: "geo", Type: "Geo", Embedded: true, OwnerMember: "place"},
				{Name: "resident", Type: "Person", MappedBy: "address"},
			},
		},
		{
			Name: "Geo",
			Members: []*meta.Member{
				{Name: "lat", Type: "float"},
				{Name: "lon", Type: "float"},
				{Name: "place", Type: "Address"},
			},
		},
		{
			Name: "Department",
			Members: []*meta.Member{
				{Name: "name", Type: "string"},
				{Name: "staff", Type: "Person", Container: meta.ContainerList, MappedBy: "department"},
			},
		},
		{
			Name: "Project",
			Members: []*meta.Member{
				{Name: "title", Type: "string"},
				{Name: "members", Type: "Person", Container: meta.ContainerSet, MappedBy: "projects"},
			},
		},
		{
			Name: "Task",
			Members: []*meta.Member{
				{Name: "title", Type: "string"},
				{Name: "done", Type: "bool"},
			},
		},
		{
			Name: "Badge",
			Members: []*meta.Member{
				{Name: "label", Type: "string"},
			},
		},
		{
			Name:         "Assignment",
			MappedAsEdge: true,
			Members: []*meta.Member{
				{Name: "role", Type: "string"},
				{Name: "task", Type: "Task"},
				{Name: "reviews", Type: "Task", Container: meta.ContainerList},
			},
		},
	}
}

// PeopleRepository builds and resolves the fixture schema.
func PeopleRepository(t testing.TB) *meta.Repository {
	t.Helper()
	repo, err := meta.NewRepository(PeopleClasses()...)
	require.NoError(t, err)
	return repo
}
