package meta

import "fmt"

// RelationKind classifies how a member relates its owner to another class.
type RelationKind int

const (
	RelationNone RelationKind = iota
	OneToOneUni
	OneToOneBi
	OneToManyUni
	OneToManyBi
	ManyToOneUni
	ManyToOneBi
	ManyToManyBi
)

var relationNames = map[RelationKind]string{
	RelationNone: "none",
	OneToOneUni:  "one-to-one",
	OneToOneBi:   "one-to-one-bi",
	OneToManyUni: "one-to-many",
	OneToManyBi:  "one-to-many-bi",
	ManyToOneUni: "many-to-one",
	ManyToOneBi:  "many-to-one-bi",
	ManyToManyBi: "many-to-many-bi",
}

func (k RelationKind) String() string {
	if s, ok := relationNames[k]; ok {
		return s
	}
	return fmt.Sprintf("RelationKind(%d)", int(k))
}

// SingleValued reports whether the member holds at most one related object.
func (k RelationKind) SingleValued() bool {
	switch k {
	case OneToOneUni, OneToOneBi, ManyToOneUni, ManyToOneBi:
		return true
	}
	return false
}

// MultiValued reports whether the member holds a collection, array or map of related objects.
func (k RelationKind) MultiValued() bool {
	switch k {
	case OneToManyUni, OneToManyBi, ManyToManyBi:
		return true
	}
	return false
}

// Bidirectional reports whether the other class declares the inverse member.
func (k RelationKind) Bidirectional() bool {
	switch k {
	case OneToOneBi, OneToManyBi, ManyToOneBi, ManyToManyBi:
		return true
	}
	return false
}

// ContainerKind is the shape of a multi-valued member.
type ContainerKind int

const (
	ContainerNone ContainerKind = iota
	ContainerList
	ContainerSet
	ContainerArray
	ContainerMap
)

func (c ContainerKind) String() string {
	switch c {
	case ContainerList:
		return "list"
	case ContainerSet:
		return "set"
	case ContainerArray:
		return "array"
	case ContainerMap:
		return "map"
	default:
		return "none"
	}
}

// Ordered reports whether iteration order is part of the value (lists and arrays).
func (c ContainerKind) Ordered() bool {
	return c == ContainerList || c == ContainerArray
}

// Persistence controls whether a member is written to the graph.
type Persistence int

const (
	Persistent Persistence = iota
	Transactional
	NotPersistent
)

// Class describes one mapped type.
type Class struct {
	Name  string
	Label string // node label; defaults to Name
	Super string // superclass name, empty for roots

	// MappedAsEdge marks classes stored as an edge between two nodes
	// rather than as a node of their own.
	MappedAsEdge bool

	Members []*Member

	byName     map[string]*Member
	repository *Repository
}

// Member returns the named member, searching superclasses.
func (c *Class) Member(name string) *Member {
	if m, ok := c.byName[name]; ok {
		return m
	}
	if c.repository != nil && c.Super != "" {
		if sup := c.repository.Class(c.Super); sup != nil {
			return sup.Member(name)
		}
	}
	return nil
}

// AllMembers returns superclass members first, then this class's own, in
// declaration order.
func (c *Class) AllMembers() []*Member {
	var out []*Member
	if c.repository != nil && c.Super != "" {
		if sup := c.repository.Class(c.Super); sup != nil {
			out = append(out, sup.AllMembers()...)
		}
	}
	return append(out, c.Members...)
}

// Labels returns the node labels for instances: own label, then ancestors.
func (c *Class) Labels() []string {
	labels := []string{c.label()}
	if c.repository != nil && c.Super != "" {
		if sup := c.repository.Class(c.Super); sup != nil {
			labels = append(labels, sup.Labels()...)
		}
	}
	return labels
}

func (c *Class) label() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Name
}

// EmbeddedOverride customises the property name of one member of an embedded class.
type EmbeddedOverride struct {
	Member string
	Column string
}

// Member describes one field of a class.
type Member struct {
	Name   string
	Column string // explicit property name, empty means Name
	Type   string // scalar type name or class name; element type for containers

	Container ContainerKind
	Key       string // map key type

	Relation RelationKind
	MappedBy string

	Embedded        bool
	EmbeddedMembers []EmbeddedOverride
	OwnerMember     string // member of the embedded class that points back to the owner

	Serialized        bool
	SerializedElement bool
	SerializedKey     bool
	SerializedValue   bool

	KeyMappedBy   string
	ValueMappedBy string

	Persistence Persistence
	Converter   string // named converter in the codec registry

	// Cardinality hints the relation kind for unidirectional members:
	// "many-to-one" turns a single-valued reference into ManyToOneUni.
	Cardinality string

	owner   *Class
	related *Member
}

// Owner returns the class declaring the member.
func (m *Member) Owner() *Class { return m.owner }

// Related returns the inverse member of a bidirectional relation.
func (m *Member) Related() *Member { return m.related }

// Storable reports whether the member is written to the graph at all.
func (m *Member) Storable() bool { return m.Persistence == Persistent }

// ColumnName is the property name used when the member is not embedded.
func (m *Member) ColumnName() string {
	if m.Column != "" {
		return m.Column
	}
	return m.Name
}

// Override returns the column override declared for a member of the embedded class.
func (m *Member) Override(name string) (string, bool) {
	for _, o := range m.EmbeddedMembers {
		if o.Member == name && o.Column != "" {
			return o.Column, true
		}
	}
	return "", false
}

// EmbedsMember reports whether name is listed in this member's embedded overrides.
func (m *Member) EmbedsMember(name string) bool {
	for _, o := range m.EmbeddedMembers {
		if o.Member == name {
			return true
		}
	}
	return false
}

// KeyPersistent reports whether map keys are instances of a mapped class.
func (m *Member) KeyPersistent() bool {
	return m.Container == ContainerMap && m.owner != nil && m.owner.repository.Class(m.Key) != nil
}

// ValuePersistent reports whether map values (or container elements) are
// instances of a mapped class.
func (m *Member) ValuePersistent() bool {
	return m.owner != nil && m.owner.repository.Class(m.Type) != nil
}

func (m *Member) String() string {
	if m.owner != nil {
		return m.owner.Name + "." + m.Name
	}
	return m.Name
}
