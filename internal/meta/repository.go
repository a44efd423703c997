package meta

import (
	"fmt"
	"reflect"
	"sort"
)

// Named is implemented by domain values that know their mapped class name.
type Named interface {
	ClassName() string
}

// Repository holds the metadata for every mapped class.
type Repository struct {
	classes map[string]*Class
	order   []string
}

// NewRepository registers classes and resolves relations between them.
func NewRepository(classes ...*Class) (*Repository, error) {
	r := &Repository{classes: make(map[string]*Class, len(classes))}
	for _, c := range classes {
		if err := r.add(c); err != nil {
			return nil, err
		}
	}
	if err := r.Resolve(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) add(c *Class) error {
	if c.Name == "" {
		return fmt.Errorf("class name is required")
	}
	if _, dup := r.classes[c.Name]; dup {
		return fmt.Errorf("duplicate class %q", c.Name)
	}
	c.repository = r
	c.byName = make(map[string]*Member, len(c.Members))
	for _, m := range c.Members {
		if m.Name == "" {
			return fmt.Errorf("class %s: member name is required", c.Name)
		}
		if _, dup := c.byName[m.Name]; dup {
			return fmt.Errorf("class %s: duplicate member %q", c.Name, m.Name)
		}
		m.owner = c
		c.byName[m.Name] = m
	}
	r.classes[c.Name] = c
	r.order = append(r.order, c.Name)
	return nil
}

// Class returns the named class or nil.
func (r *Repository) Class(name string) *Class {
	if r == nil {
		return nil
	}
	return r.classes[name]
}

// Classes returns all classes in registration order.
func (r *Repository) Classes() []*Class {
	out := make([]*Class, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.classes[n])
	}
	return out
}

// ClassOf finds metadata for a domain value. Values implementing Named are
// looked up by ClassName; anything else by its Go type name.
func (r *Repository) ClassOf(v any) (*Class, error) {
	var name string
	if n, ok := v.(Named); ok {
		name = n.ClassName()
	} else {
		t := reflect.TypeOf(v)
		for t != nil && t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t == nil {
			return nil, fmt.Errorf("no metadata for nil value")
		}
		name = t.Name()
	}
	c := r.Class(name)
	if c == nil {
		return nil, fmt.Errorf("no metadata for class %q", name)
	}
	return c, nil
}

// Subclasses returns the direct and indirect subclasses of name, sorted.
func (r *Repository) Subclasses(name string) []*Class {
	var out []*Class
	for _, c := range r.classes {
		if c.Name != name && r.IsSubclass(c.Name, name) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsSubclass reports whether class sub equals or descends from super.
func (r *Repository) IsSubclass(sub, super string) bool {
	seen := map[string]bool{}
	for name := sub; name != "" && !seen[name]; {
		if name == super {
			return true
		}
		seen[name] = true
		c := r.classes[name]
		if c == nil {
			return false
		}
		name = c.Super
	}
	return false
}

// Resolve validates superclasses and mapped-by references and infers the
// relation kind of every member whose type is a mapped class.
func (r *Repository) Resolve() error {
	for _, name := range r.order {
		c := r.classes[name]
		if c.Super != "" && r.classes[c.Super] == nil {
			return fmt.Errorf("class %s: unknown superclass %q", c.Name, c.Super)
		}
		if c.Super != "" && r.IsSubclass(c.Super, c.Name) {
			return fmt.Errorf("class %s: superclass cycle", c.Name)
		}
	}
	for _, name := range r.order {
		for _, m := range r.classes[name].Members {
			if err := r.resolveMember(m); err != nil {
				return err
			}
		}
	}
	return nil
}

// target returns the mapped class on the far side of m, or nil.
func (r *Repository) target(m *Member) *Class {
	if m.Container == ContainerMap {
		if c := r.classes[m.Type]; c != nil {
			return c
		}
		return r.classes[m.Key]
	}
	return r.classes[m.Type]
}

func (r *Repository) resolveMember(m *Member) error {
	target := r.target(m)
	if target == nil {
		if m.MappedBy != "" {
			return fmt.Errorf("member %s: mapped-by %q on non-relation member", m, m.MappedBy)
		}
		m.Relation = RelationNone
		return nil
	}

	related, err := r.findRelated(m, target)
	if err != nil {
		return err
	}
	m.related = related

	multi := m.Container != ContainerNone
	switch {
	case related == nil && multi:
		m.Relation = OneToManyUni
	case related == nil && m.Cardinality == "many-to-one":
		m.Relation = ManyToOneUni
	case related == nil:
		m.Relation = OneToOneUni
	case multi && related.Container != ContainerNone:
		m.Relation = ManyToManyBi
	case multi:
		m.Relation = OneToManyBi
	case related.Container != ContainerNone:
		m.Relation = ManyToOneBi
	default:
		m.Relation = OneToOneBi
	}
	return nil
}

// findRelated locates the inverse member, either named by m's mapped-by or
// declaring mapped-by pointing at m.
func (r *Repository) findRelated(m *Member, target *Class) (*Member, error) {
	if m.MappedBy != "" {
		related := target.Member(m.MappedBy)
		if related == nil {
			return nil, fmt.Errorf("member %s: mapped-by %q not found in %s", m, m.MappedBy, target.Name)
		}
		return related, nil
	}
	for _, other := range target.AllMembers() {
		if other.MappedBy != m.Name {
			continue
		}
		if t := r.target(other); t != nil && r.IsSubclass(m.owner.Name, t.Name) {
			return other, nil
		}
	}
	return nil, nil
}
