package meta

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// CompileError represents a schema error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadCUE reads every CUE file in dir and builds a resolved Repository from
// the top-level "class" struct:
//
//	class: Person: {
//		label: "Person"
//		fields: {
//			name:    {type: "string"}
//			address: {type: "Address", embedded: true}
//			friends: {type: "Person", container: "list"}
//		}
//	}
func LoadCUE(dir string) (*Repository, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("schema directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, fmt.Errorf("scan schema directory: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	if inst := instances[0]; inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", formatCUEError(inst.Err))
	}
	value := ctx.BuildInstance(instances[0])
	return CompileSchema(value)
}

// CompileSchema builds a Repository from an already evaluated CUE value.
func CompileSchema(value cue.Value) (*Repository, error) {
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	classesVal := value.LookupPath(cue.ParsePath("class"))
	if !classesVal.Exists() {
		return nil, &CompileError{Field: "class", Message: "no classes declared", Pos: value.Pos()}
	}
	iter, err := classesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var classes []*Class
	for iter.Next() {
		c, err := compileClass(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		classes = append(classes, c)
	}

	repo, err := NewRepository(classes...)
	if err != nil {
		return nil, &CompileError{Field: "class", Message: err.Error(), Pos: classesVal.Pos()}
	}
	return repo, nil
}

func compileClass(name string, v cue.Value) (*Class, error) {
	c := &Class{Name: name}
	var err error
	if c.Label, err = optString(v, "label"); err != nil {
		return nil, err
	}
	if c.Super, err = optString(v, "extends"); err != nil {
		return nil, err
	}
	if c.MappedAsEdge, err = optBool(v, "edge"); err != nil {
		return nil, err
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return c, nil
	}
	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		m, err := compileMember(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		c.Members = append(c.Members, m)
	}
	return c, nil
}

func compileMember(name string, v cue.Value) (*Member, error) {
	m := &Member{Name: name}

	typ, err := optString(v, "type")
	if err != nil {
		return nil, err
	}
	if typ == "" {
		return nil, &CompileError{Field: "fields." + name + ".type", Message: "type is required", Pos: v.Pos()}
	}
	m.Type = typ

	strs := []struct {
		path string
		dst  *string
	}{
		{"column", &m.Column},
		{"key", &m.Key},
		{"mappedBy", &m.MappedBy},
		{"owner", &m.OwnerMember},
		{"keyMappedBy", &m.KeyMappedBy},
		{"valueMappedBy", &m.ValueMappedBy},
		{"converter", &m.Converter},
		{"cardinality", &m.Cardinality},
	}
	for _, s := range strs {
		if *s.dst, err = optString(v, s.path); err != nil {
			return nil, err
		}
	}

	bools := []struct {
		path string
		dst  *bool
	}{
		{"embedded", &m.Embedded},
		{"serialized", &m.Serialized},
		{"serializedElement", &m.SerializedElement},
		{"serializedKey", &m.SerializedKey},
		{"serializedValue", &m.SerializedValue},
	}
	for _, b := range bools {
		if *b.dst, err = optBool(v, b.path); err != nil {
			return nil, err
		}
	}

	container, err := optString(v, "container")
	if err != nil {
		return nil, err
	}
	if m.Container, err = parseContainer(container, v); err != nil {
		return nil, err
	}
	if m.Container == ContainerMap && m.Key == "" {
		return nil, &CompileError{Field: "fields." + name + ".key", Message: "map members need a key type", Pos: v.Pos()}
	}

	persistence, err := optString(v, "persistence")
	if err != nil {
		return nil, err
	}
	switch persistence {
	case "", "persistent":
		m.Persistence = Persistent
	case "transactional":
		m.Persistence = Transactional
	case "none":
		m.Persistence = NotPersistent
	default:
		return nil, &CompileError{
			Field:   "fields." + name + ".persistence",
			Message: fmt.Sprintf("unknown persistence %q", persistence),
			Pos:     v.Pos(),
		}
	}

	overrides := v.LookupPath(cue.ParsePath("overrides"))
	if overrides.Exists() {
		iter, err := overrides.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			col, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			m.EmbeddedMembers = append(m.EmbeddedMembers, EmbeddedOverride{Member: iter.Label(), Column: col})
		}
	}

	return m, nil
}

func parseContainer(s string, v cue.Value) (ContainerKind, error) {
	switch s {
	case "":
		return ContainerNone, nil
	case "list":
		return ContainerList, nil
	case "set":
		return ContainerSet, nil
	case "array":
		return ContainerArray, nil
	case "map":
		return ContainerMap, nil
	}
	return ContainerNone, &CompileError{Field: "container", Message: fmt.Sprintf("unknown container %q", s), Pos: v.Pos()}
}

func optString(v cue.Value, path string) (string, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optBool(v cue.Value, path string) (bool, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
