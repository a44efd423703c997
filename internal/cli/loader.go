package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/ogm/internal/cypher"
	"github.com/roach88/ogm/internal/meta"
	"github.com/roach88/ogm/internal/queryexpr"
	"github.com/roach88/ogm/internal/session"
)

// Error codes for CLI output.
const (
	// General errors (E001-E009)
	ErrCodeGeneric    = "E001" // Generic/unknown error
	ErrCodeScanError  = "E002" // Directory scan error
	ErrCodeNoFiles    = "E003" // No CUE files found
	ErrCodeLoadFailed = "E004" // CUE load failed
	ErrCodeNotFound   = "E005" // Path not found
	ErrCodeSchema     = "E006" // Mapping metadata invalid
	ErrCodeDocument   = "E007" // YAML document unreadable or malformed

	// Query errors (E010-E019)
	ErrCodeQuerySyntax      = "E010" // Filter, order or result text does not parse
	ErrCodeUnresolvedParam  = "E011" // Parameter referenced without a value
	ErrCodeUnknownCandidate = "E012" // Candidate class not mapped
	ErrCodeCache            = "E013" // Compiled-query cache unreachable

	// Persistence errors (E020-E029)
	ErrCodeUnsupportedField = "E020" // Field shape the mapping cannot write
	ErrCodeStorage          = "E021" // Graph database error
	ErrCodeUnknownRef       = "E022" // Object reference names no object
)

// LoadError represents an error that occurred while loading CLI inputs.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSchema loads mapping metadata from the CUE files in dir.
func LoadSchema(dir string) (*meta.Repository, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	repo, err := meta.LoadCUE(dir)
	if err != nil {
		var cErr *meta.CompileError
		if errors.As(err, &cErr) {
			return nil, &LoadError{Code: ErrCodeSchema, Message: fmt.Sprintf("%s: %s", cErr.Field, cErr.Message), Pos: cErr.Pos}
		}
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}
	return repo, nil
}

// QueryDocument is the YAML form of one query:
//
//	candidate: Person
//	alias: p
//	filter: p.status == "ACTIVE" && p.score >= params.min
//	order: p.name desc
//	result: p.name, max(p.score)
//	range: {from: 0, to: 20}
//	params: {min: 50}
type QueryDocument struct {
	Candidate  string         `yaml:"candidate"`
	Alias      string         `yaml:"alias"`
	Subclasses *bool          `yaml:"subclasses"` // default true
	Filter     string         `yaml:"filter"`
	Order      string         `yaml:"order"`
	Result     string         `yaml:"result"`
	Range      *RangeSpec     `yaml:"range"`
	Params     map[string]any `yaml:"params"`
	Positional []any          `yaml:"positional"`
}

// RangeSpec bounds the result rows. An absent To is unbounded.
type RangeSpec struct {
	From int64  `yaml:"from"`
	To   *int64 `yaml:"to"`
}

// LoadQuery reads a query document.
func LoadQuery(path string) (*QueryDocument, error) {
	var doc QueryDocument
	if err := readYAML(path, &doc); err != nil {
		return nil, err
	}
	if doc.Candidate == "" {
		return nil, &LoadError{Code: ErrCodeDocument, Message: fmt.Sprintf("%s: candidate is required", path)}
	}
	return &doc, nil
}

// Compilation parses the document's expression texts.
func (d *QueryDocument) Compilation() (queryexpr.Compilation, error) {
	alias := d.Alias
	if alias == "" {
		alias = cypher.DefaultAlias
	}
	comp := queryexpr.Compilation{
		Candidate:  d.Candidate,
		Alias:      alias,
		Subclasses: d.Subclasses == nil || *d.Subclasses,
		RangeTo:    queryexpr.NoRange,
	}

	var err error
	if comp.Filter, err = queryexpr.ParseFilter(d.Filter, alias); err != nil {
		return comp, err
	}
	if comp.Ordering, err = queryexpr.ParseOrdering(d.Order, alias); err != nil {
		return comp, err
	}
	if comp.Result, err = queryexpr.ParseResult(d.Result, alias); err != nil {
		return comp, err
	}
	if d.Range != nil {
		comp.RangeFrom = d.Range.From
		if d.Range.To != nil {
			comp.RangeTo = *d.Range.To
		}
	}
	return comp, nil
}

// Parameters returns the bound parameter values.
func (d *QueryDocument) Parameters() queryexpr.Parameters {
	return queryexpr.Parameters{Named: d.Params, Positional: d.Positional}
}

// ObjectsDocument is the YAML form of a batch of objects to save.
//
//	objects:
//	  - class: Person
//	    id: ada
//	    fields:
//	      name: Ada
//	      manager: {ref: grace}
//	      address: {fields: {street: Main St}}
//	      tasks:
//	        - {class: Task, fields: {title: compile}}
//
// Related objects are either inline mappings (class defaults to the
// member's declared type) or {ref: <id>} naming a top-level object.
type ObjectsDocument struct {
	Objects []ObjectSpec `yaml:"objects"`
}

// ObjectSpec is one object in an ObjectsDocument.
type ObjectSpec struct {
	Class  string         `yaml:"class"`
	ID     string         `yaml:"id"`
	Fields map[string]any `yaml:"fields"`
}

// LoadObjects reads an objects document and builds session objects using
// repo to tell relation fields from plain ones.
func LoadObjects(path string, repo *meta.Repository) ([]*session.Object, error) {
	var doc ObjectsDocument
	if err := readYAML(path, &doc); err != nil {
		return nil, err
	}

	b := &objectBuilder{repo: repo, refs: make(map[string]*session.Object)}
	out := make([]*session.Object, len(doc.Objects))
	for i, spec := range doc.Objects {
		if spec.Class == "" {
			return nil, &LoadError{Code: ErrCodeDocument, Message: fmt.Sprintf("objects[%d]: class is required", i)}
		}
		o := &session.Object{Class: spec.Class, ID: spec.ID, Fields: map[string]any{}}
		if spec.ID != "" {
			if _, dup := b.refs[spec.ID]; dup {
				return nil, &LoadError{Code: ErrCodeDocument, Message: fmt.Sprintf("objects[%d]: duplicate id %q", i, spec.ID)}
			}
			b.refs[spec.ID] = o
		}
		out[i] = o
	}

	// References are resolved after every top-level object exists, so
	// they may point forward and form cycles.
	for i, spec := range doc.Objects {
		if err := b.fill(out[i], spec.Fields); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type objectBuilder struct {
	repo *meta.Repository
	refs map[string]*session.Object
}

func (b *objectBuilder) fill(o *session.Object, fields map[string]any) error {
	cls := b.repo.Class(o.Class)
	if cls == nil {
		return &LoadError{Code: ErrCodeSchema, Message: fmt.Sprintf("%s: unknown class %q", o, o.Class)}
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m := cls.Member(name)
		if m == nil {
			return &LoadError{Code: ErrCodeSchema, Message: fmt.Sprintf("%s: unknown field %q", o, name)}
		}
		v, err := b.value(m, fields[name])
		if err != nil {
			return err
		}
		o.Fields[name] = v
	}
	return nil
}

func (b *objectBuilder) value(m *meta.Member, raw any) (any, error) {
	if raw == nil || m.Serialized || (m.Relation == meta.RelationNone && !m.Embedded) {
		return raw, nil
	}

	if m.Container == meta.ContainerNone {
		return b.object(m, raw)
	}

	if m.Container == meta.ContainerMap {
		entries, ok := raw.(map[string]any)
		if !ok {
			return nil, &LoadError{Code: ErrCodeDocument, Message: fmt.Sprintf("%s: expected a mapping, got %T", m, raw)}
		}
		if !m.ValuePersistent() {
			return entries, nil
		}
		out := make(map[string]any, len(entries))
		for k, v := range entries {
			obj, err := b.object(m, v)
			if err != nil {
				return nil, err
			}
			out[k] = obj
		}
		return out, nil
	}

	items, ok := raw.([]any)
	if !ok {
		return nil, &LoadError{Code: ErrCodeDocument, Message: fmt.Sprintf("%s: expected a sequence, got %T", m, raw)}
	}
	out := make([]any, len(items))
	for i, item := range items {
		obj, err := b.object(m, item)
		if err != nil {
			return nil, err
		}
		out[i] = obj
	}
	return out, nil
}

// object converts an inline mapping or a reference. nil stays nil so that
// the persister can report null elements.
func (b *objectBuilder) object(m *meta.Member, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	spec, ok := raw.(map[string]any)
	if !ok {
		return nil, &LoadError{Code: ErrCodeDocument, Message: fmt.Sprintf("%s: expected an object, got %T", m, raw)}
	}

	if ref, ok := spec["ref"]; ok {
		id := fmt.Sprint(ref)
		o, found := b.refs[id]
		if !found {
			return nil, &LoadError{Code: ErrCodeUnknownRef, Message: fmt.Sprintf("%s: no object with id %q", m, id)}
		}
		return o, nil
	}

	o := &session.Object{Class: m.Type, Fields: map[string]any{}}
	if class, ok := spec["class"].(string); ok && class != "" {
		o.Class = class
	}
	if id, ok := spec["id"]; ok {
		o.ID = fmt.Sprint(id)
	}
	var fields map[string]any
	if raw, ok := spec["fields"]; ok && raw != nil {
		if fields, ok = raw.(map[string]any); !ok {
			return nil, &LoadError{Code: ErrCodeDocument, Message: fmt.Sprintf("%s: fields must be a mapping", m)}
		}
	}
	if err := b.fill(o, fields); err != nil {
		return nil, err
	}
	return o, nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("file not found: %s", path)}
	}
	if err != nil {
		return &LoadError{Code: ErrCodeDocument, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return &LoadError{Code: ErrCodeDocument, Message: fmt.Sprintf("parsing %s: %v", path, err)}
	}
	return nil
}
