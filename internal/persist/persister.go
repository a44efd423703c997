package persist

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/roach88/ogm/internal/codec"
	"github.com/roach88/ogm/internal/graph"
	"github.com/roach88/ogm/internal/meta"
)

// FieldPersister writes the managed fields of one object into a property
// container. Embedded objects are flattened into the same container by a
// child persister that carries the embedded owner chain.
//
// A FieldPersister serves exactly one object write and is not safe for
// concurrent use.
type FieldPersister struct {
	ctx       Context
	obj       ObjectHandle
	container graph.PropertyContainer
	insert    bool
	chain     []*meta.Member

	// edgeObject is set when the root object is mapped as an edge; relation
	// fields cannot be written from such an object.
	edgeObject bool
}

// NewFieldPersister creates a persister for obj writing into container.
func NewFieldPersister(ctx Context, obj ObjectHandle, container graph.PropertyContainer, insert bool) *FieldPersister {
	return &FieldPersister{
		ctx:        ctx,
		obj:        obj,
		container:  container,
		insert:     insert,
		edgeObject: obj.Class().MappedAsEdge,
	}
}

func (p *FieldPersister) child(obj ObjectHandle, m *meta.Member) *FieldPersister {
	chain := make([]*meta.Member, len(p.chain), len(p.chain)+1)
	copy(chain, p.chain)
	return &FieldPersister{
		ctx:        p.ctx,
		obj:        obj,
		container:  p.container,
		insert:     p.insert,
		chain:      append(chain, m),
		edgeObject: p.edgeObject,
	}
}

// StoreFields writes every member of the object's class, superclass members
// first.
func (p *FieldPersister) StoreFields() error {
	for _, m := range p.obj.Class().AllMembers() {
		v := p.obj.FieldValue(m.Name)
		var err error
		if p.isPlainScalar(m) {
			err = p.StoreScalar(m, v)
		} else {
			err = p.StoreReference(m, v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *FieldPersister) isPlainScalar(m *meta.Member) bool {
	return m.Relation == meta.RelationNone &&
		m.Container == meta.ContainerNone &&
		!m.Serialized &&
		!meta.IsEmbedded(p.chain, m) &&
		m.Converter == ""
}

// StoreScalar writes a primitive, string or temporal value directly. A nil
// value on update removes the property; graph properties are never null.
func (p *FieldPersister) StoreScalar(m *meta.Member, v any) error {
	if !m.Storable() {
		return nil
	}
	key := meta.PropertyName(p.chain, m)
	if isNil(v) {
		if p.insert {
			return nil
		}
		return p.removeProperty(m, key)
	}

	stored, err := p.ctx.Codecs().StoredValue(v)
	if err != nil {
		return p.conversionError(m, err)
	}
	if stored == nil {
		return nil
	}
	if err := p.container.SetProperty(key, stored); err != nil {
		return fmt.Errorf("store %s: %w", m, err)
	}
	p.obj.MarkMaterialized(m.Name)
	return nil
}

// StoreReference writes a relation-shaped, serialized, embedded or
// converted field.
func (p *FieldPersister) StoreReference(m *meta.Member, v any) error {
	if !m.Storable() {
		return nil
	}
	if p.isBackReference(m) {
		return nil
	}

	embedded := meta.IsEmbedded(p.chain, m)
	switch {
	case embedded && m.Relation.MultiValued():
		if isNil(v) {
			return nil
		}
		return unsupported(CodeEmbeddedMultiValued, m, "embedded %s fields are not supported", m.Container)
	case embedded && m.Relation.SingleValued():
		return p.storeEmbedded(m, v)
	case m.Serialized:
		return p.storeSerialized(m, v)
	case m.Relation.SingleValued():
		return p.storeSingle(m, v)
	case m.Relation.MultiValued():
		return p.storeMulti(m, v)
	}
	return p.storeConverted(m, v)
}

// isBackReference implements the embedded skip rule: inside an embedded
// object, the member pointing back at the embedding owner is not written.
func (p *FieldPersister) isBackReference(m *meta.Member) bool {
	if len(p.chain) == 0 || m.Relation == meta.RelationNone {
		return false
	}
	owner := p.chain[len(p.chain)-1]
	return owner.MappedBy == m.Name ||
		m.MappedBy == owner.Name ||
		owner.OwnerMember == m.Name
}

func (p *FieldPersister) storeEmbedded(m *meta.Member, v any) error {
	if isNil(v) {
		if p.insert {
			return nil
		}
		return p.clearEmbedded(m)
	}
	if _, err := p.ctx.Repository().ClassOf(v); err != nil {
		return &UnsupportedError{Code: CodeMissingMetadata, Field: m.String(), Message: "embedded value has no class metadata", Err: err}
	}
	h, err := p.ctx.EmbeddedHandle(v, p.obj, m)
	if err != nil {
		return fmt.Errorf("store %s: %w", m, err)
	}
	return p.child(h, m).StoreFields()
}

// clearEmbedded removes every property flattened from m's class.
func (p *FieldPersister) clearEmbedded(m *meta.Member) error {
	cls := p.ctx.Repository().Class(m.Type)
	if cls == nil {
		return unsupported(CodeMissingMetadata, m, "no class metadata for %q", m.Type)
	}
	c := p.child(nil, m)
	for _, sub := range cls.AllMembers() {
		if !sub.Storable() || c.isBackReference(sub) {
			continue
		}
		if meta.IsEmbedded(c.chain, sub) && sub.Relation.SingleValued() {
			if err := c.clearEmbedded(sub); err != nil {
				return err
			}
			continue
		}
		if sub.Relation != meta.RelationNone && !sub.Serialized {
			continue
		}
		if err := c.removeProperty(sub, meta.PropertyName(c.chain, sub)); err != nil {
			return err
		}
	}
	return nil
}

func (p *FieldPersister) storeSerialized(m *meta.Member, v any) error {
	key := meta.PropertyName(p.chain, m)
	if isNil(v) {
		if p.insert {
			return nil
		}
		return p.removeProperty(m, key)
	}
	text, err := p.ctx.Codecs().Serialize(v)
	if err != nil {
		return &UnsupportedError{Code: CodeNotSerializable, Field: m.String(), Message: "value cannot be serialized", Err: err}
	}
	if err := p.container.SetProperty(key, text); err != nil {
		return fmt.Errorf("store %s: %w", m, err)
	}
	p.obj.MarkMaterialized(m.Name)
	return nil
}

func (p *FieldPersister) node(m *meta.Member) (graph.Node, error) {
	n, ok := p.container.(graph.Node)
	if p.edgeObject || !ok {
		return nil, unsupported(CodeEdgeObjectRelation, m, "objects mapped as edges cannot hold relation fields")
	}
	return n, nil
}

func (p *FieldPersister) storeSingle(m *meta.Member, v any) error {
	if isNil(v) {
		return p.clearRelation(m)
	}
	owner, err := p.node(m)
	if err != nil {
		return err
	}
	target, err := p.cascade(m, v)
	if err != nil {
		return err
	}
	return NewRelationshipSynchronizer(owner, p.insert).SyncSingle(m, target)
}

func (p *FieldPersister) storeMulti(m *meta.Member, v any) error {
	if isNil(v) {
		return p.clearRelation(m)
	}
	owner, err := p.node(m)
	if err != nil {
		return err
	}

	var elems Elements
	if m.Container == meta.ContainerMap {
		elems, err = p.mapElements(m, v)
	} else {
		elems, err = p.sequenceElements(m, v)
	}
	if err != nil {
		return err
	}
	return NewRelationshipSynchronizer(owner, p.insert).SyncMulti(m, elems)
}

// clearRelation handles a nil relation field: nothing on insert, edge
// removal on update.
func (p *FieldPersister) clearRelation(m *meta.Member) error {
	owner, ok := p.container.(graph.Node)
	if p.insert || p.edgeObject || !ok {
		return nil
	}
	sync := NewRelationshipSynchronizer(owner, false)
	if m.Relation.SingleValued() {
		return sync.SyncSingle(m, nil)
	}
	return sync.SyncMulti(m, Elements{})
}

func (p *FieldPersister) sequenceElements(m *meta.Member, v any) (Elements, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return Elements{}, unsupported(CodeInvalidValue, m, "%s field holds %T", m.Container, v)
	}

	elems := Elements{Ordered: m.Container.Ordered()}
	for i := 0; i < rv.Len(); i++ {
		if m.SerializedElement {
			return Elements{}, unsupported(CodeSerializedElement, m, "serialized %s elements are not supported", m.Container)
		}
		el := rv.Index(i).Interface()
		if isNil(el) {
			return Elements{}, unsupported(CodeNullElement, m, "element %d is nil", i)
		}
		n, err := p.cascade(m, el)
		if err != nil {
			return Elements{}, err
		}
		elems.Nodes = append(elems.Nodes, n)
	}
	return elems, nil
}

func (p *FieldPersister) mapElements(m *meta.Member, v any) (Elements, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Map {
		return Elements{}, unsupported(CodeInvalidValue, m, "map field holds %T", v)
	}

	keyPersistent, valuePersistent := m.KeyPersistent(), m.ValuePersistent()
	if keyPersistent && valuePersistent {
		return Elements{}, unsupported(CodePersistentMap, m, "maps with persistent keys and values are not supported")
	}

	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})

	var elems Elements
	for _, k := range keys {
		if m.SerializedElement || m.SerializedKey || m.SerializedValue {
			return Elements{}, unsupported(CodeSerializedElement, m, "serialized map keys and values are not supported")
		}
		key, val := k.Interface(), rv.MapIndex(k).Interface()
		if isNil(key) || isNil(val) {
			return Elements{}, unsupported(CodeNullMapEntry, m, "map entry %v has a nil key or value", key)
		}

		persistentSide, scalarSide := val, key
		if keyPersistent {
			persistentSide, scalarSide = key, val
		}
		n, err := p.cascade(m, persistentSide)
		if err != nil {
			return Elements{}, err
		}
		scalar, err := p.ctx.Codecs().StoredValue(scalarSide)
		if err != nil {
			return Elements{}, p.conversionError(m, err)
		}

		elems.Nodes = append(elems.Nodes, n)
		if keyPersistent {
			elems.Values = append(elems.Values, scalar)
		} else {
			elems.Keys = append(elems.Keys, scalar)
		}
	}
	return elems, nil
}

// cascade makes v persistent if needed and returns its node.
func (p *FieldPersister) cascade(m *meta.Member, v any) (graph.Node, error) {
	h, err := p.ctx.PersistIfNew(v)
	if err != nil {
		return nil, fmt.Errorf("store %s: cascade: %w", m, err)
	}
	n, err := p.ctx.NodeFor(h)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", m, err)
	}
	return n, nil
}

func (p *FieldPersister) storeConverted(m *meta.Member, v any) error {
	key := meta.PropertyName(p.chain, m)
	if isNil(v) {
		if p.insert {
			return nil
		}
		return p.removeProperty(m, key)
	}
	if m.Container != meta.ContainerNone && m.Converter == "" {
		return unsupported(CodeScalarCollection, m, "%s of %s has no property form; declare it serialized or give it a converter", m.Container, m.Type)
	}

	var stored any
	var err error
	if m.Converter != "" {
		stored, err = p.ctx.Codecs().Convert(m.Converter, v)
	} else {
		stored, err = p.ctx.Codecs().StoredValue(v)
	}
	if err != nil {
		return p.conversionError(m, err)
	}
	if stored == nil {
		return nil
	}
	if err := p.container.SetProperty(key, stored); err != nil {
		return fmt.Errorf("store %s: %w", m, err)
	}
	p.obj.MarkMaterialized(m.Name)
	return nil
}

func (p *FieldPersister) removeProperty(m *meta.Member, key string) error {
	ok, err := p.container.HasProperty(key)
	if err != nil {
		return fmt.Errorf("store %s: %w", m, err)
	}
	if !ok {
		return nil
	}
	if err := p.container.RemoveProperty(key); err != nil {
		return fmt.Errorf("store %s: remove: %w", m, err)
	}
	return nil
}

func (p *FieldPersister) conversionError(m *meta.Member, err error) error {
	if errors.Is(err, codec.ErrNoConverter) {
		return &UnsupportedError{Code: CodeNoConverter, Field: m.String(), Message: "value has no storable form", Err: err}
	}
	return fmt.Errorf("store %s: %w", m, err)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
