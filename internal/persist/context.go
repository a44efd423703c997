package persist

import (
	"github.com/roach88/ogm/internal/codec"
	"github.com/roach88/ogm/internal/graph"
	"github.com/roach88/ogm/internal/meta"
)

// ObjectHandle is one in-flight domain object owned by the persistence context.
type ObjectHandle interface {
	Class() *meta.Class
	// FieldValue returns the current value of a member; nil when unset.
	FieldValue(member string) any
	// MarkMaterialized records that the member's value has been written.
	MarkMaterialized(member string)
}

// Context is the persistence context a FieldPersister calls back into.
type Context interface {
	Repository() *meta.Repository
	Codecs() *codec.Registry
	// PersistIfNew makes value persistent if it is not already and returns
	// its handle.
	PersistIfNew(value any) (ObjectHandle, error)
	// NodeFor returns the node a persistent object is stored in.
	NodeFor(h ObjectHandle) (graph.Node, error)
	// EmbeddedHandle wraps a value stored inside owner's container.
	EmbeddedHandle(value any, owner ObjectHandle, member *meta.Member) (ObjectHandle, error)
}
