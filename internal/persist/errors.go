package persist

import (
	"errors"
	"fmt"
)

// UnsupportedCode identifies a field shape the mapping cannot write.
type UnsupportedCode string

const (
	// CodeSerializedElement: a collection, array or map declares serialized
	// elements, keys or values.
	CodeSerializedElement UnsupportedCode = "SERIALIZED_ELEMENT"

	// CodeNullElement: a collection or array contains nil.
	CodeNullElement UnsupportedCode = "NULL_ELEMENT"

	// CodeNullMapEntry: a map has a nil key or value.
	CodeNullMapEntry UnsupportedCode = "NULL_MAP_ENTRY"

	// CodeEmbeddedMultiValued: a collection, array or map is declared embedded.
	CodeEmbeddedMultiValued UnsupportedCode = "EMBEDDED_MULTI_VALUED"

	// CodePersistentMap: both key and value of a map are mapped classes.
	CodePersistentMap UnsupportedCode = "PERSISTENT_MAP"

	// CodeEdgeObjectRelation: an object stored as an edge has a relation field.
	CodeEdgeObjectRelation UnsupportedCode = "EDGE_OBJECT_RELATION"

	// CodeMissingMetadata: an embedded value's class is not mapped.
	CodeMissingMetadata UnsupportedCode = "MISSING_METADATA"

	// CodeNotSerializable: a serialized field's value cannot be encoded.
	CodeNotSerializable UnsupportedCode = "NOT_SERIALIZABLE"

	// CodeNoConverter: a plain field's value has no storable form.
	CodeNoConverter UnsupportedCode = "NO_CONVERTER"

	// CodeScalarCollection: a collection or map of plain values is neither
	// serialized nor converted. Graph properties hold single scalars only.
	CodeScalarCollection UnsupportedCode = "SCALAR_COLLECTION"

	// CodeInvalidValue: a field's Go value does not match its declared container.
	CodeInvalidValue UnsupportedCode = "INVALID_VALUE"
)

// UnsupportedError aborts the current object write.
type UnsupportedError struct {
	Code    UnsupportedCode
	Field   string // Class.member
	Message string
	Err     error
}

func (e *UnsupportedError) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnsupportedError) Unwrap() error { return e.Err }

// IsUnsupported reports whether err is an UnsupportedError.
// Uses errors.As to handle wrapped errors.
func IsUnsupported(err error) bool {
	var ue *UnsupportedError
	return errors.As(err, &ue)
}

// HasCode reports whether err is an UnsupportedError with the given code.
func HasCode(err error, code UnsupportedCode) bool {
	var ue *UnsupportedError
	if errors.As(err, &ue) {
		return ue.Code == code
	}
	return false
}

func unsupported(code UnsupportedCode, field fmt.Stringer, format string, args ...any) *UnsupportedError {
	return &UnsupportedError{Code: code, Field: field.String(), Message: fmt.Sprintf(format, args...)}
}
