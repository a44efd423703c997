// Package codec converts domain values into values a graph property can hold.
//
// Graph properties are limited to bool, int64, float64 and string. A
// Registry maps richer Go types onto those: per-type text and integer
// converters (text is preferred when both exist), named converters chosen
// by member metadata, and an opaque object codec for serialized fields.
package codec

import (
	"encoding"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrNoConverter is returned when a value has no storable representation.
var ErrNoConverter = errors.New("no converter for type")

// TextFunc converts a value to its stored text form.
type TextFunc func(v any) (string, error)

// IntFunc converts a value to its stored integer form.
type IntFunc func(v any) (int64, error)

// ConvertFunc is a named, user-registered converter.
type ConvertFunc func(v any) (any, error)

// Registry holds the converters used for stored values and query literals.
//
// Thread-safety: registration and lookup are guarded by an RWMutex.
type Registry struct {
	mu    sync.RWMutex
	text  map[reflect.Type]TextFunc
	ints  map[reflect.Type]IntFunc
	named map[string]ConvertFunc
}

// NewRegistry creates a registry with the default temporal converters:
// time.Time as RFC 3339 text and time.Duration as integer nanoseconds.
func NewRegistry() *Registry {
	r := &Registry{
		text:  make(map[reflect.Type]TextFunc),
		ints:  make(map[reflect.Type]IntFunc),
		named: make(map[string]ConvertFunc),
	}
	r.RegisterText(reflect.TypeOf(time.Time{}), func(v any) (string, error) {
		return v.(time.Time).UTC().Format(time.RFC3339Nano), nil
	})
	r.RegisterInt(reflect.TypeOf(time.Duration(0)), func(v any) (int64, error) {
		return int64(v.(time.Duration)), nil
	})
	return r
}

// RegisterText installs a text converter for t.
func (r *Registry) RegisterText(t reflect.Type, fn TextFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text[t] = fn
}

// RegisterInt installs an integer converter for t.
func (r *Registry) RegisterInt(t reflect.Type, fn IntFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ints[t] = fn
}

// RegisterNamed installs a converter referenced by member metadata.
func (r *Registry) RegisterNamed(name string, fn ConvertFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.named[name] = fn
}

// Named returns the converter registered under name.
func (r *Registry) Named(name string) (ConvertFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.named[name]
	return fn, ok
}

// Convert applies the named converter and normalises its result.
func (r *Registry) Convert(name string, v any) (any, error) {
	fn, ok := r.Named(name)
	if !ok {
		return nil, fmt.Errorf("converter %q: %w", name, ErrNoConverter)
	}
	out, err := fn(v)
	if err != nil {
		return nil, fmt.Errorf("converter %q: %w", name, err)
	}
	return r.StoredValue(out)
}

// StoredValue returns the graph-storable form of v, or nil for nil.
// Arbitrary-precision numbers are narrowed to float64 (int64 when exact).
func (r *Registry) StoredValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	t := reflect.TypeOf(v)
	r.mu.RLock()
	textFn, hasText := r.text[t]
	intFn, hasInt := r.ints[t]
	r.mu.RUnlock()
	if hasText {
		return textFn(v)
	}
	if hasInt {
		return intFn(v)
	}

	switch val := v.(type) {
	case bool, string, int64, float64:
		return val, nil
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint:
		return uintValue(uint64(val))
	case uint64:
		return uintValue(val)
	case float32:
		return float64(val), nil
	case *big.Float:
		f, _ := val.Float64()
		return f, nil
	case *big.Rat:
		f, _ := val.Float64()
		return f, nil
	case *big.Int:
		if val.IsInt64() {
			return val.Int64(), nil
		}
		f, _ := new(big.Float).SetInt(val).Float64()
		return f, nil
	case encoding.TextMarshaler:
		b, err := val.MarshalText()
		if err != nil {
			return nil, fmt.Errorf("marshal text %T: %w", v, err)
		}
		return string(b), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return uintValue(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return r.StoredValue(rv.Elem().Interface())
	}
	return nil, fmt.Errorf("%T: %w", v, ErrNoConverter)
}

func uintValue(u uint64) (any, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("unsigned value %d overflows int64", u)
	}
	return int64(u), nil
}

// Serialize encodes an arbitrary value as opaque text (msgpack, base64).
func (r *Registry) Serialize(v any) (string, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serialize %T: %w", v, err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Deserialize decodes text produced by Serialize into out.
func (r *Registry) Deserialize(s string, out any) error {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("deserialize: %w", err)
	}
	if err := msgpack.Unmarshal(b, out); err != nil {
		return fmt.Errorf("deserialize: %w", err)
	}
	return nil
}
