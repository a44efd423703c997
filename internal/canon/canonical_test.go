package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"int", 42, "42"},
		{"int64", int64(-7), "-7"},
		{"bool", true, "true"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"no html escaping", "<a&b>", `"<a&b>"`},
		{"string slice", []string{"a", "b"}, `["a","b"]`},
		{"nested", map[string]any{"b": []any{1, "x"}, "a": true}, `{"a":true,"b":[1,"x"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(out))
		})
	}
}

func TestMarshalRejects(t *testing.T) {
	for _, v := range []any{nil, 1.5, float32(2), struct{}{}} {
		_, err := Marshal(v)
		assert.Error(t, err, "%T", v)
	}
}

func TestMarshalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9
	out, err := Marshal("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"caf\u00e9\"", string(out))
}

func TestMarshalLineSeparators(t *testing.T) {
	out, err := Marshal("a\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(out))

	out, err = Marshal(`a\u2028b`)
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(out), "escaped backslash stays escaped")
}

func TestMarshalKeyOrderUTF16(t *testing.T) {
	// U+FF61 sorts before U+1F600 in UTF-8 but after its surrogate pair in UTF-16.
	obj := map[string]any{"\U0001F600": 1, "\uFF61": 2}
	out, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":1,\"\uFF61\":2}", string(out))
}

func TestHashWithDomain(t *testing.T) {
	a := HashWithDomain(DomainQuery, []byte("x"))
	b := HashWithDomain(DomainQuery, []byte("x"))
	c := HashWithDomain("other/v1", []byte("x"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
