package store

import (
	"errors"
	"math"
	"testing"

	"github.com/roach88/ogm/internal/graph"
)

func TestEncodeValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "Ada", `{"s":"Ada"}`},
		{"int", 42, `{"i":42}`},
		{"int64 negative", int64(-7), `{"i":-7}`},
		{"bool", true, `{"b":true}`},
		{"float", 2.5, `{"f":"2.5"}`},
		{"float integral", 10.0, `{"f":"10"}`},
		{"float32 widened", float32(0.5), `{"f":"0.5"}`},
		{"no html escaping", "<a&b>", `{"s":"<a&b>"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := encodeValue(tt.in)
			if err != nil {
				t.Fatalf("encodeValue(%v) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("encodeValue(%v) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncodeValue_Rejects(t *testing.T) {
	if _, err := encodeValue(nil); !errors.Is(err, graph.ErrNullProperty) {
		t.Errorf("encodeValue(nil) error = %v, want ErrNullProperty", err)
	}
	if _, err := encodeValue([]string{"a"}); err == nil {
		t.Error("expected error for slice value")
	}
}

func TestDecodeValue_RoundTrip(t *testing.T) {
	values := []any{"", "héllo", int64(math.MaxInt64), int64(math.MinInt64), false, 1e-300, -0.125}
	for _, v := range values {
		enc, err := encodeValue(v)
		if err != nil {
			t.Fatalf("encodeValue(%v) failed: %v", v, err)
		}
		got, err := decodeValue(enc)
		if err != nil {
			t.Fatalf("decodeValue(%s) failed: %v", enc, err)
		}
		if got != v {
			t.Errorf("round trip %v (%T) = %v (%T)", v, v, got, got)
		}
	}
}

func TestDecodeValue_Malformed(t *testing.T) {
	inputs := []string{
		`not json`,
		`{}`,
		`{"s":"a","i":1}`,
		`{"s":1}`,
		`{"i":1.5}`,
		`{"f":"abc"}`,
		`{"x":1}`,
	}
	for _, in := range inputs {
		if _, err := decodeValue(in); err == nil {
			t.Errorf("decodeValue(%s) expected error", in)
		}
	}
}
