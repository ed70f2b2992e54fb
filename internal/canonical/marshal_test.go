package canonical

import (
	"encoding/json"
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
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int", int64(-100), "-100"},
		{"zero", 0, "0"},
		{"max int64", int64(9223372036854775807), "9223372036854775807"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"null", nil, "null"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"array of ints", []any{1, 2, 3}, "[1,2,3]"},
		{"string slice", []string{"b", "a"}, `["b","a"]`},
		{"simple object", map[string]any{"a": 1}, `{"a":1}`},
		{"float shortest form", 2.5, "2.5"},
		{"whole float as int", 4.0, "4"},
		{"json number int", json.Number("17"), "17"},
		{"json number float", json.Number("0.125"), "0.125"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": 1,
		"alpha": 2,
		"beta":  3,
	}

	result, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(result))
}

func TestMarshalNestedSortedKeys(t *testing.T) {
	obj := map[string]any{
		"z": map[string]any{
			"b": 1,
			"a": 2,
		},
		"a": 3,
	}

	result, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"z":{"a":2,"b":1}}`, string(result))
}

func TestMarshalUTF16Ordering(t *testing.T) {
	// U+E000 vs U+10000 - UTF-16 order differs from UTF-8.
	// The surrogate pair (0xD800, 0xDC00) sorts before 0xE000.
	obj := map[string]any{
		"": 1,
		"𐀀":      2,
	}

	result, err := Marshal(obj)
	require.NoError(t, err)

	expected := `{"𐀀":2,"` + "" + `":1}`
	assert.Equal(t, expected, string(result))
}

func TestMarshalNoHTMLEscape(t *testing.T) {
	result, err := Marshal("<a href=\"x\">&</a>")
	require.NoError(t, err)
	assert.Equal(t, `"<a href=\"x\">&</a>"`, string(result))
}

func TestMarshalNonFiniteRejected(t *testing.T) {
	_, err := Marshal(map[string]any{"bad": json.Number("1e99999")})
	assert.Error(t, err)
}

func TestHashInvariantUnderKeyOrder(t *testing.T) {
	// The payloads are structurally identical; only the literal key order in
	// source differs. Canonical hashing must not see a difference.
	a := map[string]any{
		"title":    "Chemical spill at plant",
		"severity": 3,
		"geo":      map[string]any{"city": "Avon", "state": "IN"},
	}
	b := map[string]any{
		"geo":      map[string]any{"state": "IN", "city": "Avon"},
		"severity": 3,
		"title":    "Chemical spill at plant",
	}

	ha, err := Hash(DomainArtifact, a)
	require.NoError(t, err)
	hb, err := Hash(DomainArtifact, b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestHashDomainSeparation(t *testing.T) {
	v := map[string]any{"id": "ALERT-1"}

	h1 := MustHash(DomainArtifact, v)
	h2 := MustHash(DomainIncident, v)
	assert.NotEqual(t, h1, h2, "same payload under different domains must not collide")
}

func TestHashRoundTripThroughDecode(t *testing.T) {
	raw := []byte(`{"b":2,"a":{"y":true,"x":[1,2.5,"s"]},"n":9223372036854775807}`)

	m, err := Decode(raw)
	require.NoError(t, err)

	h1 := MustHash(DomainArtifact, m)

	// Re-serialize and decode again; identity must be stable.
	data, err := Marshal(m)
	require.NoError(t, err)
	m2, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, h1, MustHash(DomainArtifact, m2))
}
