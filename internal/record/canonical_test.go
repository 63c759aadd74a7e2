package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"sorted keys", map[string]any{"b": 1, "a": 2}, `{"a":2,"b":1}`},
		{"nested", map[string]any{"z": []any{map[string]any{"y": true, "x": false}}}, `{"z":[{"x":false,"y":true}]}`},
		{"no html escaping", "<a & b>", `"<a & b>"`},
		{"line separator kept raw", "a\u2028b", "\"a\u2028b\""},
		{"control escaped", "a\nb\x01", `"a\nb\u0001"`},
		{"nfc", "e\u0301", "\"\u00e9\""},
		{"integral float", 2.0, `2`},
		{"fraction", 4.5, `4.5`},
		{"large exponent", 1e21, `1e+21`},
		{"utf16 key order", map[string]any{"\uffff": 1, "\U0001F600": 2}, "{\"\U0001F600\":2,\"\uffff\":1}"},
		{"struct tags", Location{Start: 3, End: 4, EntityID: "7"}, `{"end":4,"entity_id":"7","start":3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_RejectsNull(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"label": nil})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null")
}

func TestMarshalCanonical_Stable(t *testing.T) {
	a, err := MarshalCanonical(map[string]any{"start": 1, "end": 2, "entity_id": "3"})
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		b, err := MarshalCanonical(map[string]any{"entity_id": "3", "end": 2, "start": 1})
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}
