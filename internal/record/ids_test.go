package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortIDs(t *testing.T) {
	ids := []string{"10", "b", "2", "0_0", "1", "07", "a"}
	assert.Equal(t, []string{"1", "2", "10", "07", "0_0", "a", "b"}, SortIDs(ids))
}

func TestNumericID(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"0", 0, true},
		{"42", 42, true},
		{"007", 0, false},
		{"-1", 0, false},
		{"5_5", 0, false},
		{"", 0, false},
		{"99999999999999999999", 0, false},
	}
	for _, tt := range tests {
		n, ok := NumericID(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, n, tt.in)
	}
	assert.Equal(t, "42", FormatID(42))
}
