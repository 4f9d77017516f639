package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"nil", nil, nil},
		{"empty", []string{}, []string{}},
		{"trims whitespace", []string{"  coach-l1 ", "coach-l2"}, []string{"coach-l1", "coach-l2"}},
		{"drops empties", []string{"coach-l1", "", "   "}, []string{"coach-l1"}},
		{"drops duplicates keeping first order", []string{"b", "a", "b", " a "}, []string{"b", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupeAndTrim(tt.input))
		})
	}
}
