package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTitle(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"short", "Hello there", "Hello there"},
		{"trimmed", "  spaced out  ", "spaced out"},
		{"exact", strings.Repeat("a", 30), strings.Repeat("a", 30)},
		{"long", "Explain the difference between goroutines and threads", "Explain the difference between"},
		{"multibyte", strings.Repeat("ș", 40), strings.Repeat("ș", 30)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, DeriveTitle(tc.input))
		})
	}
}
