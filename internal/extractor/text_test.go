package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollapse(t *testing.T) {
	assert.Equal(t, "a b c", collapse("  a \n\t b  c  "))
	assert.Equal(t, "caf\u00e9", collapse("cafe\u0301"))
	assert.Equal(t, "a b", collapse("a\u00a0\u00a0b"))
	assert.Equal(t, "", collapse(" \n "))
}

func TestSplitLabel(t *testing.T) {
	cases := []struct {
		label, name, pos string
	}{
		{"cat (n.)", "cat", "n"},
		{"  cat  ", "cat", ""},
		{"run (v., n.)", "run", "v, n"},
		{"bank (n.1)", "bank", "n1"},
		{"ice cream (n.", "ice cream", "n"},
	}
	for _, c := range cases {
		name, pos := splitLabel(c.label)
		assert.Equal(t, c.name, name, c.label)
		assert.Equal(t, c.pos, pos, c.label)
	}
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, canonical("cat"), canonical("Cats"))
	assert.Equal(t, canonical("e-mail"), canonical("email"))
	assert.Equal(t, canonical("ice cream"), canonical("ice-cream"))
	assert.Equal(t, "gas", canonical("gas"))
}
