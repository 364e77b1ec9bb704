package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedIDs(t *testing.T) {
	inst := NewInstanceID()
	sess := NewSessionID()
	pop := NewPopoutID()

	assert.True(t, strings.HasPrefix(inst.String(), "inst_"))
	assert.True(t, strings.HasPrefix(sess.String(), "sess_"))
	assert.True(t, strings.HasPrefix(pop.String(), "pop_"))

	assert.True(t, IsValid(inst.String()))
	assert.True(t, IsValid(sess.String()))
	assert.False(t, IsValid("inst_not-a-ulid"))
}

func TestGeneratorUniqueness(t *testing.T) {
	g := NewGenerator()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		s := g.Generate().String()
		require.False(t, seen[s], "duplicate ULID %s", s)
		seen[s] = true
	}
}

func TestGeneratorSortable(t *testing.T) {
	g := NewGenerator()
	a := g.Generate()
	b := g.Generate()
	assert.LessOrEqual(t, a.Time(), b.Time())
}
