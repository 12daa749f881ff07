package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorRegistrySequential(t *testing.T) {
	r := NewActorRegistry()

	assert.Equal(t, Actor(0), r.Add(1))
	assert.Equal(t, Actor(1), r.Add(1))
	assert.Equal(t, Actor(2), r.Add(2))
}

func TestActorRegistryDelayedReuse(t *testing.T) {
	r := NewActorRegistry()

	a := r.Add(1)
	r.Remove(a, ServerSnapshot(10))

	// Внутри окна истории идентификатор не переиспользуется
	fresh := r.Add(ServerSnapshot(10 + MaxSnapshotDiff))
	assert.NotEqual(t, a, fresh)

	// За окном — переиспользуется
	reused := r.Add(ServerSnapshot(11 + MaxSnapshotDiff))
	assert.Equal(t, a, reused)
}

func TestActorRegistryRemovalAfterAddPanics(t *testing.T) {
	r := NewActorRegistry()

	a := r.Add(5)
	r.Remove(a, ServerSnapshot(10))

	assert.Panics(t, func() { r.Add(ServerSnapshot(5)) })
}

func TestLabelMap(t *testing.T) {
	m := NewLabelMap[BlockClass]([]string{"air", "stone"})

	air, ok := m.Get("air")
	assert.True(t, ok)
	assert.Equal(t, BlockClass(0), air)

	stone, ok := m.Get("stone")
	assert.True(t, ok)
	assert.Equal(t, BlockClass(1), stone)

	_, ok = m.Get("dirt")
	assert.False(t, ok)

	label, ok := m.Label(stone)
	assert.True(t, ok)
	assert.Equal(t, "stone", label)

	_, ok = m.Label(BlockClass(2))
	assert.False(t, ok)

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, []string{"air", "stone"}, m.Labels())
}
