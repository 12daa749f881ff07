package actor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/messages"
	"github.com/voxbrix/voxbrix-server/internal/pack"
)

func effectState(b byte) EffectState {
	var s EffectState
	s[0] = b
	return s
}

func TestEffectsInsertGetRemove(t *testing.T) {
	c := NewEffects(0)

	c.Insert(1, 7, 0, effectState(1), 1)
	c.Insert(1, 7, 42, effectState(2), 1)

	assert.True(t, c.Has(1, 7, 0))
	assert.True(t, c.Has(1, 7, 42))
	assert.False(t, c.Has(1, 7, 5))
	assert.True(t, c.HasAny(1, 7))
	assert.False(t, c.HasAny(1, 8))
	assert.False(t, c.HasAny(2, 7))

	s, ok := c.Get(1, 7, 42)
	require.True(t, ok)
	assert.Equal(t, effectState(2), s)

	// Экземпляры с разными дискриминантами независимы
	c.Remove(1, 7, 0, 2)
	assert.False(t, c.Has(1, 7, 0))
	assert.True(t, c.Has(1, 7, 42))
}

func TestEffectsInsertSameStateNoChange(t *testing.T) {
	c := NewEffects(0)

	c.Insert(1, 7, 0, effectState(1), 1)
	c.Insert(1, 7, 0, effectState(1), 2)

	assert.Len(t, c.changes, 1, "повторная вставка того же состояния не попадает в журнал")

	c.Insert(1, 7, 0, effectState(9), 3)
	assert.Len(t, c.changes, 2)
}

func TestEffectsRemoveAny(t *testing.T) {
	c := NewEffects(0)

	c.Insert(1, 7, 0, effectState(1), 1)
	c.Insert(1, 7, 42, effectState(2), 1)
	c.Insert(1, 8, 0, effectState(3), 1)

	c.RemoveAny(1, 7, 2)

	assert.False(t, c.HasAny(1, 7))
	assert.True(t, c.Has(1, 8, 0))
}

func TestEffectsRemoveActor(t *testing.T) {
	c := NewEffects(0)

	c.Insert(1, 7, 0, effectState(1), 1)
	c.Insert(1, 8, 0, effectState(2), 1)
	c.Insert(2, 7, 0, effectState(3), 1)

	c.RemoveActor(1, 2)

	assert.False(t, c.HasAny(1, 7))
	assert.False(t, c.HasAny(1, 8))
	assert.True(t, c.Has(2, 7, 0))
}

type effectEntry struct {
	key   EffectKey
	state *EffectState
}

func decodeEffectsFull(t *testing.T, r *pack.Reader) []effectEntry {
	t.Helper()

	tag, err := r.ReadU8()
	require.NoError(t, err)
	require.Equal(t, sectionFull, tag)

	count, err := r.ReadUvarint()
	require.NoError(t, err)

	out := make([]effectEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		key, err := readEffectKey(r)
		require.NoError(t, err)
		var s EffectState
		require.NoError(t, r.ReadRaw(s[:]))
		out = append(out, effectEntry{key: key, state: &s})
	}
	return out
}

func decodeEffectsChanges(t *testing.T, r *pack.Reader) []effectEntry {
	t.Helper()

	tag, err := r.ReadU8()
	require.NoError(t, err)
	require.Equal(t, sectionChange, tag)

	count, err := r.ReadUvarint()
	require.NoError(t, err)

	out := make([]effectEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		key, err := readEffectKey(r)
		require.NoError(t, err)
		present, err := r.ReadBool()
		require.NoError(t, err)
		entry := effectEntry{key: key}
		if present {
			var s EffectState
			require.NoError(t, r.ReadRaw(s[:]))
			entry.state = &s
		}
		out = append(out, entry)
	}
	return out
}

func readEffectKey(r *pack.Reader) (EffectKey, error) {
	var k EffectKey
	a, err := r.ReadUvarint()
	if err != nil {
		return k, err
	}
	e, err := r.ReadUvarint()
	if err != nil {
		return k, err
	}
	d, err := r.ReadUvarint()
	if err != nil {
		return k, err
	}
	k.Actor = entity.Actor(a)
	k.Effect = entity.Effect(e)
	k.Discriminant = entity.EffectDiscriminant(d)
	return k, nil
}

func TestEffectsPackFull(t *testing.T) {
	c := NewEffects(0)

	c.Insert(1, 7, 0, effectState(1), 1)
	c.Insert(1, 8, 0, effectState(2), 1)
	c.Insert(2, 7, 0, effectState(3), 1)

	full := NewSet()
	full.Add(1)

	packer := messages.NewStatePacker()
	c.PackFull(packer, full)

	got := decodeEffectsFull(t, packSection(t, packer, 0))
	require.Len(t, got, 2)
	// Отсортировано по ключу
	assert.Equal(t, EffectKey{Actor: 1, Effect: 7}, got[0].key)
	assert.Equal(t, EffectKey{Actor: 1, Effect: 8}, got[1].key)
	assert.Equal(t, effectState(1), *got[0].state)
}

func TestEffectsPackChangesDelta(t *testing.T) {
	c := NewEffects(0)

	c.Insert(1, 7, 0, effectState(1), 1)
	c.Insert(2, 7, 0, effectState(2), 1)

	// После подтверждённого снапшота: новый эффект и удаление старого
	c.Insert(1, 8, 0, effectState(3), 5)
	c.Remove(2, 7, 0, 6)

	partial := NewSet()
	partial.Add(1)
	partial.Add(2)

	packer := messages.NewStatePacker()
	c.PackChanges(packer, 7, 4, NewSet(), partial)

	got := decodeEffectsChanges(t, packSection(t, packer, 0))
	require.Len(t, got, 2)

	assert.Equal(t, EffectKey{Actor: 1, Effect: 8}, got[0].key)
	require.NotNil(t, got[0].state)
	assert.Equal(t, effectState(3), *got[0].state)

	// Тумбстоун удалённого экземпляра
	assert.Equal(t, EffectKey{Actor: 2, Effect: 7}, got[1].key)
	assert.Nil(t, got[1].state)
}

func TestEffectsPackChangesConfirmedCutoff(t *testing.T) {
	c := NewEffects(0)

	c.Insert(1, 7, 0, effectState(1), 3)

	partial := NewSet()
	partial.Add(1)

	packer := messages.NewStatePacker()
	// Клиент уже подтвердил снапшот 3, изменение не переотправляется
	c.PackChanges(packer, 5, 3, NewSet(), partial)

	got := decodeEffectsChanges(t, packSection(t, packer, 0))
	assert.Empty(t, got)
}

func TestEffectsPackChangesFullSetWins(t *testing.T) {
	c := NewEffects(0)

	c.Insert(1, 7, 0, effectState(1), 1)

	full := NewSet()
	full.Add(1)
	partial := NewSet()
	partial.Add(1)

	packer := messages.NewStatePacker()
	// Актёр в множестве полной отправки: всё его состояние уходит
	// независимо от подтверждённого снапшота
	c.PackChanges(packer, 5, 4, full, partial)

	got := decodeEffectsChanges(t, packSection(t, packer, 0))
	require.Len(t, got, 1)
	assert.Equal(t, EffectKey{Actor: 1, Effect: 7}, got[0].key)
	require.NotNil(t, got[0].state)
}
