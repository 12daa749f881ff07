package actor

import (
	"sort"

	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/messages"
	"github.com/voxbrix/voxbrix-server/internal/pack"
)

// EffectState — до 16 байт данных экземпляра эффекта,
// интерпретируемых обработчиком эффекта
type EffectState [16]byte

// EffectKey — ключ экземпляра эффекта: цель, эффект и дискриминант
// (источник). Дискриминант позволяет одинаковым эффектам от разных
// источников сосуществовать на одной цели.
type EffectKey struct {
	Actor        entity.Actor
	Effect       entity.Effect
	Discriminant entity.EffectDiscriminant
}

func (k EffectKey) less(o EffectKey) bool {
	if k.Actor != o.Actor {
		return k.Actor < o.Actor
	}
	if k.Effect != o.Effect {
		return k.Effect < o.Effect
	}
	return k.Discriminant < o.Discriminant
}

type effectChange struct {
	snapshot entity.ServerSnapshot
	key      EffectKey
}

// Effects — реплицируемый компонент эффектов актёров.
// Журнал изменений хранит ключи в порядке снапшотов.
type Effects struct {
	update  entity.Update
	storage map[EffectKey]EffectState
	changes []effectChange

	keys []EffectKey
}

// NewEffects создаёт компонент, привязанный к секции update
func NewEffects(update entity.Update) *Effects {
	return &Effects{
		update:  update,
		storage: make(map[EffectKey]EffectState),
	}
}

// Has проверяет наличие конкретного экземпляра эффекта
func (c *Effects) Has(a entity.Actor, e entity.Effect, d entity.EffectDiscriminant) bool {
	_, ok := c.storage[EffectKey{Actor: a, Effect: e, Discriminant: d}]
	return ok
}

// HasAny проверяет наличие эффекта с любым дискриминантом
func (c *Effects) HasAny(a entity.Actor, e entity.Effect) bool {
	for k := range c.storage {
		if k.Actor == a && k.Effect == e {
			return true
		}
	}
	return false
}

// Insert сохраняет экземпляр эффекта
func (c *Effects) Insert(
	a entity.Actor,
	e entity.Effect,
	d entity.EffectDiscriminant,
	state EffectState,
	snapshot entity.ServerSnapshot,
) {
	key := EffectKey{Actor: a, Effect: e, Discriminant: d}

	prev, existed := c.storage[key]
	if existed && prev == state {
		return
	}

	c.storage[key] = state
	c.changes = append(c.changes, effectChange{snapshot: snapshot, key: key})
}

// Get возвращает состояние экземпляра эффекта
func (c *Effects) Get(a entity.Actor, e entity.Effect, d entity.EffectDiscriminant) (EffectState, bool) {
	s, ok := c.storage[EffectKey{Actor: a, Effect: e, Discriminant: d}]
	return s, ok
}

// Remove удаляет конкретный экземпляр эффекта
func (c *Effects) Remove(
	a entity.Actor,
	e entity.Effect,
	d entity.EffectDiscriminant,
	snapshot entity.ServerSnapshot,
) {
	key := EffectKey{Actor: a, Effect: e, Discriminant: d}
	if _, ok := c.storage[key]; ok {
		delete(c.storage, key)
		c.changes = append(c.changes, effectChange{snapshot: snapshot, key: key})
	}
}

// RemoveAny удаляет все экземпляры эффекта с цели
func (c *Effects) RemoveAny(a entity.Actor, e entity.Effect, snapshot entity.ServerSnapshot) {
	for k := range c.storage {
		if k.Actor == a && k.Effect == e {
			delete(c.storage, k)
			c.changes = append(c.changes, effectChange{snapshot: snapshot, key: k})
		}
	}
}

// RemoveActor удаляет все эффекты актёра
func (c *Effects) RemoveActor(a entity.Actor, snapshot entity.ServerSnapshot) {
	for k := range c.storage {
		if k.Actor == a {
			delete(c.storage, k)
			c.changes = append(c.changes, effectChange{snapshot: snapshot, key: k})
		}
	}
}

// Each обходит все экземпляры, остановка по false
func (c *Effects) Each(f func(EffectKey, EffectState) bool) {
	for k, s := range c.storage {
		if !f(k, s) {
			return
		}
	}
}

// Update заменяет состояние существующего экземпляра
func (c *Effects) Update(key EffectKey, state EffectState, snapshot entity.ServerSnapshot) {
	c.Insert(key.Actor, key.Effect, key.Discriminant, state, snapshot)
}

func encodeEffectKey(b *pack.Buffer, k EffectKey) {
	b.WriteUvarint(uint64(k.Actor))
	b.WriteUvarint(uint64(k.Effect))
	b.WriteUvarint(uint64(k.Discriminant))
}

// PackFull пишет все эффекты актёров из actorsFull
func (c *Effects) PackFull(packer *messages.StatePacker, actorsFull Set) {
	buf := packer.GetBuffer(c.update)
	buf.WriteU8(sectionFull)

	c.keys = c.keys[:0]
	for k := range c.storage {
		if actorsFull.Has(k.Actor) {
			c.keys = append(c.keys, k)
		}
	}
	sort.Slice(c.keys, func(i, j int) bool { return c.keys[i].less(c.keys[j]) })

	buf.WriteUvarint(uint64(len(c.keys)))
	for _, k := range c.keys {
		encodeEffectKey(buf, k)
		state := c.storage[k]
		buf.WriteRaw(state[:])
	}
}

// PackChanges пишет дельту эффектов: изменения актёров из
// actorsPartial позже lastConfirmedSnapshot и полное состояние
// актёров из actorsFull
func (c *Effects) PackChanges(
	packer *messages.StatePacker,
	snapshot entity.ServerSnapshot,
	lastConfirmedSnapshot entity.ServerSnapshot,
	actorsFull Set,
	actorsPartial Set,
) {
	drop := 0
	for drop < len(c.changes) &&
		uint64(snapshot-c.changes[drop].snapshot) > entity.MaxSnapshotDiff {
		drop++
	}
	if drop > 0 {
		c.changes = append(c.changes[:0], c.changes[drop:]...)
	}

	buf := packer.GetBuffer(c.update)
	buf.WriteU8(sectionChange)

	seen := make(map[EffectKey]struct{})
	c.keys = c.keys[:0]

	for k := range c.storage {
		if actorsFull.Has(k.Actor) {
			c.keys = append(c.keys, k)
			seen[k] = struct{}{}
		}
	}

	for i := len(c.changes) - 1; i >= 0; i-- {
		ch := c.changes[i]
		if ch.snapshot <= lastConfirmedSnapshot {
			break
		}
		if !actorsPartial.Has(ch.key.Actor) || actorsFull.Has(ch.key.Actor) {
			continue
		}
		if _, ok := seen[ch.key]; ok {
			continue
		}
		seen[ch.key] = struct{}{}
		c.keys = append(c.keys, ch.key)
	}

	sort.Slice(c.keys, func(i, j int) bool { return c.keys[i].less(c.keys[j]) })

	buf.WriteUvarint(uint64(len(c.keys)))
	for _, k := range c.keys {
		encodeEffectKey(buf, k)
		if state, ok := c.storage[k]; ok {
			buf.WriteBool(true)
			buf.WriteRaw(state[:])
		} else {
			buf.WriteBool(false)
		}
	}
}
