package actor

import (
	"sort"

	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/messages"
	"github.com/voxbrix/voxbrix-server/internal/pack"
)

// Теги секции компонента в конверте State
const (
	sectionFull uint8 = iota
	sectionChange
)

// Packable — компонент актёра, реплицируемый клиентам.
//
// Хранит текущее значение на актёра и снапшот последнего изменения.
// Изменения старше entity.MaxSnapshotDiff выбывают из журнала: такие
// актёры при отправке получают полное состояние вместо дельты.
type Packable[T comparable] struct {
	update             entity.Update
	codec              Codec[T]
	lastPackedSnapshot entity.ServerSnapshot
	changes            map[entity.Actor]entity.ServerSnapshot
	storage            map[entity.Actor]T

	keys []entity.Actor // переиспользуемый буфер сортировки
}

// NewPackable создаёт компонент, привязанный к секции update
func NewPackable[T comparable](update entity.Update, codec Codec[T]) *Packable[T] {
	return &Packable[T]{
		update:  update,
		codec:   codec,
		changes: make(map[entity.Actor]entity.ServerSnapshot),
		storage: make(map[entity.Actor]T),
	}
}

// Insert сохраняет значение. Журнал изменений пополняется только
// если значение отличается от прежнего.
func (c *Packable[T]) Insert(a entity.Actor, v T, snapshot entity.ServerSnapshot) (T, bool) {
	prev, existed := c.storage[a]
	c.storage[a] = v

	if !existed || prev != v {
		c.changes[a] = snapshot
	}

	return prev, existed
}

// Get возвращает значение актёра
func (c *Packable[T]) Get(a entity.Actor) (T, bool) {
	v, ok := c.storage[a]
	return v, ok
}

// Remove удаляет значение актёра. Удаление — тоже изменение,
// клиенты получат его как дельту-тумбстоун.
func (c *Packable[T]) Remove(a entity.Actor, snapshot entity.ServerSnapshot) {
	if _, ok := c.storage[a]; ok {
		delete(c.storage, a)
		c.changes[a] = snapshot
	}
}

// Each обходит все пары, остановка по false
func (c *Packable[T]) Each(f func(entity.Actor, T) bool) {
	for a, v := range c.storage {
		if !f(a, v) {
			return
		}
	}
}

// UnpackPlayer применяет присланное клиентом значение его собственного
// актёра из распакованного конверта State
func (c *Packable[T]) UnpackPlayer(
	playerActor entity.Actor,
	updates map[entity.Update][]byte,
	snapshot entity.ServerSnapshot,
) {
	data, ok := updates[c.update]
	if !ok {
		return
	}

	r := pack.NewReader(data)

	present, err := r.ReadBool()
	if err != nil {
		return
	}

	if !present {
		c.Remove(playerActor, snapshot)
		return
	}

	v, err := c.codec.Decode(r)
	if err != nil {
		return
	}

	c.Insert(playerActor, v, snapshot)
}

// sortedKeys сортирует актёров по возрастанию для детерминированной
// упаковки
func (c *Packable[T]) sortedKeys(set Set, skip *entity.Actor) []entity.Actor {
	c.keys = c.keys[:0]
	for a := range set {
		if skip != nil && a == *skip {
			continue
		}
		c.keys = append(c.keys, a)
	}
	sort.Slice(c.keys, func(i, j int) bool { return c.keys[i] < c.keys[j] })
	return c.keys
}

// PackFull пишет полное состояние для actorsFull в секцию компонента.
// playerActor (если не nil) пропускается: клиент владеет своим актёром.
func (c *Packable[T]) PackFull(
	packer *messages.StatePacker,
	playerActor *entity.Actor,
	actorsFull Set,
) {
	buf := packer.GetBuffer(c.update)
	buf.WriteU8(sectionFull)

	keys := c.sortedKeys(actorsFull, playerActor)

	count := 0
	for _, a := range keys {
		if _, ok := c.storage[a]; ok {
			count++
		}
	}

	buf.WriteUvarint(uint64(count))
	for _, a := range keys {
		v, ok := c.storage[a]
		if !ok {
			continue
		}
		buf.WriteUvarint(uint64(a))
		c.codec.Encode(buf, v)
	}
}

// PackChanges пишет дельту: изменения actorsPartial позже
// clientLastSnapshot плюс полное состояние actorsFull.
// Отсутствующее значение кодируется тумбстоуном.
func (c *Packable[T]) PackChanges(
	packer *messages.StatePacker,
	snapshot entity.ServerSnapshot,
	clientLastSnapshot entity.ServerSnapshot,
	playerActor *entity.Actor,
	actorsFull Set,
	actorsPartial Set,
) {
	// Журнал усекается один раз за тик
	if snapshot > c.lastPackedSnapshot {
		for a, changeSnapshot := range c.changes {
			if uint64(snapshot-changeSnapshot) > entity.MaxSnapshotDiff {
				delete(c.changes, a)
			}
		}
		c.lastPackedSnapshot = snapshot
	}

	buf := packer.GetBuffer(c.update)
	buf.WriteU8(sectionChange)

	c.keys = c.keys[:0]
	for a := range actorsPartial {
		if playerActor != nil && a == *playerActor {
			continue
		}
		if actorsFull.Has(a) {
			continue
		}
		changeSnapshot, ok := c.changes[a]
		if !ok || changeSnapshot <= clientLastSnapshot {
			continue
		}
		c.keys = append(c.keys, a)
	}
	for a := range actorsFull {
		if playerActor != nil && a == *playerActor {
			continue
		}
		c.keys = append(c.keys, a)
	}
	sort.Slice(c.keys, func(i, j int) bool { return c.keys[i] < c.keys[j] })

	buf.WriteUvarint(uint64(len(c.keys)))
	for _, a := range c.keys {
		buf.WriteUvarint(uint64(a))
		if v, ok := c.storage[a]; ok {
			buf.WriteBool(true)
			c.codec.Encode(buf, v)
		} else {
			buf.WriteBool(false)
		}
	}
}
