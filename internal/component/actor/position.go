package actor

import (
	"sort"

	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/messages"
	"github.com/voxbrix/voxbrix-server/internal/pack"
	"github.com/voxbrix/voxbrix-server/internal/vec"
)

// GlobalPosition — положение актёра: чанк и смещение внутри него.
// Смещение всегда в диапазоне [0, E) по каждой оси, выход за границу
// перебазирует чанк.
type GlobalPosition struct {
	Chunk  entity.Chunk
	Offset vec.Vec3F
}

// PositionCodec — сетевой кодек положения
var PositionCodec = Codec[GlobalPosition]{
	Encode: func(b *pack.Buffer, p GlobalPosition) {
		messages.EncodeChunk(b, p.Chunk)
		b.WriteF32(p.Offset.X)
		b.WriteF32(p.Offset.Y)
		b.WriteF32(p.Offset.Z)
	},
	Decode: func(r *pack.Reader) (GlobalPosition, error) {
		var p GlobalPosition
		var err error
		if p.Chunk, err = messages.DecodeChunk(r); err != nil {
			return p, err
		}
		if p.Offset.X, err = r.ReadF32(); err != nil {
			return p, err
		}
		if p.Offset.Y, err = r.ReadF32(); err != nil {
			return p, err
		}
		p.Offset.Z, err = r.ReadF32()
		return p, err
	},
}

// Velocity — скорость актёра в блоках в секунду
type Velocity struct {
	Vector vec.Vec3F
}

// VelocityCodec — сетевой кодек скорости
var VelocityCodec = Codec[Velocity]{
	Encode: func(b *pack.Buffer, v Velocity) {
		b.WriteF32(v.Vector.X)
		b.WriteF32(v.Vector.Y)
		b.WriteF32(v.Vector.Z)
	},
	Decode: func(r *pack.Reader) (Velocity, error) {
		var v Velocity
		var err error
		if v.Vector.X, err = r.ReadF32(); err != nil {
			return v, err
		}
		if v.Vector.Y, err = r.ReadF32(); err != nil {
			return v, err
		}
		v.Vector.Z, err = r.ReadF32()
		return v, err
	},
}

// Orientation — ориентация актёра, единичный кватернион
type Orientation struct {
	Rotation vec.Quat
}

// OrientationCodec — сетевой кодек ориентации
var OrientationCodec = Codec[Orientation]{
	Encode: func(b *pack.Buffer, o Orientation) {
		b.WriteF32(o.Rotation.X)
		b.WriteF32(o.Rotation.Y)
		b.WriteF32(o.Rotation.Z)
		b.WriteF32(o.Rotation.W)
	},
	Decode: func(r *pack.Reader) (Orientation, error) {
		var o Orientation
		var err error
		if o.Rotation.X, err = r.ReadF32(); err != nil {
			return o, err
		}
		if o.Rotation.Y, err = r.ReadF32(); err != nil {
			return o, err
		}
		if o.Rotation.Z, err = r.ReadF32(); err != nil {
			return o, err
		}
		o.Rotation.W, err = r.ReadF32()
		return o, err
	},
}

// VelocityComponent — реплицируемая скорость по актёрам
type VelocityComponent = Packable[Velocity]

// NewVelocityComponent создаёт компонент скорости
func NewVelocityComponent(update entity.Update) *VelocityComponent {
	return NewPackable(update, VelocityCodec)
}

// OrientationComponent — реплицируемая ориентация по актёрам
type OrientationComponent = Packable[Orientation]

// NewOrientationComponent создаёт компонент ориентации
func NewOrientationComponent(update entity.Update) *OrientationComponent {
	return NewPackable(update, OrientationCodec)
}

// ChunkChange— смена чанка актёром
type ChunkChange struct {
	Snapshot      entity.ServerSnapshot
	Actor         entity.Actor
	PreviousChunk *entity.Chunk // nil для только что созданного актёра
}

// Position — контейнер положения актёров.
//
// Положение определяет, попадает ли актёр в поле зрения игрока,
// поэтому контейнер дополнительно ведёт индекс чанк -> актёры и
// журнал смен чанков, а при упаковке вычисляет множества актёров
// для полной и частичной отправки. Остальные реплицируемые
// компоненты упаковываются по этим множествам.
type Position struct {
	update             entity.Update
	lastPackedSnapshot entity.ServerSnapshot
	changes            map[entity.Actor]entity.ServerSnapshot
	chunkChanges       []ChunkChange
	storage            map[entity.Actor]GlobalPosition
	chunkIndex         map[entity.Chunk]Set

	actorsFull    Set
	actorsPartial Set
	keys          []entity.Actor
}

// NewPosition создаёт контейнер, привязанный к секции update
func NewPosition(update entity.Update) *Position {
	return &Position{
		update:        update,
		changes:       make(map[entity.Actor]entity.ServerSnapshot),
		storage:       make(map[entity.Actor]GlobalPosition),
		chunkIndex:    make(map[entity.Chunk]Set),
		actorsFull:    NewSet(),
		actorsPartial: NewSet(),
	}
}

// Insert сохраняет положение, поддерживая индекс и журналы
func (c *Position) Insert(a entity.Actor, value GlobalPosition, snapshot entity.ServerSnapshot) {
	prev, existed := c.storage[a]
	c.storage[a] = value

	changed := !existed || prev != value
	chunkChanged := !existed || prev.Chunk != value.Chunk

	if !changed {
		return
	}

	c.changes[a] = snapshot

	if chunkChanged {
		var previousChunk *entity.Chunk
		if existed {
			pc := prev.Chunk
			previousChunk = &pc
			if set, ok := c.chunkIndex[pc]; ok {
				delete(set, a)
				if len(set) == 0 {
					delete(c.chunkIndex, pc)
				}
			}
		}

		c.chunkChanges = append(c.chunkChanges, ChunkChange{
			Snapshot:      snapshot,
			Actor:         a,
			PreviousChunk: previousChunk,
		})

		set, ok := c.chunkIndex[value.Chunk]
		if !ok {
			set = NewSet()
			c.chunkIndex[value.Chunk] = set
		}
		set.Add(a)
	}
}

// Get возвращает положение актёра
func (c *Position) Get(a entity.Actor) (GlobalPosition, bool) {
	v, ok := c.storage[a]
	return v, ok
}

// Remove удаляет положение актёра
func (c *Position) Remove(a entity.Actor, snapshot entity.ServerSnapshot) {
	value, ok := c.storage[a]
	if !ok {
		return
	}

	delete(c.storage, a)

	pc := value.Chunk
	c.chunkChanges = append(c.chunkChanges, ChunkChange{
		Snapshot:      snapshot,
		Actor:         a,
		PreviousChunk: &pc,
	})

	if set, ok := c.chunkIndex[pc]; ok {
		delete(set, a)
		if len(set) == 0 {
			delete(c.chunkIndex, pc)
		}
	}

	c.changes[a] = snapshot
}

// Each обходит все пары, остановка по false
func (c *Position) Each(f func(entity.Actor, GlobalPosition) bool) {
	for a, v := range c.storage {
		if !f(a, v) {
			return
		}
	}
}

// ActorsInChunk обходит актёров чанка
func (c *Position) ActorsInChunk(chunk entity.Chunk, f func(entity.Actor) bool) {
	for a := range c.chunkIndex[chunk] {
		if !f(a) {
			return
		}
	}
}

// ChunkChanges возвращает журнал смен чанков, от старых к новым
func (c *Position) ChunkChanges() []ChunkChange {
	return c.chunkChanges
}

// ActorsFullUpdate — актёры для полной отправки, заполняется
// при упаковке этого компонента. Включает актёра игрока.
func (c *Position) ActorsFullUpdate() Set {
	return c.actorsFull
}

// ActorsPartialUpdate — актёры для дельта-отправки, заполняется
// при упаковке этого компонента. Включает актёра игрока.
func (c *Position) ActorsPartialUpdate() Set {
	return c.actorsPartial
}

// UnpackPlayerWith применяет клиентское положение его собственного
// актёра. func получает старое и новое значения до применения —
// для обнаружения смены чанка игроком.
func (c *Position) UnpackPlayerWith(
	playerActor entity.Actor,
	updates map[entity.Update][]byte,
	snapshot entity.ServerSnapshot,
	f func(prev *GlobalPosition, next *GlobalPosition),
) {
	var prev *GlobalPosition
	if v, ok := c.storage[playerActor]; ok {
		prev = &v
	}

	data, ok := updates[c.update]
	if !ok {
		f(prev, nil)
		return
	}

	r := pack.NewReader(data)

	present, err := r.ReadBool()
	if err != nil {
		f(prev, nil)
		return
	}

	if !present {
		f(prev, nil)
		c.Remove(playerActor, snapshot)
		return
	}

	next, err := PositionCodec.Decode(r)
	if err != nil {
		f(prev, nil)
		return
	}

	f(prev, &next)
	c.Insert(playerActor, next, snapshot)
}

// PackFull пишет полное положение актёров из чанков fullChunks и
// запоминает их как множество полной отправки
func (c *Position) PackFull(
	packer *messages.StatePacker,
	playerActor entity.Actor,
	fullChunks []entity.Chunk,
) {
	c.actorsFull.Clear()
	c.actorsPartial.Clear()

	for _, chunk := range fullChunks {
		for a := range c.chunkIndex[chunk] {
			c.actorsFull.Add(a)
		}
	}

	buf := packer.GetBuffer(c.update)
	buf.WriteU8(sectionFull)

	c.keys = c.keys[:0]
	for a := range c.actorsFull {
		if a == playerActor {
			continue
		}
		if _, ok := c.storage[a]; ok {
			c.keys = append(c.keys, a)
		}
	}
	sort.Slice(c.keys, func(i, j int) bool { return c.keys[i] < c.keys[j] })

	buf.WriteUvarint(uint64(len(c.keys)))
	for _, a := range c.keys {
		buf.WriteUvarint(uint64(a))
		PositionCodec.Encode(buf, c.storage[a])
	}
}

// PackChanges пишет дельту положения.
//
// fullChunks — чанки, вошедшие в обзор игрока на этом тике,
// partialChunks — чанки, остающиеся в обзоре. isWithinIntersection
// сообщает, лежит ли чанк в пересечении старого и нового обзора
// (nil считается «вне»). Актёры, вошедшие в пересечение после
// lastServerSnapshot, отправляются полностью; вышедшие — дельтой
// с тумбстоуном.
func (c *Position) PackChanges(
	packer *messages.StatePacker,
	snapshot entity.ServerSnapshot,
	lastServerSnapshot entity.ServerSnapshot,
	playerActor entity.Actor,
	isWithinIntersection func(*entity.Chunk) bool,
	fullChunks []entity.Chunk,
	partialChunks []entity.Chunk,
) {
	// Усечение журналов, один раз за тик
	if snapshot > c.lastPackedSnapshot {
		for a, changeSnapshot := range c.changes {
			if uint64(snapshot-changeSnapshot) > entity.MaxSnapshotDiff {
				delete(c.changes, a)
			}
		}

		drop := 0
		for drop < len(c.chunkChanges) &&
			uint64(snapshot-c.chunkChanges[drop].Snapshot) > entity.MaxSnapshotDiff {
			drop++
		}
		if drop > 0 {
			c.chunkChanges = append(c.chunkChanges[:0], c.chunkChanges[drop:]...)
		}

		c.lastPackedSnapshot = snapshot
	}

	c.actorsFull.Clear()
	c.actorsPartial.Clear()

	// Актёры свежезагруженных чанков
	for _, chunk := range fullChunks {
		for a := range c.chunkIndex[chunk] {
			c.actorsFull.Add(a)
		}
	}

	// Актёры, вошедшие в пересечение обзоров после lastServerSnapshot
	for i := range c.chunkChanges {
		ch := &c.chunkChanges[i]
		if ch.Snapshot <= lastServerSnapshot {
			continue
		}
		if isWithinIntersection(ch.PreviousChunk) {
			continue
		}
		if pos, ok := c.storage[ch.Actor]; ok && isWithinIntersection(&pos.Chunk) {
			c.actorsFull.Add(ch.Actor)
		}
	}

	for _, chunk := range partialChunks {
		for a := range c.chunkIndex[chunk] {
			if !c.actorsFull.Has(a) {
				c.actorsPartial.Add(a)
			}
		}
	}

	// Актёры, покинувшие пересечение: клиент должен получить тумбстоун
	for i := range c.chunkChanges {
		ch := &c.chunkChanges[i]
		if ch.Snapshot <= lastServerSnapshot {
			continue
		}
		if !isWithinIntersection(ch.PreviousChunk) {
			continue
		}
		var currentChunk *entity.Chunk
		if pos, ok := c.storage[ch.Actor]; ok {
			currentChunk = &pos.Chunk
		}
		if !isWithinIntersection(currentChunk) && !c.actorsFull.Has(ch.Actor) {
			c.actorsPartial.Add(ch.Actor)
		}
	}

	buf := packer.GetBuffer(c.update)
	buf.WriteU8(sectionChange)

	c.keys = c.keys[:0]
	for a := range c.actorsPartial {
		if a == playerActor || c.actorsFull.Has(a) {
			continue
		}
		changeSnapshot, ok := c.changes[a]
		if !ok || changeSnapshot <= lastServerSnapshot {
			continue
		}
		c.keys = append(c.keys, a)
	}
	for a := range c.actorsFull {
		if a == playerActor {
			continue
		}
		c.keys = append(c.keys, a)
	}
	sort.Slice(c.keys, func(i, j int) bool { return c.keys[i] < c.keys[j] })

	buf.WriteUvarint(uint64(len(c.keys)))
	for _, a := range c.keys {
		buf.WriteUvarint(uint64(a))
		v, ok := c.storage[a]
		if ok && (c.actorsFull.Has(a) || isWithinIntersection(&v.Chunk)) {
			buf.WriteBool(true)
			PositionCodec.Encode(buf, v)
		} else {
			// Актёр удалён или ушёл из обзора: для клиента он исчез
			buf.WriteBool(false)
		}
	}
}
