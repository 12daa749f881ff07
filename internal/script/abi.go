package script

import (
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/messages"
	"github.com/voxbrix/voxbrix-server/internal/pack"
)

// Типы запросов и ответов хост-вызовов. Кодируются через pack,
// госту передаются сырыми байтами.

// TargetBlockRequest — запрос луча: откуда, куда и как далеко
type TargetBlockRequest struct {
	Chunk       entity.Chunk
	Offset      [3]float32
	Direction   [3]float32
	MaxDistance float32
}

func (m *TargetBlockRequest) Encode(b *pack.Buffer) {
	messages.EncodeChunk(b, m.Chunk)
	for _, v := range m.Offset {
		b.WriteF32(v)
	}
	for _, v := range m.Direction {
		b.WriteF32(v)
	}
	b.WriteF32(m.MaxDistance)
}

func (m *TargetBlockRequest) Decode(r *pack.Reader) error {
	var err error
	if m.Chunk, err = messages.DecodeChunk(r); err != nil {
		return err
	}
	for i := range m.Offset {
		if m.Offset[i], err = r.ReadF32(); err != nil {
			return err
		}
	}
	for i := range m.Direction {
		if m.Direction[i], err = r.ReadF32(); err != nil {
			return err
		}
	}
	m.MaxDistance, err = r.ReadF32()
	return err
}

// TargetBlockResponse — найденный блок и индекс стороны входа луча
// (0..5: -x, +x, -y, +y, -z, +z)
type TargetBlockResponse struct {
	Chunk entity.Chunk
	Block entity.Block
	Side  uint8
}

func (m *TargetBlockResponse) Encode(b *pack.Buffer) {
	messages.EncodeChunk(b, m.Chunk)
	b.WriteUvarint(uint64(m.Block))
	b.WriteU8(m.Side)
}

func (m *TargetBlockResponse) Decode(r *pack.Reader) error {
	var err error
	if m.Chunk, err = messages.DecodeChunk(r); err != nil {
		return err
	}
	block, err := r.ReadUvarint()
	if err != nil {
		return err
	}
	m.Block = entity.Block(block)
	m.Side, err = r.ReadU8()
	return err
}

// SetBlockRequest — запрос записи класса блока
type SetBlockRequest struct {
	Chunk      entity.Chunk
	Block      entity.Block
	BlockClass entity.BlockClass
}

func (m *SetBlockRequest) Encode(b *pack.Buffer) {
	messages.EncodeChunk(b, m.Chunk)
	b.WriteUvarint(uint64(m.Block))
	b.WriteUvarint(uint64(m.BlockClass))
}

func (m *SetBlockRequest) Decode(r *pack.Reader) error {
	var err error
	if m.Chunk, err = messages.DecodeChunk(r); err != nil {
		return err
	}
	block, err := r.ReadUvarint()
	if err != nil {
		return err
	}
	m.Block = entity.Block(block)
	class, err := r.ReadUvarint()
	if err != nil {
		return err
	}
	m.BlockClass = entity.BlockClass(class)
	return nil
}

// BroadcastActionRequest — запрос рассылки действия игрокам,
// в чей обзор попадает чанк актёра-источника. В конверт State
// каждого получателя попадает действие с полезной нагрузкой
// uvarint(SourceActor) ‖ bytes(Payload).
type BroadcastActionRequest struct {
	Action      entity.Action
	SourceActor entity.Actor
	Payload     []byte
}

func (m *BroadcastActionRequest) Encode(b *pack.Buffer) {
	b.WriteUvarint(uint64(m.Action))
	b.WriteUvarint(uint64(m.SourceActor))
	b.WriteBytes(m.Payload)
}

func (m *BroadcastActionRequest) Decode(r *pack.Reader) error {
	action, err := r.ReadUvarint()
	if err != nil {
		return err
	}
	m.Action = entity.Action(action)
	src, err := r.ReadUvarint()
	if err != nil {
		return err
	}
	m.SourceActor = entity.Actor(src)
	m.Payload, err = r.ReadBytes()
	return err
}

// EffectInput — вход скриптового обработчика эффекта
type EffectInput struct {
	Effect       entity.Effect
	Actor        entity.Actor
	Discriminant uint64
	Snapshot     uint64
}

func (m *EffectInput) Encode(b *pack.Buffer) {
	b.WriteUvarint(uint64(m.Effect))
	b.WriteUvarint(uint64(m.Actor))
	b.WriteUvarint(m.Discriminant)
	b.WriteUvarint(m.Snapshot)
}

func (m *EffectInput) Decode(r *pack.Reader) error {
	effect, err := r.ReadUvarint()
	if err != nil {
		return err
	}
	m.Effect = entity.Effect(effect)
	a, err := r.ReadUvarint()
	if err != nil {
		return err
	}
	m.Actor = entity.Actor(a)
	if m.Discriminant, err = r.ReadUvarint(); err != nil {
		return err
	}
	m.Snapshot, err = r.ReadUvarint()
	return err
}

// ActionInput — вход скриптового обработчика действия
type ActionInput struct {
	Action      entity.Action
	SourceActor entity.Actor
	Snapshot    uint64
	Payload     []byte
}

func (m *ActionInput) Encode(b *pack.Buffer) {
	b.WriteUvarint(uint64(m.Action))
	b.WriteUvarint(uint64(m.SourceActor))
	b.WriteUvarint(m.Snapshot)
	b.WriteBytes(m.Payload)
}

func (m *ActionInput) Decode(r *pack.Reader) error {
	action, err := r.ReadUvarint()
	if err != nil {
		return err
	}
	m.Action = entity.Action(action)
	src, err := r.ReadUvarint()
	if err != nil {
		return err
	}
	m.SourceActor = entity.Actor(src)
	if m.Snapshot, err = r.ReadUvarint(); err != nil {
		return err
	}
	m.Payload, err = r.ReadBytes()
	return err
}
