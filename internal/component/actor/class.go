package actor

import (
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/pack"
)

// ClassCodec — сетевой кодек класса актёра
var ClassCodec = Codec[entity.ActorClass]{
	Encode: func(b *pack.Buffer, v entity.ActorClass) {
		b.WriteUvarint(uint64(v))
	},
	Decode: func(r *pack.Reader) (entity.ActorClass, error) {
		v, err := r.ReadUvarint()
		return entity.ActorClass(v), err
	},
}

// Class — реплицируемый компонент класса актёра
type Class = Packable[entity.ActorClass]

// NewClass создаёт компонент класса
func NewClass(update entity.Update) *Class {
	return NewPackable(update, ClassCodec)
}
