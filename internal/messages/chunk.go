package messages

import (
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/pack"
	"github.com/voxbrix/voxbrix-server/internal/vec"
)

// EncodeChunk записывает координаты чанка
func EncodeChunk(b *pack.Buffer, c entity.Chunk) {
	b.WriteVarint(int64(c.Position.X))
	b.WriteVarint(int64(c.Position.Y))
	b.WriteVarint(int64(c.Position.Z))
	b.WriteUvarint(uint64(c.Dimension))
}

// DecodeChunk читает координаты чанка
func DecodeChunk(r *pack.Reader) (entity.Chunk, error) {
	var c entity.Chunk

	x, err := r.ReadVarint()
	if err != nil {
		return c, err
	}
	y, err := r.ReadVarint()
	if err != nil {
		return c, err
	}
	z, err := r.ReadVarint()
	if err != nil {
		return c, err
	}
	dim, err := r.ReadUvarint()
	if err != nil {
		return c, err
	}

	c.Position = vec.Vec3{X: int32(x), Y: int32(y), Z: int32(z)}
	c.Dimension = uint32(dim)
	return c, nil
}

// ChunkData — содержимое чанка целиком: классы блоков в сжатом
// конверте (pack.Compress поверх uvarint-списка длиной E^3)
type ChunkData struct {
	Chunk        entity.Chunk
	BlockClasses []byte
}

func (m *ChunkData) Encode(b *pack.Buffer) {
	EncodeChunk(b, m.Chunk)
	b.WriteBytes(m.BlockClasses)
}

func (m *ChunkData) Decode(r *pack.Reader) error {
	var err error
	if m.Chunk, err = DecodeChunk(r); err != nil {
		return err
	}
	m.BlockClasses, err = r.ReadBytes()
	return err
}

// EncodeBlockClasses сжимает классы блоков чанка в конверт
// для ChunkData
func EncodeBlockClasses(classes []entity.BlockClass) []byte {
	var buf pack.Buffer
	for _, c := range classes {
		buf.WriteUvarint(uint64(c))
	}
	return pack.Compress(buf.Bytes())
}

// DecodeBlockClasses разворачивает конверт ChunkData в классы блоков
func DecodeBlockClasses(envelope []byte) ([]entity.BlockClass, error) {
	raw, err := pack.Decompress(envelope)
	if err != nil {
		return nil, err
	}
	r := pack.NewReader(raw)
	classes := make([]entity.BlockClass, entity.BlocksInChunk())
	for i := range classes {
		v, err := r.ReadUvarint()
		if err != nil {
			return nil, err
		}
		classes[i] = entity.BlockClass(v)
	}
	return classes, nil
}

// BlockChange — изменение одного блока
type BlockChange struct {
	Block      entity.Block
	BlockClass entity.BlockClass
}

// ChunkBlockChanges — изменения блоков одного чанка
type ChunkBlockChanges struct {
	Chunk   entity.Chunk
	Changes []BlockChange
}

// ChunkChanges — дельты блоков за тик, сгруппированные по чанкам
type ChunkChanges struct {
	Chunks []ChunkBlockChanges
}

func (m *ChunkChanges) Encode(b *pack.Buffer) {
	b.WriteUvarint(uint64(len(m.Chunks)))
	for _, cc := range m.Chunks {
		EncodeChunk(b, cc.Chunk)
		b.WriteUvarint(uint64(len(cc.Changes)))
		for _, ch := range cc.Changes {
			b.WriteUvarint(uint64(ch.Block))
			b.WriteUvarint(uint64(ch.BlockClass))
		}
	}
}

func (m *ChunkChanges) Decode(r *pack.Reader) error {
	count, err := r.ReadUvarint()
	if err != nil {
		return err
	}
	if count > uint64(r.Remaining()) {
		return pack.ErrCorrupted
	}
	m.Chunks = make([]ChunkBlockChanges, 0, count)
	for i := uint64(0); i < count; i++ {
		var cc ChunkBlockChanges
		if cc.Chunk, err = DecodeChunk(r); err != nil {
			return err
		}
		n, err := r.ReadUvarint()
		if err != nil {
			return err
		}
		if n > uint64(r.Remaining()) {
			return pack.ErrCorrupted
		}
		cc.Changes = make([]BlockChange, 0, n)
		for j := uint64(0); j < n; j++ {
			block, err := r.ReadUvarint()
			if err != nil {
				return err
			}
			class, err := r.ReadUvarint()
			if err != nil {
				return err
			}
			cc.Changes = append(cc.Changes, BlockChange{
				Block:      entity.Block(block),
				BlockClass: entity.BlockClass(class),
			})
		}
		m.Chunks = append(m.Chunks, cc)
	}
	return nil
}

// AlterBlock — прямой запрос клиента на изменение блока.
// Сервер проверяет, что чанк активен, прежде чем применять.
type AlterBlock struct {
	Chunk      entity.Chunk
	Block      entity.Block
	BlockClass entity.BlockClass
}

func (m *AlterBlock) Encode(b *pack.Buffer) {
	EncodeChunk(b, m.Chunk)
	b.WriteUvarint(uint64(m.Block))
	b.WriteUvarint(uint64(m.BlockClass))
}

func (m *AlterBlock) Decode(r *pack.Reader) error {
	var err error
	if m.Chunk, err = DecodeChunk(r); err != nil {
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
