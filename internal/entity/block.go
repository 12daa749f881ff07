package entity

import "github.com/voxbrix/voxbrix-server/internal/vec"

// DefaultBlocksInChunkEdge — размер ребра чанка в блоках по умолчанию
const DefaultBlocksInChunkEdge = 32

// BlocksInChunkEdge — действующий размер ребра чанка.
// Устанавливается из конфигурации один раз при старте.
var BlocksInChunkEdge int32 = DefaultBlocksInChunkEdge

// BlocksInChunk возвращает количество блоков в чанке (E³)
func BlocksInChunk() int {
	e := int(BlocksInChunkEdge)
	return e * e * e
}

// Block — индекс блока внутри чанка, в диапазоне [0, E³).
// Порядок осей: z, y, x (x — младшая).
type Block uint32

// BlockFromCoords собирает индекс блока из локальных координат чанка
func BlockFromCoords(x, y, z int32) Block {
	e := BlocksInChunkEdge
	return Block(z*e*e + y*e + x)
}

// Coords раскладывает индекс блока в локальные координаты чанка
func (b Block) Coords() (x, y, z int32) {
	e := int32(BlocksInChunkEdge)
	i := int32(b)
	x = i % e
	i /= e
	y = i % e
	z = i / e
	return
}

// BlockFromChunkOffset переводит смещение блока относительно чанка
// (возможно, выходящее за его пределы) в пару (чанк, блок).
// Возвращает false при переполнении координат мира.
func BlockFromChunkOffset(chunk Chunk, offset vec.Vec3) (Chunk, Block, bool) {
	e := BlocksInChunkEdge

	div := func(v int32) (int32, int32) {
		// Деление с округлением вниз для отрицательных смещений
		q := v / e
		r := v % e
		if r < 0 {
			q--
			r += e
		}
		return q, r
	}

	cx, bx := div(offset.X)
	cy, by := div(offset.Y)
	cz, bz := div(offset.Z)

	shifted := chunk.SaturatingAdd(vec.Vec3{X: cx, Y: cy, Z: cz})

	// Насыщение означает выход за границы мира
	if !shifted.Position.Equals(chunk.Position.Add(vec.Vec3{X: cx, Y: cy, Z: cz})) {
		return Chunk{}, 0, false
	}

	return shifted, BlockFromCoords(bx, by, bz), true
}
