package entity

import (
	"encoding/binary"
	"sort"

	"github.com/voxbrix/voxbrix-server/internal/vec"
)

// ChunkKeySize — размер ключа чанка в базе данных
const ChunkKeySize = 16

// Chunk адресует кубический участок мира: позиция в целочисленных
// координатах плюс индекс измерения
type Chunk struct {
	Position  vec.Vec3
	Dimension uint32
}

// Less задает полный порядок чанков: (измерение, z, y, x)
func (c Chunk) Less(other Chunk) bool {
	if c.Dimension != other.Dimension {
		return c.Dimension < other.Dimension
	}
	if c.Position.Z != other.Position.Z {
		return c.Position.Z < other.Position.Z
	}
	if c.Position.Y != other.Position.Y {
		return c.Position.Y < other.Position.Y
	}
	return c.Position.X < other.Position.X
}

// saturatingAdd складывает координаты с насыщением на границах int32
func saturatingAdd(a, b int32) int32 {
	s := int64(a) + int64(b)
	if s > int64(^uint32(0)>>1) {
		return int32(^uint32(0) >> 1)
	}
	if s < -int64(^uint32(0)>>1)-1 {
		return -int32(^uint32(0)>>1) - 1
	}
	return int32(s)
}

// SaturatingAdd смещает чанк на offset с насыщением на границах мира
func (c Chunk) SaturatingAdd(offset vec.Vec3) Chunk {
	return Chunk{
		Position: vec.Vec3{
			X: saturatingAdd(c.Position.X, offset.X),
			Y: saturatingAdd(c.Position.Y, offset.Y),
			Z: saturatingAdd(c.Position.Z, offset.Z),
		},
		Dimension: c.Dimension,
	}
}

// Radius возвращает L∞-шар чанков радиуса radius вокруг данного
func (c Chunk) Radius(radius int32) ChunkRadius {
	return ChunkRadius{
		Dimension: c.Dimension,
		Min: vec.Vec3{
			X: saturatingAdd(c.Position.X, -radius),
			Y: saturatingAdd(c.Position.Y, -radius),
			Z: saturatingAdd(c.Position.Z, -radius),
		},
		Max: vec.Vec3{
			X: saturatingAdd(c.Position.X, radius),
			Y: saturatingAdd(c.Position.Y, radius),
			Z: saturatingAdd(c.Position.Z, radius),
		},
		center: c.Position,
	}
}

// monotonic переводит i32 в u32 с сохранением порядка,
// чтобы побайтовое сравнение ключей совпадало с числовым
func monotonic(v int32) uint32 {
	return uint32(v) ^ 0x80000000
}

func fromMonotonic(v uint32) int32 {
	return int32(v ^ 0x80000000)
}

// ToKey кодирует чанк в ключ фиксированной ширины:
// dimension ‖ z ‖ y ‖ x, big-endian
func (c Chunk) ToKey() [ChunkKeySize]byte {
	var key [ChunkKeySize]byte
	binary.BigEndian.PutUint32(key[0:4], c.Dimension)
	binary.BigEndian.PutUint32(key[4:8], monotonic(c.Position.Z))
	binary.BigEndian.PutUint32(key[8:12], monotonic(c.Position.Y))
	binary.BigEndian.PutUint32(key[12:16], monotonic(c.Position.X))
	return key
}

// ChunkFromKey декодирует чанк из ключа базы данных
func ChunkFromKey(key [ChunkKeySize]byte) Chunk {
	return Chunk{
		Dimension: binary.BigEndian.Uint32(key[0:4]),
		Position: vec.Vec3{
			Z: fromMonotonic(binary.BigEndian.Uint32(key[4:8])),
			Y: fromMonotonic(binary.BigEndian.Uint32(key[8:12])),
			X: fromMonotonic(binary.BigEndian.Uint32(key[12:16])),
		},
	}
}

// ChunkRadius — прямоугольная область чанков одного измерения
type ChunkRadius struct {
	Dimension uint32
	Min       vec.Vec3
	Max       vec.Vec3

	center vec.Vec3
}

// IsWithin проверяет, попадает ли чанк в область
func (r ChunkRadius) IsWithin(c Chunk) bool {
	return c.Dimension == r.Dimension &&
		c.Position.X >= r.Min.X && c.Position.X <= r.Max.X &&
		c.Position.Y >= r.Min.Y && c.Position.Y <= r.Max.Y &&
		c.Position.Z >= r.Min.Z && c.Position.Z <= r.Max.Z
}

// Chunks возвращает все чанки области в порядке обхода z, y, x.
// Границы области могут насыщаться в MaxInt32 на краю мира, поэтому
// обход ведётся по счётчикам, а не по сравнению с Max.
func (r ChunkRadius) Chunks() []Chunk {
	sizeX := int(int64(r.Max.X) - int64(r.Min.X) + 1)
	sizeY := int(int64(r.Max.Y) - int64(r.Min.Y) + 1)
	sizeZ := int(int64(r.Max.Z) - int64(r.Min.Z) + 1)

	out := make([]Chunk, 0, sizeX*sizeY*sizeZ)

	for iz := 0; iz < sizeZ; iz++ {
		for iy := 0; iy < sizeY; iy++ {
			for ix := 0; ix < sizeX; ix++ {
				out = append(out, Chunk{
					Position: vec.Vec3{
						X: r.Min.X + int32(ix),
						Y: r.Min.Y + int32(iy),
						Z: r.Min.Z + int32(iz),
					},
					Dimension: r.Dimension,
				})
			}
		}
	}

	return out
}

// ChunksExpanding возвращает чанки области от центра к краям,
// чтобы ближние чанки уходили клиенту первыми
func (r ChunkRadius) ChunksExpanding() []Chunk {
	out := r.Chunks()

	dist := func(c Chunk) int32 {
		d := func(a, b int32) int32 {
			if a > b {
				return a - b
			}
			return b - a
		}
		dx := d(c.Position.X, r.center.X)
		dy := d(c.Position.Y, r.center.Y)
		dz := d(c.Position.Z, r.center.Z)
		m := dx
		if dy > m {
			m = dy
		}
		if dz > m {
			m = dz
		}
		return m
	}

	sort.SliceStable(out, func(i, j int) bool {
		return dist(out[i]) < dist(out[j])
	})

	return out
}
