package entity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxbrix/voxbrix-server/internal/vec"
)

func TestBlockCoordsRoundTrip(t *testing.T) {
	e := BlocksInChunkEdge
	coords := [][3]int32{
		{0, 0, 0},
		{e - 1, 0, 0},
		{0, e - 1, 0},
		{0, 0, e - 1},
		{e - 1, e - 1, e - 1},
		{1, 2, 3},
	}

	for _, c := range coords {
		b := BlockFromCoords(c[0], c[1], c[2])
		x, y, z := b.Coords()
		assert.Equal(t, c, [3]int32{x, y, z})
	}
}

func TestBlockFromChunkOffsetInside(t *testing.T) {
	chunk := Chunk{Position: vec.Vec3{X: 1, Y: 2, Z: 3}}

	got, block, ok := BlockFromChunkOffset(chunk, vec.Vec3{X: 1, Y: 2, Z: 3})
	require.True(t, ok)
	assert.Equal(t, chunk, got)
	assert.Equal(t, BlockFromCoords(1, 2, 3), block)
}

func TestBlockFromChunkOffsetCrossesChunk(t *testing.T) {
	e := BlocksInChunkEdge
	chunk := Chunk{Position: vec.Vec3{X: 0, Y: 0, Z: 0}}

	// Смещение за правую границу попадает в соседний чанк
	got, block, ok := BlockFromChunkOffset(chunk, vec.Vec3{X: e, Y: 0, Z: 0})
	require.True(t, ok)
	assert.Equal(t, int32(1), got.Position.X)
	assert.Equal(t, BlockFromCoords(0, 0, 0), block)

	// Отрицательное смещение делится с округлением вниз
	got, block, ok = BlockFromChunkOffset(chunk, vec.Vec3{X: -1, Y: 0, Z: 0})
	require.True(t, ok)
	assert.Equal(t, int32(-1), got.Position.X)
	assert.Equal(t, BlockFromCoords(e-1, 0, 0), block)
}

func TestBlockFromChunkOffsetWorldEdge(t *testing.T) {
	chunk := Chunk{Position: vec.Vec3{X: math.MaxInt32}}

	_, _, ok := BlockFromChunkOffset(chunk, vec.Vec3{X: BlocksInChunkEdge})
	assert.False(t, ok)
}
