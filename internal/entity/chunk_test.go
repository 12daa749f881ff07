package entity

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxbrix/voxbrix-server/internal/vec"
)

func TestChunkLessOrder(t *testing.T) {
	a := Chunk{Position: vec.Vec3{X: 5, Y: 0, Z: 0}, Dimension: 0}
	b := Chunk{Position: vec.Vec3{X: -5, Y: 1, Z: 0}, Dimension: 0}
	c := Chunk{Position: vec.Vec3{X: 0, Y: 0, Z: 1}, Dimension: 0}
	d := Chunk{Position: vec.Vec3{}, Dimension: 1}

	assert.True(t, a.Less(b), "y старше x")
	assert.True(t, b.Less(c), "z старше y")
	assert.True(t, c.Less(d), "измерение старше координат")
	assert.False(t, a.Less(a))
}

func TestChunkKeyRoundTrip(t *testing.T) {
	chunks := []Chunk{
		{},
		{Position: vec.Vec3{X: -1, Y: 2, Z: -3}, Dimension: 7},
		{Position: vec.Vec3{X: math.MaxInt32, Y: math.MinInt32, Z: 0}},
	}

	for _, c := range chunks {
		assert.Equal(t, c, ChunkFromKey(c.ToKey()))
	}
}

func TestChunkKeyOrderMatchesLess(t *testing.T) {
	// Побайтовый порядок ключей совпадает с Less, на этом строится
	// итерация по диапазонам в базе данных
	chunks := []Chunk{
		{Position: vec.Vec3{X: -10, Y: 0, Z: 0}},
		{Position: vec.Vec3{X: 10, Y: 0, Z: 0}},
		{Position: vec.Vec3{X: 0, Y: -1, Z: 0}},
		{Position: vec.Vec3{X: 0, Y: 0, Z: 5}},
		{Position: vec.Vec3{}, Dimension: 2},
	}

	for _, a := range chunks {
		for _, b := range chunks {
			ka, kb := a.ToKey(), b.ToKey()
			assert.Equal(t, a.Less(b), bytes.Compare(ka[:], kb[:]) < 0)
		}
	}
}

func TestChunkSaturatingAdd(t *testing.T) {
	c := Chunk{Position: vec.Vec3{X: math.MaxInt32 - 1}}

	shifted := c.SaturatingAdd(vec.Vec3{X: 10})
	assert.Equal(t, int32(math.MaxInt32), shifted.Position.X)

	c = Chunk{Position: vec.Vec3{Y: math.MinInt32 + 1}}
	shifted = c.SaturatingAdd(vec.Vec3{Y: -10})
	assert.Equal(t, int32(math.MinInt32), shifted.Position.Y)
}

func TestChunkRadius(t *testing.T) {
	center := Chunk{Position: vec.Vec3{X: 1, Y: 2, Z: 3}, Dimension: 4}
	r := center.Radius(1)

	assert.True(t, r.IsWithin(center))
	assert.True(t, r.IsWithin(Chunk{Position: vec.Vec3{X: 2, Y: 3, Z: 4}, Dimension: 4}))
	assert.False(t, r.IsWithin(Chunk{Position: vec.Vec3{X: 3, Y: 2, Z: 3}, Dimension: 4}))
	assert.False(t, r.IsWithin(Chunk{Position: vec.Vec3{X: 1, Y: 2, Z: 3}, Dimension: 5}))

	chunks := r.Chunks()
	assert.Len(t, chunks, 27)
	for _, c := range chunks {
		assert.True(t, r.IsWithin(c))
	}
}

func TestChunkRadiusExpanding(t *testing.T) {
	center := Chunk{Position: vec.Vec3{X: 0, Y: 0, Z: 0}}
	chunks := center.Radius(2).ChunksExpanding()

	require.Len(t, chunks, 125)
	assert.Equal(t, center, chunks[0])

	// Расстояние Чебышёва до центра не убывает
	dist := func(c Chunk) int32 {
		abs := func(v int32) int32 {
			if v < 0 {
				return -v
			}
			return v
		}
		m := abs(c.Position.X)
		if d := abs(c.Position.Y); d > m {
			m = d
		}
		if d := abs(c.Position.Z); d > m {
			m = d
		}
		return m
	}
	for i := 1; i < len(chunks); i++ {
		assert.GreaterOrEqual(t, dist(chunks[i]), dist(chunks[i-1]))
	}
}

func TestChunkRadiusSaturatedEdge(t *testing.T) {
	// Радиус на краю мира насыщается в MaxInt32, обход должен
	// завершиться и не выйти за границу
	c := Chunk{Position: vec.Vec3{X: math.MaxInt32}}
	chunks := c.Radius(1).Chunks()

	require.Len(t, chunks, 2*3*3)
	for _, ch := range chunks {
		assert.GreaterOrEqual(t, ch.Position.X, int32(math.MaxInt32-1))
	}

	c = Chunk{Position: vec.Vec3{Y: math.MinInt32}}
	chunks = c.Radius(1).Chunks()

	require.Len(t, chunks, 3*2*3)
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.Position.Y, int32(math.MinInt32+1))
	}
}
