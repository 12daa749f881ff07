package actor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/messages"
	"github.com/voxbrix/voxbrix-server/internal/pack"
	"github.com/voxbrix/voxbrix-server/internal/vec"
)

func chunkAt(x int32) entity.Chunk {
	return entity.Chunk{Position: vec.Vec3{X: x}}
}

func actorsIn(c *Position, chunk entity.Chunk) []entity.Actor {
	var out []entity.Actor
	c.ActorsInChunk(chunk, func(a entity.Actor) bool {
		out = append(out, a)
		return true
	})
	return out
}

func TestPositionChunkIndex(t *testing.T) {
	c := NewPosition(0)

	c.Insert(1, GlobalPosition{Chunk: chunkAt(0)}, 1)
	c.Insert(2, GlobalPosition{Chunk: chunkAt(0)}, 1)

	assert.ElementsMatch(t, []entity.Actor{1, 2}, actorsIn(c, chunkAt(0)))

	// Перемещение в другой чанк обновляет индекс
	c.Insert(1, GlobalPosition{Chunk: chunkAt(1)}, 2)
	assert.ElementsMatch(t, []entity.Actor{2}, actorsIn(c, chunkAt(0)))
	assert.ElementsMatch(t, []entity.Actor{1}, actorsIn(c, chunkAt(1)))

	c.Remove(2, 3)
	assert.Empty(t, actorsIn(c, chunkAt(0)))
}

func TestPositionChunkChangesJournal(t *testing.T) {
	c := NewPosition(0)

	c.Insert(1, GlobalPosition{Chunk: chunkAt(0)}, 1)
	c.Insert(1, GlobalPosition{Chunk: chunkAt(1)}, 2)
	// Движение внутри чанка не попадает в журнал смен чанков
	c.Insert(1, GlobalPosition{Chunk: chunkAt(1), Offset: vec.Vec3F{X: 5}}, 3)

	changes := c.ChunkChanges()
	require.Len(t, changes, 2)

	assert.Nil(t, changes[0].PreviousChunk, "у нового актёра нет прежнего чанка")
	require.NotNil(t, changes[1].PreviousChunk)
	assert.Equal(t, chunkAt(0), *changes[1].PreviousChunk)
}

func decodePositionFull(t *testing.T, r *pack.Reader) map[entity.Actor]GlobalPosition {
	t.Helper()

	tag, err := r.ReadU8()
	require.NoError(t, err)
	require.Equal(t, sectionFull, tag)

	count, err := r.ReadUvarint()
	require.NoError(t, err)

	out := make(map[entity.Actor]GlobalPosition, count)
	for i := uint64(0); i < count; i++ {
		a, err := r.ReadUvarint()
		require.NoError(t, err)
		v, err := PositionCodec.Decode(r)
		require.NoError(t, err)
		out[entity.Actor(a)] = v
	}
	return out
}

func decodePositionChanges(t *testing.T, r *pack.Reader) map[entity.Actor]*GlobalPosition {
	t.Helper()

	tag, err := r.ReadU8()
	require.NoError(t, err)
	require.Equal(t, sectionChange, tag)

	count, err := r.ReadUvarint()
	require.NoError(t, err)

	out := make(map[entity.Actor]*GlobalPosition, count)
	for i := uint64(0); i < count; i++ {
		a, err := r.ReadUvarint()
		require.NoError(t, err)
		present, err := r.ReadBool()
		require.NoError(t, err)
		if present {
			v, err := PositionCodec.Decode(r)
			require.NoError(t, err)
			out[entity.Actor(a)] = &v
		} else {
			out[entity.Actor(a)] = nil
		}
	}
	return out
}

func TestPositionPackFull(t *testing.T) {
	c := NewPosition(0)

	player := entity.Actor(1)
	c.Insert(player, GlobalPosition{Chunk: chunkAt(0)}, 1)
	c.Insert(2, GlobalPosition{Chunk: chunkAt(0), Offset: vec.Vec3F{X: 3}}, 1)
	c.Insert(3, GlobalPosition{Chunk: chunkAt(5)}, 1)

	packer := messages.NewStatePacker()
	c.PackFull(packer, player, []entity.Chunk{chunkAt(0)})

	got := decodePositionFull(t, packSection(t, packer, 0))
	require.Len(t, got, 1)
	assert.Equal(t, vec.Vec3F{X: 3}, got[2].Offset)

	// Множество полной отправки включает актёра игрока: остальные
	// компоненты пакуются по нему
	assert.True(t, c.ActorsFullUpdate().Has(player))
	assert.True(t, c.ActorsFullUpdate().Has(2))
	assert.False(t, c.ActorsFullUpdate().Has(3))
}

func TestPositionPackChangesDelta(t *testing.T) {
	c := NewPosition(0)

	player := entity.Actor(1)
	view := chunkAt(0).Radius(1)
	within := func(ch *entity.Chunk) bool { return ch != nil && view.IsWithin(*ch) }

	c.Insert(player, GlobalPosition{Chunk: chunkAt(0)}, 1)
	c.Insert(2, GlobalPosition{Chunk: chunkAt(0)}, 1)
	c.Insert(3, GlobalPosition{Chunk: chunkAt(0)}, 1)

	// Актёр 2 сдвинулся после подтверждённого снапшота, актёр 3 — нет
	c.Insert(2, GlobalPosition{Chunk: chunkAt(0), Offset: vec.Vec3F{Y: 1}}, 5)

	packer := messages.NewStatePacker()
	c.PackChanges(packer, 6, 4, player, within, nil, view.Chunks())

	got := decodePositionChanges(t, packSection(t, packer, 0))
	require.Len(t, got, 1)
	require.NotNil(t, got[2])
	assert.Equal(t, vec.Vec3F{Y: 1}, got[2].Offset)
}

func TestPositionPackChangesTombstoneOnLeave(t *testing.T) {
	c := NewPosition(0)

	player := entity.Actor(1)
	view := chunkAt(0).Radius(1)
	within := func(ch *entity.Chunk) bool { return ch != nil && view.IsWithin(*ch) }

	c.Insert(player, GlobalPosition{Chunk: chunkAt(0)}, 1)
	c.Insert(2, GlobalPosition{Chunk: chunkAt(0)}, 1)

	// Актёр 2 ушёл за пределы обзора
	c.Insert(2, GlobalPosition{Chunk: chunkAt(10)}, 5)

	packer := messages.NewStatePacker()
	c.PackChanges(packer, 6, 4, player, within, nil, view.Chunks())

	got := decodePositionChanges(t, packSection(t, packer, 0))
	require.Len(t, got, 1)
	// Для клиента актёр исчез, хотя на сервере существует
	require.Contains(t, got, entity.Actor(2))
	assert.Nil(t, got[2])
}

func TestPositionPackChangesFullOnEnter(t *testing.T) {
	c := NewPosition(0)

	player := entity.Actor(1)
	view := chunkAt(0).Radius(1)
	within := func(ch *entity.Chunk) bool { return ch != nil && view.IsWithin(*ch) }

	c.Insert(player, GlobalPosition{Chunk: chunkAt(0)}, 1)
	// Актёр 2 пришёл издалека после подтверждённого снапшота
	c.Insert(2, GlobalPosition{Chunk: chunkAt(10)}, 1)
	c.Insert(2, GlobalPosition{Chunk: chunkAt(1)}, 5)

	packer := messages.NewStatePacker()
	c.PackChanges(packer, 6, 4, player, within, nil, view.Chunks())

	got := decodePositionChanges(t, packSection(t, packer, 0))
	require.Len(t, got, 1)
	require.NotNil(t, got[2])
	assert.Equal(t, chunkAt(1), got[2].Chunk)

	// Вошедший актёр отправляется полностью и другим компонентам
	assert.True(t, c.ActorsFullUpdate().Has(2))
}

func TestPositionUnpackPlayerWith(t *testing.T) {
	c := NewPosition(0)
	player := entity.Actor(1)

	c.Insert(player, GlobalPosition{Chunk: chunkAt(0)}, 1)

	next := GlobalPosition{Chunk: chunkAt(1), Offset: vec.Vec3F{Z: 2}}
	var buf pack.Buffer
	buf.WriteBool(true)
	PositionCodec.Encode(&buf, next)

	var gotPrev, gotNext *GlobalPosition
	c.UnpackPlayerWith(player, map[entity.Update][]byte{0: buf.Bytes()}, 2,
		func(prev, n *GlobalPosition) {
			gotPrev, gotNext = prev, n
		})

	require.NotNil(t, gotPrev)
	assert.Equal(t, chunkAt(0), gotPrev.Chunk)
	require.NotNil(t, gotNext)
	assert.Equal(t, next, *gotNext)

	v, ok := c.Get(player)
	require.True(t, ok)
	assert.Equal(t, next, v)
}
