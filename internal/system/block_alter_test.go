package system

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voxbrix/voxbrix-server/internal/component/block"
	chunkcmp "github.com/voxbrix/voxbrix-server/internal/component/chunk"
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/messages"
	"github.com/voxbrix/voxbrix-server/internal/vec"
	"github.com/voxbrix/voxbrix-server/internal/world"
)

func blockAlterWorld(t *testing.T, chunk entity.Chunk) (*world.World, *block.Classes) {
	t.Helper()

	status := chunkcmp.NewStatus()
	status.Insert(chunk, chunkcmp.StatusActive)

	blocks := block.NewClasses()
	blocks.InsertChunk(chunk, block.NewBlocks(testAir))

	w := world.New()
	w.AddResource(status)
	w.AddResource(blocks)
	return w, blocks
}

func TestBlockAlter(t *testing.T) {
	chunk := entity.Chunk{Position: vec.Vec3{X: 1}}
	w, blocks := blockAlterWorld(t, chunk)

	blk := entity.BlockFromCoords(1, 2, 3)
	BlockAlter(w, &messages.AlterBlock{
		Chunk:      chunk,
		Block:      blk,
		BlockClass: testStone,
	})

	data, ok := blocks.GetChunk(chunk)
	assert.True(t, ok)
	assert.Equal(t, testStone, data.Get(blk))
	assert.True(t, blocks.HasChanges())
}

func TestBlockAlterInactiveChunkDropped(t *testing.T) {
	chunk := entity.Chunk{}
	w, blocks := blockAlterWorld(t, chunk)

	other := entity.Chunk{Position: vec.Vec3{X: 5}}
	BlockAlter(w, &messages.AlterBlock{
		Chunk:      other,
		Block:      0,
		BlockClass: testStone,
	})

	assert.False(t, blocks.HasChanges())
}

func TestBlockAlterBadIndexDropped(t *testing.T) {
	chunk := entity.Chunk{}
	w, blocks := blockAlterWorld(t, chunk)

	BlockAlter(w, &messages.AlterBlock{
		Chunk:      chunk,
		Block:      entity.Block(entity.BlocksInChunk()),
		BlockClass: testStone,
	})

	assert.False(t, blocks.HasChanges())
}
