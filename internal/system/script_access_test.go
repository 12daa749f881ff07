package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	actorcmp "github.com/voxbrix/voxbrix-server/internal/component/actor"
	"github.com/voxbrix/voxbrix-server/internal/component/block"
	"github.com/voxbrix/voxbrix-server/internal/component/player"
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/messages"
	"github.com/voxbrix/voxbrix-server/internal/pack"
	"github.com/voxbrix/voxbrix-server/internal/resource"
	"github.com/voxbrix/voxbrix-server/internal/script"
	"github.com/voxbrix/voxbrix-server/internal/vec"
	"github.com/voxbrix/voxbrix-server/internal/world"
)

type scriptAccessFixture struct {
	position *actorcmp.Position
	players  *player.ActorComponent
	views    *player.ChunkViewComponent
	packers  *player.ActionsPackerComponent
	blocks   *block.Classes
}

func scriptAccessWorld(t *testing.T) (*ScriptAccess, *scriptAccessFixture) {
	t.Helper()

	f := &scriptAccessFixture{
		position: actorcmp.NewPosition(0),
		players:  player.NewActor(),
		views:    player.NewChunkView(),
		packers:  player.NewActionsPacker(),
		blocks:   block.NewClasses(),
	}

	lib := &entity.LabelLibrary{
		BlockClasses: entity.NewLabelMap[entity.BlockClass]([]string{"air", "stone"}),
	}

	w := world.New()
	w.AddResource(lib)
	w.AddResource(&resource.Snapshot{Current: 40})
	w.AddResource(f.position)
	w.AddResource(f.players)
	w.AddResource(f.views)
	w.AddResource(f.packers)
	w.AddResource(f.blocks)
	return NewScriptAccess(w), f
}

func TestBroadcastActionLocal(t *testing.T) {
	access, f := scriptAccessWorld(t)

	source := entity.Actor(1)
	f.position.Insert(source, actorcmp.GlobalPosition{}, 1)

	// Наблюдатель в обзоре источника
	near := entity.Player(10)
	nearActor := entity.Actor(2)
	f.players.Insert(near, nearActor)
	f.views.Insert(near, player.ChunkView{Radius: 2})
	f.position.Insert(nearActor, actorcmp.GlobalPosition{
		Chunk: entity.Chunk{Position: vec.Vec3{X: 1}},
	}, 1)
	nearPacker := messages.NewActionsPacker()
	f.packers.Insert(near, nearPacker)

	// Наблюдатель вне обзора
	far := entity.Player(11)
	farActor := entity.Actor(3)
	f.players.Insert(far, farActor)
	f.views.Insert(far, player.ChunkView{Radius: 2})
	f.position.Insert(farActor, actorcmp.GlobalPosition{
		Chunk: entity.Chunk{Position: vec.Vec3{X: 10}},
	}, 1)
	farPacker := messages.NewActionsPacker()
	f.packers.Insert(far, farPacker)

	req := script.BroadcastActionRequest{
		Action:      entity.Action(4),
		SourceActor: source,
		Payload:     []byte{0xAA, 0xBB},
	}
	require.NoError(t, access.BroadcastActionLocal(pack.ToBytes(&req)))

	pending := nearPacker.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, entity.Action(4), pending[0].Action)
	assert.Equal(t, uint64(40), pending[0].Snapshot)

	r := pack.NewReader(pending[0].Payload)
	actor, err := r.ReadUvarint()
	require.NoError(t, err)
	assert.Equal(t, uint64(source), actor)
	payload, err := r.ReadBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, payload)

	assert.Empty(t, farPacker.Pending())
}

func TestBroadcastActionLocalUnknownSource(t *testing.T) {
	access, _ := scriptAccessWorld(t)

	req := script.BroadcastActionRequest{
		Action:      entity.Action(4),
		SourceActor: entity.Actor(99),
	}
	assert.Error(t, access.BroadcastActionLocal(pack.ToBytes(&req)))
}

func TestScriptSetClassOfBlock(t *testing.T) {
	access, f := scriptAccessWorld(t)

	chunk := entity.Chunk{}
	f.blocks.InsertChunk(chunk, block.NewBlocks(entity.BlockClass(0)))

	req := script.SetBlockRequest{
		Chunk:      chunk,
		Block:      entity.Block(5),
		BlockClass: entity.BlockClass(1),
	}
	require.NoError(t, access.SetClassOfBlock(pack.ToBytes(&req)))

	blocks, ok := f.blocks.GetChunk(chunk)
	require.True(t, ok)
	assert.Equal(t, entity.BlockClass(1), blocks.Get(entity.Block(5)))
}

func TestScriptSetClassOfBlockBadIndex(t *testing.T) {
	access, f := scriptAccessWorld(t)

	chunk := entity.Chunk{}
	f.blocks.InsertChunk(chunk, block.NewBlocks(entity.BlockClass(0)))

	req := script.SetBlockRequest{
		Chunk:      chunk,
		Block:      entity.Block(entity.BlocksInChunk()),
		BlockClass: entity.BlockClass(1),
	}
	assert.Error(t, access.SetClassOfBlock(pack.ToBytes(&req)))
}

func TestScriptSetClassOfBlockMissingChunk(t *testing.T) {
	access, _ := scriptAccessWorld(t)

	req := script.SetBlockRequest{
		Chunk:      entity.Chunk{Position: vec.Vec3{X: 7}},
		Block:      entity.Block(0),
		BlockClass: entity.BlockClass(1),
	}
	assert.Error(t, access.SetClassOfBlock(pack.ToBytes(&req)))
}
