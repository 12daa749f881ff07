package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	actorcmp "github.com/voxbrix/voxbrix-server/internal/component/actor"
	"github.com/voxbrix/voxbrix-server/internal/component/block"
	chunkcmp "github.com/voxbrix/voxbrix-server/internal/component/chunk"
	"github.com/voxbrix/voxbrix-server/internal/component/player"
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/resource"
	"github.com/voxbrix/voxbrix-server/internal/world"
)

type chunkAddFixture struct {
	status      *chunkcmp.StatusComponent
	blocks      *block.Classes
	cache       *chunkcmp.CacheComponent
	position    *actorcmp.Position
	playerActor *player.ActorComponent
	views       *player.ChunkViewComponent
	clients     *player.ClientComponent
}

func chunkAddWorld(t *testing.T) (*world.World, *chunkAddFixture) {
	t.Helper()

	f := &chunkAddFixture{
		status:      chunkcmp.NewStatus(),
		blocks:      block.NewClasses(),
		cache:       chunkcmp.NewCache(),
		position:    actorcmp.NewPosition(0),
		playerActor: player.NewActor(),
		views:       player.NewChunkView(),
		clients:     player.NewClient(),
	}

	w := world.New()
	w.AddResource(f.status)
	w.AddResource(f.blocks)
	w.AddResource(f.cache)
	w.AddResource(f.position)
	w.AddResource(f.playerActor)
	w.AddResource(f.views)
	w.AddResource(f.clients)
	w.AddResource(&resource.PlayerRemovalQueue{})
	return w, f
}

func TestChunkAddActivates(t *testing.T) {
	w, f := chunkAddWorld(t)

	chunk := entity.Chunk{}
	f.status.Insert(chunk, chunkcmp.StatusLoading)

	p := entity.Player(1)
	a := entity.Actor(0)
	tx := make(chan player.ClientEvent, 1)
	f.playerActor.Insert(p, a)
	f.views.Insert(p, player.ChunkView{Radius: 1})
	f.clients.Insert(p, &player.Client{Tx: tx})
	f.position.Insert(a, actorcmp.GlobalPosition{Chunk: chunk}, 1)

	classes := make([]entity.BlockClass, entity.BlocksInChunk())
	encoded := []byte{0x07, 0x08}
	ChunkAdd(w, chunk, classes, encoded)

	status, ok := f.status.Get(chunk)
	require.True(t, ok)
	assert.Equal(t, chunkcmp.StatusActive, status)
	assert.True(t, f.blocks.HasChunk(chunk))
	cached, ok := f.cache.Get(chunk)
	require.True(t, ok)
	assert.Equal(t, encoded, cached)

	select {
	case ev := <-tx:
		assert.Equal(t, player.ClientEventSendReliable, ev.Kind)
		assert.Equal(t, encoded, ev.Data)
	default:
		t.Fatal("чанк не отправлен наблюдателю")
	}
}

func TestChunkAddDiscardsEvicted(t *testing.T) {
	w, f := chunkAddWorld(t)

	// Чанк выселили, пока шла загрузка: результат отбрасывается
	chunk := entity.Chunk{}
	classes := make([]entity.BlockClass, entity.BlocksInChunk())
	ChunkAdd(w, chunk, classes, []byte{0x07})

	_, ok := f.status.Get(chunk)
	assert.False(t, ok)
	assert.False(t, f.blocks.HasChunk(chunk))
	_, ok = f.cache.Get(chunk)
	assert.False(t, ok)
}

func TestChunkAddDiscardsActive(t *testing.T) {
	w, f := chunkAddWorld(t)

	chunk := entity.Chunk{}
	f.status.Insert(chunk, chunkcmp.StatusActive)

	classes := make([]entity.BlockClass, entity.BlocksInChunk())
	ChunkAdd(w, chunk, classes, []byte{0x07})

	assert.False(t, f.blocks.HasChunk(chunk))
	_, ok := f.cache.Get(chunk)
	assert.False(t, ok)
}
