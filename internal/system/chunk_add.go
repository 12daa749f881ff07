package system

import (
	actorcmp "github.com/voxbrix/voxbrix-server/internal/component/actor"
	"github.com/voxbrix/voxbrix-server/internal/component/block"
	chunkcmp "github.com/voxbrix/voxbrix-server/internal/component/chunk"
	"github.com/voxbrix/voxbrix-server/internal/component/player"
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/resource"
	"github.com/voxbrix/voxbrix-server/internal/world"
)

type chunkAddData struct {
	Status        *chunkcmp.StatusComponent    `world:"write"`
	Blocks        *block.Classes               `world:"write"`
	Cache         *chunkcmp.CacheComponent     `world:"write"`
	Position      *actorcmp.Position           `world:"read"`
	PlayerActor   *player.ActorComponent       `world:"read"`
	ChunkView     *player.ChunkViewComponent   `world:"read"`
	Clients       *player.ClientComponent      `world:"read"`
	PlayerRemoval *resource.PlayerRemovalQueue `world:"write"`
}

// ChunkAdd применяет результат асинхронной загрузки чанка.
// Если чанк уже выселили или активировали повторно, результат
// отбрасывается: применяется он только к статусу Loading.
// Новый чанк рассылается всем игрокам, в чей обзор он входит.
func ChunkAdd(w *world.World, chunk entity.Chunk, classes []entity.BlockClass, encoded []byte) {
	d, release := world.GetData[chunkAddData](w)
	defer release()

	status, ok := d.Status.Get(chunk)
	if !ok || status != chunkcmp.StatusLoading {
		return
	}
	d.Status.Insert(chunk, chunkcmp.StatusActive)

	d.Blocks.InsertChunk(chunk, block.BlocksFromSlice(classes))
	d.Cache.Insert(chunk, encoded)

	d.PlayerActor.Each(func(p entity.Player, a entity.Actor) bool {
		position, ok := d.Position.Get(a)
		if !ok {
			return true
		}
		view, ok := d.ChunkView.Get(p)
		if !ok {
			return true
		}
		if !position.Chunk.Radius(view.Radius).IsWithin(chunk) {
			return true
		}
		client, ok := d.Clients.Get(p)
		if !ok {
			return true
		}
		if !trySend(client, player.ClientEvent{
			Kind: player.ClientEventSendReliable,
			Data: encoded,
		}) {
			d.PlayerRemoval.Enqueue(p)
		}
		return true
	})
}
