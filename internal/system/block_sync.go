package system

import (
	actorcmp "github.com/voxbrix/voxbrix-server/internal/component/actor"
	"github.com/voxbrix/voxbrix-server/internal/component/block"
	chunkcmp "github.com/voxbrix/voxbrix-server/internal/component/chunk"
	"github.com/voxbrix/voxbrix-server/internal/component/player"
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/messages"
	"github.com/voxbrix/voxbrix-server/internal/resource"
	"github.com/voxbrix/voxbrix-server/internal/storage"
	"github.com/voxbrix/voxbrix-server/internal/world"
)

type blockSyncData struct {
	Blocks        *block.Classes               `world:"write"`
	Cache         *chunkcmp.CacheComponent     `world:"write"`
	PlayerActor   *player.ActorComponent       `world:"read"`
	ChunkView     *player.ChunkViewComponent   `world:"read"`
	Clients       *player.ClientComponent      `world:"read"`
	Position      *actorcmp.Position           `world:"read"`
	Storage       *storage.Worker              `world:"read"`
	PlayerRemoval *resource.PlayerRemovalQueue `world:"write"`
}

// BlockSync обрабатывает накопленные за тик изменения блоков:
// пересобирает кэш изменённых чанков, ставит их в очередь записи
// в базу и рассылает точечные изменения игрокам, в чьём обзоре
// изменённые чанки находятся.
func BlockSync(w *world.World) {
	d, release := world.GetData[blockSyncData](w)
	defer release()

	if !d.Blocks.HasChanges() {
		return
	}

	d.Blocks.ChangedChunks(func(cc block.ChangedChunk[entity.BlockClass]) bool {
		chunkBlocks, ok := d.Blocks.GetChunk(cc.Chunk)
		if !ok {
			return true
		}
		raw := chunkBlocks.Raw()

		encoded := messages.EncodeTagged(messages.ClientAcceptChunkData, &messages.ChunkData{
			Chunk:        cc.Chunk,
			BlockClasses: messages.EncodeBlockClasses(raw),
		})
		d.Cache.Insert(cc.Chunk, encoded)

		// Копия: запись уходит в фоновый поток, а блоки чанка
		// продолжают меняться
		persisted := make([]entity.BlockClass, len(raw))
		copy(persisted, raw)
		d.Storage.EnqueueChunk(cc.Chunk, persisted)
		return true
	})

	d.PlayerActor.Each(func(p entity.Player, a entity.Actor) bool {
		client, ok := d.Clients.Get(p)
		if !ok {
			return true
		}
		position, ok := d.Position.Get(a)
		if !ok {
			return true
		}
		view, ok := d.ChunkView.Get(p)
		if !ok {
			return true
		}
		radius := position.Chunk.Radius(view.Radius)

		var msg messages.ChunkChanges
		d.Blocks.ChangedChunks(func(cc block.ChangedChunk[entity.BlockClass]) bool {
			if !radius.IsWithin(cc.Chunk) {
				return true
			}
			chunkChanges := messages.ChunkBlockChanges{Chunk: cc.Chunk}
			cc.Changes(func(b entity.Block, class entity.BlockClass) bool {
				chunkChanges.Changes = append(chunkChanges.Changes, messages.BlockChange{
					Block:      b,
					BlockClass: class,
				})
				return true
			})
			msg.Chunks = append(msg.Chunks, chunkChanges)
			return true
		})

		if len(msg.Chunks) == 0 {
			return true
		}
		if !trySend(client, player.ClientEvent{
			Kind: player.ClientEventSendReliable,
			Data: messages.EncodeTagged(messages.ClientAcceptChunkChanges, &msg),
		}) {
			d.PlayerRemoval.Enqueue(p)
		}
		return true
	})

	d.Blocks.ClearChanges()
}
