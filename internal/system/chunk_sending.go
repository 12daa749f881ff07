package system

import (
	actorcmp "github.com/voxbrix/voxbrix-server/internal/component/actor"
	chunkcmp "github.com/voxbrix/voxbrix-server/internal/component/chunk"
	"github.com/voxbrix/voxbrix-server/internal/component/player"
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/resource"
	"github.com/voxbrix/voxbrix-server/internal/world"
)

type chunkSendingData struct {
	PlayerActor   *player.ActorComponent       `world:"read"`
	ChunkView     *player.ChunkViewComponent   `world:"read"`
	ChunkUpdate   *player.ChunkUpdateComponent `world:"write"`
	Clients       *player.ClientComponent      `world:"read"`
	Position      *actorcmp.Position           `world:"read"`
	Cache         *chunkcmp.CacheComponent     `world:"read"`
	PlayerRemoval *resource.PlayerRemovalQueue `world:"write"`
}

// ChunkSending досылает игрокам со сменившимся обзором кэшированные
// чанки, вошедшие в новый обзор. Чанки отправляются от центра
// к краю, чтобы ближние появлялись у клиента первыми. Ещё не
// загруженные чанки дойдут позже через ChunkAdd.
func ChunkSending(w *world.World) {
	d, release := world.GetData[chunkSendingData](w)
	defer release()

	var processed []entity.Player

	d.ChunkUpdate.Each(func(p entity.Player, update *player.ChunkUpdate) bool {
		processed = append(processed, p)

		a, ok := d.PlayerActor.Get(p)
		if !ok {
			return true
		}
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

		currRadius := position.Chunk.Radius(view.Radius)

		var prevRadius *entity.ChunkRadius
		if update.PreviousView != nil {
			r := update.PreviousView.Chunk.Radius(update.PreviousView.Radius)
			prevRadius = &r
		}

		for _, chunk := range currRadius.ChunksExpanding() {
			if prevRadius != nil && prevRadius.IsWithin(chunk) {
				continue
			}
			encoded, ok := d.Cache.Get(chunk)
			if !ok {
				continue
			}
			if !trySend(client, player.ClientEvent{
				Kind: player.ClientEventSendReliable,
				Data: encoded,
			}) {
				d.PlayerRemoval.Enqueue(p)
				return true
			}
		}
		return true
	})

	for _, p := range processed {
		d.ChunkUpdate.Remove(p)
	}
}
