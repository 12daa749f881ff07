package system

import (
	actorcmp "github.com/voxbrix/voxbrix-server/internal/component/actor"
	"github.com/voxbrix/voxbrix-server/internal/component/player"
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/messages"
	"github.com/voxbrix/voxbrix-server/internal/resource"
	"github.com/voxbrix/voxbrix-server/internal/world"
)

type playerUpdatesData struct {
	Snapshot    *resource.Snapshot             `world:"read"`
	PlayerActor *player.ActorComponent         `world:"read"`
	Clients     *player.ClientComponent        `world:"write"`
	ChunkUpdate *player.ChunkUpdateComponent   `world:"write"`
	ChunkView   *player.ChunkViewComponent     `world:"read"`
	Position    *actorcmp.Position             `world:"write"`
	Velocity    *actorcmp.VelocityComponent    `world:"write"`
	Orientation *actorcmp.OrientationComponent `world:"write"`
}

// PlayerUpdates вносит присланное клиентом состояние его актёра.
// Конверты со снапшотом не новее уже принятого отбрасываются,
// поэтому дубликаты ненадёжного потока безвредны. Смена чанка
// игрока записывается в ChunkUpdate для досылки чанков обзора.
func PlayerUpdates(w *world.World, p entity.Player, state *messages.State) {
	d, release := world.GetData[playerUpdatesData](w)
	defer release()

	a, ok := d.PlayerActor.Get(p)
	if !ok {
		return
	}
	client, ok := d.Clients.Get(p)
	if !ok {
		return
	}

	if uint64(client.LastClientSnapshot) >= state.Snapshot {
		return
	}
	client.LastClientSnapshot = entity.ClientSnapshot(state.Snapshot)
	if entity.ServerSnapshot(state.LastSnapshot) > client.LastServerSnapshot {
		client.LastServerSnapshot = entity.ServerSnapshot(state.LastSnapshot)
	}

	snapshot := d.Snapshot.Current

	d.Velocity.UnpackPlayer(a, state.Updates, snapshot)
	d.Orientation.UnpackPlayer(a, state.Updates, snapshot)

	d.Position.UnpackPlayerWith(a, state.Updates, snapshot, func(prev, next *actorcmp.GlobalPosition) {
		if next == nil {
			return
		}
		chunk := next.Chunk
		client.LastConfirmedChunk = &chunk

		if prev != nil && prev.Chunk == chunk {
			return
		}

		view, ok := d.ChunkView.Get(p)
		if !ok {
			return
		}

		if _, pending := d.ChunkUpdate.Get(p); pending {
			return
		}

		update := &player.ChunkUpdate{}
		if prev != nil {
			update.PreviousView = &player.FullChunkView{
				Chunk:  prev.Chunk,
				Radius: view.Radius,
			}
		}
		d.ChunkUpdate.Insert(p, update)
	})
}
