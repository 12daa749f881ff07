package system

import (
	actorcmp "github.com/voxbrix/voxbrix-server/internal/component/actor"
	"github.com/voxbrix/voxbrix-server/internal/component/actorclass"
	"github.com/voxbrix/voxbrix-server/internal/component/player"
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/messages"
	"github.com/voxbrix/voxbrix-server/internal/metrics"
	"github.com/voxbrix/voxbrix-server/internal/resource"
	"github.com/voxbrix/voxbrix-server/internal/world"
)

type actorSyncData struct {
	Snapshot          *resource.Snapshot                `world:"read"`
	PlayerActor       *player.ActorComponent            `world:"read"`
	ChunkView         *player.ChunkViewComponent        `world:"read"`
	Clients           *player.ClientComponent           `world:"read"`
	StatePackers      *player.StatePackerComponent      `world:"write"`
	ActionsPackers    *player.ActionsPackerComponent    `world:"write"`
	DispatchesPackers *player.DispatchesPackerComponent `world:"write"`
	Class             *actorcmp.Class                   `world:"write"`
	Effects           *actorcmp.Effects                 `world:"write"`
	Position          *actorcmp.Position                `world:"write"`
	Velocity          *actorcmp.VelocityComponent       `world:"write"`
	Orientation       *actorcmp.OrientationComponent    `world:"write"`
	Model             *actorclass.Model                 `world:"write"`
	PlayerRemoval     *resource.PlayerRemovalQueue      `world:"write"`
}

// ActorSync собирает и отправляет каждому игроку конверт State
// текущего тика. Клиент, подтвердивший снапшот внутри окна истории,
// получает дельту относительно подтверждённого состояния; новый или
// безнадёжно отставший клиент получает полное состояние обзора.
func ActorSync(w *world.World) {
	d, release := world.GetData[actorSyncData](w)
	defer release()

	snapshot := d.Snapshot.Current

	d.PlayerActor.Each(func(p entity.Player, playerActor entity.Actor) bool {
		client, ok := d.Clients.Get(p)
		if !ok {
			return true
		}

		// Клиент, переставший подтверждать снапшоты, отключается.
		// Ни разу не подтвердивший получает то же окно от входа.
		confirmed := client.LastServerSnapshot
		if confirmed == 0 {
			confirmed = client.LoginSnapshot
		}
		if uint64(snapshot-confirmed) > entity.MaxSnapshotDiff {
			d.PlayerRemoval.Enqueue(p)
			return true
		}

		position, ok := d.Position.Get(playerActor)
		if !ok {
			return true
		}
		view, ok := d.ChunkView.Get(p)
		if !ok {
			return true
		}
		packer, ok := d.StatePackers.Get(p)
		if !ok {
			return true
		}

		chunkRadius := position.Chunk.Radius(view.Radius)

		clientOutdated := client.LastServerSnapshot == 0 ||
			uint64(snapshot-client.LastServerSnapshot) > entity.MaxSnapshotDiff

		if client.LastConfirmedChunk != nil && !clientOutdated {
			prevRadius := client.LastConfirmedChunk.Radius(view.Radius)

			isWithinIntersection := func(chunk *entity.Chunk) bool {
				if chunk == nil {
					return false
				}
				return prevRadius.IsWithin(*chunk) && chunkRadius.IsWithin(*chunk)
			}

			var newChunks, intersection []entity.Chunk
			for _, chunk := range chunkRadius.Chunks() {
				if prevRadius.IsWithin(chunk) {
					intersection = append(intersection, chunk)
				} else {
					newChunks = append(newChunks, chunk)
				}
			}

			d.Position.PackChanges(
				packer,
				snapshot,
				client.LastServerSnapshot,
				playerActor,
				isWithinIntersection,
				newChunks,
				intersection,
			)

			actorsFull := d.Position.ActorsFullUpdate()
			actorsPartial := d.Position.ActorsPartialUpdate()

			// Серверные компоненты не фильтруют записи самого
			// игрока, клиентские — фильтруют
			d.Class.PackChanges(packer, snapshot, client.LastServerSnapshot, nil, actorsFull, actorsPartial)
			d.Model.PackChanges(packer, snapshot, client.LastServerSnapshot, &playerActor, actorsFull, actorsPartial)
			d.Effects.PackChanges(packer, snapshot, client.LastServerSnapshot, actorsFull, actorsPartial)
			d.Velocity.PackChanges(packer, snapshot, client.LastServerSnapshot, &playerActor, actorsFull, actorsPartial)
			d.Orientation.PackChanges(packer, snapshot, client.LastServerSnapshot, &playerActor, actorsFull, actorsPartial)
		} else {
			d.Position.PackFull(packer, playerActor, chunkRadius.Chunks())

			actorsFull := d.Position.ActorsFullUpdate()

			d.Class.PackFull(packer, nil, actorsFull)
			d.Model.PackFull(packer, nil, actorsFull)
			d.Effects.PackFull(packer, actorsFull)
			d.Velocity.PackFull(packer, &playerActor, actorsFull)
			d.Orientation.PackFull(packer, &playerActor, actorsFull)
		}

		var actions []messages.StateAction
		if ap, ok := d.ActionsPackers.Get(p); ok {
			ap.Trim(uint64(client.LastServerSnapshot))
			actions = ap.Pending()
		}
		var dispatches []messages.StateDispatch
		if dp, ok := d.DispatchesPackers.Get(p); ok {
			dp.Trim(uint64(client.LastServerSnapshot))
			dispatches = dp.Pending()
		}
		packed := packer.PackState(
			uint64(snapshot),
			uint64(client.LastClientSnapshot),
			actions,
			dispatches,
		)

		data := make([]byte, len(packed))
		copy(data, packed)

		metrics.StateBytes.Observe(float64(len(data)))

		if !trySend(client, player.ClientEvent{
			Kind: player.ClientEventSendUnreliable,
			Data: data,
		}) {
			d.PlayerRemoval.Enqueue(p)
		}
		return true
	})
}
