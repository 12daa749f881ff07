package system

import (
	actorcmp "github.com/voxbrix/voxbrix-server/internal/component/actor"
	chunkcmp "github.com/voxbrix/voxbrix-server/internal/component/chunk"
	"github.com/voxbrix/voxbrix-server/internal/resource"
	"github.com/voxbrix/voxbrix-server/internal/world"
)

type actorPruningData struct {
	Snapshot     *resource.Snapshot          `world:"read"`
	Player       *actorcmp.PlayerHandle      `world:"read"`
	Position     *actorcmp.Position          `world:"read"`
	Status       *chunkcmp.StatusComponent   `world:"read"`
	ActorRemoval *resource.ActorRemovalQueue `world:"write"`
}

// ActorPruning ставит в очередь на удаление актёров без игрока,
// оказавшихся в этом тике на неактивном чанке. Проверяются только
// актёры, сменившие чанк в текущем снапшоте: остальные не могли
// покинуть активную зону сами, их выселение обрабатывает активация
// чанков.
func ActorPruning(w *world.World) {
	d, release := world.GetData[actorPruningData](w)
	defer release()

	snapshot := d.Snapshot.Current

	changes := d.Position.ChunkChanges()
	for i := len(changes) - 1; i >= 0; i-- {
		change := changes[i]
		if change.Snapshot != snapshot {
			break
		}

		if _, owned := d.Player.Get(change.Actor); owned {
			continue
		}
		position, ok := d.Position.Get(change.Actor)
		if !ok {
			continue
		}
		if status, ok := d.Status.Get(position.Chunk); ok && status == chunkcmp.StatusActive {
			continue
		}
		d.ActorRemoval.Enqueue(change.Actor)
	}
}
