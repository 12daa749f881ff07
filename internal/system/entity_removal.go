package system

import (
	actorcmp "github.com/voxbrix/voxbrix-server/internal/component/actor"
	"github.com/voxbrix/voxbrix-server/internal/component/actorclass"
	"github.com/voxbrix/voxbrix-server/internal/component/player"
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/resource"
	"github.com/voxbrix/voxbrix-server/internal/world"
)

type entityRemovalData struct {
	Snapshot *resource.Snapshot `world:"read"`

	Registry        *entity.ActorRegistry              `world:"write"`
	Class           *actorcmp.Class                    `world:"write"`
	Position        *actorcmp.Position                 `world:"write"`
	Velocity        *actorcmp.VelocityComponent        `world:"write"`
	Orientation     *actorcmp.OrientationComponent     `world:"write"`
	Effects         *actorcmp.Effects                  `world:"write"`
	Player          *actorcmp.PlayerHandle             `world:"write"`
	ChunkActivation *actorcmp.ChunkActivationComponent `world:"write"`
	Projectile      *actorcmp.ProjectileComponent      `world:"write"`
	Model           *actorclass.Model                  `world:"write"`

	Clients           *player.ClientComponent           `world:"write"`
	PlayerActor       *player.ActorComponent            `world:"write"`
	ChunkView         *player.ChunkViewComponent        `world:"write"`
	ChunkUpdate       *player.ChunkUpdateComponent      `world:"write"`
	StatePackers      *player.StatePackerComponent      `world:"write"`
	ActionsPackers    *player.ActionsPackerComponent    `world:"write"`
	DispatchesPackers *player.DispatchesPackerComponent `world:"write"`

	ActorRemoval  *resource.ActorRemovalQueue  `world:"write"`
	PlayerRemoval *resource.PlayerRemovalQueue `world:"write"`
}

// EntityRemoval осушает очереди удаления в конце тика. Сначала
// игроки: их актёры дозаписываются в очередь актёров, затем актёры
// выметаются из каждого компонента, ключуемого актёром. Регистр
// штампует освободившийся индекс текущим снапшотом, устаревшие
// ссылки на переиспользованный индекс становятся недействительными.
// Возвращает удалённых игроков, чтобы цикл сервера закрыл их сессии.
func EntityRemoval(w *world.World) []entity.Player {
	d, release := world.GetData[entityRemovalData](w)
	defer release()

	snapshot := d.Snapshot.Current

	var removed []entity.Player
	d.PlayerRemoval.Drain(func(p entity.Player) {
		removed = append(removed, p)
		if a, ok := d.PlayerActor.Get(p); ok {
			d.ActorRemoval.Enqueue(a)
		}
		d.Clients.Remove(p)
		d.PlayerActor.Remove(p)
		d.ChunkView.Remove(p)
		d.ChunkUpdate.Remove(p)
		d.StatePackers.Remove(p)
		d.ActionsPackers.Remove(p)
		d.DispatchesPackers.Remove(p)
	})

	d.ActorRemoval.Drain(func(a entity.Actor) {
		d.Class.Remove(a, snapshot)
		d.Position.Remove(a, snapshot)
		d.Velocity.Remove(a, snapshot)
		d.Orientation.Remove(a, snapshot)
		d.Effects.RemoveActor(a, snapshot)
		d.Player.Remove(a)
		d.ChunkActivation.Remove(a)
		d.Projectile.Remove(a)
		d.Model.RemoveOverride(a, snapshot)
		d.Registry.Remove(a, snapshot)
	})

	return removed
}
