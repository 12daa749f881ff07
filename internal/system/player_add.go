package system

import (
	"fmt"

	actorcmp "github.com/voxbrix/voxbrix-server/internal/component/actor"
	"github.com/voxbrix/voxbrix-server/internal/component/player"
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/messages"
	"github.com/voxbrix/voxbrix-server/internal/resource"
	"github.com/voxbrix/voxbrix-server/internal/world"

	"github.com/google/uuid"
)

// PlayerAddData — параметры подключившегося игрока
type PlayerAddData struct {
	Player  entity.Player
	Tx      chan<- player.ClientEvent
	Session uuid.UUID
	// Радиус обзора и активации чанков игрока
	ViewRadius int32
	// Начальное положение актёра до первого обновления от клиента
	Spawn actorcmp.GlobalPosition
}

type playerAddData struct {
	Snapshot *resource.Snapshot   `world:"read"`
	Labels   *entity.LabelLibrary `world:"read"`

	Registry        *entity.ActorRegistry              `world:"write"`
	Class           *actorcmp.Class                    `world:"write"`
	Position        *actorcmp.Position                 `world:"write"`
	Player          *actorcmp.PlayerHandle             `world:"write"`
	ChunkActivation *actorcmp.ChunkActivationComponent `world:"write"`

	Clients           *player.ClientComponent           `world:"write"`
	PlayerActor       *player.ActorComponent            `world:"write"`
	ChunkView         *player.ChunkViewComponent        `world:"write"`
	StatePackers      *player.StatePackerComponent      `world:"write"`
	ActionsPackers    *player.ActionsPackerComponent    `world:"write"`
	DispatchesPackers *player.DispatchesPackerComponent `world:"write"`
}

// PlayerAdd создаёт актёра вошедшего игрока и его компоненты.
// Возвращает актёра для передачи клиентскому циклу.
func PlayerAdd(w *world.World, data PlayerAddData) (entity.Actor, error) {
	d, release := world.GetData[playerAddData](w)
	defer release()

	class, ok := d.Labels.ActorClasses.Get("human")
	if !ok {
		return 0, fmt.Errorf("класс актёра \"human\" не определён")
	}

	snapshot := d.Snapshot.Current
	actor := d.Registry.Add(snapshot)

	d.Class.Insert(actor, class, snapshot)
	d.Position.Insert(actor, data.Spawn, snapshot)
	d.Player.Insert(actor, data.Player)
	d.ChunkActivation.Insert(actor, actorcmp.ChunkActivation{Radius: data.ViewRadius})

	d.Clients.Insert(data.Player, &player.Client{
		Tx:            data.Tx,
		Session:       data.Session,
		LoginSnapshot: snapshot,
	})
	d.PlayerActor.Insert(data.Player, actor)
	d.ChunkView.Insert(data.Player, player.ChunkView{Radius: data.ViewRadius})
	d.StatePackers.Insert(data.Player, messages.NewStatePacker())
	d.ActionsPackers.Insert(data.Player, messages.NewActionsPacker())
	d.DispatchesPackers.Insert(data.Player, messages.NewDispatchesPacker())

	return actor, nil
}
