package actor

import (
	"github.com/voxbrix/voxbrix-server/internal/component/action"
	"github.com/voxbrix/voxbrix-server/internal/entity"
)

// ChunkActivation — актёр удерживает чанки в радиусе активными
type ChunkActivation struct {
	Radius int32
}

// Projectile — снаряд: источник, набор обработчиков столкновений
// и данные породившего действия
type Projectile struct {
	SourceActor *entity.Actor
	HandlerSet  *action.ProjectileHandlerSet
	ActionData  []byte
}

// ChunkActivationComponent хранит радиусы активации по актёрам
type ChunkActivationComponent = Map[ChunkActivation]

// NewChunkActivationComponent создаёт компонент активации чанков
func NewChunkActivationComponent() *ChunkActivationComponent {
	return NewMap[ChunkActivation]()
}

// ProjectileComponent хранит данные снарядов по актёрам
type ProjectileComponent = Map[*Projectile]

// NewProjectileComponent создаёт компонент снарядов
func NewProjectileComponent() *ProjectileComponent {
	return NewMap[*Projectile]()
}

// PlayerHandle — связь актёра с игроком-владельцем
type PlayerHandle = Map[entity.Player]

// NewPlayerHandle создаёт компонент принадлежности игроку
func NewPlayerHandle() *PlayerHandle {
	return NewMap[entity.Player]()
}
