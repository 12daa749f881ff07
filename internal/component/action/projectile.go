package action

import (
	"github.com/voxbrix/voxbrix-server/internal/entity"
)

// Trigger — событие движения, запускающее обработчик снаряда
type Trigger uint8

const (
	TriggerAnyCollision Trigger = iota
	TriggerActorCollision
	TriggerBlockCollision
)

// EffectSource — от чьего имени применяется эффект снаряда
type EffectSource uint8

const (
	EffectSourceSource EffectSource = iota // актёр, выпустивший снаряд
	EffectSourceWorld
	EffectSourceCollider
)

// TargetKind — цель изменения снаряда
type TargetKind uint8

const (
	TargetSource TargetKind = iota
	TargetCollider
	TargetAllInRadius
)

// ProjectileTarget — цель с параметром радиуса для AllInRadius
type ProjectileTarget struct {
	Kind   TargetKind
	Radius float32
}

// ProjectileAlterationKind — вид изменения при столкновении
type ProjectileAlterationKind uint8

const (
	ProjectileApplyEffect ProjectileAlterationKind = iota
	ProjectileRemoveSourceActorEffect
	ProjectileRemoveSelf
)

// ProjectileAlteration — одно изменение при срабатывании обработчика
// снаряда. Дискриминант Action для снарядов не поддерживается:
// породившее действие к моменту столкновения уже не существует.
type ProjectileAlteration struct {
	Kind         ProjectileAlterationKind
	Source       EffectSource
	Target       ProjectileTarget
	Effect       entity.Effect
	Discriminant DiscriminantType
	State        EffectStateSpec
}

// ProjectileHandler — триггер, условие и изменения
type ProjectileHandler struct {
	Trigger     Trigger
	Condition   Condition
	Alterations []ProjectileAlteration
}

// ProjectileHandlerSet — набор обработчиков одного снаряда.
// Разделяется всеми снарядами, созданными одним действием.
type ProjectileHandlerSet []ProjectileHandler
