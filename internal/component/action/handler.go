// Package action содержит серверные наборы обработчиков действий
// и снарядов, загружаемые из YAML дескрипторов при старте.
//
// Обработчик — пара (условие, изменения). Условия детерминированы:
// при одинаковом состоянии мира повторная оценка даёт тот же
// результат. Применение изменений выполняют системы, компонент
// хранит только данные.
package action

import (
	"github.com/voxbrix/voxbrix-server/internal/entity"
)

// ConditionKind — вид условия обработчика
type ConditionKind uint8

const (
	ConditionAlways ConditionKind = iota
	ConditionSourceActorHasNoEffect
	ConditionAnd
	ConditionOr
)

// DiscriminantType — способ выбора дискриминанта эффекта
type DiscriminantType uint8

const (
	DiscriminantNone DiscriminantType = iota
	DiscriminantSourceActor
	DiscriminantAction
)

// StateType — способ заполнения состояния эффекта
type StateType uint8

const (
	StateNone StateType = iota
	// Текущий снапшот и период N — для условий EveryNSnapshot
	StateCurrentSnapshotWithN
)

// EffectStateSpec — описание начального состояния эффекта
type EffectStateSpec struct {
	Kind StateType
	N    uint32
}

// Condition — условие срабатывания обработчика
type Condition struct {
	Kind         ConditionKind
	Effect       entity.Effect
	Discriminant DiscriminantType
	Set          []Condition // операнды And/Or
}

// AlterationKind — вид изменения мира
type AlterationKind uint8

const (
	AlterationApplyEffect AlterationKind = iota
	AlterationRemoveSourceActorEffect
	AlterationCreateProjectile
	AlterationScripted
)

// Alteration — одно изменение мира при срабатывании обработчика
// действия. Заполнены только поля его вида.
type Alteration struct {
	Kind AlterationKind

	// ApplyEffect
	Effect       entity.Effect
	Discriminant DiscriminantType
	State        EffectStateSpec

	// CreateProjectile
	ActorClass        entity.ActorClass
	HandlerSet        *ProjectileHandlerSet
	VelocityMagnitude float32

	// Scripted
	Script entity.Script
}

// Handler — условие и изменения
type Handler struct {
	Condition   Condition
	Alterations []Alteration
}

// HandlerSet — упорядоченный набор обработчиков одного действия
type HandlerSet []Handler

// Handlers — наборы обработчиков, индексированные действием.
// Действие без дескриптора получает пустой набор.
type Handlers struct {
	sets []HandlerSet
}

// Get возвращает набор обработчиков действия
func (h *Handlers) Get(a entity.Action) HandlerSet {
	if int(a) >= len(h.sets) {
		return nil
	}
	return h.sets[a]
}
