package action

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/voxbrix/voxbrix-server/internal/entity"
)

// Дескрипторы — YAML представление наборов обработчиков.
// Строковые метки разрешаются в идентификаторы при загрузке,
// ошибки разрешения фатальны для старта сервера.

type discriminantDescriptor struct {
	Kind string `yaml:"kind"`
}

func (d discriminantDescriptor) describe() (DiscriminantType, error) {
	switch d.Kind {
	case "", "None":
		return DiscriminantNone, nil
	case "SourceActor":
		return DiscriminantSourceActor, nil
	case "Action":
		return DiscriminantAction, nil
	default:
		return 0, fmt.Errorf("неизвестный вид дискриминанта %q", d.Kind)
	}
}

type stateDescriptor struct {
	Kind string `yaml:"kind"`
	N    uint32 `yaml:"n"`
}

func (d stateDescriptor) describe() (EffectStateSpec, error) {
	switch d.Kind {
	case "", "None":
		return EffectStateSpec{Kind: StateNone}, nil
	case "CurrentSnapshotWithN":
		if d.N == 0 {
			return EffectStateSpec{}, fmt.Errorf("CurrentSnapshotWithN: период n должен быть больше нуля")
		}
		return EffectStateSpec{Kind: StateCurrentSnapshotWithN, N: d.N}, nil
	default:
		return EffectStateSpec{}, fmt.Errorf("неизвестный вид состояния эффекта %q", d.Kind)
	}
}

type conditionDescriptor struct {
	Kind         string                 `yaml:"kind"`
	Effect       string                 `yaml:"effect"`
	Discriminant discriminantDescriptor `yaml:"discriminant"`
	Set          []conditionDescriptor  `yaml:"set"`
}

func (d conditionDescriptor) describe(lib *entity.LabelLibrary) (Condition, error) {
	switch d.Kind {
	case "Always":
		return Condition{Kind: ConditionAlways}, nil
	case "SourceActorHasNoEffect":
		effect, ok := lib.Effects.Get(d.Effect)
		if !ok {
			return Condition{}, fmt.Errorf("эффект %q не определён", d.Effect)
		}
		discriminant, err := d.Discriminant.describe()
		if err != nil {
			return Condition{}, err
		}
		return Condition{
			Kind:         ConditionSourceActorHasNoEffect,
			Effect:       effect,
			Discriminant: discriminant,
		}, nil
	case "And", "Or":
		kind := ConditionAnd
		if d.Kind == "Or" {
			kind = ConditionOr
		}
		set := make([]Condition, 0, len(d.Set))
		for _, sub := range d.Set {
			c, err := sub.describe(lib)
			if err != nil {
				return Condition{}, err
			}
			set = append(set, c)
		}
		return Condition{Kind: kind, Set: set}, nil
	default:
		return Condition{}, fmt.Errorf("неизвестный вид условия %q", d.Kind)
	}
}

type targetDescriptor struct {
	Kind   string  `yaml:"kind"`
	Radius float32 `yaml:"radius"`
}

func (d targetDescriptor) describe() (ProjectileTarget, error) {
	switch d.Kind {
	case "Source":
		return ProjectileTarget{Kind: TargetSource}, nil
	case "Collider":
		return ProjectileTarget{Kind: TargetCollider}, nil
	case "AllInRadius":
		return ProjectileTarget{Kind: TargetAllInRadius, Radius: d.Radius}, nil
	default:
		return ProjectileTarget{}, fmt.Errorf("неизвестный вид цели %q", d.Kind)
	}
}

type projectileAlterationDescriptor struct {
	Kind         string                 `yaml:"kind"`
	Source       string                 `yaml:"source"`
	Target       targetDescriptor       `yaml:"target"`
	Effect       string                 `yaml:"effect"`
	Discriminant discriminantDescriptor `yaml:"discriminant"`
	State        stateDescriptor        `yaml:"state"`
}

func (d projectileAlterationDescriptor) describe(lib *entity.LabelLibrary) (ProjectileAlteration, error) {
	switch d.Kind {
	case "ApplyEffect":
		effect, ok := lib.Effects.Get(d.Effect)
		if !ok {
			return ProjectileAlteration{}, fmt.Errorf("эффект %q не определён", d.Effect)
		}
		var source EffectSource
		switch d.Source {
		case "", "Source":
			source = EffectSourceSource
		case "World":
			source = EffectSourceWorld
		case "Collider":
			source = EffectSourceCollider
		default:
			return ProjectileAlteration{}, fmt.Errorf("неизвестный источник эффекта %q", d.Source)
		}
		target, err := d.Target.describe()
		if err != nil {
			return ProjectileAlteration{}, err
		}
		discriminant, err := d.Discriminant.describe()
		if err != nil {
			return ProjectileAlteration{}, err
		}
		if discriminant == DiscriminantAction {
			return ProjectileAlteration{}, fmt.Errorf("дискриминант Action недоступен обработчикам снарядов")
		}
		state, err := d.State.describe()
		if err != nil {
			return ProjectileAlteration{}, err
		}
		return ProjectileAlteration{
			Kind:         ProjectileApplyEffect,
			Source:       source,
			Target:       target,
			Effect:       effect,
			Discriminant: discriminant,
			State:        state,
		}, nil
	case "RemoveSourceActorEffect":
		effect, ok := lib.Effects.Get(d.Effect)
		if !ok {
			return ProjectileAlteration{}, fmt.Errorf("эффект %q не определён", d.Effect)
		}
		return ProjectileAlteration{Kind: ProjectileRemoveSourceActorEffect, Effect: effect}, nil
	case "RemoveSelf":
		return ProjectileAlteration{Kind: ProjectileRemoveSelf}, nil
	default:
		return ProjectileAlteration{}, fmt.Errorf("неизвестный вид изменения снаряда %q", d.Kind)
	}
}

type projectileHandlerDescriptor struct {
	Trigger     string                           `yaml:"trigger"`
	Condition   conditionDescriptor              `yaml:"condition"`
	Alterations []projectileAlterationDescriptor `yaml:"alterations"`
}

func (d projectileHandlerDescriptor) describe(lib *entity.LabelLibrary) (ProjectileHandler, error) {
	var trigger Trigger
	switch d.Trigger {
	case "AnyCollision":
		trigger = TriggerAnyCollision
	case "ActorCollision":
		trigger = TriggerActorCollision
	case "BlockCollision":
		trigger = TriggerBlockCollision
	default:
		return ProjectileHandler{}, fmt.Errorf("неизвестный триггер %q", d.Trigger)
	}

	condition, err := d.Condition.describe(lib)
	if err != nil {
		return ProjectileHandler{}, err
	}

	alterations := make([]ProjectileAlteration, 0, len(d.Alterations))
	for _, a := range d.Alterations {
		alt, err := a.describe(lib)
		if err != nil {
			return ProjectileHandler{}, err
		}
		alterations = append(alterations, alt)
	}

	return ProjectileHandler{
		Trigger:     trigger,
		Condition:   condition,
		Alterations: alterations,
	}, nil
}

// ProjectileHandlerSetDescriptor — YAML описание набора обработчиков
// снаряда
type ProjectileHandlerSetDescriptor []projectileHandlerDescriptor

// Describe разрешает метки дескриптора
func (d ProjectileHandlerSetDescriptor) Describe(lib *entity.LabelLibrary) (ProjectileHandlerSet, error) {
	set := make(ProjectileHandlerSet, 0, len(d))
	for _, h := range d {
		handler, err := h.describe(lib)
		if err != nil {
			return nil, err
		}
		set = append(set, handler)
	}
	return set, nil
}

type alterationDescriptor struct {
	Kind string `yaml:"kind"`

	Effect       string                 `yaml:"effect"`
	Discriminant discriminantDescriptor `yaml:"discriminant"`
	State        stateDescriptor        `yaml:"state"`

	ActorClass        string                         `yaml:"actor_class"`
	HandlerSet        ProjectileHandlerSetDescriptor `yaml:"handler_set"`
	VelocityMagnitude float32                        `yaml:"velocity_magnitude"`

	Script string `yaml:"script"`
}

func (d alterationDescriptor) describe(lib *entity.LabelLibrary) (Alteration, error) {
	switch d.Kind {
	case "ApplyEffect":
		effect, ok := lib.Effects.Get(d.Effect)
		if !ok {
			return Alteration{}, fmt.Errorf("эффект %q не определён", d.Effect)
		}
		discriminant, err := d.Discriminant.describe()
		if err != nil {
			return Alteration{}, err
		}
		state, err := d.State.describe()
		if err != nil {
			return Alteration{}, err
		}
		return Alteration{
			Kind:         AlterationApplyEffect,
			Effect:       effect,
			Discriminant: discriminant,
			State:        state,
		}, nil
	case "RemoveSourceActorEffect":
		effect, ok := lib.Effects.Get(d.Effect)
		if !ok {
			return Alteration{}, fmt.Errorf("эффект %q не определён", d.Effect)
		}
		return Alteration{Kind: AlterationRemoveSourceActorEffect, Effect: effect}, nil
	case "CreateProjectile":
		actorClass, ok := lib.ActorClasses.Get(d.ActorClass)
		if !ok {
			return Alteration{}, fmt.Errorf("класс актёра %q не определён", d.ActorClass)
		}
		handlerSet, err := d.HandlerSet.Describe(lib)
		if err != nil {
			return Alteration{}, err
		}
		return Alteration{
			Kind:              AlterationCreateProjectile,
			ActorClass:        actorClass,
			HandlerSet:        &handlerSet,
			VelocityMagnitude: d.VelocityMagnitude,
		}, nil
	case "Scripted":
		script, ok := lib.Scripts.Get(d.Script)
		if !ok {
			return Alteration{}, fmt.Errorf("скрипт %q не определён", d.Script)
		}
		return Alteration{Kind: AlterationScripted, Script: script}, nil
	default:
		return Alteration{}, fmt.Errorf("неизвестный вид изменения %q", d.Kind)
	}
}

type handlerDescriptor struct {
	Condition   conditionDescriptor    `yaml:"condition"`
	Alterations []alterationDescriptor `yaml:"alterations"`
}

// HandlerSetDescriptor — YAML описание набора обработчиков действия
type HandlerSetDescriptor []handlerDescriptor

// Describe разрешает метки дескриптора
func (d HandlerSetDescriptor) Describe(lib *entity.LabelLibrary) (HandlerSet, error) {
	set := make(HandlerSet, 0, len(d))
	for _, hd := range d {
		condition, err := hd.Condition.describe(lib)
		if err != nil {
			return nil, err
		}

		alterations := make([]Alteration, 0, len(hd.Alterations))
		for _, a := range hd.Alterations {
			alt, err := a.describe(lib)
			if err != nil {
				return nil, err
			}
			alterations = append(alterations, alt)
		}

		set = append(set, Handler{Condition: condition, Alterations: alterations})
	}
	return set, nil
}

type handlersFile struct {
	Handlers map[string]HandlerSetDescriptor `yaml:"handlers"`
}

// LoadHandlers читает дескрипторы из YAML файла и строит наборы
// обработчиков для каждого действия из карты меток. Действие без
// дескриптора получает пустой набор.
func LoadHandlers(path string, lib *entity.LabelLibrary) (*Handlers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение дескрипторов действий %s: %w", path, err)
	}

	var file handlersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("разбор дескрипторов действий %s: %w", path, err)
	}

	sets := make([]HandlerSet, lib.Actions.Len())
	for label, desc := range file.Handlers {
		a, ok := lib.Actions.Get(label)
		if !ok {
			return nil, fmt.Errorf("дескриптор для неизвестного действия %q", label)
		}
		set, err := desc.Describe(lib)
		if err != nil {
			return nil, fmt.Errorf("обработчик действия %q: %w", label, err)
		}
		sets[a] = set
	}

	return &Handlers{sets: sets}, nil
}
