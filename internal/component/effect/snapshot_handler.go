// Package effect содержит наборы обработчиков, выполняемых для
// каждого активного экземпляра эффекта на каждом тике.
package effect

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/voxbrix/voxbrix-server/internal/entity"
)

// ConditionKind — вид условия обработчика эффекта
type ConditionKind uint8

const (
	ConditionAlways ConditionKind = iota
	// Срабатывает каждые N снапшотов. Состояние эффекта обязано
	// содержать стартовый снапшот (uvarint) и период N (uvarint)
	// подряд в этом порядке.
	ConditionEveryNSnapshot
	ConditionAnd
	ConditionOr
)

// Condition — условие срабатывания
type Condition struct {
	Kind ConditionKind
	Set  []Condition
}

// AlterationKind — вид изменения
type AlterationKind uint8

const (
	AlterationRemoveThisEffect AlterationKind = iota
	AlterationScripted
)

// Alteration — одно изменение при срабатывании
type Alteration struct {
	Kind   AlterationKind
	Script entity.Script
}

// Handler — условие и изменения
type Handler struct {
	Condition   Condition
	Alterations []Alteration
}

// HandlerSet — набор обработчиков одного эффекта
type HandlerSet []Handler

// SnapshotHandlers — наборы обработчиков, индексированные эффектом.
// Эффект без дескриптора получает пустой набор.
type SnapshotHandlers struct {
	sets []HandlerSet
}

// Get возвращает набор обработчиков эффекта
func (h *SnapshotHandlers) Get(e entity.Effect) HandlerSet {
	if int(e) >= len(h.sets) {
		return nil
	}
	return h.sets[e]
}

type conditionDescriptor struct {
	Kind string                `yaml:"kind"`
	Set  []conditionDescriptor `yaml:"set"`
}

func (d conditionDescriptor) describe() (Condition, error) {
	switch d.Kind {
	case "Always":
		return Condition{Kind: ConditionAlways}, nil
	case "EveryNSnapshot":
		return Condition{Kind: ConditionEveryNSnapshot}, nil
	case "And", "Or":
		kind := ConditionAnd
		if d.Kind == "Or" {
			kind = ConditionOr
		}
		set := make([]Condition, 0, len(d.Set))
		for _, sub := range d.Set {
			c, err := sub.describe()
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

type alterationDescriptor struct {
	Kind   string `yaml:"kind"`
	Script string `yaml:"script"`
}

type handlerDescriptor struct {
	Condition   conditionDescriptor    `yaml:"condition"`
	Alterations []alterationDescriptor `yaml:"alterations"`
}

// HandlerSetDescriptor — YAML описание набора обработчиков эффекта
type HandlerSetDescriptor []handlerDescriptor

// Describe разрешает метки дескриптора
func (d HandlerSetDescriptor) Describe(lib *entity.LabelLibrary) (HandlerSet, error) {
	set := make(HandlerSet, 0, len(d))
	for _, hd := range d {
		condition, err := hd.Condition.describe()
		if err != nil {
			return nil, err
		}

		alterations := make([]Alteration, 0, len(hd.Alterations))
		for _, a := range hd.Alterations {
			switch a.Kind {
			case "RemoveThisEffect":
				alterations = append(alterations, Alteration{Kind: AlterationRemoveThisEffect})
			case "Scripted":
				script, ok := lib.Scripts.Get(a.Script)
				if !ok {
					return nil, fmt.Errorf("скрипт %q не определён", a.Script)
				}
				alterations = append(alterations, Alteration{Kind: AlterationScripted, Script: script})
			default:
				return nil, fmt.Errorf("неизвестный вид изменения %q", a.Kind)
			}
		}

		set = append(set, Handler{Condition: condition, Alterations: alterations})
	}
	return set, nil
}

type handlersFile struct {
	Handlers map[string]HandlerSetDescriptor `yaml:"handlers"`
}

// LoadSnapshotHandlers читает дескрипторы эффектов из YAML файла
func LoadSnapshotHandlers(path string, lib *entity.LabelLibrary) (*SnapshotHandlers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение дескрипторов эффектов %s: %w", path, err)
	}

	var file handlersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("разбор дескрипторов эффектов %s: %w", path, err)
	}

	sets := make([]HandlerSet, lib.Effects.Len())
	for label, desc := range file.Handlers {
		e, ok := lib.Effects.Get(label)
		if !ok {
			return nil, fmt.Errorf("дескриптор для неизвестного эффекта %q", label)
		}
		set, err := desc.Describe(lib)
		if err != nil {
			return nil, fmt.Errorf("обработчик эффекта %q: %w", label, err)
		}
		sets[e] = set
	}

	return &SnapshotHandlers{sets: sets}, nil
}
