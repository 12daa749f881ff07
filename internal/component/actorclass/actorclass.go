// Package actorclass содержит компоненты классов актёров с
// переопределением на уровне отдельного актёра.
package actorclass

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/voxbrix/voxbrix-server/internal/component/actor"
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/messages"
	"github.com/voxbrix/voxbrix-server/internal/pack"
)

// PackableOverridable — базовое значение на класс плюс реплицируемые
// переопределения на актёра. Переопределение актёра важнее значения
// его класса. Клиентам уходят только переопределения.
type PackableOverridable[T comparable] struct {
	classes   []*T
	overrides *actor.Packable[T]
}

// NewPackableOverridable создаёт компонент размером в карту классов
func NewPackableOverridable[T comparable](
	classCount int,
	update entity.Update,
	codec actor.Codec[T],
) *PackableOverridable[T] {
	return &PackableOverridable[T]{
		classes:   make([]*T, classCount),
		overrides: actor.NewPackable(update, codec),
	}
}

// SetClass задаёт базовое значение класса
func (c *PackableOverridable[T]) SetClass(class entity.ActorClass, v T) {
	c.classes[class] = &v
}

// Get возвращает значение для актёра данного класса
func (c *PackableOverridable[T]) Get(class entity.ActorClass, a entity.Actor) (T, bool) {
	if v, ok := c.overrides.Get(a); ok {
		return v, true
	}
	if int(class) < len(c.classes) && c.classes[class] != nil {
		return *c.classes[class], true
	}
	var zero T
	return zero, false
}

// InsertOverride задаёт переопределение актёра
func (c *PackableOverridable[T]) InsertOverride(a entity.Actor, v T, snapshot entity.ServerSnapshot) {
	c.overrides.Insert(a, v, snapshot)
}

// RemoveOverride удаляет переопределение актёра
func (c *PackableOverridable[T]) RemoveOverride(a entity.Actor, snapshot entity.ServerSnapshot) {
	c.overrides.Remove(a, snapshot)
}

// PackFull упаковывает переопределения для полной отправки
func (c *PackableOverridable[T]) PackFull(
	packer *messages.StatePacker,
	playerActor *entity.Actor,
	actorsFull actor.Set,
) {
	c.overrides.PackFull(packer, playerActor, actorsFull)
}

// PackChanges упаковывает дельту переопределений
func (c *PackableOverridable[T]) PackChanges(
	packer *messages.StatePacker,
	snapshot entity.ServerSnapshot,
	clientLastSnapshot entity.ServerSnapshot,
	playerActor *entity.Actor,
	actorsFull actor.Set,
	actorsPartial actor.Set,
) {
	c.overrides.PackChanges(packer, snapshot, clientLastSnapshot, playerActor, actorsFull, actorsPartial)
}

// Overridable — нереплицируемый вариант: базовое значение на класс
// плюс локальные переопределения на актёра.
type Overridable[T any] struct {
	classes   []*T
	overrides map[entity.Actor]T
}

// NewOverridable создаёт компонент размером в карту классов
func NewOverridable[T any](classCount int) *Overridable[T] {
	return &Overridable[T]{
		classes:   make([]*T, classCount),
		overrides: make(map[entity.Actor]T),
	}
}

// SetClass задаёт базовое значение класса
func (c *Overridable[T]) SetClass(class entity.ActorClass, v T) {
	c.classes[class] = &v
}

// Get возвращает значение для актёра данного класса
func (c *Overridable[T]) Get(class entity.ActorClass, a entity.Actor) (T, bool) {
	if v, ok := c.overrides[a]; ok {
		return v, true
	}
	if int(class) < len(c.classes) && c.classes[class] != nil {
		return *c.classes[class], true
	}
	var zero T
	return zero, false
}

// InsertOverride задаёт переопределение актёра
func (c *Overridable[T]) InsertOverride(a entity.Actor, v T) {
	c.overrides[a] = v
}

// RemoveOverride удаляет переопределение актёра
func (c *Overridable[T]) RemoveOverride(a entity.Actor) {
	delete(c.overrides, a)
}

// BlockCollision — осевой параллелепипед актёра для столкновений
// с блоками. Radius — половины габаритов по осям x, y, z в блоках.
type BlockCollision struct {
	Radius [3]float32
}

// Collision — форма столкновения с блоками: база на класс,
// переопределения на актёра
type Collision = Overridable[BlockCollision]

type collisionEntry struct {
	Radius [3]float32 `yaml:"radius"`
}

type collisionFile struct {
	// метка класса -> габариты
	BlockCollision map[string]collisionEntry `yaml:"block_collision"`
}

// LoadCollision читает формы столкновений классов из YAML файла
func LoadCollision(path string, lib *entity.LabelLibrary) (*Collision, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение форм столкновений классов актёров %s: %w", path, err)
	}

	var file collisionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("разбор форм столкновений классов актёров %s: %w", path, err)
	}

	c := NewOverridable[BlockCollision](lib.ActorClasses.Len())
	for classLabel, entry := range file.BlockCollision {
		class, ok := lib.ActorClasses.Get(classLabel)
		if !ok {
			return nil, fmt.Errorf("форма столкновения для неизвестного класса актёра %q", classLabel)
		}
		c.SetClass(class, BlockCollision{Radius: entry.Radius})
	}

	return c, nil
}

// ModelCodec — сетевой кодек модели актёра
var ModelCodec = actor.Codec[entity.ActorModel]{
	Encode: func(b *pack.Buffer, v entity.ActorModel) {
		b.WriteUvarint(uint64(v))
	},
	Decode: func(r *pack.Reader) (entity.ActorModel, error) {
		v, err := r.ReadUvarint()
		return entity.ActorModel(v), err
	},
}

// Model — реплицируемая модель актёра: база на класс,
// переопределения на актёра
type Model = PackableOverridable[entity.ActorModel]

type modelFile struct {
	// метка класса -> метка модели
	Models map[string]string `yaml:"models"`
}

// LoadModel читает базовые модели классов из YAML файла
func LoadModel(path string, lib *entity.LabelLibrary, update entity.Update) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение моделей классов актёров %s: %w", path, err)
	}

	var file modelFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("разбор моделей классов актёров %s: %w", path, err)
	}

	c := NewPackableOverridable(lib.ActorClasses.Len(), update, ModelCodec)
	for classLabel, modelLabel := range file.Models {
		class, ok := lib.ActorClasses.Get(classLabel)
		if !ok {
			return nil, fmt.Errorf("модель для неизвестного класса актёра %q", classLabel)
		}
		model, ok := lib.ActorModels.Get(modelLabel)
		if !ok {
			return nil, fmt.Errorf("неизвестная модель актёра %q", modelLabel)
		}
		c.SetClass(class, model)
	}

	return c, nil
}
