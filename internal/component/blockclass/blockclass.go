// Package blockclass содержит статические компоненты классов блоков,
// загружаемые один раз при старте.
package blockclass

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/voxbrix/voxbrix-server/internal/entity"
)

// Component — значение на класс блока, у части классов может
// отсутствовать
type Component[T any] struct {
	data []*T
}

// NewComponent создаёт компонент размером в карту классов
func NewComponent[T any](classCount int) *Component[T] {
	return &Component[T]{data: make([]*T, classCount)}
}

// Set задаёт значение класса
func (c *Component[T]) Set(class entity.BlockClass, v T) {
	c.data[class] = &v
}

// Get возвращает значение класса
func (c *Component[T]) Get(class entity.BlockClass) (T, bool) {
	if int(class) >= len(c.data) || c.data[class] == nil {
		var zero T
		return zero, false
	}
	return *c.data[class], true
}

// CollisionKind — форма столкновения блока
type CollisionKind uint8

const (
	// SolidCube — блок занимает весь куб и непроходим
	CollisionSolidCube CollisionKind = iota
)

// Collision — компонент столкновений классов блоков
type Collision = Component[CollisionKind]

type collisionFile struct {
	// метка класса -> вид коллизии; перечисленные классы твёрдые
	Collision map[string]string `yaml:"collision"`
}

// LoadCollision читает компонент столкновений из YAML файла.
// Классы без записи считаются проходимыми.
func LoadCollision(path string, lib *entity.LabelLibrary) (*Collision, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение коллизий классов блоков %s: %w", path, err)
	}

	var file collisionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("разбор коллизий классов блоков %s: %w", path, err)
	}

	c := NewComponent[CollisionKind](lib.BlockClasses.Len())
	for label, kind := range file.Collision {
		class, ok := lib.BlockClasses.Get(label)
		if !ok {
			return nil, fmt.Errorf("коллизия для неизвестного класса блока %q", label)
		}
		switch kind {
		case "SolidCube":
			c.Set(class, CollisionSolidCube)
		default:
			return nil, fmt.Errorf("неизвестный вид коллизии %q класса %q", kind, label)
		}
	}

	return c, nil
}
