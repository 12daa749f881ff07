// Package actor содержит компоненты, ключом которых является актёр.
//
// Компоненты делятся на реплицируемые (Packable, Position, Effects) и
// внутренние (Map). Реплицируемые ведут журнал изменений в окне
// entity.MaxSnapshotDiff снапшотов и умеют упаковывать полное
// состояние или дельту в секцию конверта State.
package actor

import (
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/pack"
)

// Set — множество актёров
type Set map[entity.Actor]struct{}

// NewSet создаёт пустое множество
func NewSet() Set {
	return make(Set)
}

// Add добавляет актёра
func (s Set) Add(a entity.Actor) {
	s[a] = struct{}{}
}

// Has проверяет наличие актёра
func (s Set) Has(a entity.Actor) bool {
	_, ok := s[a]
	return ok
}

// Clear опустошает множество без освобождения памяти
func (s Set) Clear() {
	for a := range s {
		delete(s, a)
	}
}

// Codec — кодек значения компонента для передачи по сети
type Codec[T any] struct {
	Encode func(*pack.Buffer, T)
	Decode func(*pack.Reader) (T, error)
}

// Map — внутренний компонент, не реплицируемый клиентам
type Map[T any] struct {
	storage map[entity.Actor]T
}

// NewMap создаёт пустой компонент
func NewMap[T any]() *Map[T] {
	return &Map[T]{storage: make(map[entity.Actor]T)}
}

// Insert сохраняет значение, возвращает предыдущее
func (m *Map[T]) Insert(a entity.Actor, v T) (T, bool) {
	prev, ok := m.storage[a]
	m.storage[a] = v
	return prev, ok
}

// Get возвращает значение актёра
func (m *Map[T]) Get(a entity.Actor) (T, bool) {
	v, ok := m.storage[a]
	return v, ok
}

// Remove удаляет значение актёра
func (m *Map[T]) Remove(a entity.Actor) {
	delete(m.storage, a)
}

// Each обходит все пары, остановка по false
func (m *Map[T]) Each(f func(entity.Actor, T) bool) {
	for a, v := range m.storage {
		if !f(a, v) {
			return
		}
	}
}

// Len возвращает количество записей
func (m *Map[T]) Len() int {
	return len(m.storage)
}
