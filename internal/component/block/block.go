// Package block содержит покомпонентное хранилище блоков:
// плоские массивы длиной E^3 на чанк с отслеживанием изменений.
package block

import (
	"github.com/voxbrix/voxbrix-server/internal/entity"
)

// Blocks — значения компонента для всех блоков одного чанка
type Blocks[T any] struct {
	data []T
}

// NewBlocks создаёт массив длиной E^3, заполненный fill
func NewBlocks[T any](fill T) *Blocks[T] {
	data := make([]T, entity.BlocksInChunk())
	for i := range data {
		data[i] = fill
	}
	return &Blocks[T]{data: data}
}

// BlocksFromSlice оборачивает готовый массив. Длина должна быть E^3.
func BlocksFromSlice[T any](data []T) *Blocks[T] {
	if len(data) != entity.BlocksInChunk() {
		panic("block: длина массива не равна E^3")
	}
	return &Blocks[T]{data: data}
}

// Get возвращает значение блока
func (b *Blocks[T]) Get(block entity.Block) T {
	return b.data[block]
}

// Set записывает значение блока без отслеживания
func (b *Blocks[T]) Set(block entity.Block, v T) {
	b.data[block] = v
}

// Raw возвращает массив значений в порядке индексов блоков
func (b *Blocks[T]) Raw() []T {
	return b.data
}

type container[T any] struct {
	changes map[entity.Block]struct{}
	data    *Blocks[T]
}

// Tracking — компонент блоков с отслеживанием изменений.
// Записи через Setter помечают блок и чанк изменёнными; оркестратор
// репликации читает ChangedChunks в конце тика и вызывает
// ClearChanges.
type Tracking[T any] struct {
	changedChunks map[entity.Chunk]struct{}
	data          map[entity.Chunk]*container[T]
}

// NewTracking создаёт пустой компонент
func NewTracking[T any]() *Tracking[T] {
	return &Tracking[T]{
		changedChunks: make(map[entity.Chunk]struct{}),
		data:          make(map[entity.Chunk]*container[T]),
	}
}

// InsertChunk вставляет чанк целиком. Вставка не отслеживается.
func (t *Tracking[T]) InsertChunk(chunk entity.Chunk, data *Blocks[T]) {
	t.data[chunk] = &container[T]{
		changes: make(map[entity.Block]struct{}),
		data:    data,
	}
}

// RemoveChunk удаляет чанк целиком. Удаление не отслеживается.
func (t *Tracking[T]) RemoveChunk(chunk entity.Chunk) {
	delete(t.changedChunks, chunk)
	delete(t.data, chunk)
}

// GetChunk возвращает блоки чанка
func (t *Tracking[T]) GetChunk(chunk entity.Chunk) (*Blocks[T], bool) {
	c, ok := t.data[chunk]
	if !ok {
		return nil, false
	}
	return c.data, true
}

// HasChunk проверяет наличие чанка
func (t *Tracking[T]) HasChunk(chunk entity.Chunk) bool {
	_, ok := t.data[chunk]
	return ok
}

// Setter — ручка записи в блоки одного чанка с отслеживанием
type Setter[T any] struct {
	chunk entity.Chunk
	t     *Tracking[T]
	c     *container[T]
}

// GetSetter возвращает ручку записи для чанка
func (t *Tracking[T]) GetSetter(chunk entity.Chunk) (Setter[T], bool) {
	c, ok := t.data[chunk]
	if !ok {
		return Setter[T]{}, false
	}
	return Setter[T]{chunk: chunk, t: t, c: c}, true
}

// Set записывает значение блока и помечает изменение
func (s Setter[T]) Set(block entity.Block, v T) {
	s.c.data.data[block] = v
	s.c.changes[block] = struct{}{}
	s.t.changedChunks[s.chunk] = struct{}{}
}

// Get возвращает значение блока
func (s Setter[T]) Get(block entity.Block) T {
	return s.c.data.data[block]
}

// ChangedChunk — изменения одного чанка за тик
type ChangedChunk[T any] struct {
	Chunk entity.Chunk
	c     *container[T]
}

// Changes обходит изменённые блоки чанка
func (cc ChangedChunk[T]) Changes(f func(entity.Block, T) bool) {
	for b := range cc.c.changes {
		if !f(b, cc.c.data.data[b]) {
			return
		}
	}
}

// ChangedChunks обходит чанки с изменениями за тик
func (t *Tracking[T]) ChangedChunks(f func(ChangedChunk[T]) bool) {
	for chunk := range t.changedChunks {
		if !f(ChangedChunk[T]{Chunk: chunk, c: t.data[chunk]}) {
			return
		}
	}
}

// HasChanges сообщает, были ли изменения с последней очистки
func (t *Tracking[T]) HasChanges() bool {
	return len(t.changedChunks) > 0
}

// ClearChanges очищает пометки изменений, данные остаются
func (t *Tracking[T]) ClearChanges() {
	for chunk := range t.changedChunks {
		c := t.data[chunk]
		for b := range c.changes {
			delete(c.changes, b)
		}
	}
	for chunk := range t.changedChunks {
		delete(t.changedChunks, chunk)
	}
}

// Classes — основной компонент блоков: класс каждого блока
type Classes = Tracking[entity.BlockClass]

// NewClasses создаёт компонент классов блоков
func NewClasses() *Classes {
	return NewTracking[entity.BlockClass]()
}
