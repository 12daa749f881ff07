// Package chunk содержит компоненты, ключом которых является чанк.
package chunk

import (
	"github.com/voxbrix/voxbrix-server/internal/entity"
)

// Status — статус чанка в жизненном цикле
type Status uint8

const (
	// Загрузка или генерация запланированы, блоки могут отсутствовать
	StatusLoading Status = iota
	// Чанк загружен и участвует в симуляции
	StatusActive
)

// StatusComponent — статус каждого известного чанка
type StatusComponent struct {
	data map[entity.Chunk]Status
}

// NewStatus создаёт пустой компонент
func NewStatus() *StatusComponent {
	return &StatusComponent{data: make(map[entity.Chunk]Status)}
}

// Insert задаёт статус чанка
func (c *StatusComponent) Insert(chunk entity.Chunk, s Status) {
	c.data[chunk] = s
}

// Get возвращает статус чанка
func (c *StatusComponent) Get(chunk entity.Chunk) (Status, bool) {
	s, ok := c.data[chunk]
	return s, ok
}

// Remove удаляет чанк
func (c *StatusComponent) Remove(chunk entity.Chunk) {
	delete(c.data, chunk)
}

// Each обходит все чанки, остановка по false
func (c *StatusComponent) Each(f func(entity.Chunk, Status) bool) {
	for chunk, s := range c.data {
		if !f(chunk, s) {
			return
		}
	}
}

// Len возвращает количество известных чанков
func (c *StatusComponent) Len() int {
	return len(c.data)
}

// CacheComponent — закодированное сообщение ChunkData каждого
// активного чанка. Байты разделяются между игроками, поэтому
// после вставки не изменяются — при изменении блоков кэш
// перекодируется целиком.
type CacheComponent struct {
	data map[entity.Chunk][]byte
}

// NewCache создаёт пустой компонент
func NewCache() *CacheComponent {
	return &CacheComponent{data: make(map[entity.Chunk][]byte)}
}

// Insert сохраняет закодированное сообщение чанка
func (c *CacheComponent) Insert(chunk entity.Chunk, encoded []byte) {
	c.data[chunk] = encoded
}

// Get возвращает закодированное сообщение чанка
func (c *CacheComponent) Get(chunk entity.Chunk) ([]byte, bool) {
	b, ok := c.data[chunk]
	return b, ok
}

// Remove удаляет кэш чанка
func (c *CacheComponent) Remove(chunk entity.Chunk) {
	delete(c.data, chunk)
}
