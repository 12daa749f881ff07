// Package player содержит компоненты, ключом которых является игрок.
package player

import (
	"github.com/google/uuid"

	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/messages"
)

// Map — универсальный компонент игроков
type Map[T any] struct {
	storage map[entity.Player]T
}

// NewMap создаёт пустой компонент
func NewMap[T any]() *Map[T] {
	return &Map[T]{storage: make(map[entity.Player]T)}
}

// Insert сохраняет значение игрока
func (m *Map[T]) Insert(p entity.Player, v T) {
	m.storage[p] = v
}

// Get возвращает значение игрока
func (m *Map[T]) Get(p entity.Player) (T, bool) {
	v, ok := m.storage[p]
	return v, ok
}

// Remove удаляет значение игрока
func (m *Map[T]) Remove(p entity.Player) {
	delete(m.storage, p)
}

// Each обходит все пары, остановка по false
func (m *Map[T]) Each(f func(entity.Player, T) bool) {
	for p, v := range m.storage {
		if !f(p, v) {
			return
		}
	}
}

// Len возвращает количество записей
func (m *Map[T]) Len() int {
	return len(m.storage)
}

// ClientEventKind — вид события клиентского цикла
type ClientEventKind uint8

const (
	ClientEventSendReliable ClientEventKind = iota
	ClientEventSendUnreliable
)

// ClientEvent — команда серверного цикла клиентскому.
// Data разделяется между игроками и не изменяется после отправки.
type ClientEvent struct {
	Kind ClientEventKind
	Data []byte
}

// Client — состояние подключённого клиента
type Client struct {
	// Tx — неблокирующий канал клиентского цикла. Переполнение
	// означает мёртвого или отстающего клиента: игрок ставится
	// в очередь на удаление.
	Tx chan<- ClientEvent
	// Снапшот сервера на момент входа; ограничивает время жизни
	// клиента, не подтвердившего ни одного снапшота
	LoginSnapshot entity.ServerSnapshot
	// Последний снапшот сервера, подтверждённый клиентом
	LastServerSnapshot entity.ServerSnapshot
	// Последний снапшот клиента, полученный сервером
	LastClientSnapshot entity.ClientSnapshot
	// Чанк игрока, о котором клиент точно знает
	LastConfirmedChunk *entity.Chunk
	// Идентификатор сессии, привязывает ненадёжные датаграммы
	Session uuid.UUID
}

// ClientComponent — клиенты игроков
type ClientComponent = Map[*Client]

// NewClient создаёт компонент клиентов
func NewClient() *ClientComponent {
	return NewMap[*Client]()
}

// ActorComponent — актёр, которым владеет игрок
type ActorComponent = Map[entity.Actor]

// NewActor создаёт компонент принадлежности актёров
func NewActor() *ActorComponent {
	return NewMap[entity.Actor]()
}

// ChunkView — радиус обзора игрока в чанках
type ChunkView struct {
	Radius int32
}

// ChunkViewComponent — радиусы обзора игроков.
// Замена значения во время игры не поддерживается.
type ChunkViewComponent = Map[ChunkView]

// NewChunkView создаёт компонент радиусов обзора
func NewChunkView() *ChunkViewComponent {
	return NewMap[ChunkView]()
}

// FullChunkView — полный обзор: чанк и радиус
type FullChunkView struct {
	Chunk  entity.Chunk
	Radius int32
}

// ChunkUpdate — смена обзора игрока между тиками
type ChunkUpdate struct {
	// Обзор до смены чанка; nil у только что вошедшего игрока
	PreviousView *FullChunkView
}

// ChunkUpdateComponent — смены обзора, обрабатываемые рассылкой
// чанков в начале тика
type ChunkUpdateComponent = Map[*ChunkUpdate]

// NewChunkUpdate создаёт компонент смен обзора
func NewChunkUpdate() *ChunkUpdateComponent {
	return NewMap[*ChunkUpdate]()
}

// ActionsPackerComponent — накопители действий на игрока
type ActionsPackerComponent = Map[*messages.ActionsPacker]

// NewActionsPacker создаёт компонент накопителей действий
func NewActionsPacker() *ActionsPackerComponent {
	return NewMap[*messages.ActionsPacker]()
}

// DispatchesPackerComponent — накопители событий на игрока
type DispatchesPackerComponent = Map[*messages.DispatchesPacker]

// NewDispatchesPacker создаёт компонент накопителей событий
func NewDispatchesPacker() *DispatchesPackerComponent {
	return NewMap[*messages.DispatchesPacker]()
}

// StatePackerComponent — сборщики State-конвертов на игрока
type StatePackerComponent = Map[*messages.StatePacker]

// NewStatePacker создаёт компонент сборщиков конвертов
func NewStatePacker() *StatePackerComponent {
	return NewMap[*messages.StatePacker]()
}
