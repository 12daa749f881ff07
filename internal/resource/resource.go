// Package resource содержит небольшие общие ресурсы мира,
// не являющиеся компонентами сущностей.
package resource

import (
	"time"

	"github.com/voxbrix/voxbrix-server/internal/component/actor"
	"github.com/voxbrix/voxbrix-server/internal/entity"
)

// Snapshot — текущий снапшот сервера. Инкрементируется один раз
// в конце каждого тика.
type Snapshot struct {
	Current entity.ServerSnapshot
}

// ProcessTimer измеряет реальную длительность прошедшего тика
type ProcessTimer struct {
	last    time.Time
	elapsed time.Duration
}

// NewProcessTimer создаёт таймер тика
func NewProcessTimer() *ProcessTimer {
	return &ProcessTimer{last: time.Now()}
}

// RecordNext фиксирует начало нового тика
func (t *ProcessTimer) RecordNext() {
	now := time.Now()
	elapsed := now.Sub(t.last)
	if elapsed < 0 {
		elapsed = 0
	}
	t.last = now
	t.elapsed = elapsed
}

// Elapsed возвращает длительность предыдущего тика
func (t *ProcessTimer) Elapsed() time.Duration {
	return t.elapsed
}

// RemovalQueue — очередь сущностей на удаление, опустошается
// единым проходом в конце тика
type RemovalQueue[T any] struct {
	queue []T
}

// Enqueue добавляет сущность в очередь
func (q *RemovalQueue[T]) Enqueue(v T) {
	q.queue = append(q.queue, v)
}

// Drain отдаёт накопленные сущности и очищает очередь
func (q *RemovalQueue[T]) Drain(f func(T)) {
	for _, v := range q.queue {
		f(v)
	}
	q.queue = q.queue[:0]
}

// IsEmpty сообщает, пуста ли очередь
func (q *RemovalQueue[T]) IsEmpty() bool {
	return len(q.queue) == 0
}

// ActorRemovalQueue — очередь актёров на удаление
type ActorRemovalQueue = RemovalQueue[entity.Actor]

// PlayerRemovalQueue — очередь игроков на удаление
type PlayerRemovalQueue = RemovalQueue[entity.Player]

// PositionChange — результат интеграции движения одного актёра
// за тик. Используется обработчиками снарядов.
type PositionChange struct {
	Actor             entity.Actor
	PrevPosition      actor.GlobalPosition
	NextPosition      actor.GlobalPosition
	PrevVelocity      actor.Velocity
	NextVelocity      actor.Velocity
	CollidesWithBlock bool
}

// PositionChanges — буфер изменений позиций за текущий тик
type PositionChanges struct {
	changes []PositionChange
}

// Reset очищает буфер перед новым тиком
func (c *PositionChanges) Reset() {
	c.changes = c.changes[:0]
}

// Append добавляет изменение
func (c *PositionChanges) Append(change PositionChange) {
	c.changes = append(c.changes, change)
}

// Each перебирает изменения, пока f возвращает true
func (c *PositionChanges) Each(f func(*PositionChange) bool) {
	for i := range c.changes {
		if !f(&c.changes[i]) {
			return
		}
	}
}

// ProjectileActorCollision — столкновение снаряда с актёром,
// найденное проверкой хитбоксов
type ProjectileActorCollision struct {
	Projectile entity.Actor
	Target     entity.Actor
}

// ProjectileActorCollisions — буфер столкновений за текущий тик
type ProjectileActorCollisions struct {
	collisions []ProjectileActorCollision
}

// Reset очищает буфер перед новым тиком
func (c *ProjectileActorCollisions) Reset() {
	c.collisions = c.collisions[:0]
}

// Append добавляет столкновение
func (c *ProjectileActorCollisions) Append(col ProjectileActorCollision) {
	c.collisions = append(c.collisions, col)
}

// Each перебирает столкновения, пока f возвращает true
func (c *ProjectileActorCollisions) Each(f func(ProjectileActorCollision) bool) {
	for _, col := range c.collisions {
		if !f(col) {
			return
		}
	}
}
