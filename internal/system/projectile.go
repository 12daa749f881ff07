package system

import (
	"math"

	"github.com/voxbrix/voxbrix-server/internal/component/action"
	actorcmp "github.com/voxbrix/voxbrix-server/internal/component/actor"
	"github.com/voxbrix/voxbrix-server/internal/component/actorclass"
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/resource"
	"github.com/voxbrix/voxbrix-server/internal/vec"
	"github.com/voxbrix/voxbrix-server/internal/world"
)

// Хитбоксы считаются только между снарядами и актёрами в пределах
// этого радиуса чанков от чанка снаряда
const projectileCollisionChunkRadius = 2

// positionDiff возвращает вектор от a к b в блоках
func positionDiff(a, b actorcmp.GlobalPosition) vec.Vec3F {
	edge := float32(entity.BlocksInChunkEdge)
	return vec.Vec3F{
		X: float32(b.Chunk.Position.X-a.Chunk.Position.X)*edge + b.Offset.X - a.Offset.X,
		Y: float32(b.Chunk.Position.Y-a.Chunk.Position.Y)*edge + b.Offset.Y - a.Offset.Y,
		Z: float32(b.Chunk.Position.Z-a.Chunk.Position.Z)*edge + b.Offset.Z - a.Offset.Z,
	}
}

// segmentHitsAABB проверяет пересечение отрезка start..start+delta
// с AABB в начале координат с полугабаритами radius (метод плит)
func segmentHitsAABB(start, delta vec.Vec3F, radius [3]float32) bool {
	tMin := float32(0)
	tMax := float32(1)

	for axis := 0; axis < 3; axis++ {
		s := start.Axis(axis)
		d := delta.Axis(axis)
		r := radius[axis]

		if d == 0 {
			if s < -r || s > r {
				return false
			}
			continue
		}

		t1 := (-r - s) / d
		t2 := (r - s) / d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tMin {
			tMin = t1
		}
		if t2 < tMax {
			tMax = t2
		}
		if tMin > tMax {
			return false
		}
	}
	return true
}

type projectileHitboxData struct {
	Class           *actorcmp.Class                     `world:"read"`
	Position        *actorcmp.Position                  `world:"read"`
	Projectile      *actorcmp.ProjectileComponent       `world:"read"`
	Hitbox          *actorclass.Collision               `world:"read"`
	PositionChanges *resource.PositionChanges           `world:"read"`
	Collisions      *resource.ProjectileActorCollisions `world:"write"`
}

// ProjectileHitboxCollision находит пересечения траекторий снарядов
// за тик с хитбоксами актёров поблизости. Сам снаряд и его источник
// из проверки исключаются.
func ProjectileHitboxCollision(w *world.World) {
	d, release := world.GetData[projectileHitboxData](w)
	defer release()

	d.Collisions.Reset()

	changes := make(map[entity.Actor]*resource.PositionChange)
	d.PositionChanges.Each(func(c *resource.PositionChange) bool {
		changes[c.Actor] = c
		return true
	})

	d.Projectile.Each(func(projActor entity.Actor, proj *actorcmp.Projectile) bool {
		change, ok := changes[projActor]
		if !ok {
			return true
		}

		projDelta := positionDiff(change.PrevPosition, change.NextPosition)

		for _, chunk := range change.NextPosition.Chunk.Radius(projectileCollisionChunkRadius).Chunks() {
			d.Position.ActorsInChunk(chunk, func(target entity.Actor) bool {
				if target == projActor {
					return true
				}
				if proj.SourceActor != nil && target == *proj.SourceActor {
					return true
				}

				targetClass, ok := d.Class.Get(target)
				if !ok {
					return true
				}
				hitbox, ok := d.Hitbox.Get(targetClass, target)
				if !ok {
					return true
				}

				targetPos, ok := d.Position.Get(target)
				if !ok {
					return true
				}
				prevTargetPos := targetPos
				if tc, ok := changes[target]; ok {
					prevTargetPos = tc.PrevPosition
				}

				targetDelta := positionDiff(prevTargetPos, targetPos)

				// Относительное движение цели из системы
				// отсчёта снаряда, время тика принято за 1
				relStart := positionDiff(change.PrevPosition, prevTargetPos)
				relDelta := targetDelta.Sub(projDelta)

				if segmentHitsAABB(relStart, relDelta, hitbox.Radius) {
					d.Collisions.Append(resource.ProjectileActorCollision{
						Projectile: projActor,
						Target:     target,
					})
				}
				return true
			})
		}
		return true
	})
}

type projectileHandlingData struct {
	Snapshot        *resource.Snapshot                  `world:"read"`
	Effects         *actorcmp.Effects                   `world:"write"`
	Projectile      *actorcmp.ProjectileComponent       `world:"read"`
	Position        *actorcmp.Position                  `world:"read"`
	PositionChanges *resource.PositionChanges           `world:"read"`
	Collisions      *resource.ProjectileActorCollisions `world:"read"`
	ActorRemoval    *resource.ActorRemovalQueue         `world:"write"`
}

// applyProjectileAlterations применяет изменения одного обработчика.
// collider не равен nil только для столкновения с актёром.
func applyProjectileAlterations(
	d *projectileHandlingData,
	projActor entity.Actor,
	proj *actorcmp.Projectile,
	collider *entity.Actor,
	alterations []action.ProjectileAlteration,
) {
	snapshot := d.Snapshot.Current

	for i := range alterations {
		alt := &alterations[i]
		switch alt.Kind {
		case action.ProjectileApplyEffect:
			var discriminant entity.EffectDiscriminant
			switch alt.Discriminant {
			case action.DiscriminantSourceActor:
				var base *entity.Actor
				switch alt.Source {
				case action.EffectSourceSource:
					base = proj.SourceActor
				case action.EffectSourceCollider:
					base = collider
				case action.EffectSourceWorld:
					base = nil
				}
				if base == nil {
					continue
				}
				discriminant = entity.EffectDiscriminant(*base)
			default:
				discriminant = entity.NoDiscriminant
			}

			state := buildEffectState(alt.State, snapshot)

			var targets []entity.Actor
			switch alt.Target.Kind {
			case action.TargetSource:
				if proj.SourceActor == nil {
					continue
				}
				targets = []entity.Actor{*proj.SourceActor}
			case action.TargetCollider:
				if collider == nil {
					continue
				}
				targets = []entity.Actor{*collider}
			case action.TargetAllInRadius:
				targets = actorsInRadius(d.Position, projActor, alt.Target.Radius)
			}

			for _, target := range targets {
				d.Effects.Insert(target, alt.Effect, discriminant, state, snapshot)
			}
		case action.ProjectileRemoveSourceActorEffect:
			if proj.SourceActor == nil {
				continue
			}
			d.Effects.RemoveAny(*proj.SourceActor, alt.Effect, snapshot)
		case action.ProjectileRemoveSelf:
			d.ActorRemoval.Enqueue(projActor)
		}
	}
}

// actorsInRadius собирает актёров в radius блоках от позиции актёра
func actorsInRadius(positions *actorcmp.Position, center entity.Actor, radius float32) []entity.Actor {
	origin, ok := positions.Get(center)
	if !ok {
		return nil
	}

	chunkSpan := int32(math.Ceil(float64(radius)/float64(entity.BlocksInChunkEdge))) + 1

	var out []entity.Actor
	for _, chunk := range origin.Chunk.Radius(chunkSpan).Chunks() {
		positions.ActorsInChunk(chunk, func(a entity.Actor) bool {
			pos, ok := positions.Get(a)
			if !ok {
				return true
			}
			if positionDiff(origin, pos).Length() <= radius {
				out = append(out, a)
			}
			return true
		})
	}
	return out
}

// projectileConditionValid — условия обработчиков снарядов не имеют
// доступа к эффектам источника, поддерживаются только логические
func projectileConditionValid(c *action.Condition) bool {
	switch c.Kind {
	case action.ConditionAlways:
		return true
	case action.ConditionAnd:
		for i := range c.Set {
			if !projectileConditionValid(&c.Set[i]) {
				return false
			}
		}
		return true
	case action.ConditionOr:
		for i := range c.Set {
			if projectileConditionValid(&c.Set[i]) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ProjectileBlockHandling запускает обработчики снарядов, упёршихся
// в блок за прошедшую интеграцию движения
func ProjectileBlockHandling(w *world.World) {
	d, release := world.GetData[projectileHandlingData](w)
	defer release()

	d.PositionChanges.Each(func(change *resource.PositionChange) bool {
		if !change.CollidesWithBlock {
			return true
		}
		proj, ok := d.Projectile.Get(change.Actor)
		if !ok {
			return true
		}

		for _, handler := range *proj.HandlerSet {
			if handler.Trigger == action.TriggerActorCollision {
				continue
			}
			if !projectileConditionValid(&handler.Condition) {
				continue
			}
			applyProjectileAlterations(d, change.Actor, proj, nil, handler.Alterations)
		}
		return true
	})
}

// ProjectileActorHandling запускает обработчики снарядов, чьи
// траектории пересекли хитбоксы актёров
func ProjectileActorHandling(w *world.World) {
	d, release := world.GetData[projectileHandlingData](w)
	defer release()

	d.Collisions.Each(func(col resource.ProjectileActorCollision) bool {
		proj, ok := d.Projectile.Get(col.Projectile)
		if !ok {
			return true
		}

		collider := col.Target
		for _, handler := range *proj.HandlerSet {
			if handler.Trigger == action.TriggerBlockCollision {
				continue
			}
			if !projectileConditionValid(&handler.Condition) {
				continue
			}
			applyProjectileAlterations(d, col.Projectile, proj, &collider, handler.Alterations)
		}
		return true
	})
}
