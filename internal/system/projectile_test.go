package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxbrix/voxbrix-server/internal/component/action"
	actorcmp "github.com/voxbrix/voxbrix-server/internal/component/actor"
	"github.com/voxbrix/voxbrix-server/internal/component/actorclass"
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/resource"
	"github.com/voxbrix/voxbrix-server/internal/vec"
	"github.com/voxbrix/voxbrix-server/internal/world"
)

func TestSegmentHitsAABB(t *testing.T) {
	radius := [3]float32{0.5, 0.5, 0.5}

	// Пролёт насквозь
	assert.True(t, segmentHitsAABB(
		vec.Vec3F{X: -2}, vec.Vec3F{X: 4}, radius,
	))

	// Старт внутри хитбокса
	assert.True(t, segmentHitsAABB(
		vec.Vec3F{}, vec.Vec3F{X: 10}, radius,
	))

	// Параллельный промах по соседней оси
	assert.False(t, segmentHitsAABB(
		vec.Vec3F{X: -2, Y: 2}, vec.Vec3F{X: 4}, radius,
	))

	// Отрезок кончается до хитбокса
	assert.False(t, segmentHitsAABB(
		vec.Vec3F{X: -3}, vec.Vec3F{X: 1}, radius,
	))

	// Диагональ через угол
	assert.True(t, segmentHitsAABB(
		vec.Vec3F{X: -1, Y: -1}, vec.Vec3F{X: 2, Y: 2}, radius,
	))

	// Диагональ мимо угла
	assert.False(t, segmentHitsAABB(
		vec.Vec3F{X: -2, Y: 2}, vec.Vec3F{X: 2, Y: 2}, radius,
	))

	// Движение от хитбокса
	assert.False(t, segmentHitsAABB(
		vec.Vec3F{X: 2}, vec.Vec3F{X: 4}, radius,
	))
}

func TestPositionDiff(t *testing.T) {
	edge := float32(entity.BlocksInChunkEdge)

	a := actorcmp.GlobalPosition{
		Chunk:  entity.Chunk{Position: vec.Vec3{X: 1}},
		Offset: vec.Vec3F{X: 10, Y: 5, Z: 5},
	}
	b := actorcmp.GlobalPosition{
		Chunk:  entity.Chunk{Position: vec.Vec3{X: 2, Z: -1}},
		Offset: vec.Vec3F{X: 2, Y: 5, Z: 30},
	}

	d := positionDiff(a, b)
	assert.InDelta(t, edge-8, d.X, 1e-4)
	assert.InDelta(t, 0, d.Y, 1e-4)
	assert.InDelta(t, -edge+25, d.Z, 1e-4)

	// Антисимметрия
	r := positionDiff(b, a)
	assert.InDelta(t, -d.X, r.X, 1e-4)
	assert.InDelta(t, -d.Z, r.Z, 1e-4)
}

type projectileFixture struct {
	class      *actorcmp.Class
	position   *actorcmp.Position
	projectile *actorcmp.ProjectileComponent
	hitbox     *actorclass.Collision
	effects    *actorcmp.Effects
	changes    *resource.PositionChanges
	collisions *resource.ProjectileActorCollisions
	removal    *resource.ActorRemovalQueue
}

func projectileWorld(t *testing.T) (*world.World, *projectileFixture) {
	t.Helper()

	f := &projectileFixture{
		class:      actorcmp.NewClass(0),
		position:   actorcmp.NewPosition(1),
		projectile: actorcmp.NewProjectileComponent(),
		hitbox:     actorclass.NewOverridable[actorclass.BlockCollision](1),
		effects:    actorcmp.NewEffects(2),
		changes:    &resource.PositionChanges{},
		collisions: &resource.ProjectileActorCollisions{},
		removal:    &resource.ActorRemovalQueue{},
	}

	w := world.New()
	w.AddResource(&resource.Snapshot{Current: 20})
	w.AddResource(f.class)
	w.AddResource(f.position)
	w.AddResource(f.projectile)
	w.AddResource(f.hitbox)
	w.AddResource(f.effects)
	w.AddResource(f.changes)
	w.AddResource(f.collisions)
	w.AddResource(f.removal)
	return w, f
}

func TestProjectileBlockCollisionHandlers(t *testing.T) {
	w, f := projectileWorld(t)

	source := entity.Actor(1)
	proj := entity.Actor(5)
	handlers := action.ProjectileHandlerSet{
		{
			Trigger:   action.TriggerAnyCollision,
			Condition: action.Condition{Kind: action.ConditionAlways},
			Alterations: []action.ProjectileAlteration{
				{
					Kind:   action.ProjectileApplyEffect,
					Target: action.ProjectileTarget{Kind: action.TargetSource},
					Effect: entity.Effect(3),
				},
				{Kind: action.ProjectileRemoveSelf},
			},
		},
		// Обработчик столкновения с актёром не срабатывает на блоке
		{
			Trigger:   action.TriggerActorCollision,
			Condition: action.Condition{Kind: action.ConditionAlways},
			Alterations: []action.ProjectileAlteration{
				{
					Kind:   action.ProjectileApplyEffect,
					Target: action.ProjectileTarget{Kind: action.TargetSource},
					Effect: entity.Effect(4),
				},
			},
		},
	}
	f.projectile.Insert(proj, &actorcmp.Projectile{
		SourceActor: &source,
		HandlerSet:  &handlers,
	})
	f.changes.Append(resource.PositionChange{Actor: proj, CollidesWithBlock: true})

	ProjectileBlockHandling(w)

	state, ok := f.effects.Get(source, entity.Effect(3), entity.NoDiscriminant)
	require.True(t, ok)
	assert.Equal(t, actorcmp.EffectState{}, state)
	assert.False(t, f.effects.HasAny(source, entity.Effect(4)))
	assert.Equal(t, []entity.Actor{proj}, drainActors(f.removal))
}

func TestProjectileActorCollisionHandlers(t *testing.T) {
	w, f := projectileWorld(t)

	source := entity.Actor(1)
	proj := entity.Actor(5)
	collider := entity.Actor(7)
	handlers := action.ProjectileHandlerSet{
		{
			Trigger:   action.TriggerActorCollision,
			Condition: action.Condition{Kind: action.ConditionAlways},
			Alterations: []action.ProjectileAlteration{
				{
					Kind:         action.ProjectileApplyEffect,
					Source:       action.EffectSourceSource,
					Target:       action.ProjectileTarget{Kind: action.TargetCollider},
					Effect:       entity.Effect(3),
					Discriminant: action.DiscriminantSourceActor,
				},
				{Kind: action.ProjectileRemoveSelf},
			},
		},
		// Обработчик столкновения с блоком не срабатывает на актёре
		{
			Trigger:   action.TriggerBlockCollision,
			Condition: action.Condition{Kind: action.ConditionAlways},
			Alterations: []action.ProjectileAlteration{
				{
					Kind:   action.ProjectileApplyEffect,
					Target: action.ProjectileTarget{Kind: action.TargetCollider},
					Effect: entity.Effect(4),
				},
			},
		},
	}
	f.projectile.Insert(proj, &actorcmp.Projectile{
		SourceActor: &source,
		HandlerSet:  &handlers,
	})
	f.collisions.Append(resource.ProjectileActorCollision{Projectile: proj, Target: collider})

	ProjectileActorHandling(w)

	// Дискриминант — актёр, выпустивший снаряд
	_, ok := f.effects.Get(collider, entity.Effect(3), entity.EffectDiscriminant(source))
	require.True(t, ok)
	assert.False(t, f.effects.HasAny(collider, entity.Effect(4)))
	assert.Equal(t, []entity.Actor{proj}, drainActors(f.removal))
}

func TestProjectileHitboxCollision(t *testing.T) {
	w, f := projectileWorld(t)

	f.hitbox.SetClass(0, actorclass.BlockCollision{Radius: [3]float32{0.5, 0.5, 0.5}})

	source := entity.Actor(1)
	proj := entity.Actor(5)
	target := entity.Actor(7)
	handlers := action.ProjectileHandlerSet{}
	f.projectile.Insert(proj, &actorcmp.Projectile{
		SourceActor: &source,
		HandlerSet:  &handlers,
	})

	prev := actorcmp.GlobalPosition{Offset: vec.Vec3F{X: 1, Y: 16, Z: 16}}
	next := actorcmp.GlobalPosition{Offset: vec.Vec3F{X: 20, Y: 16, Z: 16}}
	f.position.Insert(proj, next, 1)
	f.changes.Append(resource.PositionChange{
		Actor:        proj,
		PrevPosition: prev,
		NextPosition: next,
	})

	// Цель стоит на траектории, источник тоже — но он исключён
	f.class.Insert(target, 0, 1)
	f.position.Insert(target, actorcmp.GlobalPosition{
		Offset: vec.Vec3F{X: 10, Y: 16, Z: 16},
	}, 1)
	f.class.Insert(source, 0, 1)
	f.position.Insert(source, actorcmp.GlobalPosition{
		Offset: vec.Vec3F{X: 12, Y: 16, Z: 16},
	}, 1)

	ProjectileHitboxCollision(w)

	var got []resource.ProjectileActorCollision
	f.collisions.Each(func(col resource.ProjectileActorCollision) bool {
		got = append(got, col)
		return true
	})
	require.Len(t, got, 1)
	assert.Equal(t, proj, got[0].Projectile)
	assert.Equal(t, target, got[0].Target)
}

func TestProjectileHitboxCollisionMiss(t *testing.T) {
	w, f := projectileWorld(t)

	f.hitbox.SetClass(0, actorclass.BlockCollision{Radius: [3]float32{0.5, 0.5, 0.5}})

	proj := entity.Actor(5)
	target := entity.Actor(7)
	handlers := action.ProjectileHandlerSet{}
	f.projectile.Insert(proj, &actorcmp.Projectile{HandlerSet: &handlers})

	prev := actorcmp.GlobalPosition{Offset: vec.Vec3F{X: 1, Y: 16, Z: 16}}
	next := actorcmp.GlobalPosition{Offset: vec.Vec3F{X: 20, Y: 16, Z: 16}}
	f.position.Insert(proj, next, 1)
	f.changes.Append(resource.PositionChange{
		Actor:        proj,
		PrevPosition: prev,
		NextPosition: next,
	})

	// Цель в стороне от траектории
	f.class.Insert(target, 0, 1)
	f.position.Insert(target, actorcmp.GlobalPosition{
		Offset: vec.Vec3F{X: 10, Y: 20, Z: 16},
	}, 1)

	ProjectileHitboxCollision(w)

	count := 0
	f.collisions.Each(func(resource.ProjectileActorCollision) bool {
		count++
		return true
	})
	assert.Zero(t, count)
}
