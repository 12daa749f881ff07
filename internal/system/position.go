// Package system содержит потиковые системы сервера. Каждая система
// объявляет структуру доступа к ресурсам мира и выполняется строго
// последовательно внутри тика.
package system

import (
	"sort"
	"time"

	actorcmp "github.com/voxbrix/voxbrix-server/internal/component/actor"
	"github.com/voxbrix/voxbrix-server/internal/component/actorclass"
	"github.com/voxbrix/voxbrix-server/internal/component/block"
	"github.com/voxbrix/voxbrix-server/internal/component/blockclass"
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/resource"
	"github.com/voxbrix/voxbrix-server/internal/vec"
	"github.com/voxbrix/voxbrix-server/internal/world"
)

// Отступ от грани блока при упоре, чтобы округление не заталкивало
// актёра внутрь блока
const collisionPushback = 1.0e-3

// Максимальная дистанция прицеливания по блокам
const maxBlockTargetDistance = 8

type moveLimit struct {
	axisSet [3]int

	// Квадрат расстояния до столкнувшегося блока, задаёт
	// приоритет применения ограничений
	colliderDistance float32
	maxMovement      float32
}

// Integrate продвигает актёра на velocity*dt с поосным ограничением
// движения блоками класса SolidCube. Возвращает новую позицию,
// скорость с обнулёнными упёршимися осями и признак столкновения.
func Integrate(
	dt time.Duration,
	blocks *block.Classes,
	collision *blockclass.Collision,
	position actorcmp.GlobalPosition,
	velocity actorcmp.Velocity,
	radius [3]float32,
) (actorcmp.GlobalPosition, actorcmp.Velocity, bool) {
	centerChunk := position.Chunk
	startPosition := position.Offset

	calcPass := func(finishPosition vec.Vec3F, axisSet [3]int) *moveLimit {
		a0, a1, a2 := axisSet[0], axisSet[1], axisSet[2]

		travel := finishPosition.Axis(a0) - startPosition.Axis(a0)
		if travel == 0 {
			return nil
		}
		negative := travel < 0

		var actorStart, actorFinish float32
		var blockOffset int32
		if negative {
			actorStart = startPosition.Axis(a0) - radius[a0]
			actorFinish = finishPosition.Axis(a0) - radius[a0]
			blockOffset = 1
		} else {
			actorStart = startPosition.Axis(a0) + radius[a0]
			actorFinish = finishPosition.Axis(a0) + radius[a0]
			blockOffset = 0
		}

		blockStart := vec.RoundDown(actorStart)
		blockFinish := vec.RoundDown(actorFinish)

		var blockRange []int32
		if negative {
			for b := blockStart - 1; b >= blockFinish; b-- {
				blockRange = append(blockRange, b)
			}
		} else {
			for b := blockStart + 1; b <= blockFinish; b++ {
				blockRange = append(blockRange, b)
			}
		}

		for _, blockA0 := range blockRange {
			t := (float32(blockA0+blockOffset) - actorStart) / velocity.Vector.Axis(a0)

			actorA1 := axisAtTime(startPosition, finishPosition, velocity.Vector, a1, t)
			blockA1m := vec.RoundDown(actorA1 - radius[a1])
			blockA1p := vec.RoundDown(actorA1 + radius[a1])

			for blockA1 := blockA1m; blockA1 <= blockA1p; blockA1++ {
				actorA2 := axisAtTime(startPosition, finishPosition, velocity.Vector, a2, t)
				blockA2m := vec.RoundDown(actorA2 - radius[a2])
				blockA2p := vec.RoundDown(actorA2 + radius[a2])

				for blockA2 := blockA2m; blockA2 <= blockA2p; blockA2++ {
					var chunkOffset [3]int32
					chunkOffset[a0] = blockA0
					chunkOffset[a1] = blockA1
					chunkOffset[a2] = blockA2

					chunk, blk, ok := entity.BlockFromChunkOffset(centerChunk, vec.Vec3{
						X: chunkOffset[0],
						Y: chunkOffset[1],
						Z: chunkOffset[2],
					})
					if !ok {
						// Чанк за границами мира
						continue
					}

					chunkBlocks, ok := blocks.GetChunk(chunk)
					if !ok {
						// Чанк не загружен, пропускаем
						continue
					}

					kind, ok := collision.Get(chunkBlocks.Get(blk))
					if !ok || kind != blockclass.CollisionSolidCube {
						continue
					}

					maxMovement := float32(blockA0 + blockOffset)
					if negative {
						maxMovement += radius[a0] + collisionPushback
					} else {
						maxMovement -= radius[a0] + collisionPushback
					}

					d0 := float32(blockA0) + 0.5 - startPosition.Axis(a0)
					d1 := float32(blockA1) + 0.5 - startPosition.Axis(a1)
					d2 := float32(blockA2) + 0.5 - startPosition.Axis(a2)

					return &moveLimit{
						axisSet:          axisSet,
						colliderDistance: d0*d0 + d1*d1 + d2*d2,
						maxMovement:      maxMovement,
					}
				}
			}
		}

		return nil
	}

	finishPosition := startPosition.Add(velocity.Vector.Mul(float32(dt.Seconds())))

	axisSets := [3][3]int{{0, 1, 2}, {1, 0, 2}, {2, 0, 1}}

	var moveLimits []*moveLimit
	for _, axisSet := range axisSets {
		if ml := calcPass(finishPosition, axisSet); ml != nil {
			moveLimits = append(moveLimits, ml)
		}
	}

	collided := false
	nextVelocity := velocity

	applyLimit := func(ml *moveLimit) {
		finishPosition.SetAxis(ml.axisSet[0], ml.maxMovement)
		nextVelocity.Vector.SetAxis(ml.axisSet[0], 0)
		collided = true
	}

	// Часть столкнувшихся блоков может оказаться недостижимой
	// за блоками на другой оси; приоритет задаётся расстоянием
	// от начальной позиции до блока
	for len(moveLimits) > 1 {
		sort.Slice(moveLimits, func(i, j int) bool {
			return moveLimits[i].colliderDistance < moveLimits[j].colliderDistance
		})

		applyLimit(moveLimits[0])

		var next []*moveLimit
		for _, ml := range moveLimits[1:] {
			if recalced := calcPass(finishPosition, ml.axisSet); recalced != nil {
				next = append(next, recalced)
			}
		}
		moveLimits = next
	}

	if len(moveLimits) == 1 {
		applyLimit(moveLimits[0])
	}

	// Перенос актёра в другой чанк, если смещение вышло за границы
	edge := float32(entity.BlocksInChunkEdge)
	var chunkDiff vec.Vec3
	rebase := false
	for axis := 0; axis < 3; axis++ {
		f := finishPosition.Axis(axis)
		if f < 0 || f >= edge {
			rebase = true
		}
	}
	if rebase {
		chunkDiff = vec.Vec3{
			X: floorDiv(vec.RoundDown(finishPosition.X), entity.BlocksInChunkEdge),
			Y: floorDiv(vec.RoundDown(finishPosition.Y), entity.BlocksInChunkEdge),
			Z: floorDiv(vec.RoundDown(finishPosition.Z), entity.BlocksInChunkEdge),
		}

		finalChunk := centerChunk.SaturatingAdd(chunkDiff)

		actorDiff := vec.Vec3F{
			X: float32(finalChunk.Position.X-centerChunk.Position.X) * edge,
			Y: float32(finalChunk.Position.Y-centerChunk.Position.Y) * edge,
			Z: float32(finalChunk.Position.Z-centerChunk.Position.Z) * edge,
		}

		centerChunk = finalChunk
		finishPosition = finishPosition.Sub(actorDiff)
	}

	return actorcmp.GlobalPosition{
		Chunk:  centerChunk,
		Offset: finishPosition,
	}, nextVelocity, collided
}

// axisAtTime возвращает координату актёра по оси axis в момент t,
// ограниченную конечной позицией
func axisAtTime(start, finish, velocity vec.Vec3F, axis int, t float32) float32 {
	v := velocity.Axis(axis)
	switch {
	case v < 0:
		c := start.Axis(axis) + v*t
		if f := finish.Axis(axis); c < f {
			return f
		}
		return c
	case v > 0:
		c := start.Axis(axis) + v*t
		if f := finish.Axis(axis); c > f {
			return f
		}
		return c
	default:
		return finish.Axis(axis)
	}
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// TargetBlock ищет ближайший блок по лучу из позиции в направлении
// direction, для которого targeting возвращает true. Side — индекс
// стороны попадания в порядке [-x, +x, -y, +y, -z, +z].
// maxDistance вне (0, maxBlockTargetDistance] отсекается до предела.
func TargetBlock(
	position actorcmp.GlobalPosition,
	direction vec.Vec3F,
	maxDistance float32,
	targeting func(entity.Chunk, entity.Block) bool,
) (entity.Chunk, entity.Block, uint8, bool) {
	if maxDistance <= 0 || maxDistance > maxBlockTargetDistance {
		maxDistance = maxBlockTargetDistance
	}

	var (
		found     bool
		bestTime  float32
		bestChunk entity.Chunk
		bestBlock entity.Block
		bestSide  uint8
	)

	for _, axes := range [3][3]int{{0, 1, 2}, {1, 2, 0}, {2, 0, 1}} {
		axis0, axis1, axis2 := axes[0], axes[1], axes[2]

		for step := int32(0); step < maxBlockTargetDistance; step++ {
			// wallOffset даёт расстояние до "стены" из блоков:
			// при движении в плюс после округления вниз надо
			// добавить единицу, в минус — ноль.
			// blockCoordOffset даёт координату блока стены: при
			// движении в минус сам блок на один позади стены,
			// потому что луч упирается в его переднюю грань.
			var axisOffset, blockCoordOffset int32
			var wallOffset int32
			var sideIndex uint8
			switch {
			case direction.Axis(axis0) < 0:
				axisOffset, wallOffset, blockCoordOffset = -step, 0, -1
				sideIndex = uint8(axis0*2 + 1)
			case direction.Axis(axis0) > 0:
				axisOffset, wallOffset, blockCoordOffset = step, 1, 0
				sideIndex = uint8(axis0 * 2)
			default:
				continue
			}

			// Расстояние до грани столкновения
			blockSideAxis0 := vec.RoundDown(position.Offset.Axis(axis0)) + axisOffset + wallOffset

			t := (float32(blockSideAxis0) - position.Offset.Axis(axis0)) / direction.Axis(axis0)

			if t*direction.Length() > maxDistance {
				break
			}

			blockAxis0 := blockSideAxis0 + blockCoordOffset

			if found && t >= bestTime {
				continue
			}

			blockAxis1 := vec.RoundDown(position.Offset.Axis(axis1) + t*direction.Axis(axis1))
			blockAxis2 := vec.RoundDown(position.Offset.Axis(axis2) + t*direction.Axis(axis2))

			var blockOffset [3]int32
			blockOffset[axis0] = blockAxis0
			blockOffset[axis1] = blockAxis1
			blockOffset[axis2] = blockAxis2

			chunk, blk, ok := entity.BlockFromChunkOffset(position.Chunk, vec.Vec3{
				X: blockOffset[0],
				Y: blockOffset[1],
				Z: blockOffset[2],
			})
			if !ok {
				continue
			}

			if targeting(chunk, blk) {
				found = true
				bestTime = t
				bestChunk = chunk
				bestBlock = blk
				bestSide = sideIndex
			}
		}
	}

	return bestChunk, bestBlock, bestSide, found
}

type positionData struct {
	Snapshot        *resource.Snapshot          `world:"read"`
	Timer           *resource.ProcessTimer      `world:"read"`
	Blocks          *block.Classes              `world:"read"`
	BlockCollision  *blockclass.Collision       `world:"read"`
	Class           *actorcmp.Class             `world:"read"`
	Player          *actorcmp.PlayerHandle      `world:"read"`
	ActorCollision  *actorclass.Collision       `world:"read"`
	Position        *actorcmp.Position          `world:"write"`
	Velocity        *actorcmp.VelocityComponent `world:"write"`
	PositionChanges *resource.PositionChanges   `world:"write"`
}

// Position интегрирует движение всех актёров со скоростью.
// Изменения актёров-игроков записываются в буфер, но не применяются:
// кинематику игрока диктует его клиент.
func Position(w *world.World) {
	d, release := world.GetData[positionData](w)
	defer release()

	d.PositionChanges.Reset()

	d.Velocity.Each(func(a entity.Actor, velocity actorcmp.Velocity) bool {
		position, ok := d.Position.Get(a)
		if !ok {
			return true
		}
		class, ok := d.Class.Get(a)
		if !ok {
			return true
		}
		shape, ok := d.ActorCollision.Get(class, a)
		if !ok {
			return true
		}

		nextPosition, nextVelocity, collided := Integrate(
			d.Timer.Elapsed(),
			d.Blocks,
			d.BlockCollision,
			position,
			velocity,
			shape.Radius,
		)

		d.PositionChanges.Append(resource.PositionChange{
			Actor:             a,
			PrevPosition:      position,
			NextPosition:      nextPosition,
			PrevVelocity:      velocity,
			NextVelocity:      nextVelocity,
			CollidesWithBlock: collided,
		})
		return true
	})

	snapshot := d.Snapshot.Current
	d.PositionChanges.Each(func(change *resource.PositionChange) bool {
		if _, owned := d.Player.Get(change.Actor); owned {
			return true
		}
		d.Position.Insert(change.Actor, change.NextPosition, snapshot)
		d.Velocity.Insert(change.Actor, change.NextVelocity, snapshot)
		return true
	})
}
