package system

import (
	"context"

	actorcmp "github.com/voxbrix/voxbrix-server/internal/component/actor"
	"github.com/voxbrix/voxbrix-server/internal/component/effect"
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/metrics"
	"github.com/voxbrix/voxbrix-server/internal/pack"
	"github.com/voxbrix/voxbrix-server/internal/resource"
	"github.com/voxbrix/voxbrix-server/internal/script"
	"github.com/voxbrix/voxbrix-server/internal/world"
)

// effectConditionValid оценивает условие обработчика эффекта.
// EveryNSnapshot читает из состояния эффекта стартовый снапшот и
// период; повреждённое состояние считается несработавшим условием.
func effectConditionValid(
	c *effect.Condition,
	snapshot entity.ServerSnapshot,
	state *actorcmp.EffectState,
) bool {
	switch c.Kind {
	case effect.ConditionAlways:
		return true
	case effect.ConditionEveryNSnapshot:
		r := pack.NewReader(state[:])
		start, err := r.ReadUvarint()
		if err != nil {
			return false
		}
		period, err := r.ReadUvarint()
		if err != nil || period == 0 {
			return false
		}
		if uint64(snapshot) == start {
			return false
		}
		var elapsed uint64
		if uint64(snapshot) > start {
			elapsed = uint64(snapshot) - start
		}
		return elapsed%period == 0
	case effect.ConditionAnd:
		for i := range c.Set {
			if !effectConditionValid(&c.Set[i], snapshot, state) {
				return false
			}
		}
		return true
	case effect.ConditionOr:
		for i := range c.Set {
			if effectConditionValid(&c.Set[i], snapshot, state) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

type effectSnapshotData struct {
	Snapshot *resource.Snapshot       `world:"read"`
	Effects  *actorcmp.Effects        `world:"write"`
	Handlers *effect.SnapshotHandlers `world:"read"`
}

// EffectSnapshot прогоняет обработчики всех активных эффектов один
// раз за тик. Удаления откладываются до конца обхода, скрипты —
// до освобождения заимствований.
func EffectSnapshot(w *world.World, ctx context.Context, registry *script.Registry) {
	type scriptedRun struct {
		script entity.Script
		input  []byte
	}
	var scripted []scriptedRun

	func() {
		d, release := world.GetData[effectSnapshotData](w)
		defer release()

		snapshot := d.Snapshot.Current

		var remove []actorcmp.EffectKey
		d.Effects.Each(func(key actorcmp.EffectKey, state actorcmp.EffectState) bool {
			for _, handler := range d.Handlers.Get(key.Effect) {
				if !effectConditionValid(&handler.Condition, snapshot, &state) {
					continue
				}
				for _, alt := range handler.Alterations {
					switch alt.Kind {
					case effect.AlterationRemoveThisEffect:
						remove = append(remove, key)
					case effect.AlterationScripted:
						input := script.EffectInput{
							Effect:       key.Effect,
							Actor:        key.Actor,
							Discriminant: uint64(key.Discriminant),
							Snapshot:     uint64(snapshot),
						}
						scripted = append(scripted, scriptedRun{
							script: alt.Script,
							input:  pack.ToBytes(&input),
						})
					}
				}
			}
			return true
		})

		for _, key := range remove {
			d.Effects.Remove(key.Actor, key.Effect, key.Discriminant, snapshot)
		}
	}()

	for _, run := range scripted {
		if err := registry.Run(ctx, run.script, NewScriptAccess(w), run.input); err != nil {
			metrics.ScriptFailures.Inc()
		}
	}
}
