package system

import (
	"context"

	"github.com/voxbrix/voxbrix-server/internal/component/action"
	actorcmp "github.com/voxbrix/voxbrix-server/internal/component/actor"
	"github.com/voxbrix/voxbrix-server/internal/component/player"
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/messages"
	"github.com/voxbrix/voxbrix-server/internal/metrics"
	"github.com/voxbrix/voxbrix-server/internal/pack"
	"github.com/voxbrix/voxbrix-server/internal/resource"
	"github.com/voxbrix/voxbrix-server/internal/script"
	"github.com/voxbrix/voxbrix-server/internal/world"
)

// resolveDiscriminant выбирает дискриминант эффекта по описанию
func resolveDiscriminant(
	kind action.DiscriminantType,
	source entity.Actor,
	act entity.Action,
) entity.EffectDiscriminant {
	switch kind {
	case action.DiscriminantSourceActor:
		return entity.EffectDiscriminant(source)
	case action.DiscriminantAction:
		return entity.EffectDiscriminant(act)
	default:
		return entity.NoDiscriminant
	}
}

// buildEffectState заполняет состояние эффекта по описанию
func buildEffectState(spec action.EffectStateSpec, snapshot entity.ServerSnapshot) actorcmp.EffectState {
	var state actorcmp.EffectState
	if spec.Kind == action.StateCurrentSnapshotWithN {
		var buf pack.Buffer
		buf.WriteUvarint(uint64(snapshot))
		buf.WriteUvarint(uint64(spec.N))
		copy(state[:], buf.Bytes())
	}
	return state
}

// conditionValid оценивает условие обработчика для актёра-источника
func conditionValid(
	c *action.Condition,
	effects *actorcmp.Effects,
	source entity.Actor,
	act entity.Action,
) bool {
	switch c.Kind {
	case action.ConditionAlways:
		return true
	case action.ConditionSourceActorHasNoEffect:
		d := resolveDiscriminant(c.Discriminant, source, act)
		return !effects.Has(source, c.Effect, d)
	case action.ConditionAnd:
		for i := range c.Set {
			if !conditionValid(&c.Set[i], effects, source, act) {
				return false
			}
		}
		return true
	case action.ConditionOr:
		for i := range c.Set {
			if conditionValid(&c.Set[i], effects, source, act) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

type playerActionsData struct {
	Snapshot    *resource.Snapshot             `world:"read"`
	PlayerActor *player.ActorComponent         `world:"read"`
	Clients     *player.ClientComponent        `world:"read"`
	Handlers    *action.Handlers               `world:"read"`
	Effects     *actorcmp.Effects              `world:"write"`
	Registry    *entity.ActorRegistry          `world:"write"`
	Class       *actorcmp.Class                `world:"write"`
	Position    *actorcmp.Position             `world:"write"`
	Velocity    *actorcmp.VelocityComponent    `world:"write"`
	Orientation *actorcmp.OrientationComponent `world:"write"`
	Projectile  *actorcmp.ProjectileComponent  `world:"write"`
}

// PlayerActions обрабатывает действия из клиентского конверта State.
// Уже обработанные действия отфильтровываются по снапшоту клиента,
// поэтому вызывать систему нужно до PlayerUpdates того же конверта.
// Скриптовые изменения выполняются после освобождения заимствований,
// чтобы хост-вызовы скрипта могли взять мир заново.
func PlayerActions(
	w *world.World,
	ctx context.Context,
	registry *script.Registry,
	p entity.Player,
	state *messages.State,
) {
	type scriptedRun struct {
		script entity.Script
		input  []byte
	}
	var scripted []scriptedRun

	func() {
		d, release := world.GetData[playerActionsData](w)
		defer release()

		actor, ok := d.PlayerActor.Get(p)
		if !ok {
			return
		}
		client, ok := d.Clients.Get(p)
		if !ok {
			return
		}

		snapshot := d.Snapshot.Current

		for i := range state.Actions {
			sa := &state.Actions[i]
			if sa.Snapshot <= uint64(client.LastClientSnapshot) {
				continue
			}

			for _, handler := range d.Handlers.Get(sa.Action) {
				if !conditionValid(&handler.Condition, d.Effects, actor, sa.Action) {
					continue
				}

				for ai := range handler.Alterations {
					alt := &handler.Alterations[ai]
					switch alt.Kind {
					case action.AlterationApplyEffect:
						d.Effects.Insert(
							actor,
							alt.Effect,
							resolveDiscriminant(alt.Discriminant, actor, sa.Action),
							buildEffectState(alt.State, snapshot),
							snapshot,
						)
					case action.AlterationRemoveSourceActorEffect:
						d.Effects.RemoveAny(actor, alt.Effect, snapshot)
					case action.AlterationCreateProjectile:
						position, ok := d.Position.Get(actor)
						if !ok {
							continue
						}
						orientation, ok := d.Orientation.Get(actor)
						if !ok {
							continue
						}

						projectile := d.Registry.Add(snapshot)
						d.Class.Insert(projectile, alt.ActorClass, snapshot)

						source := actor
						actionData := make([]byte, len(sa.Payload))
						copy(actionData, sa.Payload)
						d.Projectile.Insert(projectile, &actorcmp.Projectile{
							SourceActor: &source,
							HandlerSet:  alt.HandlerSet,
							ActionData:  actionData,
						})
						d.Position.Insert(projectile, position, snapshot)
						d.Orientation.Insert(projectile, orientation, snapshot)
						d.Velocity.Insert(projectile, actorcmp.Velocity{
							Vector: orientation.Rotation.Forward().Mul(alt.VelocityMagnitude),
						}, snapshot)
					case action.AlterationScripted:
						input := script.ActionInput{
							Action:      sa.Action,
							SourceActor: actor,
							Snapshot:    uint64(snapshot),
							Payload:     sa.Payload,
						}
						scripted = append(scripted, scriptedRun{
							script: alt.Script,
							input:  pack.ToBytes(&input),
						})
					}
				}
			}
		}
	}()

	for _, run := range scripted {
		if err := registry.Run(ctx, run.script, NewScriptAccess(w), run.input); err != nil {
			metrics.ScriptFailures.Inc()
		}
	}
}
