package action

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxbrix/voxbrix-server/internal/entity"
)

func testLibrary() *entity.LabelLibrary {
	return &entity.LabelLibrary{
		ActorClasses: entity.NewLabelMap[entity.ActorClass]([]string{"human", "fireball"}),
		Effects:      entity.NewLabelMap[entity.Effect]([]string{"attack_cooldown", "burning"}),
		Actions:      entity.NewLabelMap[entity.Action]([]string{"fireball_throw", "noop"}),
		Scripts:      entity.NewLabelMap[entity.Script]([]string{"on_hit"}),
	}
}

func writeHandlers(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "action_handlers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadHandlers(t *testing.T) {
	lib := testLibrary()
	path := writeHandlers(t, `
handlers:
  fireball_throw:
    - condition:
        kind: SourceActorHasNoEffect
        effect: attack_cooldown
        discriminant:
          kind: SourceActor
      alterations:
        - kind: ApplyEffect
          effect: attack_cooldown
          discriminant:
            kind: SourceActor
          state:
            kind: CurrentSnapshotWithN
            n: 20
        - kind: CreateProjectile
          actor_class: fireball
          velocity_magnitude: 30.0
          handler_set:
            - trigger: ActorCollision
              condition:
                kind: Always
              alterations:
                - kind: ApplyEffect
                  effect: burning
                  source: Source
                  target:
                    kind: Collider
                  state:
                    kind: CurrentSnapshotWithN
                    n: 60
                - kind: RemoveSelf
            - trigger: BlockCollision
              condition:
                kind: Always
              alterations:
                - kind: RemoveSelf
`)

	handlers, err := LoadHandlers(path, lib)
	require.NoError(t, err)

	throw, _ := lib.Actions.Get("fireball_throw")
	set := handlers.Get(throw)
	require.Len(t, set, 1)

	h := set[0]
	assert.Equal(t, ConditionSourceActorHasNoEffect, h.Condition.Kind)
	assert.Equal(t, DiscriminantSourceActor, h.Condition.Discriminant)

	require.Len(t, h.Alterations, 2)
	apply := h.Alterations[0]
	assert.Equal(t, AlterationApplyEffect, apply.Kind)
	assert.Equal(t, StateCurrentSnapshotWithN, apply.State.Kind)
	assert.Equal(t, uint32(20), apply.State.N)

	projectile := h.Alterations[1]
	assert.Equal(t, AlterationCreateProjectile, projectile.Kind)
	assert.Equal(t, float32(30.0), projectile.VelocityMagnitude)
	require.NotNil(t, projectile.HandlerSet)
	require.Len(t, *projectile.HandlerSet, 2)
	assert.Equal(t, TriggerActorCollision, (*projectile.HandlerSet)[0].Trigger)
	assert.Equal(t, TriggerBlockCollision, (*projectile.HandlerSet)[1].Trigger)
	assert.Equal(t, ProjectileRemoveSelf, (*projectile.HandlerSet)[1].Alterations[0].Kind)

	// Действие без дескриптора получает пустой набор
	noop, _ := lib.Actions.Get("noop")
	assert.Empty(t, handlers.Get(noop))
}

func TestLoadHandlersUnknownAction(t *testing.T) {
	path := writeHandlers(t, `
handlers:
  teleport:
    - condition:
        kind: Always
`)
	_, err := LoadHandlers(path, testLibrary())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "teleport")
}

func TestLoadHandlersUnknownEffect(t *testing.T) {
	path := writeHandlers(t, `
handlers:
  fireball_throw:
    - condition:
        kind: Always
      alterations:
        - kind: ApplyEffect
          effect: frost
`)
	_, err := LoadHandlers(path, testLibrary())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frost")
}

func TestLoadHandlersUnknownKinds(t *testing.T) {
	for name, content := range map[string]string{
		"condition": `
handlers:
  fireball_throw:
    - condition:
        kind: WhenRaining
`,
		"alteration": `
handlers:
  fireball_throw:
    - condition:
        kind: Always
      alterations:
        - kind: Explode
`,
		"trigger": `
handlers:
  fireball_throw:
    - condition:
        kind: Always
      alterations:
        - kind: CreateProjectile
          actor_class: fireball
          handler_set:
            - trigger: Timer
              condition:
                kind: Always
`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadHandlers(writeHandlers(t, content), testLibrary())
			require.Error(t, err)
		})
	}
}

func TestLoadHandlersZeroPeriodRejected(t *testing.T) {
	path := writeHandlers(t, `
handlers:
  fireball_throw:
    - condition:
        kind: Always
      alterations:
        - kind: ApplyEffect
          effect: burning
          state:
            kind: CurrentSnapshotWithN
            n: 0
`)
	_, err := LoadHandlers(path, testLibrary())
	require.Error(t, err)
}

func TestLoadHandlersProjectileActionDiscriminantRejected(t *testing.T) {
	// Снаряд переживает породившее его действие, дискриминант Action
	// для его обработчиков не имеет смысла
	path := writeHandlers(t, `
handlers:
  fireball_throw:
    - condition:
        kind: Always
      alterations:
        - kind: CreateProjectile
          actor_class: fireball
          handler_set:
            - trigger: AnyCollision
              condition:
                kind: Always
              alterations:
                - kind: ApplyEffect
                  effect: burning
                  discriminant:
                    kind: Action
                  target:
                    kind: Collider
`)
	_, err := LoadHandlers(path, testLibrary())
	require.Error(t, err)
}

func TestLoadHandlersCompositeConditions(t *testing.T) {
	lib := testLibrary()
	path := writeHandlers(t, `
handlers:
  fireball_throw:
    - condition:
        kind: And
        set:
          - kind: SourceActorHasNoEffect
            effect: attack_cooldown
          - kind: Or
            set:
              - kind: Always
      alterations:
        - kind: Scripted
          script: on_hit
`)
	handlers, err := LoadHandlers(path, lib)
	require.NoError(t, err)

	throw, _ := lib.Actions.Get("fireball_throw")
	set := handlers.Get(throw)
	require.Len(t, set, 1)

	cond := set[0].Condition
	assert.Equal(t, ConditionAnd, cond.Kind)
	require.Len(t, cond.Set, 2)
	assert.Equal(t, ConditionSourceActorHasNoEffect, cond.Set[0].Kind)
	assert.Equal(t, ConditionOr, cond.Set[1].Kind)

	assert.Equal(t, AlterationScripted, set[0].Alterations[0].Kind)
}
