package system

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voxbrix/voxbrix-server/internal/component/action"
	actorcmp "github.com/voxbrix/voxbrix-server/internal/component/actor"
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/pack"
)

func TestResolveDiscriminant(t *testing.T) {
	source := entity.Actor(7)
	act := entity.Action(3)

	assert.Equal(t, entity.NoDiscriminant,
		resolveDiscriminant(action.DiscriminantNone, source, act))
	assert.Equal(t, entity.EffectDiscriminant(source),
		resolveDiscriminant(action.DiscriminantSourceActor, source, act))
	assert.Equal(t, entity.EffectDiscriminant(act),
		resolveDiscriminant(action.DiscriminantAction, source, act))
}

func TestBuildEffectState(t *testing.T) {
	state := buildEffectState(action.EffectStateSpec{
		Kind: action.StateCurrentSnapshotWithN,
		N:    20,
	}, 100)

	r := pack.NewReader(state[:])
	start, err := r.ReadUvarint()
	assert.NoError(t, err)
	assert.Equal(t, uint64(100), start)
	period, err := r.ReadUvarint()
	assert.NoError(t, err)
	assert.Equal(t, uint64(20), period)

	var zero actorcmp.EffectState
	assert.Equal(t, zero, buildEffectState(action.EffectStateSpec{Kind: action.StateNone}, 100))
}

func TestConditionValid(t *testing.T) {
	effects := actorcmp.NewEffects(0)
	source := entity.Actor(7)
	act := entity.Action(3)
	cooldown := entity.Effect(1)

	always := action.Condition{Kind: action.ConditionAlways}
	assert.True(t, conditionValid(&always, effects, source, act))

	noEffect := action.Condition{
		Kind:         action.ConditionSourceActorHasNoEffect,
		Effect:       cooldown,
		Discriminant: action.DiscriminantSourceActor,
	}
	assert.True(t, conditionValid(&noEffect, effects, source, act))

	effects.Insert(source, cooldown, entity.EffectDiscriminant(source), actorcmp.EffectState{}, 1)
	assert.False(t, conditionValid(&noEffect, effects, source, act))

	// Экземпляр с другим дискриминантом условие не подавляет
	other := action.Condition{
		Kind:         action.ConditionSourceActorHasNoEffect,
		Effect:       cooldown,
		Discriminant: action.DiscriminantNone,
	}
	assert.True(t, conditionValid(&other, effects, source, act))

	and := action.Condition{Kind: action.ConditionAnd, Set: []action.Condition{always, noEffect}}
	assert.False(t, conditionValid(&and, effects, source, act))

	or := action.Condition{Kind: action.ConditionOr, Set: []action.Condition{noEffect, always}}
	assert.True(t, conditionValid(&or, effects, source, act))
}
