package gameserver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/idlecombat/internal/gameserver"
)

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	bus := gameserver.NewBus(zap.NewNop())
	var got []string
	bus.Subscribe(func(ev gameserver.Event) { got = append(got, "a:"+ev.ActorID) })
	bus.Subscribe(func(ev gameserver.Event) { got = append(got, "b:"+ev.ActorID) })

	bus.Publish(gameserver.Event{Type: gameserver.EventMiss, ActorID: "h1"})
	assert.Equal(t, []string{"a:h1", "b:h1"}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := gameserver.NewBus(zap.NewNop())
	calls := 0
	unsub := bus.Subscribe(func(gameserver.Event) { calls++ })

	bus.Publish(gameserver.Event{Type: gameserver.EventMiss})
	unsub()
	unsub()
	bus.Publish(gameserver.Event{Type: gameserver.EventMiss})
	assert.Equal(t, 1, calls)
}

func TestBus_PanickingHandlerIsIsolated(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	bus := gameserver.NewBus(zap.New(core))
	delivered := false
	bus.Subscribe(func(gameserver.Event) { panic("boom") })
	bus.Subscribe(func(gameserver.Event) { delivered = true })

	require.NotPanics(t, func() {
		bus.Publish(gameserver.Event{Type: gameserver.EventEnded})
	})
	assert.True(t, delivered)
	entries := logs.FilterMessage("event handler panicked").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "combat.ended", entries[0].ContextMap()["event"])
}

func TestBus_HandlerMaySubscribeDuringPublish(t *testing.T) {
	bus := gameserver.NewBus(zap.NewNop())
	late := 0
	bus.Subscribe(func(gameserver.Event) {
		bus.Subscribe(func(gameserver.Event) { late++ })
	})
	bus.Publish(gameserver.Event{Type: gameserver.EventMiss})
	assert.Zero(t, late)
	bus.Publish(gameserver.Event{Type: gameserver.EventMiss})
	assert.Equal(t, 1, late)
}

func TestEventLog_OfType(t *testing.T) {
	var log gameserver.EventLog
	log.Publish(gameserver.Event{Type: gameserver.EventStarted})
	log.Publish(gameserver.Event{Type: gameserver.EventMiss})
	log.Publish(gameserver.Event{Type: gameserver.EventMiss})

	assert.Len(t, log.Events(), 3)
	assert.Len(t, log.OfType(gameserver.EventMiss), 2)
	assert.Empty(t, log.OfType(gameserver.EventEnded))
}

func TestEvent_String(t *testing.T) {
	cases := []struct {
		ev   gameserver.Event
		want string
	}{
		{gameserver.Event{Type: gameserver.EventDamageDealt, Round: 2, ActorID: "h1", TargetID: "ogre-1", Amount: 18}, "[r2] h1 hits ogre-1 for 18"},
		{gameserver.Event{Type: gameserver.EventDamageTaken, Round: 3, ActorID: "ogre-1", TargetID: "h1", Amount: 9, Ability: "smash"}, "[r3] ogre-1 hits h1 for 9 with smash"},
		{gameserver.Event{Type: gameserver.EventMiss, ActorID: "h1", TargetID: "ogre-1"}, "[r0] h1 misses ogre-1"},
		{gameserver.Event{Type: gameserver.EventEnemyDied, Round: 5, TargetID: "ogre-1"}, "[r5] ogre-1 dies"},
		{gameserver.Event{Type: gameserver.EventEnded, Round: 5, Aborted: true, Rounds: 5}, "[r5] combat ended: aborted after 5 rounds"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.ev.String())
	}
}
