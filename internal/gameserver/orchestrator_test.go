package gameserver_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/idlecombat/internal/game/combat"
	"github.com/cory-johannsen/idlecombat/internal/game/dice"
	"github.com/cory-johannsen/idlecombat/internal/game/inventory"
	"github.com/cory-johannsen/idlecombat/internal/game/npc"
	"github.com/cory-johannsen/idlecombat/internal/game/party"
	"github.com/cory-johannsen/idlecombat/internal/game/reward"
	"github.com/cory-johannsen/idlecombat/internal/gameserver"
)

// countingRewards wraps the real calculator and counts its invocations.
type countingRewards struct {
	inner     *reward.Calculator
	victories int
	defeats   int
}

func (c *countingRewards) Victory(t *npc.Template, ctx npc.EncounterContext) reward.Result {
	c.victories++
	return c.inner.Victory(t, ctx)
}

func (c *countingRewards) Defeat(t *npc.Template, ctx npc.EncounterContext) reward.Result {
	c.defeats++
	return c.inner.Defeat(t, ctx)
}

type fakeEquipment map[string]*combat.Stats

func (f fakeEquipment) HeroStats(heroID string) (*combat.Stats, bool) {
	st, ok := f[heroID]
	return st, ok
}

// panickyEffects blows up whenever a turn ticks status effects.
type panickyEffects struct {
	gameserver.StatusEffects
}

func (panickyEffects) Tick(string) []string { panic("tick exploded") }

type orchOptions struct {
	src       dice.Source
	heroes    []*party.HeroDef
	templates []*npc.Template
	equipment gameserver.EquipmentProvider
	wrap      func(gameserver.StatusEffects) gameserver.StatusEffects
	publisher gameserver.Publisher
}

type orchRig struct {
	*rig
	orch    *gameserver.Orchestrator
	events  *gameserver.EventLog
	roster  *party.Roster
	rewards *countingRewards
	stash   *inventory.Stash
}

func defaultParty() []*party.HeroDef {
	return []*party.HeroDef{
		{ID: "tank", Name: "Tor", Role: combat.RoleTank, Stats: stats(20, 5, 100)},
		{ID: "dps", Name: "Vex", Role: combat.RoleDPS, Stats: stats(25, 4, 80)},
		{ID: "heal", Name: "Ona", Role: combat.RoleHealer, Stats: stats(10, 3, 80)},
	}
}

func ogre() *npc.Template {
	return &npc.Template{ID: "ogre", Name: "Ogre", Stats: stats(12, 3, 60), Experience: 40, Gold: "2d4"}
}

func rat() *npc.Template {
	return &npc.Template{ID: "rat", Name: "Rat", Stats: stats(6, 2, 20), Experience: 5}
}

func giant() *npc.Template {
	return &npc.Template{ID: "giant", Name: "Giant", Stats: stats(60, 50, 1000), Experience: 40}
}

func newOrchRig(t *testing.T, o orchOptions) *orchRig {
	t.Helper()
	if o.src == nil {
		o.src = steady()
	}
	if o.heroes == nil {
		o.heroes = defaultParty()
	}
	if o.templates == nil {
		o.templates = []*npc.Template{ogre(), rat(), giant()}
	}
	r := newRigWith(t, o.src, o.wrap)

	roster, err := party.NewRosterFromDefs(o.heroes)
	require.NoError(t, err)
	encounters := npc.NewRegistry(npc.EncounterContext{Mile: 1, Difficulty: 1})
	for _, tmpl := range o.templates {
		require.NoError(t, encounters.Register(tmpl))
	}
	rewards := &countingRewards{inner: reward.NewCalculator(reward.DefaultParams(), dice.NewRoller(o.src, r.logger), nil, r.logger)}
	stash := inventory.NewStash(20)
	events := &gameserver.EventLog{}
	pub := o.publisher
	if pub == nil {
		pub = events
	}

	deps := gameserver.OrchestratorDeps{
		Roster:         roster,
		Encounters:     encounters,
		Effects:        r.status,
		Threat:         r.threat,
		Actions:        r.actions,
		Mechanics:      r.mechanics,
		Rewards:        rewards,
		Awards:         roster,
		Stash:          stash,
		Publisher:      pub,
		Now:            func() time.Time { return time.Unix(1700000000, 0) },
		DecayPerSecond: 0.1,
		Logger:         r.logger,
	}
	if o.equipment != nil {
		deps.Equipment = o.equipment
	}
	return &orchRig{
		rig:     r,
		orch:    gameserver.NewOrchestrator(deps),
		events:  events,
		roster:  roster,
		rewards: rewards,
		stash:   stash,
	}
}

// runToEnd schedules actions until combat ends.
func (r *orchRig) runToEnd(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 500 && r.orch.IsActive(); i++ {
		_, err := r.orch.ScheduleNextCombatAction(ctx)
		require.NoError(t, err)
	}
	require.False(t, r.orch.IsActive(), "combat did not end")
}

func TestStartCombat_ActivatesSession(t *testing.T) {
	r := newOrchRig(t, orchOptions{})
	require.NoError(t, r.orch.StartCombat(context.Background(), "ogre", nil))

	assert.Equal(t, gameserver.StateActive, r.orch.State())
	snap := r.orch.Snapshot()
	assert.Equal(t, 1, snap.Round)
	assert.Equal(t, string(combat.TurnParty), snap.TurnOwner)
	require.Len(t, snap.Combatants, 4)
	assert.Equal(t, "ogre-1", snap.Combatants[3].ID)
	assert.Len(t, snap.Threat["ogre-1"], 3)

	started := r.events.OfType(gameserver.EventStarted)
	require.Len(t, started, 1)
	assert.Equal(t, "ogre", started[0].EnemyID)
	assert.Equal(t, snap.SessionID, started[0].SessionID)
	assert.Equal(t, []string{"tank", "dps", "heal", "ogre-1"}, started[0].Participants)
}

func TestStartCombat_SubsetOfHeroes(t *testing.T) {
	r := newOrchRig(t, orchOptions{})
	require.NoError(t, r.orch.StartCombat(context.Background(), "ogre", []string{"dps", "ghost"}))

	snap := r.orch.Snapshot()
	require.Len(t, snap.Combatants, 2)
	assert.Equal(t, "dps", snap.Combatants[0].ID)
	assert.Equal(t, 1, r.logs.FilterMessage("unknown hero skipped").Len())
}

func TestStartCombat_WhileActiveFails(t *testing.T) {
	r := newOrchRig(t, orchOptions{})
	ctx := context.Background()
	require.NoError(t, r.orch.StartCombat(ctx, "ogre", nil))
	before := r.orch.Snapshot()

	err := r.orch.StartCombat(ctx, "rat", nil)
	assert.ErrorIs(t, err, gameserver.ErrCombatActive)
	after := r.orch.Snapshot()
	assert.Equal(t, before.SessionID, after.SessionID)
	assert.Equal(t, "ogre-1", after.Combatants[3].ID)
	assert.Len(t, r.events.OfType(gameserver.EventStarted), 1)
}

func TestStartCombat_UnknownEnemy(t *testing.T) {
	r := newOrchRig(t, orchOptions{})
	err := r.orch.StartCombat(context.Background(), "dragon", nil)
	assert.ErrorIs(t, err, gameserver.ErrNoEnemy)
	assert.ErrorIs(t, err, npc.ErrUnknownEnemy)

	err = r.orch.StartCombat(context.Background(), "", nil)
	assert.ErrorIs(t, err, gameserver.ErrNoEnemy)

	assert.Equal(t, gameserver.StateIdle, r.orch.State())
	assert.Empty(t, r.events.Events())
	assert.Empty(t, r.threat.Enemies())
}

func TestStartCombat_NoLivingHeroes(t *testing.T) {
	r := newOrchRig(t, orchOptions{})
	err := r.orch.StartCombat(context.Background(), "ogre", []string{"ghost"})
	assert.ErrorIs(t, err, gameserver.ErrNoLivingHeroes)
	assert.Equal(t, gameserver.StateIdle, r.orch.State())
	assert.Empty(t, r.events.Events())
}

func TestStartCombat_UsesEquipmentStats(t *testing.T) {
	equip := fakeEquipment{"dps": {Attack: 40, Defense: 6, MaxHealth: 90, Health: 90}}
	r := newOrchRig(t, orchOptions{equipment: equip})
	require.NoError(t, r.orch.StartCombat(context.Background(), "ogre", []string{"dps"}))

	hero := r.orch.Snapshot().Combatants[0]
	assert.Equal(t, 40, hero.Attack)
	assert.Equal(t, 6, hero.Defense)
	assert.Equal(t, 90, hero.Health)
}

func TestStartCombat_KeepsZeroDefenseAndWounds(t *testing.T) {
	equip := fakeEquipment{"dps": {Attack: 40, Defense: 0, MaxHealth: 90, Health: 35}}
	r := newOrchRig(t, orchOptions{equipment: equip})
	require.NoError(t, r.orch.StartCombat(context.Background(), "ogre", []string{"dps"}))

	hero := r.orch.Snapshot().Combatants[0]
	assert.Equal(t, 0, hero.Defense)
	assert.Equal(t, 35, hero.Health)
}

func TestStartCombat_DeadHeroesAreLeftOut(t *testing.T) {
	equip := fakeEquipment{"dps": {Attack: 40, Defense: 0, MaxHealth: 90, Health: 0}}
	r := newOrchRig(t, orchOptions{equipment: equip})
	ctx := context.Background()

	err := r.orch.StartCombat(ctx, "ogre", []string{"dps"})
	assert.ErrorIs(t, err, gameserver.ErrNoLivingHeroes)
	assert.Equal(t, gameserver.StateIdle, r.orch.State())
	assert.Empty(t, r.events.Events())

	require.NoError(t, r.orch.StartCombat(ctx, "ogre", []string{"tank", "dps"}))
	heroes := r.orch.Snapshot().Combatants
	require.NotEmpty(t, heroes)
	assert.Equal(t, "tank", heroes[0].ID)
	for _, c := range heroes {
		assert.NotEqual(t, "dps", c.ID)
	}
}

func TestScheduleNextCombatAction_NoCombat(t *testing.T) {
	r := newOrchRig(t, orchOptions{})
	_, err := r.orch.ScheduleNextCombatAction(context.Background())
	assert.ErrorIs(t, err, gameserver.ErrNoCombat)
	_, err = r.orch.Tick(context.Background(), time.Second)
	assert.ErrorIs(t, err, gameserver.ErrNoCombat)
}

func TestScheduleNextCombatAction_AlternatesSides(t *testing.T) {
	r := newOrchRig(t, orchOptions{})
	ctx := context.Background()
	require.NoError(t, r.orch.StartCombat(ctx, "giant", []string{"dps"}))

	results, err := r.orch.ScheduleNextCombatAction(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "dps", results[0].ActorID)
	snap := r.orch.Snapshot()
	assert.Equal(t, string(combat.TurnEnemy), snap.TurnOwner)
	assert.Equal(t, 1, snap.Round)

	dealt := r.events.OfType(gameserver.EventDamageDealt)
	require.Len(t, dealt, 1)
	assert.Equal(t, "giant-1", dealt[0].TargetID)
	assert.Equal(t, 1, dealt[0].Amount)
	assert.Equal(t, snap.SessionID, dealt[0].SessionID)
	assert.Equal(t, 1, dealt[0].Round)
}

func TestCombat_VictoryAgainstTwoEnemies(t *testing.T) {
	r := newOrchRig(t, orchOptions{src: dice.NewSeededSource(42)})
	require.NoError(t, r.orch.StartPartyCombat(context.Background(), gameserver.Encounter{EnemyIDs: []string{"ogre", "rat"}}))
	r.runToEnd(t)

	assert.Equal(t, gameserver.StateIdle, r.orch.State())
	res := r.orch.Result()
	require.NotNil(t, res)
	assert.True(t, res.Victory)
	assert.Equal(t, 2, r.rewards.victories)
	assert.Zero(t, r.rewards.defeats)
	assert.Equal(t, 45, res.Experience)

	assert.Len(t, r.events.OfType(gameserver.EventEnemyDied), 2)
	ended := r.events.OfType(gameserver.EventEnded)
	require.Len(t, ended, 1)
	assert.True(t, ended[0].Victory)
	assert.Same(t, res, ended[0].Rewards)
	require.Len(t, ended[0].Gains, 3)

	tank, ok := r.roster.Hero("tank")
	require.True(t, ok)
	assert.Equal(t, 45, tank.Experience)
	total := 0
	for _, g := range ended[0].Gains {
		total += g.Gold
	}
	assert.Equal(t, res.Gold, total)
	assert.Empty(t, r.threat.Enemies())
}

func TestCombat_DefeatStillRewards(t *testing.T) {
	r := newOrchRig(t, orchOptions{})
	require.NoError(t, r.orch.StartCombat(context.Background(), "giant", []string{"dps"}))
	r.runToEnd(t)

	res := r.orch.Result()
	require.NotNil(t, res)
	assert.False(t, res.Victory)
	assert.Positive(t, res.Experience)
	assert.Less(t, res.Experience, 40)
	assert.Equal(t, 1, r.rewards.defeats)

	assert.Len(t, r.events.OfType(gameserver.EventHeroDied), 1)
	ended := r.events.OfType(gameserver.EventEnded)
	require.Len(t, ended, 1)
	assert.False(t, ended[0].Victory)
	assert.False(t, ended[0].Aborted)
}

func TestEndCombat_ComputesRewardsOnce(t *testing.T) {
	r := newOrchRig(t, orchOptions{})
	ctx := context.Background()
	require.NoError(t, r.orch.StartCombat(ctx, "ogre", nil))

	first := r.orch.EndCombat(ctx, true)
	second := r.orch.EndCombat(ctx, true)
	require.NotNil(t, first)
	assert.Same(t, first, second)
	assert.Equal(t, 1, r.rewards.victories)
	assert.Len(t, r.events.OfType(gameserver.EventEnded), 1)

	ended, _ := r.orch.CheckCombatEnd(ctx)
	assert.False(t, ended)
}

func TestAbort_NoRewards(t *testing.T) {
	r := newOrchRig(t, orchOptions{})
	ctx := context.Background()
	require.NoError(t, r.orch.StartCombat(ctx, "ogre", nil))

	require.NoError(t, r.orch.Abort(ctx))
	assert.Nil(t, r.orch.Result())
	assert.Zero(t, r.rewards.victories+r.rewards.defeats)
	ended := r.events.OfType(gameserver.EventEnded)
	require.Len(t, ended, 1)
	assert.True(t, ended[0].Aborted)
	assert.Nil(t, ended[0].Rewards)

	assert.ErrorIs(t, r.orch.Abort(ctx), gameserver.ErrNoCombat)
	require.NoError(t, r.orch.StartCombat(ctx, "rat", nil))
}

func TestNotifyEquipmentChanged_AppliesAtNextTurn(t *testing.T) {
	equip := fakeEquipment{}
	r := newOrchRig(t, orchOptions{equipment: equip})
	ctx := context.Background()
	require.NoError(t, r.orch.StartCombat(ctx, "giant", []string{"dps"}))

	equip["dps"] = &combat.Stats{Attack: 70, Defense: 4, MaxHealth: 80}
	r.orch.NotifyEquipmentChanged("dps")
	assert.Equal(t, 25, r.orch.Snapshot().Combatants[0].Attack)

	results, err := r.orch.ScheduleNextCombatAction(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Refreshed)
	assert.Equal(t, []int{20}, results[0].Amounts)
	assert.Equal(t, 70, r.orch.Snapshot().Combatants[0].Attack)
}

func TestNotifyEquipmentChanged_IgnoredOutsideCombat(t *testing.T) {
	r := newOrchRig(t, orchOptions{equipment: fakeEquipment{}})
	assert.NotPanics(t, func() { r.orch.NotifyEquipmentChanged("dps") })
}

func TestScheduleNextCombatAction_RecoversFromPanic(t *testing.T) {
	r := newOrchRig(t, orchOptions{
		wrap: func(s gameserver.StatusEffects) gameserver.StatusEffects { return panickyEffects{s} },
	})
	ctx := context.Background()
	require.NoError(t, r.orch.StartCombat(ctx, "ogre", nil))

	results, err := r.orch.ScheduleNextCombatAction(ctx)
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.True(t, r.orch.IsActive())
	assert.Equal(t, string(combat.TurnEnemy), r.orch.Snapshot().TurnOwner)

	entries := r.logs.FilterMessage("turn panicked").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "tick exploded", entries[0].ContextMap()["panic"])
}

func TestTick_DecaysThreatAndAdaptsEnemies(t *testing.T) {
	r := newOrchRig(t, orchOptions{})
	ctx := context.Background()
	require.NoError(t, r.orch.StartCombat(ctx, "giant", []string{"dps"}))
	r.threat.Set("giant-1", "dps", 1000)

	_, err := r.orch.Tick(ctx, 31*time.Second)
	require.NoError(t, err)

	snap := r.orch.Snapshot()
	assert.Equal(t, 31*time.Second, snap.Elapsed)
	// 1000 * e^(-0.1*31) ≈ 45, plus the dps hit's 1 threat.
	assert.InDelta(t, 46, r.threat.Get("giant-1", "dps"), 1)
	// Adaptation level 1 adds 10% attack.
	assert.Equal(t, 66, snap.Combatants[1].Attack)
}

func TestCombat_EventsCarrySessionAndRound(t *testing.T) {
	r := newOrchRig(t, orchOptions{src: dice.NewSeededSource(7)})
	require.NoError(t, r.orch.StartCombat(context.Background(), "ogre", nil))
	r.runToEnd(t)

	events := r.events.Events()
	require.NotEmpty(t, events)
	sid := events[0].SessionID
	require.NotEmpty(t, sid)
	for _, ev := range events {
		assert.Equal(t, sid, ev.SessionID, "event %s", ev.Type)
		assert.Positive(t, ev.Round, "event %s", ev.Type)
	}
	assert.Equal(t, gameserver.EventEnded, events[len(events)-1].Type)
}

func TestCombat_RecorderPersistsThroughBus(t *testing.T) {
	bus := gameserver.NewBus(zap.NewNop())
	reports := &fakeReports{}
	rec := gameserver.NewReportRecorder(reports, nil, 4, zap.NewNop())
	bus.Subscribe(rec.Handle)

	r := newOrchRig(t, orchOptions{publisher: bus})
	require.NoError(t, r.orch.StartCombat(context.Background(), "rat", nil))
	r.runToEnd(t)
	rec.Drain(context.Background())

	require.Len(t, reports.saved, 1)
	assert.Equal(t, "rat", reports.saved[0].EnemyID)
	assert.True(t, reports.saved[0].Victory)
}
