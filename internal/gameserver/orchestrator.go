package gameserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/cory-johannsen/idlecombat/internal/game/boss"
	"github.com/cory-johannsen/idlecombat/internal/game/combat"
	"github.com/cory-johannsen/idlecombat/internal/game/inventory"
	"github.com/cory-johannsen/idlecombat/internal/game/npc"
	"github.com/cory-johannsen/idlecombat/internal/game/party"
	"github.com/cory-johannsen/idlecombat/internal/game/reward"
	"github.com/cory-johannsen/idlecombat/internal/game/threat"
)

var (
	ErrCombatActive   = errors.New("combat already active")
	ErrNoEnemy        = errors.New("no enemy")
	ErrNoLivingHeroes = errors.New("no living heroes")
	ErrNoCombat       = errors.New("no active combat")
)

// Session states.
const (
	StateIdle   = "idle"
	StateActive = "active"
	StateEnded  = "ended"
)

const (
	eventStart = "start"
	eventEnd   = "end"
	eventReset = "reset"
)

// RosterProvider supplies party identity and base stats.
type RosterProvider interface {
	Heroes() []party.Member
	Hero(id string) (party.Member, bool)
	Tank() (party.Member, bool)
}

// EquipmentProvider supplies equipment-resolved hero stats.
type EquipmentProvider interface {
	HeroStats(heroID string) (*combat.Stats, bool)
}

// EncounterProvider supplies enemy definitions and their reward context.
type EncounterProvider interface {
	Encounter(id string) (*npc.Template, npc.EncounterContext, error)
}

// RewardCalculator computes end-of-combat rewards per enemy template.
type RewardCalculator interface {
	Victory(t *npc.Template, ctx npc.EncounterContext) reward.Result
	Defeat(t *npc.Template, ctx npc.EncounterContext) reward.Result
}

// Awarder credits experience and gold to heroes.
type Awarder interface {
	Award(heroIDs []string, experience, gold int) []party.Gain
}

// LootSink receives dropped items.
type LootSink interface {
	AddInstance(inst inventory.ItemInstance) error
}

// OrchestratorDeps are the pre-built collaborators of an Orchestrator.
// Equipment, Awards, Stash, Publisher and Now are optional.
type OrchestratorDeps struct {
	Roster     RosterProvider
	Equipment  EquipmentProvider
	Encounters EncounterProvider
	Effects    StatusEffects
	Threat     *threat.Table
	Actions    *Actions
	Mechanics  *boss.Mechanics
	Rewards    RewardCalculator
	Awards     Awarder
	Stash      LootSink
	Publisher  Publisher
	Now        func() time.Time
	// Fallback is used for stats no provider supplies; the zero value means combat.DefaultStats.
	Fallback       combat.Stats
	DecayPerSecond float64
	Logger         *zap.Logger
}

// Encounter names the participants of a party combat. An empty HeroIDs
// means the whole roster.
type Encounter struct {
	EnemyIDs []string
	HeroIDs  []string
}

// Orchestrator owns the single combat session of a game instance. It starts
// sessions, schedules turns, publishes events and ends combat.
//
// mu serialises every entry point so the ticker goroutine, the inspector and
// equipment notifications cannot race on session state.
type Orchestrator struct {
	mu        sync.Mutex
	deps      OrchestratorDeps
	logger    *zap.Logger
	machine   *fsm.FSM
	session   *combat.Session
	templates []*npc.Template
	encounter npc.EncounterContext
	elapsed   time.Duration
	result    *reward.Result
}

// NewOrchestrator creates an idle Orchestrator.
//
// Precondition: Roster, Encounters, Effects, Threat, Actions, Mechanics,
// Rewards and Logger must be non-nil.
func NewOrchestrator(d OrchestratorDeps) *Orchestrator {
	if d.Publisher == nil {
		d.Publisher = &EventLog{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Fallback == (combat.Stats{}) {
		d.Fallback = combat.DefaultStats
	}
	o := &Orchestrator{deps: d, logger: d.Logger}
	o.machine = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventStart, Src: []string{StateIdle}, Dst: StateActive},
			{Name: eventEnd, Src: []string{StateActive}, Dst: StateEnded},
			{Name: eventReset, Src: []string{StateEnded}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				o.logger.Debug("combat state", zap.String("from", e.Src), zap.String("to", e.Dst))
			},
		},
	)
	return o
}

// State returns the session state: idle, active or ended.
func (o *Orchestrator) State() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.machine.Current()
}

// IsActive reports whether a session is Active.
func (o *Orchestrator) IsActive() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.machine.Is(StateActive)
}

// Result returns the rewards of the most recently ended combat, or nil.
func (o *Orchestrator) Result() *reward.Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result
}

// StartCombat starts a session against a single enemy.
func (o *Orchestrator) StartCombat(ctx context.Context, enemyID string, heroIDs []string) error {
	var ids []string
	if enemyID != "" {
		ids = []string{enemyID}
	}
	return o.StartPartyCombat(ctx, Encounter{EnemyIDs: ids, HeroIDs: heroIDs})
}

// StartPartyCombat starts a session for enc.
//
// Precondition: no session is Active; enc names at least one known enemy
// and resolves to at least one living hero.
// Postcondition: on error no state has changed; otherwise the session is
// Active at round 1 with the party to act and combat.started is published.
func (o *Orchestrator) StartPartyCombat(ctx context.Context, enc Encounter) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.startCombatLocked(ctx, enc)
}

// startCombatLocked builds and activates a session. Caller must hold mu.
func (o *Orchestrator) startCombatLocked(ctx context.Context, enc Encounter) error {
	if !o.machine.Is(StateIdle) {
		return fmt.Errorf("gameserver: StartCombat: %w", ErrCombatActive)
	}
	if len(enc.EnemyIDs) == 0 {
		return fmt.Errorf("gameserver: StartCombat: %w", ErrNoEnemy)
	}

	var (
		templates []*npc.Template
		ectx      npc.EncounterContext
	)
	for _, id := range enc.EnemyIDs {
		t, c, err := o.deps.Encounters.Encounter(id)
		if err != nil {
			return fmt.Errorf("gameserver: StartCombat: %w: %w", ErrNoEnemy, err)
		}
		templates = append(templates, t)
		ectx = c
	}

	heroes := o.buildHeroesLocked(enc.HeroIDs)
	if len(heroes) == 0 {
		return fmt.Errorf("gameserver: StartCombat: %w", ErrNoLivingHeroes)
	}

	enemies := make([]*combat.Enemy, 0, len(templates))
	for i, t := range templates {
		st, fellBack := combat.ResolveStats(o.deps.Fallback, &t.Stats)
		if fellBack {
			o.logger.Warn("enemy stats fell back to defaults", zap.String("enemy", t.ID))
		}
		enemies = append(enemies, t.NewEnemy(fmt.Sprintf("%s-%d", t.ID, i+1), st))
	}

	s := combat.NewSession(uuid.New().String(), heroes, enemies, o.deps.Now())
	s.Mile, s.Difficulty = ectx.Mile, ectx.Difficulty

	heroIDs := make([]string, 0, len(heroes))
	for _, h := range heroes {
		heroIDs = append(heroIDs, h.ID())
	}
	o.deps.Threat.Reset()
	o.deps.Effects.Reset()
	for _, e := range enemies {
		o.deps.Threat.Initialize(e.ID(), heroIDs...)
	}

	if err := o.machine.Event(ctx, eventStart); err != nil {
		return fmt.Errorf("gameserver: StartCombat: %w", err)
	}
	o.session = s
	o.templates = templates
	o.encounter = ectx
	o.elapsed = 0
	o.result = nil

	participants := make([]string, 0, len(heroes)+len(enemies))
	for _, c := range s.Participants() {
		participants = append(participants, c.ID())
	}
	o.publishLocked(Event{Type: EventStarted, EnemyID: templates[0].ID, Participants: participants})
	o.logger.Info("combat started",
		zap.String("session", s.ID),
		zap.Strings("participants", participants),
		zap.Int("mile", ectx.Mile),
		zap.Float64("difficulty", ectx.Difficulty),
	)
	return nil
}

// buildHeroesLocked snapshots the living heroes named by ids, or the whole
// roster when ids is empty. Unknown IDs are skipped.
func (o *Orchestrator) buildHeroesLocked(ids []string) []*combat.Hero {
	var members []party.Member
	if len(ids) == 0 {
		members = o.deps.Roster.Heroes()
	} else {
		for _, id := range ids {
			m, ok := o.deps.Roster.Hero(id)
			if !ok {
				o.logger.Warn("unknown hero skipped", zap.String("hero", id))
				continue
			}
			members = append(members, m)
		}
	}
	var heroes []*combat.Hero
	for _, m := range members {
		h := combat.NewHero(m.ID, m.Name, m.Role, o.heroStats(m))
		if h.IsAlive() {
			heroes = append(heroes, h)
		}
	}
	return heroes
}

// heroStats resolves m's stats from equipment, then roster base stats,
// then the fallback defaults.
func (o *Orchestrator) heroStats(m party.Member) combat.Stats {
	var equipped *combat.Stats
	if o.deps.Equipment != nil {
		if st, ok := o.deps.Equipment.HeroStats(m.ID); ok {
			equipped = st
		}
	}
	base := m.Base
	st, fellBack := combat.ResolveStats(o.deps.Fallback, equipped, &base)
	if fellBack {
		o.logger.Warn("hero stats fell back to defaults", zap.String("hero", m.ID))
	}
	return st
}

// NotifyEquipmentChanged queues heroID's re-resolved stats. They apply at
// the start of the hero's next turn. It is a no-op outside combat or for
// heroes not in the session.
func (o *Orchestrator) NotifyEquipmentChanged(heroID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.machine.Is(StateActive) || o.session.Hero(heroID) == nil {
		return
	}
	m, ok := o.deps.Roster.Hero(heroID)
	if !ok {
		return
	}
	o.session.QueueStats(heroID, o.heroStats(m))
}

// ScheduleNextCombatAction runs the current side's turn, publishes its
// events, advances the turn and checks for the end of combat.
//
// Postcondition: returns ErrNoCombat unless a session is Active.
func (o *Orchestrator) ScheduleNextCombatAction(ctx context.Context) ([]ActionResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.scheduleLocked(ctx)
}

func (o *Orchestrator) scheduleLocked(ctx context.Context) ([]ActionResult, error) {
	if !o.machine.Is(StateActive) {
		return nil, ErrNoCombat
	}
	results := o.runTurnLocked(ctx)
	o.publishResultsLocked(results)
	o.advanceTurnLocked()
	o.checkCombatEndLocked(ctx)
	return results, nil
}

// runTurnLocked executes the turn owner's side. A panic is logged and the
// turn treated as a no-op.
func (o *Orchestrator) runTurnLocked(ctx context.Context) (results []ActionResult) {
	s := o.session
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("turn panicked",
				zap.String("session", s.ID),
				zap.String("turn", string(s.TurnOwner)),
				zap.Int("round", s.Round),
				zap.Any("panic", r),
			)
			results = nil
		}
	}()
	if s.TurnOwner == combat.TurnParty {
		return o.deps.Actions.ExecutePartyTurn(ctx, s)
	}
	for _, e := range s.Enemies {
		if !e.IsAlive() {
			continue
		}
		results = append(results, o.deps.Actions.ExecuteEnemyTurn(ctx, s, e))
	}
	return append(results, o.deps.Actions.ExecuteAddsAttack(s)...)
}

func (o *Orchestrator) advanceTurnLocked() {
	s := o.session
	for _, add := range s.RemoveDeadAdds() {
		o.deps.Threat.RemoveEnemy(add.ID())
		o.deps.Effects.ClearAll(add.ID())
	}
	if s.TurnOwner == combat.TurnParty {
		s.TurnOwner = combat.TurnEnemy
		return
	}
	s.TurnOwner = combat.TurnParty
	s.Round++
}

// Tick advances combat time by elapsed: threat decays and enemies adapt,
// then the next action is scheduled.
func (o *Orchestrator) Tick(ctx context.Context, elapsed time.Duration) ([]ActionResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.machine.Is(StateActive) {
		return nil, ErrNoCombat
	}
	if elapsed > 0 {
		o.elapsed += elapsed
		o.deps.Threat.ApplyDecayAll(o.deps.DecayPerSecond, elapsed)
		for _, e := range o.session.LivingEnemies() {
			if o.deps.Mechanics.Adapt(e, o.elapsed) {
				o.logger.Debug("enemy adapted",
					zap.String("enemy", e.ID()),
					zap.Int("level", e.State.AdaptationLevel),
				)
			}
		}
	}
	return o.scheduleLocked(ctx)
}

// CheckCombatEnd ends combat in defeat when no hero lives, or in victory
// when no enemy or add lives.
func (o *Orchestrator) CheckCombatEnd(ctx context.Context) (ended, victory bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.checkCombatEndLocked(ctx)
}

func (o *Orchestrator) checkCombatEndLocked(ctx context.Context) (ended, victory bool) {
	if !o.machine.Is(StateActive) {
		return false, false
	}
	switch {
	case o.session.PartyDefeated():
		o.endCombatLocked(ctx, false, false)
		return true, false
	case o.session.EnemiesDefeated():
		o.endCombatLocked(ctx, true, false)
		return true, true
	}
	return false, false
}

// EndCombat ends the Active session, computing rewards once.
//
// Postcondition: a second call, or a call with no Active session, is a
// no-op returning the previous rewards.
func (o *Orchestrator) EndCombat(ctx context.Context, victory bool) *reward.Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.machine.Is(StateActive) {
		o.endCombatLocked(ctx, victory, false)
	}
	return o.result
}

// Abort ends the Active session without rewards.
func (o *Orchestrator) Abort(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.machine.Is(StateActive) {
		return fmt.Errorf("gameserver: Abort: %w", ErrNoCombat)
	}
	o.endCombatLocked(ctx, false, true)
	return nil
}

// endCombatLocked moves Active → Ended → Idle. Caller must hold mu.
func (o *Orchestrator) endCombatLocked(ctx context.Context, victory, aborted bool) {
	if err := o.machine.Event(ctx, eventEnd); err != nil {
		o.logger.Error("end transition failed", zap.Error(err))
		return
	}
	s := o.session
	s.ClearCasts()

	ev := Event{
		Type:     EventEnded,
		EnemyID:  o.templates[0].ID,
		Victory:  victory,
		Aborted:  aborted,
		Rounds:   s.Round,
		Duration: o.elapsed,
	}
	if !aborted {
		res := o.computeRewardsLocked(victory)
		o.result = &res
		ev.Gains = o.grantLocked(res)
		ev.Rewards = o.result
	}
	o.publishLocked(ev)
	o.logger.Info("combat ended",
		zap.String("session", s.ID),
		zap.Bool("victory", victory),
		zap.Bool("aborted", aborted),
		zap.Int("rounds", s.Round),
	)

	o.deps.Threat.Reset()
	o.deps.Effects.Reset()
	o.session = nil
	o.templates = nil
	if err := o.machine.Event(ctx, eventReset); err != nil {
		o.logger.Error("reset transition failed", zap.Error(err))
	}
}

func (o *Orchestrator) computeRewardsLocked(victory bool) reward.Result {
	total := reward.Result{Victory: victory}
	for _, t := range o.templates {
		var r reward.Result
		if victory {
			r = o.deps.Rewards.Victory(t, o.encounter)
		} else {
			r = o.deps.Rewards.Defeat(t, o.encounter)
		}
		total.Experience += r.Experience
		total.Gold += r.Gold
		total.Loot = append(total.Loot, r.Loot...)
	}
	return total
}

// grantLocked credits res to every hero that took part and stashes its loot.
func (o *Orchestrator) grantLocked(res reward.Result) []party.Gain {
	var gains []party.Gain
	if o.deps.Awards != nil {
		ids := make([]string, 0, len(o.session.Heroes))
		for _, h := range o.session.Heroes {
			ids = append(ids, h.ID())
		}
		gains = o.deps.Awards.Award(ids, res.Experience, res.Gold)
	}
	if o.deps.Stash == nil {
		return gains
	}
	for _, it := range res.Loot {
		if err := o.deps.Stash.AddInstance(it); err != nil {
			o.logger.Warn("loot discarded", zap.String("item", it.ItemDefID), zap.Error(err))
		}
	}
	return gains
}

func (o *Orchestrator) publishLocked(ev Event) {
	if o.session != nil {
		ev.SessionID = o.session.ID
		ev.Round = o.session.Round
	}
	ev.At = o.deps.Now()
	o.deps.Publisher.Publish(ev)
}

// publishResultsLocked translates turn results into events.
func (o *Orchestrator) publishResultsLocked(results []ActionResult) {
	for _, r := range results {
		for _, ev := range o.eventsFor(r) {
			o.publishLocked(ev)
		}
	}
}

func (o *Orchestrator) eventsFor(r ActionResult) []Event {
	var out []Event
	if r.PhaseChange != nil {
		out = append(out, Event{Type: EventPhaseChanged, ActorID: r.ActorID, Phase: r.PhaseChange.To})
	}
	if r.Enraged {
		out = append(out, Event{Type: EventEnraged, ActorID: r.ActorID})
	}

	switch r.Kind {
	case ActionCast:
		if r.CastStarted {
			out = append(out, Event{Type: EventCastStarted, ActorID: r.ActorID, TargetID: first(r.Targets), Ability: r.Ability, Amount: r.CastRemaining})
		}
	case ActionInterrupt:
		out = append(out, Event{Type: EventInterrupted, ActorID: r.ActorID, TargetID: r.Interrupted, Ability: r.Ability})
	case ActionShield:
		out = append(out, Event{Type: EventShielded, ActorID: r.ActorID, TargetID: first(r.Targets), Amount: first(r.Amounts)})
	case ActionHeal:
		for i, t := range r.Targets {
			out = append(out, Event{Type: EventHealed, ActorID: r.ActorID, TargetID: t, Ability: r.Ability, Amount: r.Amounts[i]})
		}
	}

	for i, out0 := range r.Outcomes {
		base := Event{ActorID: r.ActorID, TargetID: r.Targets[i], Ability: r.Ability, Amount: out0.Amount}
		if out0.Miss {
			base.Type = EventMiss
			out = append(out, base)
			continue
		}
		if out0.Critical {
			crit := base
			crit.Type = EventCriticalHit
			out = append(out, crit)
		}
		base.Type = EventDamageDealt
		if c := o.session.Combatant(r.Targets[i]); c != nil && c.Kind() == combat.KindHero {
			base.Type = EventDamageTaken
		}
		out = append(out, base)
	}

	for _, id := range r.Afflicted {
		out = append(out, Event{Type: EventEffectApplied, ActorID: r.ActorID, TargetID: id, Ability: r.Ability})
	}
	for _, id := range r.Summoned {
		out = append(out, Event{Type: EventAddSummoned, ActorID: r.ActorID, TargetID: id})
	}
	for _, id := range r.Deaths {
		if c := o.session.Combatant(id); c != nil && c.Kind() == combat.KindHero {
			out = append(out, Event{Type: EventHeroDied, TargetID: id})
			continue
		}
		out = append(out, Event{Type: EventEnemyDied, EnemyID: id, TargetID: id})
	}
	return out
}

func first[T any](xs []T) T {
	var zero T
	if len(xs) == 0 {
		return zero
	}
	return xs[0]
}
