package gameserver

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/idlecombat/internal/game/combat"
	"github.com/cory-johannsen/idlecombat/internal/game/party"
	"github.com/cory-johannsen/idlecombat/internal/game/reward"
)

// EventType names an outbound combat event.
type EventType string

const (
	EventStarted       EventType = "combat.started"
	EventDamageDealt   EventType = "combat.damageDealt"
	EventDamageTaken   EventType = "combat.damageTaken"
	EventCriticalHit   EventType = "combat.criticalHit"
	EventMiss          EventType = "combat.miss"
	EventEnemyDied     EventType = "combat.enemyDied"
	EventHeroDied      EventType = "combat.heroDied"
	EventEnded         EventType = "combat.ended"
	EventHealed        EventType = "combat.healed"
	EventShielded      EventType = "combat.shielded"
	EventPhaseChanged  EventType = "combat.phaseChanged"
	EventEnraged       EventType = "combat.enraged"
	EventCastStarted   EventType = "combat.castStarted"
	EventInterrupted   EventType = "combat.interrupted"
	EventAddSummoned   EventType = "combat.addSummoned"
	EventEffectApplied EventType = "combat.effectApplied"
)

// Event is an in-process combat notification. Only the fields relevant to
// Type are set.
type Event struct {
	Type      EventType
	SessionID string
	Round     int
	At        time.Time

	ActorID  string
	TargetID string
	Ability  string
	Amount   int

	// EnemyID is the dead enemy for EventEnemyDied and the encounter's
	// template for EventStarted and EventEnded.
	EnemyID      string
	Participants []string
	Phase        combat.Phase

	Victory  bool
	Aborted  bool
	Rewards  *reward.Result
	Gains    []party.Gain
	Rounds   int
	Duration time.Duration
}

// Publisher receives outbound combat events. Publish must not block.
type Publisher interface {
	Publish(ev Event)
}

// Handler consumes events delivered by a Bus.
type Handler func(ev Event)

// Bus fans events out to subscribed handlers in subscription order.
//
// Handlers run synchronously on the publishing goroutine; a panicking
// handler is logged and does not affect the others.
type Bus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]Handler
	order    []int
	logger   *zap.Logger
}

// NewBus creates an empty Bus.
//
// Precondition: logger must be non-nil.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{handlers: make(map[int]Handler), logger: logger}
}

// Subscribe registers fn and returns a function that removes it.
// Calling the returned function more than once is a no-op.
//
// Precondition: fn must not be nil.
func (b *Bus) Subscribe(fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = fn
	b.order = append(b.order, id)
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers ev to every current subscriber.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	subs := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		subs = append(subs, b.handlers[id])
	}
	b.mu.Unlock()
	for _, fn := range subs {
		b.deliver(fn, ev)
	}
}

func (b *Bus) deliver(fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("event", string(ev.Type)),
				zap.Any("panic", r),
			)
		}
	}()
	fn(ev)
}

// EventLog is a Publisher that keeps every event in memory.
type EventLog struct {
	mu     sync.Mutex
	events []Event
}

// Publish appends ev.
func (l *EventLog) Publish(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

// Events returns a copy of the recorded events.
func (l *EventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// OfType returns the recorded events of type t.
func (l *EventLog) OfType(t EventType) []Event {
	var out []Event
	for _, ev := range l.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// String renders ev as one combat log line.
func (ev Event) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[r%d] ", ev.Round)
	with := func() string {
		if ev.Ability == "" {
			return ""
		}
		return " with " + ev.Ability
	}
	switch ev.Type {
	case EventStarted:
		fmt.Fprintf(&b, "combat against %s begins: %s", ev.EnemyID, strings.Join(ev.Participants, ", "))
	case EventDamageDealt, EventDamageTaken:
		fmt.Fprintf(&b, "%s hits %s for %d%s", ev.ActorID, ev.TargetID, ev.Amount, with())
	case EventCriticalHit:
		fmt.Fprintf(&b, "%s lands a critical hit on %s", ev.ActorID, ev.TargetID)
	case EventMiss:
		fmt.Fprintf(&b, "%s misses %s", ev.ActorID, ev.TargetID)
	case EventEnemyDied, EventHeroDied:
		fmt.Fprintf(&b, "%s dies", ev.TargetID)
	case EventHealed:
		fmt.Fprintf(&b, "%s heals %s for %d", ev.ActorID, ev.TargetID, ev.Amount)
	case EventShielded:
		fmt.Fprintf(&b, "%s shields %s for %d", ev.ActorID, ev.TargetID, ev.Amount)
	case EventPhaseChanged:
		fmt.Fprintf(&b, "%s enters %s", ev.ActorID, ev.Phase)
	case EventEnraged:
		fmt.Fprintf(&b, "%s becomes enraged", ev.ActorID)
	case EventCastStarted:
		fmt.Fprintf(&b, "%s begins casting %s (%d rounds)", ev.ActorID, ev.Ability, ev.Amount)
	case EventInterrupted:
		fmt.Fprintf(&b, "%s interrupts %s casting %s", ev.ActorID, ev.TargetID, ev.Ability)
	case EventAddSummoned:
		fmt.Fprintf(&b, "%s summons %s", ev.ActorID, ev.TargetID)
	case EventEffectApplied:
		fmt.Fprintf(&b, "%s afflicts %s%s", ev.ActorID, ev.TargetID, with())
	case EventEnded:
		outcome := "defeat"
		switch {
		case ev.Aborted:
			outcome = "aborted"
		case ev.Victory:
			outcome = "victory"
		}
		fmt.Fprintf(&b, "combat ended: %s after %d rounds", outcome, ev.Rounds)
		if ev.Rewards != nil {
			fmt.Fprintf(&b, " (%d xp, %d gold, %d items)", ev.Rewards.Experience, ev.Rewards.Gold, len(ev.Rewards.Loot))
		}
	default:
		fmt.Fprintf(&b, "%s %s -> %s", ev.Type, ev.ActorID, ev.TargetID)
	}
	return b.String()
}

var (
	_ Publisher = (*Bus)(nil)
	_ Publisher = (*EventLog)(nil)
)
