// Package threat maintains per-enemy aggro tables.
package threat

import (
	"math"
	"sort"
	"time"
)

// Entry is one hero's threat against one enemy.
type Entry struct {
	HeroID string  `json:"hero_id"`
	Value  float64 `json:"value"`
}

type enemyTable struct {
	order  []string
	values map[string]float64
}

func (t *enemyTable) touch(heroID string) {
	if _, ok := t.values[heroID]; !ok {
		t.order = append(t.order, heroID)
		t.values[heroID] = 0
	}
}

// Table maps enemy ID to hero ID to accumulated threat.
//
// Invariant: every stored value is >= 0.
// It is not safe for concurrent use; the caller must serialise access.
type Table struct {
	enemies map[string]*enemyTable
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{enemies: make(map[string]*enemyTable)}
}

func (t *Table) table(enemyID string) *enemyTable {
	et, ok := t.enemies[enemyID]
	if !ok {
		et = &enemyTable{values: make(map[string]float64)}
		t.enemies[enemyID] = et
	}
	return et
}

// Initialize creates enemyID's table with a zero entry for each hero, in order.
// Existing values are kept.
func (t *Table) Initialize(enemyID string, heroIDs ...string) {
	et := t.table(enemyID)
	for _, h := range heroIDs {
		et.touch(h)
	}
}

// Set stores value, clamped to >= 0.
func (t *Table) Set(enemyID, heroID string, value float64) {
	et := t.table(enemyID)
	et.touch(heroID)
	et.values[heroID] = math.Max(0, value)
}

// Get returns heroID's threat on enemyID, or 0.
func (t *Table) Get(enemyID, heroID string) float64 {
	if et, ok := t.enemies[enemyID]; ok {
		return et.values[heroID]
	}
	return 0
}

// Add adds amount*multiplier to heroID's threat on enemyID.
//
// Postcondition: the stored value is floor(previous + amount*multiplier), floored at 0.
func (t *Table) Add(enemyID, heroID string, amount, multiplier float64) float64 {
	et := t.table(enemyID)
	et.touch(heroID)
	v := math.Max(0, math.Floor(et.values[heroID]+amount*multiplier))
	et.values[heroID] = v
	return v
}

// Reduce lowers heroID's threat on enemyID. When isPercentage is true,
// amount is a percentage in [0, 100] of the current value.
//
// Postcondition: the stored value is >= 0.
func (t *Table) Reduce(enemyID, heroID string, amount float64, isPercentage bool) float64 {
	et, ok := t.enemies[enemyID]
	if !ok {
		return 0
	}
	cur, ok := et.values[heroID]
	if !ok {
		return 0
	}
	if isPercentage {
		pct := math.Min(math.Max(amount, 0), 100)
		cur -= cur * pct / 100
	} else {
		cur -= amount
	}
	cur = math.Max(0, math.Floor(cur))
	et.values[heroID] = cur
	return cur
}

// ApplyDecay decays heroID's threat on enemyID exponentially:
// v * e^(-ratePerSecond * elapsed seconds).
//
// Postcondition: the stored value is >= 0 and never larger than before.
func (t *Table) ApplyDecay(enemyID, heroID string, ratePerSecond float64, elapsed time.Duration) {
	et, ok := t.enemies[enemyID]
	if !ok || ratePerSecond <= 0 || elapsed <= 0 {
		return
	}
	if v, ok := et.values[heroID]; ok {
		et.values[heroID] = math.Max(0, v*math.Exp(-ratePerSecond*elapsed.Seconds()))
	}
}

// ApplyDecayAll decays every entry of every enemy.
func (t *Table) ApplyDecayAll(ratePerSecond float64, elapsed time.Duration) {
	for enemyID, et := range t.enemies {
		for _, heroID := range et.order {
			t.ApplyDecay(enemyID, heroID, ratePerSecond, elapsed)
		}
	}
}

// Wipe clears every entry for enemyID.
//
// Postcondition: Snapshot(enemyID) is empty and Highest(enemyID, nil) == "".
func (t *Table) Wipe(enemyID string) {
	delete(t.enemies, enemyID)
}

// Highest returns the hero with the most threat on enemyID among those for
// which eligible returns true (nil accepts all). Ties resolve to the hero
// inserted first. Returns "" when no hero qualifies.
func (t *Table) Highest(enemyID string, eligible func(heroID string) bool) string {
	et, ok := t.enemies[enemyID]
	if !ok {
		return ""
	}
	best, bestVal := "", -1.0
	for _, h := range et.order {
		if eligible != nil && !eligible(h) {
			continue
		}
		if v := et.values[h]; v > bestVal {
			best, bestVal = h, v
		}
	}
	return best
}

// RemoveHero drops heroID from every enemy's table.
func (t *Table) RemoveHero(heroID string) {
	for _, et := range t.enemies {
		if _, ok := et.values[heroID]; !ok {
			continue
		}
		delete(et.values, heroID)
		for i, h := range et.order {
			if h == heroID {
				et.order = append(et.order[:i], et.order[i+1:]...)
				break
			}
		}
	}
}

// RemoveEnemy drops enemyID's table.
func (t *Table) RemoveEnemy(enemyID string) {
	delete(t.enemies, enemyID)
}

// Snapshot returns enemyID's entries in insertion order.
func (t *Table) Snapshot(enemyID string) []Entry {
	et, ok := t.enemies[enemyID]
	if !ok {
		return nil
	}
	out := make([]Entry, 0, len(et.order))
	for _, h := range et.order {
		out = append(out, Entry{HeroID: h, Value: et.values[h]})
	}
	return out
}

// Enemies returns the IDs of every enemy with a table, sorted.
func (t *Table) Enemies() []string {
	out := make([]string, 0, len(t.enemies))
	for id := range t.enemies {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Reset drops every table.
func (t *Table) Reset() {
	clear(t.enemies)
}
