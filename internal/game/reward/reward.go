// Package reward computes experience, gold and loot at the end of a combat.
package reward

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/idlecombat/internal/game/dice"
	"github.com/cory-johannsen/idlecombat/internal/game/inventory"
	"github.com/cory-johannsen/idlecombat/internal/game/npc"
)

// Params are the reward tuning values.
type Params struct {
	// BaseExperience and BaseGold apply when a template sets neither.
	BaseExperience int
	BaseGold       int
	// MileScaling is the per-mile growth: values scale by 1 + MileScaling*(mile-1).
	MileScaling    float64
	BossMultiplier float64
	// DefeatFraction is the share of victory experience and gold kept on defeat.
	DefeatFraction float64
	// QualityWeights are the base draw weights, lowest tier first.
	QualityWeights []float64
	// QualityMileShift grows each tier's weight by shift*(mile-1)*tierIndex.
	QualityMileShift float64
	// QualityMultipliers scale the stat budget per tier, lowest tier first.
	QualityMultipliers []float64
	// BossProcedural is the procedural item count for bosses without a loot table.
	BossProcedural int
}

// DefaultParams returns the stock reward tuning.
func DefaultParams() Params {
	return Params{
		BaseExperience:     10,
		BaseGold:           5,
		MileScaling:        0.1,
		BossMultiplier:     3,
		DefeatFraction:     0.25,
		QualityWeights:     []float64{60, 25, 10, 4, 1},
		QualityMileShift:   0.05,
		QualityMultipliers: []float64{1, 1.5, 2.25, 3.5, 5},
		BossProcedural:     1,
	}
}

// Result is the outcome of one combat. It is computed once and never mutated.
type Result struct {
	Victory    bool
	Experience int
	Gold       int
	Loot       []inventory.ItemInstance
}

// Calculator computes rewards.
type Calculator struct {
	params Params
	src    dice.Source
	roller *dice.Roller
	items  *inventory.Registry
	logger *zap.Logger
}

// NewCalculator creates a Calculator. items resolves fixed drops to named
// instances and may be nil.
//
// Precondition: roller and logger must be non-nil; len(QualityWeights) and
// len(QualityMultipliers) must equal len(inventory.Qualities).
func NewCalculator(p Params, roller *dice.Roller, items *inventory.Registry, logger *zap.Logger) *Calculator {
	return &Calculator{params: p, src: roller.Source(), roller: roller, items: items, logger: logger}
}

// Scale returns the mile and difficulty multiplier for ctx.
func (c *Calculator) Scale(ctx npc.EncounterContext) float64 {
	mile := max(ctx.Mile, 1)
	diff := ctx.Difficulty
	if diff <= 0 {
		diff = 1
	}
	return (1 + c.params.MileScaling*float64(mile-1)) * diff
}

// base returns the scaled experience and gold for beating t.
func (c *Calculator) base(t *npc.Template, ctx npc.EncounterContext) (int, int) {
	mult := c.Scale(ctx)
	if t.IsBoss() && c.params.BossMultiplier > 0 {
		mult *= c.params.BossMultiplier
	}
	xp := t.Experience
	if xp == 0 {
		xp = c.params.BaseExperience
	}
	gold := c.params.BaseGold
	if t.Gold != "" {
		res, err := c.roller.RollExpr(t.Gold)
		if err != nil {
			c.logger.Warn("reward: bad gold expression", zap.String("template", t.ID), zap.Error(err))
		} else {
			gold = res.Total()
		}
	}
	return int(math.Round(float64(xp) * mult)), max(0, int(math.Round(float64(gold)*mult)))
}

// Victory computes the rewards for defeating t.
//
// Postcondition: Victory is true; Experience and Gold are >= 0.
func (c *Calculator) Victory(t *npc.Template, ctx npc.EncounterContext) Result {
	xp, gold := c.base(t, ctx)
	res := Result{Victory: true, Experience: xp, Gold: gold}

	procedural := 0
	if t.Loot != nil {
		for _, drop := range npc.RollDrops(*t.Loot, c.src) {
			res.Loot = append(res.Loot, c.instance(drop))
		}
		procedural = t.Loot.Procedural
	} else if t.IsBoss() {
		procedural = c.params.BossProcedural
	}
	for i := 0; i < procedural; i++ {
		res.Loot = append(res.Loot, c.Generate(max(ctx.Mile, 1)))
	}
	c.logger.Debug("reward: victory",
		zap.String("template", t.ID),
		zap.Int("experience", res.Experience),
		zap.Int("gold", res.Gold),
		zap.Int("loot", len(res.Loot)),
	)
	return res
}

// Defeat computes the consolation rewards for losing to t.
//
// Postcondition: Victory is false, Experience >= 1, Gold >= 0 and Loot is empty.
func (c *Calculator) Defeat(t *npc.Template, ctx npc.EncounterContext) Result {
	xp, gold := c.base(t, ctx)
	f := c.params.DefeatFraction
	return Result{
		Experience: max(1, int(float64(xp)*f)),
		Gold:       max(0, int(float64(gold)*f)),
	}
}

func (c *Calculator) instance(d npc.LootItem) inventory.ItemInstance {
	if c.items != nil {
		if def, ok := c.items.Item(d.ItemDefID); ok {
			inst := inventory.FromDef(def)
			inst.InstanceID = d.InstanceID
			inst.Quantity = d.Quantity
			return inst
		}
	}
	return inventory.ItemInstance{
		InstanceID: d.InstanceID,
		ItemDefID:  d.ItemDefID,
		Name:       d.ItemDefID,
		Slot:       inventory.SlotNone,
		Quality:    inventory.QualityCommon,
		Quantity:   d.Quantity,
	}
}

// DrawQuality picks a tier for mile; higher miles shift weight toward
// higher tiers.
func (c *Calculator) DrawQuality(mile int) inventory.Quality {
	weights := make([]float64, len(inventory.Qualities))
	total := 0.0
	for i := range weights {
		w := 0.0
		if i < len(c.params.QualityWeights) {
			w = c.params.QualityWeights[i]
		}
		w *= 1 + c.params.QualityMileShift*float64(max(mile, 1)-1)*float64(i)
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return inventory.QualityCommon
	}
	r := c.src.Float64() * total
	for i, w := range weights {
		r -= w
		if r < 0 {
			return inventory.Qualities[i]
		}
	}
	return inventory.Qualities[len(inventory.Qualities)-1]
}

func (c *Calculator) multiplier(q inventory.Quality) float64 {
	for i, v := range inventory.Qualities {
		if v == q && i < len(c.params.QualityMultipliers) {
			return c.params.QualityMultipliers[i]
		}
	}
	return 1
}

var slotNouns = map[inventory.Slot]string{
	inventory.SlotWeapon:    "Blade",
	inventory.SlotArmor:     "Mail",
	inventory.SlotAccessory: "Charm",
}

var equippable = []inventory.Slot{inventory.SlotWeapon, inventory.SlotArmor, inventory.SlotAccessory}

// Generate builds a procedural item for mile. The stat budget is
// mile × the quality multiplier, spent on the slot's primary stat.
//
// Postcondition: the item has a fresh uuid and an equippable slot.
func (c *Calculator) Generate(mile int) inventory.ItemInstance {
	q := c.DrawQuality(mile)
	slot := equippable[c.src.Intn(len(equippable))]
	budget := max(1, int(math.Round(float64(max(mile, 1))*c.multiplier(q))))

	inst := inventory.ItemInstance{
		InstanceID: uuid.New().String(),
		Name:       fmt.Sprintf("%s %s", title(q), slotNouns[slot]),
		Slot:       slot,
		Quality:    q,
		Quantity:   1,
	}
	switch slot {
	case inventory.SlotWeapon:
		inst.Bonus.Attack = budget
	case inventory.SlotArmor:
		inst.Bonus.Defense = (budget + 1) / 2
		inst.Bonus.MaxHealth = budget * 5
	default:
		inst.Bonus.Speed = (budget + 1) / 2
		inst.Bonus.Attack = budget / 2
	}
	return inst
}

func title(q inventory.Quality) string {
	s := string(q)
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
