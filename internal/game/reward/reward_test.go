package reward_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/idlecombat/internal/game/dice"
	"github.com/cory-johannsen/idlecombat/internal/game/inventory"
	"github.com/cory-johannsen/idlecombat/internal/game/npc"
	"github.com/cory-johannsen/idlecombat/internal/game/reward"
)

type fixedSource struct {
	val int
	f   float64
}

func (s fixedSource) Intn(n int) int   { return s.val % n }
func (s fixedSource) Float64() float64 { return s.f }

func newCalc(src dice.Source, items *inventory.Registry) *reward.Calculator {
	return reward.NewCalculator(reward.DefaultParams(), dice.NewRoller(src, zap.NewNop()), items, zap.NewNop())
}

func goblin() *npc.Template {
	return &npc.Template{ID: "goblin", Name: "Goblin", Experience: 20, Gold: "2d6+3"}
}

func TestVictory_Base(t *testing.T) {
	c := newCalc(fixedSource{val: 2}, nil)
	res := c.Victory(goblin(), npc.EncounterContext{Mile: 1, Difficulty: 1})
	assert.True(t, res.Victory)
	assert.Equal(t, 20, res.Experience)
	assert.Equal(t, 9, res.Gold)
	assert.Empty(t, res.Loot)
}

func TestVictory_MileAndDifficultyScaling(t *testing.T) {
	c := newCalc(fixedSource{val: 2}, nil)
	res := c.Victory(goblin(), npc.EncounterContext{Mile: 11, Difficulty: 1.5})
	assert.Equal(t, 60, res.Experience)
	assert.Equal(t, 27, res.Gold)
}

func TestVictory_TemplateFallsBackToBaseValues(t *testing.T) {
	c := newCalc(fixedSource{}, nil)
	res := c.Victory(&npc.Template{ID: "rat", Name: "Rat"}, npc.EncounterContext{Mile: 1, Difficulty: 1})
	assert.Equal(t, 10, res.Experience)
	assert.Equal(t, 5, res.Gold)
}

func TestVictory_BossGetsMultiplierAndProceduralLoot(t *testing.T) {
	c := newCalc(fixedSource{val: 2}, nil)
	tmpl := goblin()
	tmpl.Boss = &npc.BossConfig{Phases: true}
	res := c.Victory(tmpl, npc.EncounterContext{Mile: 1, Difficulty: 1})
	assert.Equal(t, 60, res.Experience)
	assert.Equal(t, 27, res.Gold)
	require.Len(t, res.Loot, 1)
	assert.True(t, res.Loot[0].Slot.Equippable())
	assert.NotEmpty(t, res.Loot[0].InstanceID)
}

func TestVictory_FixedDropsResolveThroughRegistry(t *testing.T) {
	items := inventory.NewRegistry()
	require.NoError(t, items.RegisterItem(&inventory.ItemDef{
		ID: "ogre_tusk", Name: "Ogre Tusk", Slot: inventory.SlotNone,
		Quality: inventory.QualityUncommon, Stackable: true, MaxStack: 5,
	}))
	c := newCalc(fixedSource{val: 1, f: 0.1}, items)
	tmpl := goblin()
	tmpl.Loot = &npc.LootTable{
		Items: []npc.ItemDrop{
			{ItemID: "ogre_tusk", Chance: 1, MinQty: 1, MaxQty: 2},
			{ItemID: "mystery", Chance: 1, MinQty: 1, MaxQty: 1},
		},
		Procedural: 2,
	}
	res := c.Victory(tmpl, npc.EncounterContext{Mile: 3, Difficulty: 1})
	require.Len(t, res.Loot, 4)
	assert.Equal(t, "Ogre Tusk", res.Loot[0].Name)
	assert.Equal(t, 2, res.Loot[0].Quantity)
	assert.Equal(t, "mystery", res.Loot[1].Name)
	assert.Equal(t, inventory.SlotNone, res.Loot[1].Slot)
}

// Defeat still pays out a reduced, non-zero reward.
func TestDefeat_ReducedButNonZero(t *testing.T) {
	c := newCalc(fixedSource{val: 2}, nil)
	res := c.Defeat(goblin(), npc.EncounterContext{Mile: 1, Difficulty: 1})
	assert.False(t, res.Victory)
	assert.Equal(t, 5, res.Experience)
	assert.Equal(t, 2, res.Gold)
	assert.Empty(t, res.Loot)

	weak := &npc.Template{ID: "rat", Name: "Rat", Experience: 1, Gold: "0"}
	res = c.Defeat(weak, npc.EncounterContext{Mile: 1, Difficulty: 1})
	assert.Equal(t, 1, res.Experience, "defeat always grants at least one experience")
	assert.Equal(t, 0, res.Gold)
}

func TestDrawQuality_MileShiftsTowardHigherTiers(t *testing.T) {
	c := newCalc(fixedSource{f: 0.7}, nil)
	assert.Equal(t, inventory.QualityUncommon, c.DrawQuality(1))
	assert.Equal(t, inventory.QualityRare, c.DrawQuality(41))

	assert.Equal(t, inventory.QualityCommon, newCalc(fixedSource{f: 0}, nil).DrawQuality(100))
	assert.Equal(t, inventory.QualityLegendary, newCalc(fixedSource{f: 0.9999}, nil).DrawQuality(1))
}

func TestGenerate_BudgetFollowsMileAndQuality(t *testing.T) {
	c := newCalc(fixedSource{val: 0, f: 0}, nil)
	item := c.Generate(4)
	assert.Equal(t, "Common Blade", item.Name)
	assert.Equal(t, inventory.SlotWeapon, item.Slot)
	assert.Equal(t, 4, item.Bonus.Attack)

	armor := newCalc(fixedSource{val: 1, f: 0.9999}, nil).Generate(2)
	assert.Equal(t, inventory.QualityLegendary, armor.Quality)
	assert.Equal(t, inventory.SlotArmor, armor.Slot)
	assert.Equal(t, 5, armor.Bonus.Defense)
	assert.Equal(t, 50, armor.Bonus.MaxHealth)
}

func TestProperty_Rewards_NonNegative(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		c := newCalc(dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed")), nil)
		tmpl := &npc.Template{
			ID:         "x",
			Name:       "X",
			Experience: rapid.IntRange(0, 500).Draw(rt, "xp"),
			Gold:       rapid.SampledFrom([]string{"", "1d4", "3d10+10", "2d6-5"}).Draw(rt, "gold"),
		}
		ctx := npc.EncounterContext{
			Mile:       rapid.IntRange(1, 200).Draw(rt, "mile"),
			Difficulty: rapid.Float64Range(0.5, 3).Draw(rt, "difficulty"),
		}
		win := c.Victory(tmpl, ctx)
		loss := c.Defeat(tmpl, ctx)
		assert.GreaterOrEqual(rt, win.Experience, 0)
		assert.GreaterOrEqual(rt, win.Gold, 0)
		assert.GreaterOrEqual(rt, loss.Experience, 1)
		assert.GreaterOrEqual(rt, loss.Gold, 0)
		assert.Empty(rt, loss.Loot)
	})
}
