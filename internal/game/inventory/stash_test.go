package inventory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/idlecombat/internal/game/inventory"
)

func makeRegistry(defs ...*inventory.ItemDef) *inventory.Registry {
	reg := inventory.NewRegistry()
	for _, d := range defs {
		_ = reg.RegisterItem(d)
	}
	return reg
}

func TestStash_AddDrop_NonStackable(t *testing.T) {
	reg := makeRegistry(swordDef())
	s := inventory.NewStash(3)
	require.NoError(t, s.AddDrop("iron_sword", 2, reg))
	items := s.Items()
	require.Len(t, items, 2)
	assert.NotEqual(t, items[0].InstanceID, items[1].InstanceID)
	assert.Equal(t, 5, items[0].Bonus.Attack)

	assert.Error(t, s.AddDrop("iron_sword", 2, reg))
	assert.Equal(t, 2, s.UsedSlots(), "failed add leaves the stash unchanged")
}

func TestStash_AddDrop_StacksMerge(t *testing.T) {
	reg := makeRegistry(tuskDef())
	s := inventory.NewStash(2)
	require.NoError(t, s.AddDrop("ogre_tusk", 3, reg))
	require.NoError(t, s.AddDrop("ogre_tusk", 4, reg))
	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, 2, items[1].Quantity)

	assert.Error(t, s.AddDrop("ogre_tusk", 4, reg))
	assert.Equal(t, 2, s.Items()[1].Quantity)
}

func TestStash_AddDrop_UnknownItem(t *testing.T) {
	s := inventory.NewStash(1)
	assert.Error(t, s.AddDrop("nope", 1, makeRegistry()))
}

func TestStash_AddInstanceAndTake(t *testing.T) {
	s := inventory.NewStash(1)
	inst := inventory.ItemInstance{InstanceID: "gen-1", Name: "Shiny Blade", Slot: inventory.SlotWeapon}
	require.NoError(t, s.AddInstance(inst))
	assert.Error(t, s.AddInstance(inventory.ItemInstance{InstanceID: "gen-2"}))

	got, err := s.Take("gen-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Quantity)
	assert.Equal(t, 0, s.UsedSlots())
	_, err = s.Take("gen-1")
	assert.Error(t, err)
}

func TestProperty_Stash_NeverExceedsSlots(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		reg := makeRegistry(swordDef(), tuskDef())
		maxSlots := rapid.IntRange(0, 6).Draw(rt, "slots")
		s := inventory.NewStash(maxSlots)
		n := rapid.IntRange(1, 20).Draw(rt, "ops")
		for i := 0; i < n; i++ {
			id := rapid.SampledFrom([]string{"iron_sword", "ogre_tusk"}).Draw(rt, "id")
			qty := rapid.IntRange(1, 8).Draw(rt, "qty")
			_ = s.AddDrop(id, qty, reg)
			assert.LessOrEqual(rt, s.UsedSlots(), maxSlots)
		}
		for _, it := range s.Items() {
			assert.GreaterOrEqual(rt, it.Quantity, 1)
			if it.ItemDefID == "ogre_tusk" {
				assert.LessOrEqual(rt, it.Quantity, 5)
			}
		}
	})
}
