package condition_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/idlecombat/internal/game/condition"
)

func writeYAML(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, "stunned.yaml", `
id: stunned
name: Stunned
duration_type: rounds
incapacitates: true
`)
	writeYAML(t, dir, "intimidated.yaml", `
id: intimidated
name: Intimidated
duration_type: rounds
attack_percent: -0.2
debuff: true
`)
	writeYAML(t, dir, "notes.txt", "ignored")

	reg, err := condition.LoadDirectory(dir)
	require.NoError(t, err)
	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, "intimidated", all[0].ID)
	def, ok := reg.Get("intimidated")
	require.True(t, ok)
	assert.InDelta(t, -0.2, def.AttackPercent, 1e-9)
}

func TestLoadDirectory_UnknownField(t *testing.T) {
	dir := t.TempDir()
	writeYAML(t, dir, "bad.yaml", `
id: bad
name: Bad
duration_type: rounds
armour_class: 3
`)
	_, err := condition.LoadDirectory(dir)
	assert.Error(t, err)
}

func TestDef_Validate(t *testing.T) {
	d := &condition.Def{DurationType: "until_save", MaxStacks: -1, AttackPercent: -1}
	err := d.Validate()
	require.Error(t, err)
	for _, want := range []string{"id", "name", "duration_type", "max_stacks", "attack_percent"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	reg := condition.NewRegistry()
	require.NoError(t, reg.Register(stunned()))
	assert.Error(t, reg.Register(stunned()))
}
