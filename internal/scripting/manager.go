package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/idlecombat/internal/game/dice"
)

// globalNamespace is the VM searched when a namespace has no VM of its own.
const globalNamespace = "__global__"

// HeroView is the snapshot of a hero exposed to scripts.
type HeroView struct {
	ID        string
	Name      string
	Role      string
	Health    int
	MaxHealth int
}

// Env binds one mechanic invocation to the running encounter.
// Nil callbacks make the matching engine.* function a no-op.
type Env struct {
	ActorID        string
	Heroes         func() []HeroView
	Damage         func(targetID string, amount int) int
	DamageAll      func(multiplier float64) int
	ApplyCondition func(targetID, effectID string, rounds int) error
}

// Manager owns one sandboxed VM per script namespace.
//
// Calls are serialised; each VM is single-threaded.
type Manager struct {
	mu        sync.Mutex
	states    map[string]*lua.LState
	roller    *dice.Roller
	logger    *zap.Logger
	instLimit int
	env       *Env
}

// NewManager creates a Manager.
//
// Precondition: roller and logger must be non-nil; instLimit <= 0 selects DefaultInstructionLimit.
func NewManager(roller *dice.Roller, logger *zap.Logger, instLimit int) *Manager {
	return &Manager{
		states:    make(map[string]*lua.LState),
		roller:    roller,
		logger:    logger,
		instLimit: instLimit,
	}
}

// LoadNamespace creates a VM for ns and executes every *.lua file in dir in
// lexicographic order. An existing VM for ns is replaced.
//
// Precondition: ns must be non-empty; dir must be readable.
func (m *Manager) LoadNamespace(ns, dir string) error {
	files, err := luaFiles(dir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", dir, ns, err)
	}

	L := NewSandboxedState()
	m.registerModules(L)
	done := withBudget(context.Background(), L, m.instLimit)
	defer done()
	for _, path := range files {
		if err := L.DoFile(path); err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, ns, err)
		}
	}

	m.mu.Lock()
	if old, ok := m.states[ns]; ok {
		old.Close()
	}
	m.states[ns] = L
	m.mu.Unlock()
	m.logger.Info("scripts loaded", zap.String("namespace", ns), zap.Int("files", len(files)))
	return nil
}

// LoadGlobal loads dir into the fallback namespace.
func (m *Manager) LoadGlobal(dir string) error {
	return m.LoadNamespace(globalNamespace, dir)
}

// LoadTree loads root's own *.lua files as the global namespace and each
// subdirectory as a namespace named after it.
func (m *Manager) LoadTree(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("scripting: reading %q: %w", root, err)
	}
	if err := m.LoadGlobal(root); err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := m.LoadNamespace(e.Name(), filepath.Join(root, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func luaFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Manager) lookup(ns, mechanic string) (*lua.LState, lua.LValue) {
	for _, key := range []string{ns, globalNamespace} {
		L, ok := m.states[key]
		if !ok {
			continue
		}
		if fn := L.GetGlobal(mechanic); fn.Type() == lua.LTFunction {
			return L, fn
		}
	}
	return nil, lua.LNil
}

// HasMechanic reports whether ns (or the global namespace) defines mechanic.
func (m *Manager) HasMechanic(ns, mechanic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	L, _ := m.lookup(ns, mechanic)
	return L != nil
}

// CallMechanic invokes the Lua function named mechanic from ns, falling back
// to the global namespace, with env bound for the duration of the call. The
// function receives the actor ID.
//
// Postcondition: handled is false when no script defines mechanic; Lua
// runtime errors are logged at Warn and returned.
func (m *Manager) CallMechanic(ctx context.Context, ns, mechanic string, env Env) (handled bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	L, fn := m.lookup(ns, mechanic)
	if L == nil {
		m.logger.Info("scripting: no script for mechanic",
			zap.String("namespace", ns),
			zap.String("mechanic", mechanic),
		)
		return false, nil
	}

	m.env = &env
	defer func() { m.env = nil }()
	done := withBudget(ctx, L, m.instLimit)
	defer done()

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, lua.LString(env.ActorID)); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("namespace", ns),
			zap.String("mechanic", mechanic),
			zap.Error(err),
		)
		return false, fmt.Errorf("scripting: mechanic %q: %w", mechanic, err)
	}
	return true, nil
}

// Close releases every VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ns, L := range m.states {
		L.Close()
		delete(m.states, ns)
	}
}
