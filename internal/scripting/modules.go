package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// registerModules installs the engine table:
//
//	engine.actor()                          -> id of the enemy running the mechanic
//	engine.heroes()                         -> array of {id, name, role, health, max_health}
//	engine.damage(id, amount)               -> damage dealt after defense and shields
//	engine.damage_all(mult)                 -> total dealt hitting every living hero at mult x attack
//	engine.apply_condition(id, effect, n)   -> true, or false plus an error message
//	engine.roll(expr)                       -> dice total
//	engine.log(msg)
func (m *Manager) registerModules(L *lua.LState) {
	engine := L.NewTable()
	L.SetFuncs(engine, map[string]lua.LGFunction{
		"actor":           m.luaActor,
		"heroes":          m.luaHeroes,
		"damage":          m.luaDamage,
		"damage_all":      m.luaDamageAll,
		"apply_condition": m.luaApplyCondition,
		"roll":            m.luaRoll,
		"log":             m.luaLog,
	})
	L.SetGlobal("engine", engine)
}

func (m *Manager) luaActor(L *lua.LState) int {
	if m.env == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(m.env.ActorID))
	return 1
}

func (m *Manager) luaHeroes(L *lua.LState) int {
	out := L.NewTable()
	if m.env != nil && m.env.Heroes != nil {
		for _, h := range m.env.Heroes() {
			t := L.NewTable()
			t.RawSetString("id", lua.LString(h.ID))
			t.RawSetString("name", lua.LString(h.Name))
			t.RawSetString("role", lua.LString(h.Role))
			t.RawSetString("health", lua.LNumber(h.Health))
			t.RawSetString("max_health", lua.LNumber(h.MaxHealth))
			out.Append(t)
		}
	}
	L.Push(out)
	return 1
}

func (m *Manager) luaDamage(L *lua.LState) int {
	id := L.CheckString(1)
	amount := L.CheckInt(2)
	dealt := 0
	if m.env != nil && m.env.Damage != nil && amount > 0 {
		dealt = m.env.Damage(id, amount)
	}
	L.Push(lua.LNumber(dealt))
	return 1
}

func (m *Manager) luaDamageAll(L *lua.LState) int {
	mult := float64(L.OptNumber(1, 1))
	dealt := 0
	if m.env != nil && m.env.DamageAll != nil && mult > 0 {
		dealt = m.env.DamageAll(mult)
	}
	L.Push(lua.LNumber(dealt))
	return 1
}

func (m *Manager) luaApplyCondition(L *lua.LState) int {
	id := L.CheckString(1)
	effect := L.CheckString(2)
	rounds := L.OptInt(3, 1)
	if m.env == nil || m.env.ApplyCondition == nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString("no encounter bound"))
		return 2
	}
	if err := m.env.ApplyCondition(id, effect, rounds); err != nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

func (m *Manager) luaRoll(L *lua.LState) int {
	expr := L.CheckString(1)
	res, err := m.roller.RollExpr(expr)
	if err != nil {
		L.RaiseError("engine.roll: %s", err.Error())
		return 0
	}
	L.Push(lua.LNumber(res.Total()))
	return 1
}

func (m *Manager) luaLog(L *lua.LState) int {
	m.logger.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}
