package script

import (
	"context"
	"log/slog"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/sketchstorm/internal/history"
)

// historyModule implements the history Lua module.
type historyModule struct {
	ctx     context.Context
	history *history.History
	logger  *slog.Logger

	resets int
}

func (m *historyModule) register(L *lua.LState) {
	mod := L.NewTable()

	L.SetField(mod, "save", L.NewFunction(m.save))
	L.SetField(mod, "undo", L.NewFunction(m.undo))
	L.SetField(mod, "redo", L.NewFunction(m.redo))
	L.SetField(mod, "clear", L.NewFunction(m.clear))
	L.SetField(mod, "undo_count", L.NewFunction(m.undoCount))
	L.SetField(mod, "redo_count", L.NewFunction(m.redoCount))
	L.SetField(mod, "on_reset", L.NewFunction(m.onReset))

	L.SetGlobal("history", mod)
}

// save() -> captured
func (m *historyModule) save(L *lua.LState) int {
	L.Push(lua.LBool(m.history.SaveState()))
	return 1
}

// undo() -> ok[, err]
func (m *historyModule) undo(L *lua.LState) int {
	return m.result(L, m.history.Undo(m.ctx))
}

// redo() -> ok[, err]
func (m *historyModule) redo(L *lua.LState) int {
	return m.result(L, m.history.Redo(m.ctx))
}

func (m *historyModule) result(L *lua.LState, err error) int {
	if err != nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

// clear()
func (m *historyModule) clear(L *lua.LState) int {
	m.history.Clear()
	return 0
}

// undo_count() -> n
func (m *historyModule) undoCount(L *lua.LState) int {
	L.Push(lua.LNumber(m.history.UndoCount()))
	return 1
}

// redo_count() -> n
func (m *historyModule) redoCount(L *lua.LState) int {
	L.Push(lua.LNumber(m.history.RedoCount()))
	return 1
}

// on_reset(fn) registers fn as the tool reset callback; nil unregisters.
func (m *historyModule) onReset(L *lua.LState) int {
	if L.Get(1) == lua.LNil {
		m.history.UnregisterToolResetCallback()
		return 0
	}
	fn := L.CheckFunction(1)

	m.history.RegisterToolResetCallback(func() {
		m.resets++
		err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true})
		if err != nil {
			m.logger.Warn("tool reset callback failed", "error", err)
		}
	})
	return 0
}
