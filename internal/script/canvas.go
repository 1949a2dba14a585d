package script

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/sketchstorm/internal/history"
	"github.com/dshills/sketchstorm/internal/scene"
)

// canvasModule implements the canvas Lua module.
type canvasModule struct {
	canvas  *scene.Canvas
	history *history.History
}

func (m *canvasModule) register(L *lua.LState) {
	mod := L.NewTable()

	L.SetField(mod, "add", L.NewFunction(m.add))
	L.SetField(mod, "modify", L.NewFunction(m.modify))
	L.SetField(mod, "remove", L.NewFunction(m.remove))
	L.SetField(mod, "clear", L.NewFunction(m.clear))
	L.SetField(mod, "path", L.NewFunction(m.path))
	L.SetField(mod, "count", L.NewFunction(m.count))
	L.SetField(mod, "ids", L.NewFunction(m.ids))
	L.SetField(mod, "pan", L.NewFunction(m.pan))
	L.SetField(mod, "zoom", L.NewFunction(m.zoom))

	L.SetGlobal("canvas", mod)
}

// add(type, fill[, left, top, width, height]) -> id
func (m *canvasModule) add(L *lua.LState) int {
	obj := &scene.Object{
		Type:       L.CheckString(1),
		Fill:       L.CheckString(2),
		Left:       float64(L.OptNumber(3, 0)),
		Top:        float64(L.OptNumber(4, 0)),
		Width:      float64(L.OptNumber(5, 10)),
		Height:     float64(L.OptNumber(6, 10)),
		ScaleX:     1,
		ScaleY:     1,
		Selectable: true,
		Evented:    true,
		Erasable:   true,
	}
	m.canvas.Add(obj)
	L.Push(lua.LString(obj.ID))
	return 1
}

// modify(id, left, top)
func (m *canvasModule) modify(L *lua.LState) int {
	id := L.CheckString(1)
	left := float64(L.CheckNumber(2))
	top := float64(L.CheckNumber(3))

	err := m.canvas.Modify(id, func(o *scene.Object) {
		o.Left = left
		o.Top = top
	})
	if err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// remove(id)
func (m *canvasModule) remove(L *lua.LState) int {
	if err := m.canvas.Remove(L.CheckString(1)); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// clear() removes every object as one history entry.
func (m *canvasModule) clear(L *lua.LState) int {
	m.canvas.ClearAll()
	m.history.SaveState()
	return 0
}

// path({{x, y}, ...}[, stroke]) -> id
// Points may also be written as {x = 1, y = 2}.
func (m *canvasModule) path(L *lua.LState) int {
	tbl := L.CheckTable(1)
	stroke := L.OptString(2, "#000000")

	points := make([]scene.Point, 0, tbl.Len())
	for i := 1; i <= tbl.Len(); i++ {
		pt, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			L.ArgError(1, "points must be tables")
		}
		points = append(points, scene.Point{
			X: coord(pt, 1, "x"),
			Y: coord(pt, 2, "y"),
		})
	}

	obj := m.canvas.AddPath(points, stroke)
	L.Push(lua.LString(obj.ID))
	return 1
}

func coord(pt *lua.LTable, idx int, name string) float64 {
	if n, ok := pt.RawGetInt(idx).(lua.LNumber); ok {
		return float64(n)
	}
	if n, ok := pt.RawGetString(name).(lua.LNumber); ok {
		return float64(n)
	}
	return 0
}

// count() -> n
func (m *canvasModule) count(L *lua.LState) int {
	L.Push(lua.LNumber(m.canvas.Len()))
	return 1
}

// ids() -> {id, ...} in z-order
func (m *canvasModule) ids(L *lua.LState) int {
	tbl := L.NewTable()
	for i, obj := range m.canvas.Objects() {
		tbl.RawSetInt(i+1, lua.LString(obj.ID))
	}
	L.Push(tbl)
	return 1
}

// pan(dx, dy)
func (m *canvasModule) pan(L *lua.LState) int {
	m.canvas.Pan(float64(L.CheckNumber(1)), float64(L.CheckNumber(2)))
	return 0
}

// zoom(z)
func (m *canvasModule) zoom(L *lua.LState) int {
	z := float64(L.CheckNumber(1))
	if z <= 0 {
		L.ArgError(1, "zoom must be positive")
	}
	m.canvas.SetZoom(z)
	return 0
}
