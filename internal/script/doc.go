// Package script runs Lua scenario scripts against a canvas and its history.
//
// Scripts execute in a sandboxed gopher-lua state with only the base, table,
// string and math libraries. Two global modules are installed:
//
//	canvas.add(type, fill[, left, top, width, height]) -> id
//	canvas.modify(id, left, top)
//	canvas.remove(id)
//	canvas.clear()
//	canvas.path({{x, y}, ...}[, stroke]) -> id
//	canvas.count() -> n
//	canvas.ids() -> {id, ...}
//	canvas.pan(dx, dy)
//	canvas.zoom(z)
//
//	history.save() -> bool
//	history.undo() -> ok[, err]
//	history.redo() -> ok[, err]
//	history.clear()
//	history.undo_count() -> n
//	history.redo_count() -> n
//	history.on_reset(fn)
//
// Every run starts from an empty canvas with a fresh history.
package script
