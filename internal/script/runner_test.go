package script

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dshills/sketchstorm/internal/config"
)

func newTestRunner(t *testing.T, opts ...Option) (*Runner, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default().History
	cfg.SettleDelay = 0

	var out bytes.Buffer
	opts = append([]Option{WithHistoryConfig(cfg), WithOutput(&out)}, opts...)
	return NewRunner(opts...), &out
}

func run(t *testing.T, code string) (Result, string) {
	t.Helper()
	r, out := newTestRunner(t)
	res, err := r.Run(context.Background(), "test.lua", code)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return res, out.String()
}

func TestRun_UndoRedo(t *testing.T) {
	res, out := run(t, `
local a = canvas.add("rect", "#f00", 10, 10)
local b = canvas.add("rect", "#0f0", 20, 20)
assert(history.undo_count() == 2)

assert(history.undo())
assert(canvas.count() == 1)
print(canvas.ids()[1] == a)

assert(history.redo())
assert(canvas.count() == 2)
assert(history.redo_count() == 0)
`)

	if res.Objects != 2 || res.UndoDepth != 2 || res.RedoDepth != 0 {
		t.Errorf("result = %+v", res)
	}
	if res.Captures != 3 || res.Undos != 1 || res.Redos != 1 {
		t.Errorf("counters = %+v", res)
	}
	if strings.TrimSpace(out) != "true" {
		t.Errorf("print output = %q, want true", out)
	}
	if n := len(gjson.GetBytes(res.Snapshot, "objects").Array()); n != 2 {
		t.Errorf("final snapshot holds %d objects, want 2", n)
	}
}

func TestRun_ModifyAndRemove(t *testing.T) {
	res, _ := run(t, `
local id = canvas.add("rect", "#000")
canvas.modify(id, 40, 50)
canvas.remove(id)
assert(canvas.count() == 0)
history.undo()
history.undo()
assert(canvas.count() == 1)
`)
	if res.Objects != 1 || res.RedoDepth != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestRun_ClearIsOneEntry(t *testing.T) {
	res, _ := run(t, `
for i = 1, 5 do
  canvas.add("rect", "#000", i * 10, 0)
end
local before = history.undo_count()
canvas.clear()
assert(canvas.count() == 0)
assert(history.undo_count() == before + 1)
history.undo()
assert(canvas.count() == 5)
`)
	if res.Objects != 5 {
		t.Errorf("Objects = %d, want 5", res.Objects)
	}
}

func TestRun_EphemeralNotRecorded(t *testing.T) {
	res, _ := run(t, `
canvas.add("circle", "rgba(255,0,0,0.3)", 5, 5)
assert(history.undo_count() == 0)
assert(canvas.count() == 1)
`)
	if res.Captures != 1 {
		t.Errorf("Captures = %d, want 1", res.Captures)
	}
}

func TestRun_Path(t *testing.T) {
	res, _ := run(t, `
canvas.path({{0, 0}, {10, 5}, {x = 20, y = 10}}, "#123456")
assert(history.undo_count() == 1)
`)
	points := gjson.GetBytes(res.Snapshot, "objects.0.points").Array()
	if len(points) != 3 || points[2].Get("x").Float() != 20 {
		t.Errorf("points = %v", points)
	}
}

func TestRun_ToolReset(t *testing.T) {
	res, out := run(t, `
canvas.add("rect", "#000")
canvas.add("rect", "#111")
history.on_reset(function() print("reset") end)
history.undo()
history.redo()
history.on_reset(nil)
history.undo()
`)
	if res.ToolResets != 2 {
		t.Errorf("ToolResets = %d, want 2", res.ToolResets)
	}
	if got := strings.Count(out, "reset"); got != 2 {
		t.Errorf("callback printed %d times, want 2", got)
	}
}

func TestRun_ReentrantUndoFromCallback(t *testing.T) {
	res, _ := run(t, `
canvas.add("rect", "#000")
canvas.add("rect", "#111")
canvas.add("rect", "#222")
history.on_reset(function() history.undo() end)
history.undo()
`)
	if res.UndoDepth != 2 || res.RedoDepth != 1 {
		t.Errorf("depth = %d/%d, want 2/1", res.UndoDepth, res.RedoDepth)
	}
}

func TestRun_HistoryClear(t *testing.T) {
	res, _ := run(t, `
canvas.add("rect", "#000")
history.on_reset(function() end)
history.clear()
assert(history.undo_count() == 0)
assert(history.undo() == true)
`)
	if res.UndoDepth != 0 || res.Snapshot != nil {
		t.Errorf("result = %+v", res)
	}
}

func TestRun_Camera(t *testing.T) {
	res, _ := run(t, `
canvas.pan(15, 25)
canvas.zoom(2)
canvas.add("rect", "#000")
`)
	tr := gjson.GetBytes(res.Snapshot, "camera.transform").Array()
	if len(tr) != 6 || tr[2].Float() != 15 || tr[5].Float() != 25 {
		t.Errorf("camera.transform = %v", tr)
	}
	if z := gjson.GetBytes(res.Snapshot, "camera.zoom").Float(); z != 2 {
		t.Errorf("camera.zoom = %v, want 2", z)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"syntax", "canvas.add("},
		{"unknown object", `canvas.modify("nope", 1, 2)`},
		{"bad argument", `canvas.add(1)`},
		{"bad zoom", `canvas.zoom(0)`},
		{"explicit error", `error("boom")`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRunner(t)
			_, err := r.Run(context.Background(), "bad.lua", tt.code)
			if !errors.Is(err, ErrScript) {
				t.Errorf("Run error = %v, want ErrScript", err)
			}
			var serr *Error
			if !errors.As(err, &serr) || serr.Name != "bad.lua" {
				t.Errorf("error = %#v", err)
			}
		})
	}
}

func TestRun_PartialResultOnError(t *testing.T) {
	r, _ := newTestRunner(t)
	res, err := r.Run(context.Background(), "partial.lua", `
canvas.add("rect", "#000")
error("stop")
`)
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Objects != 1 || res.UndoDepth != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestRun_Sandbox(t *testing.T) {
	_, out := run(t, `
print(io == nil, os == nil, require == nil, load == nil, dofile == nil, debug == nil)
print(string.upper("ok"), math.floor(2.5), table.concat({"a", "b"}, ","))
`)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("output = %q", out)
	}
	if lines[0] != "true\ttrue\ttrue\ttrue\ttrue\ttrue" {
		t.Errorf("unsafe globals present: %q", lines[0])
	}
	if lines[1] != "OK\t2\ta,b" {
		t.Errorf("safe libraries output = %q", lines[1])
	}
}

func TestRun_Timeout(t *testing.T) {
	r, _ := newTestRunner(t, WithTimeout(50*time.Millisecond))
	_, err := r.Run(context.Background(), "loop.lua", "while true do end")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run error = %v, want deadline exceeded", err)
	}
}

func TestRunFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.lua")
	if err := os.WriteFile(path, []byte(`canvas.add("rect", "#000")`), 0644); err != nil {
		t.Fatal(err)
	}

	r, _ := newTestRunner(t)
	res, err := r.RunFile(context.Background(), path)
	if err != nil {
		t.Fatalf("RunFile failed: %v", err)
	}
	if res.Name != path || res.Objects != 1 {
		t.Errorf("result = %+v", res)
	}

	if _, err := r.RunFile(context.Background(), filepath.Join(t.TempDir(), "missing.lua")); err == nil {
		t.Error("RunFile on a missing file should fail")
	}
}

func TestResult_String(t *testing.T) {
	s := Result{Name: "a.lua", Objects: 3, UndoDepth: 2, Duration: time.Second}.String()
	if !strings.Contains(s, "a.lua: 3 objects, undo 2, redo 0") {
		t.Errorf("String() = %q", s)
	}
}
