package history

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tidwall/gjson"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/dshills/sketchstorm/internal/config"
	"github.com/dshills/sketchstorm/internal/history/codec"
	"github.com/dshills/sketchstorm/internal/scene"
)

// Helper to create a canvas and a history bound to it with no settle delay.
func newTestHistory(t *testing.T, opts ...Option) (*scene.Canvas, *History) {
	t.Helper()
	c := scene.NewCanvas()
	h := newHistoryOn(t, c, opts...)
	return c, h
}

func newHistoryOn(t *testing.T, c scene.Scene, opts ...Option) *History {
	t.Helper()
	opts = append([]Option{WithSettleDelay(0)}, opts...)
	h, err := New(c, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(h.Dispose)
	return h
}

func rect(id string) *scene.Object {
	return &scene.Object{ID: id, Type: scene.TypeRect, Fill: "#333", Width: 10, Height: 10}
}

func ids(snap *codec.Snapshot) []string {
	var out []string
	for _, v := range gjson.GetBytes(snap.Bytes(), "objects.#.id").Array() {
		out = append(out, v.String())
	}
	return out
}

func sceneIDs(c *scene.Canvas) []string {
	var out []string
	for _, o := range c.Objects() {
		out = append(out, o.ID)
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// countingCodec wraps the real codec and counts calls.
type countingCodec struct {
	inner   *codec.Codec
	encodes atomic.Int32
	decodes atomic.Int32

	// duringDecode runs after the inner decode, before returning.
	duringDecode func()
	// corrupt replaces the snapshot handed to the inner decode.
	corrupt bool
}

func (c *countingCodec) Encode(s scene.Scene) (*codec.Snapshot, error) {
	c.encodes.Add(1)
	return c.inner.Encode(s)
}

func (c *countingCodec) Decode(ctx context.Context, s scene.Scene, snap *codec.Snapshot) error {
	c.decodes.Add(1)
	if c.corrupt {
		snap = codec.FromBytes([]byte("{not a snapshot"))
	}
	err := c.inner.Decode(ctx, s, snap)
	if c.duringDecode != nil {
		c.duringDecode()
	}
	return err
}

// History Tests

func TestNewNilScene(t *testing.T) {
	h, err := New(nil)
	if !errors.Is(err, ErrNilScene) {
		t.Errorf("New(nil) error = %v, want ErrNilScene", err)
	}
	// Dispose must tolerate a failed construction.
	h.Dispose()
}

func TestNewCapturesInitialState(t *testing.T) {
	_, h := newTestHistory(t)

	if h.Current() == nil {
		t.Fatal("construction should capture the initial state")
	}
	if h.UndoCount() != 0 || h.RedoCount() != 0 {
		t.Errorf("stacks = %d/%d, want 0/0", h.UndoCount(), h.RedoCount())
	}
	if got := ids(h.Current()); len(got) != 0 {
		t.Errorf("initial snapshot objects = %v, want none", got)
	}
}

func TestEndToEndScenario(t *testing.T) {
	c, h := newTestHistory(t)
	ctx := context.Background()
	s0 := h.Current()

	c.Add(rect("A"))
	s1 := h.Current()
	if undo := h.UndoStack(); len(undo) != 1 || undo[0] != s0 {
		t.Fatalf("undo stack = %v, want [S0]", undo)
	}
	if !equalIDs(ids(s1), []string{"A"}) {
		t.Fatalf("S1 = %v, want [A]", ids(s1))
	}

	c.Add(rect("B"))
	s2 := h.Current()
	if undo := h.UndoStack(); len(undo) != 2 || undo[0] != s0 || undo[1] != s1 {
		t.Fatalf("undo stack = %v, want [S0 S1]", undo)
	}
	if !equalIDs(ids(s2), []string{"A", "B"}) {
		t.Fatalf("S2 = %v, want [A B]", ids(s2))
	}
	if h.RedoCount() != 0 {
		t.Fatalf("redo stack should be empty")
	}

	if err := h.Undo(ctx); err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	if h.Current() != s1 {
		t.Errorf("current = %v, want S1", h.Current())
	}
	if redo := h.RedoStack(); len(redo) != 1 || redo[0] != s2 {
		t.Errorf("redo stack = %v, want [S2]", redo)
	}
	if undo := h.UndoStack(); len(undo) != 1 || undo[0] != s0 {
		t.Errorf("undo stack = %v, want [S0]", undo)
	}
	if !equalIDs(sceneIDs(c), []string{"A"}) {
		t.Errorf("scene = %v, want [A]", sceneIDs(c))
	}

	if err := h.Undo(ctx); err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	if h.Current() != s0 {
		t.Errorf("current = %v, want S0", h.Current())
	}
	if redo := h.RedoStack(); len(redo) != 2 || redo[0] != s2 || redo[1] != s1 {
		t.Errorf("redo stack = %v, want [S2 S1]", redo)
	}
	if h.UndoCount() != 0 {
		t.Errorf("undo stack should be empty")
	}
	if c.Len() != 0 {
		t.Errorf("scene = %v, want empty", sceneIDs(c))
	}

	if err := h.Redo(ctx); err != nil {
		t.Fatalf("Redo failed: %v", err)
	}
	if h.Current() != s1 {
		t.Errorf("current = %v, want S1", h.Current())
	}
	if !equalIDs(sceneIDs(c), []string{"A"}) {
		t.Errorf("scene = %v, want [A]", sceneIDs(c))
	}
}

func TestUndoStackBound(t *testing.T) {
	c, h := newTestHistory(t)
	first := h.Current()

	var captured []*codec.Snapshot
	for i := 0; i < MaxStackSize+10; i++ {
		captured = append(captured, h.Current())
		c.Add(rect(""))
		if h.UndoCount() > MaxStackSize {
			t.Fatalf("undo stack length %d exceeds %d", h.UndoCount(), MaxStackSize)
		}
	}

	undo := h.UndoStack()
	if len(undo) != MaxStackSize {
		t.Fatalf("undo stack length = %d, want %d", len(undo), MaxStackSize)
	}
	for _, s := range undo {
		if s == first {
			t.Error("oldest entry should have been evicted")
		}
	}
	// The survivors are the most recent MaxStackSize previous states, in order.
	want := captured[len(captured)-MaxStackSize:]
	for i := range want {
		if undo[i] != want[i] {
			t.Errorf("undo[%d] is not the expected snapshot", i)
		}
	}
}

func TestWithMaxEntries(t *testing.T) {
	c, h := newTestHistory(t, WithMaxEntries(3))
	for i := 0; i < 10; i++ {
		c.Add(rect(""))
	}
	if h.UndoCount() != 3 {
		t.Errorf("UndoCount() = %d, want 3", h.UndoCount())
	}

	h.SetMaxEntries(2)
	if h.UndoCount() != 2 || h.MaxEntries() != 2 {
		t.Errorf("after SetMaxEntries(2): count %d, max %d", h.UndoCount(), h.MaxEntries())
	}
}

func TestSaveStateClearsRedo(t *testing.T) {
	c, h := newTestHistory(t)
	ctx := context.Background()

	c.Add(rect("A"))
	c.Add(rect("B"))
	_ = h.Undo(ctx)
	if h.RedoCount() != 1 {
		t.Fatalf("RedoCount() = %d, want 1", h.RedoCount())
	}

	if !h.SaveState() {
		t.Fatal("SaveState should capture")
	}
	if h.RedoCount() != 0 {
		t.Errorf("redo stack should be empty after SaveState, has %d", h.RedoCount())
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	c, h := newTestHistory(t)
	ctx := context.Background()
	for _, id := range []string{"A", "B", "C", "D"} {
		c.Add(rect(id))
	}

	for n := 1; n <= 4; n++ {
		before := h.Current()
		for i := 0; i < n; i++ {
			if err := h.Undo(ctx); err != nil {
				t.Fatalf("Undo failed: %v", err)
			}
		}
		for i := 0; i < n; i++ {
			if err := h.Redo(ctx); err != nil {
				t.Fatalf("Redo failed: %v", err)
			}
		}
		if h.Current() != before {
			t.Errorf("after %d undo/redo pairs current changed", n)
		}
	}
	if !equalIDs(sceneIDs(c), []string{"A", "B", "C", "D"}) {
		t.Errorf("scene = %v", sceneIDs(c))
	}
}

func TestUndoRedoEmptyAreNoops(t *testing.T) {
	_, h := newTestHistory(t)
	ctx := context.Background()
	current := h.Current()

	if err := h.Undo(ctx); err != nil {
		t.Errorf("Undo on empty stack = %v", err)
	}
	if err := h.Redo(ctx); err != nil {
		t.Errorf("Redo on empty stack = %v", err)
	}
	if h.Current() != current || h.UndoCount() != 0 || h.RedoCount() != 0 {
		t.Error("empty undo/redo should leave everything unchanged")
	}
	if s := h.Stats(); s.Undos != 0 || s.Redos != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestNoCaptureWhileNavigating(t *testing.T) {
	c := scene.NewCanvas()
	cc := &countingCodec{inner: codec.New()}
	h := newHistoryOn(t, c, WithCodec(cc))
	ctx := context.Background()

	c.Add(rect("A"))
	c.Add(rect("B"))
	encodes := cc.encodes.Load()

	var stateDuringDecode State
	cc.duringDecode = func() {
		stateDuringDecode = h.State()
		// A notification fired as a side effect of the reload.
		c.Add(rect("synthetic"))
		if h.SaveState() {
			t.Error("SaveState accepted while navigating")
		}
	}

	if err := h.Undo(ctx); err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	if stateDuringDecode != StateNavigating {
		t.Errorf("state during decode = %v, want navigating", stateDuringDecode)
	}
	if got := cc.encodes.Load(); got != encodes {
		t.Errorf("encode called %d times during undo", got-encodes)
	}
	if h.State() != StateIdle {
		t.Errorf("state after undo = %v, want idle", h.State())
	}
}

func TestReloadNotificationsAreNotCaptured(t *testing.T) {
	c, h := newTestHistory(t)
	for _, id := range []string{"A", "B", "C"} {
		c.Add(rect(id))
	}
	captures := h.Stats().Captures

	// Restoring publishes one removal per cleared object and one addition
	// per reloaded object.
	_ = h.Undo(context.Background())
	_ = h.Redo(context.Background())

	if got := h.Stats().Captures; got != captures {
		t.Errorf("captures went from %d to %d during navigation", captures, got)
	}
}

func TestEphemeralIndicatorsNeverCaptured(t *testing.T) {
	c, h := newTestHistory(t)
	c.Add(rect("A"))
	captures := h.Stats().Captures

	preview := c.Add(&scene.Object{ID: "preview", Type: scene.DefaultSignature.Type, Fill: scene.DefaultSignature.Fill})
	_ = c.Modify(preview.ID, func(o *scene.Object) { o.Left = 50 })
	if got := h.Stats().Captures; got != captures {
		t.Errorf("ephemeral indicator triggered %d captures", got-captures)
	}

	// An explicit capture while the preview is live still excludes it.
	if !h.SaveState() {
		t.Fatal("SaveState should capture")
	}
	if !equalIDs(ids(h.Current()), []string{"A"}) {
		t.Errorf("snapshot = %v, want [A]", ids(h.Current()))
	}
	if c.Len() != 2 {
		t.Errorf("live scene should still hold the preview, has %d objects", c.Len())
	}
}

func TestBulkClearCapturesOnce(t *testing.T) {
	c, h := newTestHistory(t)
	c.Add(rect("A"))
	c.Add(rect("B"))
	c.Add(rect("C"))
	captures := h.Stats().Captures

	c.ClearAll()
	if got := h.Stats().Captures; got != captures {
		t.Errorf("bulk clear triggered %d captures", got-captures)
	}
	h.SaveState()
	if got := h.Stats().Captures; got != captures+1 {
		t.Errorf("captures = %d, want %d", got, captures+1)
	}

	_ = h.Undo(context.Background())
	if c.Len() != 3 {
		t.Errorf("one undo should restore all objects, scene has %d", c.Len())
	}
}

func TestClear(t *testing.T) {
	c, h := newTestHistory(t)
	ctx := context.Background()
	c.Add(rect("A"))
	c.Add(rect("B"))
	_ = h.Undo(ctx)
	h.RegisterToolResetCallback(func() {})

	h.Clear()

	if h.UndoCount() != 0 || h.RedoCount() != 0 {
		t.Errorf("stacks = %d/%d, want 0/0", h.UndoCount(), h.RedoCount())
	}
	if h.Current() != nil {
		t.Error("current should be nil after Clear")
	}
	if h.HasToolResetCallback() {
		t.Error("Clear should unregister the tool reset callback")
	}

	// The next capture starts a fresh history.
	c.Add(rect("C"))
	if h.Current() == nil || h.UndoCount() != 0 {
		t.Errorf("after Clear and capture: current=%v undo=%d", h.Current(), h.UndoCount())
	}
}

func TestToolResetCallback(t *testing.T) {
	c, h := newTestHistory(t)
	ctx := context.Background()
	c.Add(rect("A"))
	c.Add(rect("B"))

	var calls []string
	h.RegisterToolResetCallback(func() { calls = append(calls, "first") })
	h.RegisterToolResetCallback(func() {
		calls = append(calls, "second")
		if !h.IsNavigating() {
			t.Error("callback should run before the guard is released")
		}
	})

	_ = h.Undo(ctx)
	_ = h.Redo(ctx)
	if len(calls) != 2 || calls[0] != "second" || calls[1] != "second" {
		t.Errorf("calls = %v, want [second second]", calls)
	}

	h.UnregisterToolResetCallback()
	_ = h.Undo(ctx)
	if len(calls) != 2 {
		t.Errorf("unregistered callback was called")
	}
}

func TestToolResetWaitsForSettleDelay(t *testing.T) {
	c, h := newTestHistory(t, WithSettleDelay(20*time.Millisecond))
	c.Add(rect("A"))

	var calledAt time.Time
	h.RegisterToolResetCallback(func() { calledAt = time.Now() })

	start := time.Now()
	if err := h.Undo(context.Background()); err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	if calledAt.IsZero() {
		t.Fatal("callback not called")
	}
	if calledAt.Sub(start) < 20*time.Millisecond {
		t.Errorf("callback ran after %v, want at least 20ms", calledAt.Sub(start))
	}
}

func TestCancelledSettleSkipsToolReset(t *testing.T) {
	c, h := newTestHistory(t, WithSettleDelay(time.Hour))
	c.Add(rect("A"))
	s0 := h.UndoStack()[0]

	called := false
	h.RegisterToolResetCallback(func() { called = true })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := h.Undo(ctx); err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	if called {
		t.Error("callback should be skipped when the context ends during settling")
	}
	if h.Current() != s0 {
		t.Error("navigation should stand")
	}
	if h.State() != StateIdle {
		t.Errorf("state = %v, want idle", h.State())
	}
}

func TestReentrantNavigationIgnored(t *testing.T) {
	c, h := newTestHistory(t)
	ctx := context.Background()
	c.Add(rect("A"))
	c.Add(rect("B"))
	c.Add(rect("C"))

	h.RegisterToolResetCallback(func() {
		if err := h.Undo(ctx); err != nil {
			t.Errorf("re-entrant Undo = %v, want nil", err)
		}
	})

	_ = h.Undo(ctx)
	if h.UndoCount() != 2 || h.RedoCount() != 1 {
		t.Errorf("stacks = %d/%d, want 2/1 (re-entrant undo must be ignored)", h.UndoCount(), h.RedoCount())
	}
}

func TestUnparseableSnapshotLeavesStateUnchanged(t *testing.T) {
	c := scene.NewCanvas()
	cc := &countingCodec{inner: codec.New()}

	var reported []error
	h := newHistoryOn(t, c, WithCodec(cc), WithErrorReporter(func(ctx context.Context, err error) {
		reported = append(reported, err)
	}))
	ctx := context.Background()
	c.Add(rect("A"))
	c.Add(rect("B"))

	current := h.Current()
	undo := h.UndoStack()
	cc.corrupt = true

	err := h.Undo(ctx)

	var navErr *NavigationError
	if !errors.As(err, &navErr) {
		t.Fatalf("Undo = %v, want *NavigationError", err)
	}
	if !errors.Is(err, codec.ErrInvalidSnapshot) {
		t.Errorf("error should wrap ErrInvalidSnapshot: %v", err)
	}
	if navErr.Reverted {
		t.Error("scene was never cleared, nothing to revert")
	}
	if h.Current() != current {
		t.Error("current state changed after failed undo")
	}
	gotUndo := h.UndoStack()
	if len(gotUndo) != len(undo) || gotUndo[len(gotUndo)-1] != undo[len(undo)-1] {
		t.Error("undo stack not rolled back")
	}
	if h.RedoCount() != 0 {
		t.Errorf("redo stack = %d, want 0", h.RedoCount())
	}
	if len(reported) != 1 || !errors.Is(reported[0], codec.ErrInvalidSnapshot) {
		t.Errorf("reported = %v", reported)
	}
	if !equalIDs(sceneIDs(c), []string{"A", "B"}) {
		t.Errorf("scene = %v, want [A B]", sceneIDs(c))
	}

	// The engine stays usable.
	cc.corrupt = false
	if err := h.Undo(ctx); err != nil {
		t.Fatalf("Undo after failure: %v", err)
	}
	if !equalIDs(sceneIDs(c), []string{"A"}) {
		t.Errorf("scene = %v, want [A]", sceneIDs(c))
	}
}

func TestReloadFailureRevertsScene(t *testing.T) {
	var failNext atomic.Bool
	boom := errors.New("image unavailable")
	c := scene.NewCanvas(scene.WithMaterializer(func(ctx context.Context, obj *scene.Object) error {
		if failNext.CompareAndSwap(true, false) {
			return boom
		}
		return nil
	}))
	var reported int
	h := newHistoryOn(t, c, WithErrorReporter(func(ctx context.Context, err error) { reported++ }))
	ctx := context.Background()

	c.Add(rect("A"))
	c.Add(rect("B"))
	c.Add(rect("C"))
	current := h.Current()
	calls := 0
	h.RegisterToolResetCallback(func() { calls++ })

	failNext.Store(true)
	err := h.Undo(ctx)

	var navErr *NavigationError
	if !errors.As(err, &navErr) || !errors.Is(err, boom) {
		t.Fatalf("Undo = %v, want NavigationError wrapping %v", err, boom)
	}
	if !navErr.Reverted || navErr.RevertErr != nil {
		t.Errorf("NavigationError = %+v, want reverted", navErr)
	}
	if navErr.Direction != DirectionUndo {
		t.Errorf("direction = %v", navErr.Direction)
	}
	if h.Current() != current {
		t.Error("current state changed after failed undo")
	}
	if !equalIDs(sceneIDs(c), []string{"A", "B", "C"}) {
		t.Errorf("scene = %v, want [A B C] after revert", sceneIDs(c))
	}
	if calls != 0 {
		t.Error("tool reset should not run after a failed navigation")
	}
	if reported != 1 || h.Stats().Failures != 1 {
		t.Errorf("reported = %d, failures = %d", reported, h.Stats().Failures)
	}
	if h.State() != StateIdle {
		t.Errorf("state = %v, want idle", h.State())
	}
}

func TestRedoFailureRollsBack(t *testing.T) {
	var fail atomic.Bool
	c := scene.NewCanvas(scene.WithMaterializer(func(ctx context.Context, obj *scene.Object) error {
		if fail.Load() {
			return errors.New("offline")
		}
		return nil
	}))
	h := newHistoryOn(t, c)
	ctx := context.Background()

	c.Add(rect("A"))
	c.Add(rect("B"))
	_ = h.Undo(ctx)
	current := h.Current()
	redo := h.RedoStack()

	fail.Store(true)
	err := h.Redo(ctx)

	var navErr *NavigationError
	if !errors.As(err, &navErr) {
		t.Fatalf("Redo = %v, want *NavigationError", err)
	}
	// Reverting reloads through the same failing materializer.
	if navErr.Reverted || navErr.RevertErr == nil {
		t.Errorf("NavigationError = %+v, want failed revert", navErr)
	}
	if h.Current() != current {
		t.Error("current state changed after failed redo")
	}
	gotRedo := h.RedoStack()
	if len(gotRedo) != len(redo) || gotRedo[0] != redo[0] {
		t.Error("redo stack not rolled back")
	}

	fail.Store(false)
	if err := h.Redo(ctx); err != nil {
		t.Fatalf("Redo after recovery: %v", err)
	}
	if !equalIDs(sceneIDs(c), []string{"A", "B"}) {
		t.Errorf("scene = %v, want [A B]", sceneIDs(c))
	}
}

func TestRedoFailureKeepsEvictedUndoEntry(t *testing.T) {
	var fail atomic.Bool
	c := scene.NewCanvas(scene.WithMaterializer(func(ctx context.Context, obj *scene.Object) error {
		if fail.Load() {
			return errors.New("offline")
		}
		return nil
	}))
	h := newHistoryOn(t, c)
	ctx := context.Background()

	c.Add(rect("A"))
	c.Add(rect("B"))
	c.Add(rect("C"))
	_ = h.Undo(ctx)
	_ = h.Undo(ctx)
	h.SetMaxEntries(1)

	current := h.Current()
	undo := h.UndoStack()
	redo := h.RedoStack()
	if len(undo) != 1 || len(redo) != 2 {
		t.Fatalf("undo=%d redo=%d, want 1 and 2", len(undo), len(redo))
	}

	fail.Store(true)
	var navErr *NavigationError
	if err := h.Redo(ctx); !errors.As(err, &navErr) {
		t.Fatalf("Redo = %v, want *NavigationError", err)
	}

	if h.Current() != current {
		t.Error("current state changed after failed redo")
	}
	gotUndo := h.UndoStack()
	if len(gotUndo) != 1 || gotUndo[0] != undo[0] {
		t.Errorf("undo stack = %d entries, want the original single entry", len(gotUndo))
	}
	gotRedo := h.RedoStack()
	if len(gotRedo) != 2 || gotRedo[0] != redo[0] || gotRedo[1] != redo[1] {
		t.Errorf("redo stack = %d entries, want the original two", len(gotRedo))
	}

	fail.Store(false)
	if err := h.Redo(ctx); err != nil {
		t.Fatalf("Redo after recovery: %v", err)
	}
	if h.UndoCount() != 1 {
		t.Errorf("UndoCount() = %d, want 1", h.UndoCount())
	}
	if !equalIDs(sceneIDs(c), []string{"A", "B"}) {
		t.Errorf("scene = %v, want [A B]", sceneIDs(c))
	}
}

func TestDispose(t *testing.T) {
	c := scene.NewCanvas()
	h, err := New(c, WithSettleDelay(0))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	c.Add(rect("A"))

	h.Dispose()
	h.Dispose()

	if h.Current() != nil || h.UndoCount() != 0 {
		t.Error("Dispose should clear all state")
	}
	c.Add(rect("B"))
	if h.Current() != nil {
		t.Error("disposed history should not capture")
	}
	if h.SaveState() {
		t.Error("SaveState after Dispose should be a no-op")
	}

	var nilHistory *History
	nilHistory.Dispose()
}

func TestGroupRecordsOneEntry(t *testing.T) {
	c, h := newTestHistory(t)
	captures := h.Stats().Captures

	h.BeginGroup("three rects")
	h.BeginGroup("nested is ignored")
	c.Add(rect("A"))
	c.Add(rect("B"))
	c.Add(rect("C"))
	if !h.IsGrouping() {
		t.Error("IsGrouping() = false inside group")
	}
	if !h.EndGroup() {
		t.Error("EndGroup should capture")
	}

	if got := h.Stats().Captures; got != captures+1 {
		t.Errorf("captures = %d, want %d", got, captures+1)
	}
	_ = h.Undo(context.Background())
	if c.Len() != 0 {
		t.Errorf("one undo should remove the whole group, scene has %d", c.Len())
	}
}

func TestEmptyGroupRecordsNothing(t *testing.T) {
	_, h := newTestHistory(t)
	g := h.GroupScope("empty")
	g.End()
	g.End()
	if h.UndoCount() != 0 || h.IsGrouping() {
		t.Error("empty group should not capture")
	}
}

func TestTransactionCapturesOnError(t *testing.T) {
	c, h := newTestHistory(t)
	boom := errors.New("boom")

	err := h.Transaction("partial", func() error {
		c.Add(rect("A"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Transaction = %v, want %v", err, boom)
	}
	if !equalIDs(ids(h.Current()), []string{"A"}) {
		t.Errorf("current = %v, want [A]", ids(h.Current()))
	}
}

func TestCheckpoint(t *testing.T) {
	c, h := newTestHistory(t)
	ctx := context.Background()
	c.Add(rect("A"))
	cp := h.CreateCheckpoint()

	c.Add(rect("B"))
	c.Add(rect("C"))

	if err := h.UndoToCheckpoint(ctx, cp); err != nil {
		t.Fatalf("UndoToCheckpoint failed: %v", err)
	}
	if !equalIDs(sceneIDs(c), []string{"A"}) {
		t.Errorf("scene = %v, want [A]", sceneIDs(c))
	}

	end := Checkpoint{undoDepth: 3}
	if err := h.RedoToCheckpoint(ctx, end); err != nil {
		t.Fatalf("RedoToCheckpoint failed: %v", err)
	}
	if !equalIDs(sceneIDs(c), []string{"A", "B", "C"}) {
		t.Errorf("scene = %v, want [A B C]", sceneIDs(c))
	}
}

func TestPeekAndInfo(t *testing.T) {
	c, h := newTestHistory(t)
	if _, ok := h.PeekUndo(); ok {
		t.Error("PeekUndo on empty history")
	}
	first := h.Current()
	c.Add(rect("A"))

	info, ok := h.PeekUndo()
	if !ok || info.SnapshotID != first.ID() || info.Bytes != first.Len() {
		t.Errorf("PeekUndo = %+v, %v", info, ok)
	}
	if len(h.UndoInfo()) != 1 {
		t.Errorf("UndoInfo length = %d, want 1", len(h.UndoInfo()))
	}

	_ = h.Undo(context.Background())
	if _, ok := h.PeekRedo(); !ok {
		t.Error("PeekRedo should see the undone state")
	}
}

type recordingObserver struct {
	mu          sync.Mutex
	captures    int
	navigations map[string]int
	undo, redo  int
}

func (o *recordingObserver) ObserveCapture(int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.captures++
}

func (o *recordingObserver) ObserveNavigation(direction, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.navigations[direction+"/"+outcome]++
}

func (o *recordingObserver) ObserveDepth(undo, redo int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.undo, o.redo = undo, redo
}

func TestObserver(t *testing.T) {
	obs := &recordingObserver{navigations: map[string]int{}}
	c, h := newTestHistory(t, WithObserver(obs))
	c.Add(rect("A"))
	c.Add(rect("B"))
	_ = h.Undo(context.Background())

	if obs.captures != 3 {
		t.Errorf("captures = %d, want 3", obs.captures)
	}
	if obs.navigations["undo/ok"] != 1 {
		t.Errorf("navigations = %v", obs.navigations)
	}
	if obs.undo != 1 || obs.redo != 1 {
		t.Errorf("depth = %d/%d, want 1/1", obs.undo, obs.redo)
	}
}

func TestFailedNavigationRecordedOnSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	c := scene.NewCanvas()
	cc := &countingCodec{inner: codec.New()}
	h := newHistoryOn(t, c, WithCodec(cc), WithTracer(tp.Tracer("test")))
	c.Add(rect("A"))

	cc.corrupt = true
	_ = h.Undo(context.Background())

	var found bool
	for _, span := range recorder.Ended() {
		if span.Name() != "history.undo" {
			continue
		}
		found = true
		if span.Status().Code != otelcodes.Error {
			t.Errorf("span status = %v, want error", span.Status().Code)
		}
		if len(span.Events()) == 0 {
			t.Error("span should carry the recorded error")
		}
	}
	if !found {
		t.Error("no history.undo span recorded")
	}
}

func TestConcurrentEdits(t *testing.T) {
	c, h := newTestHistory(t)
	const workers = 8
	const perWorker = 10

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				c.Add(rect(""))
			}
		}()
	}
	wg.Wait()

	if got := h.Stats().Captures; got != 1+workers*perWorker {
		t.Errorf("captures = %d, want %d", got, 1+workers*perWorker)
	}
	if h.UndoCount() != MaxStackSize {
		t.Errorf("UndoCount() = %d, want %d", h.UndoCount(), MaxStackSize)
	}
	if got := ids(h.Current()); len(got) != workers*perWorker {
		t.Errorf("current holds %d objects, want %d", len(got), workers*perWorker)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default().History
	cfg.MaxEntries = 5
	cfg.Ephemeral.Type = scene.TypeRect
	cfg.Ephemeral.Fill = "lime"

	c, h := newTestHistory(t, FromConfig(cfg)...)
	if h.MaxEntries() != 5 {
		t.Errorf("MaxEntries() = %d, want 5", h.MaxEntries())
	}

	c.Add(&scene.Object{Type: scene.TypeRect, Fill: "lime"})
	if h.UndoCount() != 0 {
		t.Error("configured signature should be treated as ephemeral")
	}
}

func TestStateStrings(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateIdle, "idle"},
		{StateCapturing, "capturing"},
		{StateNavigating, "navigating"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
	if DirectionUndo.String() != "undo" || DirectionRedo.String() != "redo" {
		t.Error("direction strings")
	}
}
