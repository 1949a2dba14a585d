package history

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/sketchstorm/internal/history/capture"
	"github.com/dshills/sketchstorm/internal/history/codec"
	"github.com/dshills/sketchstorm/internal/scene"
)

// History manages undo/redo state for one scene.
type History struct {
	mu sync.Mutex

	scene scene.Scene
	codec Codec

	undoStack []*codec.Snapshot
	redoStack []*codec.Snapshot
	current   *codec.Snapshot
	toolReset func()

	state    atomic.Int32
	cleanup  func()
	disposed bool

	// gen changes on Clear so an in-flight navigation does not roll back
	// into stacks that no longer exist.
	gen uint64

	// Grouping state
	grouping   bool
	groupName  string
	groupDirty bool

	// Configuration
	maxEntries  int
	settleDelay time.Duration
	signature   scene.Signature
	logger      *slog.Logger
	observer    Observer
	tracer      trace.Tracer
	report      ErrorReporter

	captures atomic.Uint64
	undos    atomic.Uint64
	redos    atomic.Uint64
	failures atomic.Uint64
}

// New binds a History to s, subscribes to its notifications and captures
// the initial state.
func New(s scene.Scene, opts ...Option) (*History, error) {
	if s == nil {
		return nil, ErrNilScene
	}

	h := &History{
		scene:       s,
		maxEntries:  MaxStackSize,
		settleDelay: DefaultSettleDelay,
		signature:   scene.DefaultSignature,
		logger:      slog.New(slog.DiscardHandler),
		tracer:      otel.Tracer("github.com/dshills/sketchstorm/internal/history"),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "history")
	if h.codec == nil {
		h.codec = codec.New(codec.WithSignature(h.signature), codec.WithLogger(h.logger))
	}
	if h.report == nil {
		h.report = h.logError
	}

	h.cleanup = capture.Attach(s, h.onSceneChange, h.IsNavigating,
		capture.WithSignature(h.signature),
		capture.WithLogger(h.logger),
	)

	h.SaveState()
	return h, nil
}

func (h *History) onSceneChange() {
	h.SaveState()
}

func (h *History) logError(ctx context.Context, err error) {
	h.logger.ErrorContext(ctx, "history navigation failed", "error", err)
}

// IsNavigating reports whether an undo or redo is in progress.
func (h *History) IsNavigating() bool {
	return State(h.state.Load()) == StateNavigating
}

// State returns the current guard state.
func (h *History) State() State {
	return State(h.state.Load())
}

// SaveState captures the scene as the new current state. The previous
// current state moves onto the undo stack and the redo stack is emptied.
// It returns false when nothing was captured: while navigating, inside a
// group, after Dispose, or when the scene could not be encoded.
func (h *History) SaveState() bool {
	_, span := h.tracer.Start(context.Background(), "history.SaveState")
	defer span.End()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.disposed {
		return false
	}
	if h.grouping {
		h.groupDirty = true
		return false
	}
	if !h.state.CompareAndSwap(int32(StateIdle), int32(StateCapturing)) {
		span.SetAttributes(attribute.String("history.skipped", State(h.state.Load()).String()))
		return false
	}
	defer h.state.Store(int32(StateIdle))

	snap, err := h.codec.Encode(h.scene)
	if err != nil || snap == nil {
		h.logger.Debug("capture skipped", "error", err)
		return false
	}

	h.pushUndoLocked(h.current)
	h.current = snap
	h.redoStack = nil

	h.captures.Add(1)
	span.SetAttributes(
		attribute.String("history.snapshot", snap.ID().String()),
		attribute.Int("history.snapshot_bytes", snap.Len()),
	)
	if h.observer != nil {
		h.observer.ObserveCapture(snap.Len())
	}
	h.observeDepthLocked()
	return true
}

// pushUndoLocked pushes snap onto the undo stack, evicting the oldest
// entries beyond maxEntries. The evicted entries are returned oldest first.
func (h *History) pushUndoLocked(snap *codec.Snapshot) []*codec.Snapshot {
	if snap == nil {
		return nil
	}
	h.undoStack = append(h.undoStack, snap)
	if len(h.undoStack) <= h.maxEntries {
		return nil
	}
	excess := len(h.undoStack) - h.maxEntries
	evicted := append([]*codec.Snapshot(nil), h.undoStack[:excess]...)
	h.undoStack = h.undoStack[excess:]
	return evicted
}

func (h *History) observeDepthLocked() {
	if h.observer != nil {
		h.observer.ObserveDepth(len(h.undoStack), len(h.redoStack))
	}
}

// Undo restores the previous state. It is a no-op when there is nothing to
// undo or another navigation is in progress. A failed restore leaves the
// history as it was and returns a *NavigationError.
func (h *History) Undo(ctx context.Context) error {
	return h.navigate(ctx, DirectionUndo)
}

// Redo restores the state most recently undone. See Undo.
func (h *History) Redo(ctx context.Context) error {
	return h.navigate(ctx, DirectionRedo)
}

// stacksLocked returns the stack to pop from and the stack to push the
// current state onto.
func (h *History) stacksLocked(dir Direction) (from, to *[]*codec.Snapshot) {
	if dir == DirectionRedo {
		return &h.redoStack, &h.undoStack
	}
	return &h.undoStack, &h.redoStack
}

func (h *History) navigate(ctx context.Context, dir Direction) error {
	ctx, span := h.tracer.Start(ctx, "history."+dir.String(),
		trace.WithAttributes(attribute.String("history.direction", dir.String())))
	defer span.End()

	h.mu.Lock()
	from, to := h.stacksLocked(dir)
	if h.disposed || h.grouping || len(*from) == 0 {
		h.mu.Unlock()
		return nil
	}
	if !h.state.CompareAndSwap(int32(StateIdle), int32(StateNavigating)) {
		h.mu.Unlock()
		h.logger.Debug("navigation ignored", "direction", dir, "state", h.State())
		return nil
	}
	defer h.state.Store(int32(StateIdle))

	previous := h.current
	var evicted []*codec.Snapshot
	if dir == DirectionRedo {
		evicted = h.pushUndoLocked(previous)
	} else if previous != nil {
		*to = append(*to, previous)
	}
	target := (*from)[len(*from)-1]
	*from = (*from)[:len(*from)-1]
	h.current = target
	gen := h.gen
	h.mu.Unlock()

	span.SetAttributes(attribute.String("history.snapshot", target.ID().String()))

	if err := h.codec.Decode(ctx, h.scene, target); err != nil {
		navErr := h.rollback(ctx, dir, gen, target, previous, evicted, err)
		h.failures.Add(1)
		span.RecordError(navErr)
		span.SetStatus(codes.Error, "restore failed")
		if h.observer != nil {
			h.observer.ObserveNavigation(dir.String(), OutcomeFailed)
		}
		if h.report != nil {
			h.report(ctx, navErr)
		}
		return navErr
	}

	if dir == DirectionUndo {
		h.undos.Add(1)
	} else {
		h.redos.Add(1)
	}
	if h.observer != nil {
		h.observer.ObserveNavigation(dir.String(), OutcomeOK)
		h.mu.Lock()
		h.observeDepthLocked()
		h.mu.Unlock()
	}

	h.settle(ctx)
	return nil
}

// rollback undoes the stack moves of a failed navigation, including any
// undo entries evicted by a redo, and, when the scene was already cleared,
// reloads the restored current snapshot into it.
func (h *History) rollback(ctx context.Context, dir Direction, gen uint64, target, previous *codec.Snapshot, evicted []*codec.Snapshot, cause error) *NavigationError {
	navErr := &NavigationError{Direction: dir, SnapshotID: target.ID(), Err: cause}

	h.mu.Lock()
	if h.gen != gen {
		// Cleared while restoring; there is nothing left to roll back into.
		h.mu.Unlock()
		return navErr
	}
	from, to := h.stacksLocked(dir)
	*from = append(*from, target)
	if previous != nil && len(*to) > 0 {
		h.current = (*to)[len(*to)-1]
		*to = (*to)[:len(*to)-1]
	} else {
		h.current = previous
	}
	if len(evicted) > 0 {
		h.undoStack = append(evicted, h.undoStack...)
	}
	restored := h.current
	h.mu.Unlock()

	var de *codec.DecodeError
	if !errors.As(cause, &de) || !de.SceneCleared || restored == nil {
		return navErr
	}

	// The scene was cleared before the failure. Put the restored current
	// state back so the scene matches the history again.
	if err := h.codec.Decode(context.WithoutCancel(ctx), h.scene, restored); err != nil {
		navErr.RevertErr = err
		h.logger.Error("scene could not be reverted after failed navigation",
			"direction", dir, "snapshot", restored.ID(), "error", err)
		return navErr
	}
	navErr.Reverted = true
	return navErr
}

// settle waits for the settle delay, then invokes the tool reset callback.
// A cancelled context skips the callback; the navigation itself stands.
func (h *History) settle(ctx context.Context) {
	if h.settleDelay > 0 {
		timer := time.NewTimer(h.settleDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			h.logger.Debug("tool reset skipped", "error", ctx.Err())
			return
		}
	}

	h.mu.Lock()
	fn := h.toolReset
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Clear removes all history, sets the current state to nil and drops the
// tool reset callback.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.undoStack = nil
	h.redoStack = nil
	h.current = nil
	h.toolReset = nil
	h.grouping = false
	h.groupDirty = false
	h.gen++
	h.observeDepthLocked()
}

// Dispose unsubscribes from the scene and clears all state. It is safe to
// call more than once and on a nil History.
func (h *History) Dispose() {
	if h == nil {
		return
	}

	h.mu.Lock()
	cleanup := h.cleanup
	h.cleanup = nil
	h.disposed = true
	h.mu.Unlock()

	if cleanup != nil {
		cleanup()
	}
	h.Clear()
}

// RegisterToolResetCallback sets the callback invoked after each settled
// navigation, replacing any previous one.
func (h *History) RegisterToolResetCallback(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.toolReset = fn
}

// UnregisterToolResetCallback removes the tool reset callback.
func (h *History) UnregisterToolResetCallback() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.toolReset = nil
}

// HasToolResetCallback reports whether a callback is registered.
func (h *History) HasToolResetCallback() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.toolReset != nil
}

// Current returns the current snapshot, or nil before the first capture.
func (h *History) Current() *codec.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// CanUndo returns true if undo is available.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undoStack) > 0
}

// CanRedo returns true if redo is available.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redoStack) > 0
}

// UndoCount returns the number of undo steps available.
func (h *History) UndoCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undoStack)
}

// RedoCount returns the number of redo steps available.
func (h *History) RedoCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redoStack)
}

// UndoStack returns a copy of the undo stack, oldest first.
func (h *History) UndoStack() []*codec.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*codec.Snapshot(nil), h.undoStack...)
}

// RedoStack returns a copy of the redo stack; the next redo is last.
func (h *History) RedoStack() []*codec.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*codec.Snapshot(nil), h.redoStack...)
}

// EntryInfo describes one history entry.
type EntryInfo struct {
	SnapshotID uuid.UUID
	Bytes      int
	Timestamp  time.Time
}

func entryInfo(s *codec.Snapshot) EntryInfo {
	return EntryInfo{SnapshotID: s.ID(), Bytes: s.Len(), Timestamp: s.CreatedAt()}
}

// UndoInfo returns info about available undo entries, oldest first.
func (h *History) UndoInfo() []EntryInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]EntryInfo, len(h.undoStack))
	for i, s := range h.undoStack {
		result[i] = entryInfo(s)
	}
	return result
}

// PeekUndo returns info about the next undo entry without removing it.
func (h *History) PeekUndo() (EntryInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.undoStack) == 0 {
		return EntryInfo{}, false
	}
	return entryInfo(h.undoStack[len(h.undoStack)-1]), true
}

// PeekRedo returns info about the next redo entry without removing it.
func (h *History) PeekRedo() (EntryInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.redoStack) == 0 {
		return EntryInfo{}, false
	}
	return entryInfo(h.redoStack[len(h.redoStack)-1]), true
}

// SetMaxEntries changes the undo stack capacity. If the stack is larger,
// the oldest entries are removed.
func (h *History) SetMaxEntries(max int) {
	if max <= 0 {
		max = MaxStackSize
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.maxEntries = max
	if len(h.undoStack) > max {
		excess := len(h.undoStack) - max
		h.undoStack = h.undoStack[excess:]
	}
}

// MaxEntries returns the undo stack capacity.
func (h *History) MaxEntries() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxEntries
}

// Stats contains history counters.
type Stats struct {
	State     State
	UndoDepth int
	RedoDepth int
	Captures  uint64
	Undos     uint64
	Redos     uint64
	Failures  uint64
}

// Stats returns a snapshot of the history counters.
func (h *History) Stats() Stats {
	h.mu.Lock()
	undo, redo := len(h.undoStack), len(h.redoStack)
	h.mu.Unlock()

	return Stats{
		State:     h.State(),
		UndoDepth: undo,
		RedoDepth: redo,
		Captures:  h.captures.Load(),
		Undos:     h.undos.Load(),
		Redos:     h.redos.Load(),
		Failures:  h.failures.Load(),
	}
}
