package history

import "context"

// BeginGroup starts a capture group. Captures requested while grouping are
// deferred; EndGroup records one snapshot for all of them.
func (h *History) BeginGroup(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.grouping {
		// Already grouping, ignore nested calls
		return
	}

	h.grouping = true
	h.groupName = name
	h.groupDirty = false
}

// EndGroup finishes a capture group. If any capture was requested since
// BeginGroup, a single snapshot is recorded.
func (h *History) EndGroup() bool {
	h.mu.Lock()
	if !h.grouping {
		h.mu.Unlock()
		return false
	}
	dirty := h.groupDirty
	name := h.groupName
	h.grouping = false
	h.groupDirty = false
	h.groupName = ""
	h.mu.Unlock()

	if !dirty {
		return false
	}
	h.logger.Debug("group captured", "group", name)
	return h.SaveState()
}

// IsGrouping returns true if currently in a capture group.
func (h *History) IsGrouping() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.grouping
}

// GroupScope provides a convenient way to group captures using defer.
// Usage:
//
//	func alignAll(h *History, c *scene.Canvas) {
//	    defer h.GroupScope("Align").End()
//	    // ... multiple edits ...
//	}
type GroupScope struct {
	history *History
	active  bool
}

// GroupScope starts a new group scope.
func (h *History) GroupScope(name string) *GroupScope {
	h.BeginGroup(name)
	return &GroupScope{
		history: h,
		active:  true,
	}
}

// End ends the group scope.
// Safe to call multiple times; only the first call has effect.
func (g *GroupScope) End() {
	if g.active {
		g.history.EndGroup()
		g.active = false
	}
}

// Transaction runs fn inside a capture group. The group is always ended so
// the scene and the current state stay in step even when fn fails part way;
// fn's error is returned.
func (h *History) Transaction(name string, fn func() error) error {
	h.BeginGroup(name)
	err := fn()
	h.EndGroup()
	return err
}

// Checkpoint represents a point in history that can be returned to.
type Checkpoint struct {
	undoDepth int
}

// CreateCheckpoint creates a checkpoint at the current history position.
func (h *History) CreateCheckpoint() Checkpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Checkpoint{undoDepth: len(h.undoStack)}
}

// UndoToCheckpoint undoes all captures made since the checkpoint.
// Entries evicted from the bounded undo stack cannot be undone, so the
// walk stops early when the stack runs out.
func (h *History) UndoToCheckpoint(ctx context.Context, cp Checkpoint) error {
	for h.UndoCount() > cp.undoDepth {
		before := h.UndoCount()
		if err := h.Undo(ctx); err != nil {
			return err
		}
		if h.UndoCount() == before {
			// Navigation was refused (another one is in flight).
			return nil
		}
	}
	return nil
}

// RedoToCheckpoint redoes entries until the undo depth reaches the
// checkpoint or nothing is left to redo.
func (h *History) RedoToCheckpoint(ctx context.Context, cp Checkpoint) error {
	for h.UndoCount() < cp.undoDepth && h.CanRedo() {
		before := h.RedoCount()
		if err := h.Redo(ctx); err != nil {
			return err
		}
		if h.RedoCount() == before {
			return nil
		}
	}
	return nil
}
