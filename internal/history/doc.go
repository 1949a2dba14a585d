// Package history provides snapshot-based undo/redo for a drawing scene.
//
// A History is bound to exactly one scene. It captures the whole scene as an
// opaque snapshot after every qualifying mutation and navigates by restoring
// earlier snapshots. Key concepts:
//
// # Current state and the two stacks
//
// The snapshot the scene currently shows is held outside both stacks:
//
//	undo: [S0 S1]   current: S2   redo: []
//
// Undo pushes the current snapshot onto the redo stack and restores the top
// of the undo stack; Redo is the mirror image. Saving a new state pushes the
// current snapshot onto the undo stack and empties the redo stack. The undo
// stack is bounded (MaxStackSize by default); the oldest entry is evicted
// first.
//
//	h, err := history.New(canvas)
//	defer h.Dispose()
//
//	canvas.Add(obj)        // captured automatically
//	h.Undo(ctx)            // obj is gone
//	h.Redo(ctx)            // obj is back
//
// # Re-entrancy
//
// Restoring a snapshot re-adds objects to the scene, which publishes the same
// notifications a user edit would. History moves through an explicit state
// machine (Idle, Capturing, Navigating) and rejects captures while
// Navigating, so a restore never records itself.
//
// # Tool reset
//
// A single callback can be registered to resynchronize external tool state
// once a navigation has settled:
//
//	h.RegisterToolResetCallback(func() { brush.Reset() })
//
// # Grouping
//
// Multiple mutations can be recorded as a single undo unit:
//
//	h.BeginGroup("Align objects")
//	// ... several edits ...
//	h.EndGroup()
//
// # Failure recovery
//
// If a snapshot cannot be restored, the stacks are rolled back to their shape
// before the call, the scene is reloaded from the restored current snapshot
// when it was already cleared, and the failure is reported through the
// configured ErrorReporter and the active trace span.
package history
