// Package history provides snapshot-based undo/redo for the drawing scene.
//
// The history system keeps whole-scene snapshots rather than inverse
// commands. Key concepts:
//
// # Snapshots
//
// A Snapshot is an opaque, immutable serialization of the entire scene at
// one instant. Snapshots are never diffed; they are only moved between the
// two stacks.
//
// # Stacks
//
// The Manager owns two stacks:
//   - history: committed states, oldest first. The last entry is the
//     scene's current state whenever no restore is in flight.
//   - redo: states that were undone and can be reapplied.
//
// The timeline is strictly linear. Recording a new state clears the redo
// stack; there is no branching history.
//
//	mgr, err := history.New(scene)
//	mgr.Attach(bus) // record on scene.object.* events
//
//	mgr.Undo() // pop history, push redo, restore the new tail
//	mgr.Redo() // pop redo, push history, restore it
//
// # Restores
//
// Scene restores are asynchronous. Stack mutation happens synchronously in
// Undo and Redo; the scene catches up later. Restores are serialized: a
// request issued while another restore is in flight is held as pending, and
// only the latest pending target is applied when the running restore
// completes. Recording is suppressed until the last restore completes, so
// the change events a scene emits while loading a snapshot never re-enter
// the timeline. Use Wait to block until the scene has settled.
//
// # Clearing
//
// ClearAll empties the scene and both stacks. With ClearReseed (the
// default) history restarts from a snapshot of the cleared scene, so an
// immediate Undo reports ErrNothingToUndo. ClearEmpty leaves history empty
// until the next edit is recorded.
package history
