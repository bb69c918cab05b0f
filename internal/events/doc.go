// Package events provides the listener types used to observe queue storage.
//
// Queues publish two kinds of notifications: a size change after any mutation
// that alters the number of stored items, and a single restore notification
// after a persisted queue has reloaded its items at construction. Listeners
// are registered on a Registry, which keeps its own lock so that notifying
// never requires holding the lock of the queue that produced the event.
//
// The primary components are:
//   - Listener: Interface for components that observe queue storage
//   - ListenerFuncs: Adapter that builds a Listener from plain functions
//   - Registry: Thread-safe listener set that fans notifications out
package events
