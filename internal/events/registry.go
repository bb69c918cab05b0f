package events

import (
	"log/slog"
	"sync"
)

// Registry is a thread-safe set of listeners.
// Listeners are compared by interface equality, so register pointer types.
type Registry struct {
	listeners []Listener
	mu        sync.RWMutex
	logger    *slog.Logger
}

// NewRegistry creates an empty listener registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		listeners: make([]Listener, 0),
		logger:    logger.With("component", "listener_registry"),
	}
}

// Register adds a listener. Registering the same listener twice is a no-op.
func (r *Registry) Register(listener Listener) {
	if listener == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.listeners {
		if l == listener {
			return
		}
	}
	r.listeners = append(r.listeners, listener)
	r.logger.Debug("registered listener", "listener_count", len(r.listeners))
}

// Unregister removes a listener and reports whether it was registered.
func (r *Registry) Unregister(listener Listener) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.listeners {
		if l == listener {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes every listener.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = make([]Listener, 0)
}

// Len returns the number of registered listeners.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}

// NotifySizeChanged calls OnStorageSizeChanged on every listener.
func (r *Registry) NotifySizeChanged(queue string, size int) {
	for _, l := range r.snapshot() {
		l.OnStorageSizeChanged(queue, size)
	}
}

// NotifyRestored calls OnStorageRestored on every listener.
func (r *Registry) NotifyRestored(queue string, count int) {
	for _, l := range r.snapshot() {
		l.OnStorageRestored(queue, count)
	}
}

// snapshot copies the listener slice so that callbacks run without the lock
// held and may register or unregister listeners themselves.
func (r *Registry) snapshot() []Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()
	listeners := make([]Listener, len(r.listeners))
	copy(listeners, r.listeners)
	return listeners
}
