package events

import "log/slog"

// Listener observes the storage of a single queue.
// Notifications are delivered synchronously on the goroutine that mutated the
// queue, after the queue's own lock has been released.
type Listener interface {
	// OnStorageSizeChanged is called once for every mutation that changes
	// the number of stored items, with the size after the mutation.
	OnStorageSizeChanged(queue string, size int)

	// OnStorageRestored is called once after a persisted queue has reloaded
	// count items from its backend.
	OnStorageRestored(queue string, count int)
}

// ListenerFuncs adapts plain functions to the Listener interface.
// Nil fields are skipped.
type ListenerFuncs struct {
	SizeChanged func(queue string, size int)
	Restored    func(queue string, count int)
}

// OnStorageSizeChanged implements Listener.
func (f *ListenerFuncs) OnStorageSizeChanged(queue string, size int) {
	if f.SizeChanged != nil {
		f.SizeChanged(queue, size)
	}
}

// OnStorageRestored implements Listener.
func (f *ListenerFuncs) OnStorageRestored(queue string, count int) {
	if f.Restored != nil {
		f.Restored(queue, count)
	}
}

// LoggingListener writes every notification to a structured logger.
type LoggingListener struct {
	logger *slog.Logger
}

// NewLoggingListener creates a listener that logs at debug level for size
// changes and info level for restores.
func NewLoggingListener(logger *slog.Logger) *LoggingListener {
	return &LoggingListener{logger: logger.With("component", "queue_listener")}
}

// OnStorageSizeChanged implements Listener.
func (l *LoggingListener) OnStorageSizeChanged(queue string, size int) {
	l.logger.Debug("queue size changed", "queue", queue, "size", size)
}

// OnStorageRestored implements Listener.
func (l *LoggingListener) OnStorageRestored(queue string, count int) {
	l.logger.Info("queue restored from storage", "queue", queue, "restored_count", count)
}
