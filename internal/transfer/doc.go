// Package transfer queues file uploads and downloads and runs them on a
// task executor. Queued transfers are persisted through the queue backend and
// resubmitted when the service starts again.
package transfer
