// Package task executes descriptor-bearing units of work on a bounded worker
// pool. It provides the task state machine, cooperative cancellation through
// descriptors, pluggable re-add and exception policies, and restoration of
// persisted work after a restart.
package task
