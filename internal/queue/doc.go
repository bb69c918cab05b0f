// Package queue provides a bounded, ordered collection of uniquely identified
// items. A queue can mirror its contents to a Backend after every mutation and
// restore them when it is constructed again, and it tells registered
// listeners whenever its size changes.
package queue
