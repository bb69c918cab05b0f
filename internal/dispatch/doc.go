// Package dispatch runs callbacks on a caller-chosen goroutine.
//
// The executor uses a Dispatcher to invoke task hooks "on the right thread"
// without knowing anything about that thread. Immediate runs callbacks in
// place; Loop funnels them onto the single goroutine that calls Run.
package dispatch
