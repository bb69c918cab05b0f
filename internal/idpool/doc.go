// Package idpool tracks the integer identifiers currently owned by queued or
// running work and hands out new ones that are guaranteed not to collide.
package idpool
