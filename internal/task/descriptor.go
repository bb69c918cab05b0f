package task

import (
	"fmt"
	"sort"
	"sync/atomic"
)

// Unassigned is the id sentinel for work that has not been given an identifier yet.
const Unassigned = -1

// Descriptor is the identity and cancellation state of one unit of work.
// Its id and name never change; the cancelled flag only goes from false to true.
type Descriptor struct {
	id        int
	name      string
	cancelled atomic.Bool
}

// NewDescriptor creates a descriptor. An empty name means the work is unnamed.
func NewDescriptor(id int, name string) (*Descriptor, error) {
	if id < 0 {
		return nil, fmt.Errorf("%w: descriptor id %d is negative", ErrInvalidArgument, id)
	}
	return &Descriptor{id: id, name: name}, nil
}

// ID returns the descriptor's identifier.
func (d *Descriptor) ID() int {
	return d.id
}

// Name returns the descriptor's name, or "" when unnamed.
func (d *Descriptor) Name() string {
	return d.name
}

// IsCancelled reports whether Cancel has been called.
func (d *Descriptor) IsCancelled() bool {
	return d.cancelled.Load()
}

// Cancel marks the descriptor as cancelled. Only the call that performs the
// transition returns true.
func (d *Descriptor) Cancel() bool {
	return d.cancelled.CompareAndSwap(false, true)
}

// Equal compares id, name and cancellation state.
func (d *Descriptor) Equal(other *Descriptor) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.id == other.id && d.name == other.name && d.IsCancelled() == other.IsCancelled()
}

func (d *Descriptor) String() string {
	if d.name == "" {
		return fmt.Sprintf("#%d", d.id)
	}
	return fmt.Sprintf("#%d(%s)", d.id, d.name)
}

// Scope is an immutable, non-empty set of descriptor ids.
type Scope struct {
	ids []int
}

// NewScope creates a scope over ids. Duplicate ids are collapsed.
func NewScope(ids ...int) (Scope, error) {
	if len(ids) == 0 {
		return Scope{}, fmt.Errorf("%w: scope requires at least one id", ErrInvalidArgument)
	}

	seen := make(map[int]struct{}, len(ids))
	unique := make([]int, 0, len(ids))
	for _, id := range ids {
		if id < 0 {
			return Scope{}, fmt.Errorf("%w: scope id %d is negative", ErrInvalidArgument, id)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	sort.Ints(unique)
	return Scope{ids: unique}, nil
}

// IDs returns the scope's ids in ascending order.
func (s Scope) IDs() []int {
	return append([]int(nil), s.ids...)
}

// Contains reports whether id belongs to the scope.
func (s Scope) Contains(id int) bool {
	i := sort.SearchInts(s.ids, id)
	return i < len(s.ids) && s.ids[i] == id
}
