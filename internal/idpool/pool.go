package idpool

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrInvalidID is returned when a negative identifier is offered to the pool.
var ErrInvalidID = errors.New("invalid id")

// Pool is a thread-safe set of non-negative identifiers.
type Pool struct {
	mu  sync.Mutex
	ids map[int]struct{}
	// max is the largest tracked id, or -1 when the pool is empty
	max int
}

// New creates a pool seeded with the given ids.
func New(ids ...int) (*Pool, error) {
	p := &Pool{
		ids: make(map[int]struct{}, len(ids)),
		max: -1,
	}
	if err := p.Set(ids); err != nil {
		return nil, err
	}
	return p, nil
}

// Add inserts id into the pool. Adding an id that is already tracked is a no-op.
func (p *Pool) Add(id int) error {
	if id < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidID, id)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.addLocked(id)
	return nil
}

// Contains reports whether id is tracked.
func (p *Pool) Contains(id int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.ids[id]
	return ok
}

// Remove stops tracking id and reports whether it was present.
func (p *Pool) Remove(id int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.ids[id]; !ok {
		return false
	}
	delete(p.ids, id)
	if id == p.max {
		p.recomputeMaxLocked()
	}
	return true
}

// IncrementAndGet reserves and returns max(tracked)+1, or 0 for an empty pool.
func (p *Pool) IncrementAndGet() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := p.max + 1
	p.addLocked(next)
	return next
}

// Clear removes every tracked id.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = make(map[int]struct{})
	p.max = -1
}

// Set replaces the tracked ids wholesale. A nil or empty slice clears the pool.
// If any id is negative the pool is left unchanged.
func (p *Pool) Set(ids []int) error {
	for _, id := range ids {
		if id < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidID, id)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = make(map[int]struct{}, len(ids))
	p.max = -1
	for _, id := range ids {
		p.addLocked(id)
	}
	return nil
}

// Len returns the number of tracked ids.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ids)
}

// IDs returns the tracked ids in ascending order.
func (p *Pool) IDs() []int {
	p.mu.Lock()
	result := make([]int, 0, len(p.ids))
	for id := range p.ids {
		result = append(result, id)
	}
	p.mu.Unlock()

	sort.Ints(result)
	return result
}

func (p *Pool) addLocked(id int) {
	p.ids[id] = struct{}{}
	if id > p.max {
		p.max = id
	}
}

func (p *Pool) recomputeMaxLocked() {
	p.max = -1
	for id := range p.ids {
		if id > p.max {
			p.max = id
		}
	}
}
