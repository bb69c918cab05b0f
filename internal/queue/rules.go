package queue

// AddRule picks the item to evict when AddWithRule meets a full queue.
// Victim returns an index into items, or a negative value to refuse the
// incoming item. items must not be modified.
type AddRule[T Item] interface {
	Victim(items []T, incoming T) int
}

// AddRuleFunc adapts a function to the AddRule interface.
type AddRuleFunc[T Item] func(items []T, incoming T) int

// Victim implements AddRule.
func (f AddRuleFunc[T]) Victim(items []T, incoming T) int {
	return f(items, incoming)
}

// RejectNew keeps the queue as it is and refuses the incoming item.
type RejectNew[T Item] struct{}

// Victim implements AddRule.
func (RejectNew[T]) Victim([]T, T) int {
	return -1
}

// DropOldest evicts the head of the queue.
type DropOldest[T Item] struct{}

// Victim implements AddRule.
func (DropOldest[T]) Victim(items []T, _ T) int {
	if len(items) == 0 {
		return -1
	}
	return 0
}
