package queue

import (
	"context"
	"encoding/json"
)

// Item is anything with a stable non-negative identifier.
type Item interface {
	ID() int
}

// Record is the persisted form of one queued item.
type Record struct {
	ID      int             `json:"id"`
	Name    string          `json:"name,omitempty"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Codec converts items to and from records.
type Codec[T Item] interface {
	Encode(item T) (Record, error)
	Decode(rec Record) (T, error)
}

// Backend stores the ordered records of one queue. Write replaces whatever
// was stored before.
type Backend interface {
	Write(ctx context.Context, records []Record) error
	ReadAll(ctx context.Context) ([]Record, error)
}
