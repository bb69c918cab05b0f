package transfer

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/phrazzld/runq/internal/queue"
	"github.com/phrazzld/runq/internal/task"
)

// payload is the persisted body shared by every transfer kind.
type payload struct {
	File      string    `json:"file"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// DecodeFunc rebuilds an item of one kind from its descriptor and payload.
type DecodeFunc func(desc *task.Descriptor, raw json.RawMessage) (*Item, error)

// Codec converts items to queue records. Record.Kind selects the decoder.
type Codec struct {
	mu       sync.RWMutex
	decoders map[string]DecodeFunc
}

var _ queue.Codec[*Item] = (*Codec)(nil)

// NewCodec returns a codec with the upload and download kinds registered.
func NewCodec() *Codec {
	c := &Codec{decoders: make(map[string]DecodeFunc)}
	c.Register(string(DirectionUpload), decodeDirection(DirectionUpload))
	c.Register(string(DirectionDownload), decodeDirection(DirectionDownload))
	return c
}

// Register installs the decoder for kind, replacing any earlier one.
func (c *Codec) Register(kind string, fn DecodeFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decoders[kind] = fn
}

// Encode implements queue.Codec.
func (c *Codec) Encode(item *Item) (queue.Record, error) {
	if item == nil {
		return queue.Record{}, fmt.Errorf("%w: item is nil", ErrInvalidRequest)
	}
	raw, err := json.Marshal(payload{File: item.File, URL: item.URL, CreatedAt: item.CreatedAt})
	if err != nil {
		return queue.Record{}, fmt.Errorf("failed to encode transfer %d: %w", item.ID(), err)
	}
	return queue.Record{
		ID:      item.ID(),
		Name:    item.Name(),
		Kind:    string(item.Direction),
		Payload: raw,
	}, nil
}

// Decode implements queue.Codec.
func (c *Codec) Decode(rec queue.Record) (*Item, error) {
	c.mu.RLock()
	fn, ok := c.decoders[rec.Kind]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, rec.Kind)
	}

	desc, err := task.NewDescriptor(rec.ID, rec.Name)
	if err != nil {
		return nil, err
	}
	return fn(desc, rec.Payload)
}

func decodeDirection(dir Direction) DecodeFunc {
	return func(desc *task.Descriptor, raw json.RawMessage) (*Item, error) {
		var p payload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode %s payload: %w", dir, err)
		}
		return NewItem(desc, dir, p.File, p.URL, p.CreatedAt)
	}
}
