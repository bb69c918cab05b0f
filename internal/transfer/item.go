package transfer

import (
	"fmt"
	"time"

	"github.com/phrazzld/runq/internal/task"
)

// Direction says which way a transfer moves data.
type Direction string

const (
	DirectionUpload   Direction = "upload"
	DirectionDownload Direction = "download"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionUpload || d == DirectionDownload
}

// Item is one queued transfer. It is immutable once queued; run state lives
// in the task executing it.
type Item struct {
	*task.Descriptor

	Direction Direction
	File      string
	URL       string
	CreatedAt time.Time
}

// NewItem builds an item for the given descriptor.
func NewItem(desc *task.Descriptor, dir Direction, file, url string, createdAt time.Time) (*Item, error) {
	if desc == nil {
		return nil, fmt.Errorf("%w: descriptor is nil", ErrInvalidRequest)
	}
	if !dir.Valid() {
		return nil, fmt.Errorf("%w: unknown direction %q", ErrInvalidRequest, dir)
	}
	if file == "" || url == "" {
		return nil, fmt.Errorf("%w: file and url are required", ErrInvalidRequest)
	}
	return &Item{
		Descriptor: desc,
		Direction:  dir,
		File:       file,
		URL:        url,
		CreatedAt:  createdAt,
	}, nil
}

// IsNil reports an item without a descriptor, which the queue refuses.
func (i *Item) IsNil() bool {
	return i == nil || i.Descriptor == nil
}

func (i *Item) String() string {
	return fmt.Sprintf("%s %d %s <-> %s", i.Direction, i.ID(), i.File, i.URL)
}
