package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/runq/internal/transfer"
)

// MockTransferService implements api.TransferService for testing.
type MockTransferService struct {
	EnqueueFn func(ctx context.Context, req transfer.Request) (*transfer.Item, error)
	CancelFn  func(ctx context.Context, id int) error
	RetryFn   func(ctx context.Context, id int) (*transfer.Item, error)
	GetFn     func(id int) (*transfer.Item, error)
	ViewFn    func(item *transfer.Item) transfer.View

	// Defaults used when the matching function is nil
	Items     []*transfer.Item
	StatsInfo transfer.Stats
	Err       error

	mu       sync.Mutex
	requests []transfer.Request
	cancels  []int
	retries  []int
}

// Enqueue implements api.TransferService.
func (m *MockTransferService) Enqueue(ctx context.Context, req transfer.Request) (*transfer.Item, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.EnqueueFn != nil {
		return m.EnqueueFn(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Items) > 0 {
		return m.Items[0], nil
	}
	return nil, transfer.ErrRejected
}

// Cancel implements api.TransferService.
func (m *MockTransferService) Cancel(ctx context.Context, id int) error {
	m.mu.Lock()
	m.cancels = append(m.cancels, id)
	m.mu.Unlock()

	if m.CancelFn != nil {
		return m.CancelFn(ctx, id)
	}
	return m.Err
}

// Retry implements api.TransferService.
func (m *MockTransferService) Retry(ctx context.Context, id int) (*transfer.Item, error) {
	m.mu.Lock()
	m.retries = append(m.retries, id)
	m.mu.Unlock()

	if m.RetryFn != nil {
		return m.RetryFn(ctx, id)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.find(id)
}

// List implements api.TransferService.
func (m *MockTransferService) List() []*transfer.Item {
	return append([]*transfer.Item(nil), m.Items...)
}

// Get implements api.TransferService.
func (m *MockTransferService) Get(id int) (*transfer.Item, error) {
	if m.GetFn != nil {
		return m.GetFn(id)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.find(id)
}

// View implements api.TransferService. Without ViewFn every item is reported
// as queued.
func (m *MockTransferService) View(item *transfer.Item) transfer.View {
	if m.ViewFn != nil {
		return m.ViewFn(item)
	}
	return transfer.View{
		ID:        item.ID(),
		Name:      item.Name(),
		Direction: item.Direction,
		File:      item.File,
		URL:       item.URL,
		CreatedAt: item.CreatedAt,
		State:     transfer.StateQueued,
	}
}

// Stats implements api.TransferService.
func (m *MockTransferService) Stats() transfer.Stats {
	return m.StatsInfo
}

// Requests returns the requests passed to Enqueue.
func (m *MockTransferService) Requests() []transfer.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]transfer.Request(nil), m.requests...)
}

// Cancels returns the ids passed to Cancel.
func (m *MockTransferService) Cancels() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.cancels...)
}

// Retries returns the ids passed to Retry.
func (m *MockTransferService) Retries() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.retries...)
}

func (m *MockTransferService) find(id int) (*transfer.Item, error) {
	for _, item := range m.Items {
		if item.ID() == id {
			return item, nil
		}
	}
	return nil, transfer.ErrNotFound
}
