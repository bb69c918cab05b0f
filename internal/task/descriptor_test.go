package task

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDescriptor(t *testing.T) {
	t.Parallel()

	desc, err := NewDescriptor(3, "upload")
	require.NoError(t, err)
	assert.Equal(t, 3, desc.ID())
	assert.Equal(t, "upload", desc.Name())
	assert.False(t, desc.IsCancelled())

	unnamed, err := NewDescriptor(0, "")
	require.NoError(t, err)
	assert.Empty(t, unnamed.Name())

	_, err = NewDescriptor(Unassigned, "x")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDescriptor_CancelIsMonotonic(t *testing.T) {
	t.Parallel()

	desc, err := NewDescriptor(1, "")
	require.NoError(t, err)

	var (
		wg          sync.WaitGroup
		transitions atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if desc.Cancel() {
				transitions.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), transitions.Load(), "exactly one caller performs the transition")
	assert.True(t, desc.IsCancelled())
	assert.False(t, desc.Cancel())
	assert.True(t, desc.IsCancelled())
}

func TestDescriptor_Equal(t *testing.T) {
	t.Parallel()

	a, _ := NewDescriptor(1, "a")
	b, _ := NewDescriptor(1, "a")
	c, _ := NewDescriptor(2, "a")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))

	b.Cancel()
	assert.False(t, a.Equal(b), "cancellation state is part of equality")
}

func TestNewScope(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ids     []int
		want    []int
		wantErr bool
	}{
		{name: "single id", ids: []int{4}, want: []int{4}},
		{name: "duplicates collapse", ids: []int{3, 1, 3, 2}, want: []int{1, 2, 3}},
		{name: "empty", ids: nil, wantErr: true},
		{name: "negative id", ids: []int{1, -1}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			scope, err := NewScope(tc.ids...)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, scope.IDs())
			for _, id := range tc.want {
				assert.True(t, scope.Contains(id))
			}
			assert.False(t, scope.Contains(99))
		})
	}
}
