package arena

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/diagflow/internal/runtime/errors"
)

func TestAllocCarvesDisjointBuffers(t *testing.T) {
	a := New(16)

	first, err := a.Alloc(4)
	require.NoError(t, err)
	second, err := a.Alloc(4)
	require.NoError(t, err)

	first[0] = 0xAA
	second[0] = 0xBB
	assert.Equal(t, byte(0xAA), first[0])
	assert.Equal(t, 8, a.Used())
	assert.Equal(t, 8, a.Remaining())
	assert.Equal(t, 4, cap(first))
}

func TestAllocReportsExhaustion(t *testing.T) {
	a := New(4)

	_, err := a.Alloc(5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errspkg.ErrAllocationFailure))
	assert.Equal(t, errspkg.AllocationFailure, errspkg.KindOf(err))

	buf, err := a.Alloc(4)
	require.NoError(t, err, "a failed allocation must not consume space")
	assert.Len(t, buf, 4)
	assert.Equal(t, uint64(1), a.Stats().Failures)
}

func TestAllocRejectsNegativeSize(t *testing.T) {
	_, err := New(4).Alloc(-1)
	assert.ErrorIs(t, err, errspkg.ErrAllocationFailure)
}

func TestCopyAndRewind(t *testing.T) {
	a := New(32)
	_, err := a.Copy([]byte{1, 2})
	require.NoError(t, err)

	mark := a.Mark()
	reply, err := a.Copy([]byte{0x56, 0x49, 0x4E})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x56, 0x49, 0x4E}, reply)
	assert.Equal(t, 5, a.Used())

	a.Rewind(mark)
	assert.Equal(t, 2, a.Used())

	reused, err := a.Alloc(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0}, reused, "rewound memory must be zeroed on reuse")

	a.Rewind(Mark{offset: 30})
	assert.Equal(t, 5, a.Used())

	a.Reset()
	assert.Equal(t, 0, a.Used())
	assert.Equal(t, 5, a.Stats().Peak)
}

func TestNewFallsBackToDefaultSize(t *testing.T) {
	assert.Equal(t, DefaultSize, New(0).Cap())
}

func TestConcurrentAlloc(t *testing.T) {
	a := New(1000)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = a.Alloc(10)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000, a.Used())
}
