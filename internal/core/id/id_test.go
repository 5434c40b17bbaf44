package id

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct{}

func TestSequenceStartsAtGivenValue(t *testing.T) {
	s := NewSequence(7)
	assert.Equal(t, uint64(7), s.Next())
	assert.Equal(t, uint64(8), s.Next())
	assert.Equal(t, uint64(9), s.Peek())
}

func TestSequenceConcurrentValuesAreUnique(t *testing.T) {
	s := NewSequence(1)
	const workers, perWorker = 8, 500

	var mu sync.Mutex
	seen := make(map[uint64]bool, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]uint64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, s.Next())
			}
			mu.Lock()
			for _, v := range local {
				seen[v] = true
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*perWorker)
}

func TestAdvanceSkipsUsedValues(t *testing.T) {
	s := NewSequence(1)
	s.Advance(41)
	assert.Equal(t, uint64(42), s.Next())

	// Advancing backwards is a no-op.
	s.Advance(3)
	assert.Equal(t, uint64(43), s.Next())
}

func TestParseAndString(t *testing.T) {
	v, err := Parse[widget]("1234")
	require.NoError(t, err)
	assert.Equal(t, Forge[widget](1234), v)
	assert.Equal(t, "1234", v.String())

	_, err = Parse[widget]("-1")
	assert.Error(t, err)
}

func TestNextDrawsTypedIDs(t *testing.T) {
	s := NewSequence(5)
	a := Next[widget](s)
	b := Next[widget](s)
	assert.NotEqual(t, a, b)
	assert.False(t, a.IsZero())
}
