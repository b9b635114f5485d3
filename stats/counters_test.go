package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOrCreateReturnsSameCounter(t *testing.T) {
	r := NewRegistry()
	a := r.FindOrCreate("Client.RequestsSent", StorageLogAndTable)
	b := r.FindOrCreate("Client.RequestsSent", StorageLogAndTable)
	assert.Same(t, a, b)
}

func TestCounterIncrement(t *testing.T) {
	r := NewRegistry()
	c := r.FindOrCreate("x", StorageLog)

	c.Increment()
	c.Add(4)
	assert.Equal(t, int64(5), c.Value())
	assert.Equal(t, "5", c.SerializeValue())
}

func TestCounterConcurrentIncrement(t *testing.T) {
	r := NewRegistry()
	c := r.FindOrCreate("x", StorageLog)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Increment()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(8000), c.Value())
}

func TestSnapshotSorted(t *testing.T) {
	r := NewRegistry()
	r.FindOrCreate("b", StorageLog)
	r.FindOrCreate("a", StorageLogAndTable)
	r.FindOrCreate("c", StorageLog)

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "a", snap[0].Name())
	assert.Equal(t, "b", snap[1].Name())
	assert.Equal(t, "c", snap[2].Name())
}

func TestNewCoreCounters(t *testing.T) {
	r := NewRegistry()
	core := NewCoreCounters(r)
	core.RequestsSent.Increment()
	assert.Equal(t, int64(1), r.FindOrCreate("Client.RequestsSent", StorageLogAndTable).Value())
	assert.Equal(t, StorageLogAndTable, core.MessagesReceived.Storage())
}
