package buffer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRead(t *testing.T) {
	buf, err := NewCircularBuffer[int](4)
	require.NoError(t, err)

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2))
	assert.Equal(t, 2, buf.Size())

	v, ok := buf.Read()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = buf.Read()
	require.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = buf.Read()
	assert.False(t, ok)
	assert.True(t, buf.IsEmpty())
}

func TestFIFOOrderAcrossWrap(t *testing.T) {
	buf, err := NewCircularBuffer[int](3)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		require.NoError(t, buf.Write(i))
	}
	v, _ := buf.Read()
	assert.Equal(t, 1, v)
	require.NoError(t, buf.Write(4))

	got := buf.ReadBatch(10)
	assert.Equal(t, []int{2, 3, 4}, got)
}

func TestDropOldest(t *testing.T) {
	var dropped []int
	buf, err := NewCircularBuffer(2,
		WithOverflowPolicy[int](DropOldest),
		WithDropCallback[int](func(item int) { dropped = append(dropped, item) }),
	)
	require.NoError(t, err)

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2))
	require.NoError(t, buf.Write(3))

	assert.Equal(t, []int{1}, dropped)
	got := buf.ReadBatch(10)
	assert.Equal(t, []int{2, 3}, got)
	assert.Equal(t, int64(1), buf.Stats().Drops())
}

func TestDropNewest(t *testing.T) {
	var dropped []int
	buf, err := NewCircularBuffer(2,
		WithOverflowPolicy[int](DropNewest),
		WithDropCallback[int](func(item int) { dropped = append(dropped, item) }),
	)
	require.NoError(t, err)

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2))
	require.NoError(t, buf.Write(3))

	assert.Equal(t, []int{3}, dropped)
	got := buf.ReadBatch(10)
	assert.Equal(t, []int{1, 2}, got)
}

func TestReadWaitDeliversItem(t *testing.T) {
	buf, err := NewCircularBuffer[string](4)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	var got string
	var ok bool
	go func() {
		defer wg.Done()
		got, ok = buf.ReadWait(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, buf.Write("hello"))
	wg.Wait()

	require.True(t, ok)
	assert.Equal(t, "hello", got)
}

func TestReadWaitCancellation(t *testing.T) {
	buf, err := NewCircularBuffer[string](4)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok := buf.ReadWait(ctx)
		assert.False(t, ok)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ReadWait did not observe cancellation")
	}
}

func TestReadWaitClose(t *testing.T) {
	buf, err := NewCircularBuffer[string](4)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok := buf.ReadWait(context.Background())
		assert.False(t, ok)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, buf.Close())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ReadWait did not observe close")
	}
}

func TestWriteAfterClose(t *testing.T) {
	buf, err := NewCircularBuffer[int](2)
	require.NoError(t, err)
	require.NoError(t, buf.Close())
	require.Error(t, buf.Write(1))
	// Close is idempotent
	require.NoError(t, buf.Close())
}

func TestClear(t *testing.T) {
	var dropped []int
	buf, err := NewCircularBuffer(4,
		WithDropCallback[int](func(item int) { dropped = append(dropped, item) }),
	)
	require.NoError(t, err)

	require.NoError(t, buf.Write(1))
	require.NoError(t, buf.Write(2))
	buf.Clear()

	assert.True(t, buf.IsEmpty())
	assert.Equal(t, []int{1, 2}, dropped)
}

func TestConcurrentWritersSingleReader(t *testing.T) {
	buf, err := NewCircularBuffer[int](1024)
	require.NoError(t, err)

	const writers = 8
	const perWriter = 100

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = buf.Write(i)
			}
		}()
	}
	wg.Wait()

	total := 0
	for {
		if _, ok := buf.Read(); !ok {
			break
		}
		total++
	}
	assert.Equal(t, writers*perWriter, total)
	assert.Equal(t, int64(writers*perWriter), buf.Stats().Writes())
}
