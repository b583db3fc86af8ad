package buffer_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sangoma/wat/buffer"
)

func TestNew(t *testing.T) {
	b := buffer.New(500)
	require.NotNil(t, b)
	assert.Equal(t, 500, b.Capacity())
	assert.Equal(t, 0, b.Size())
	assert.Panics(t, func() { buffer.New(0) })
}

func TestEnqueueDequeue(t *testing.T) {
	b := buffer.New(16)
	require.Nil(t, b.Enqueue([]byte("hello")))
	assert.Equal(t, 5, b.Size())

	out := make([]byte, 5)
	require.Nil(t, b.Dequeue(out))
	assert.Equal(t, "hello", string(out))
	assert.Equal(t, 0, b.Size())
}

func TestEnqueueFull(t *testing.T) {
	b := buffer.New(8)
	require.Nil(t, b.Enqueue([]byte("12345678")))
	assert.Equal(t, buffer.ErrFull, b.Enqueue([]byte("9")))
	// unchanged after the failed enqueue
	assert.Equal(t, 8, b.Size())
}

func TestWrapAroundOrder(t *testing.T) {
	// force the write index to wrap and confirm FIFO order is kept.
	b := buffer.New(8)
	require.Nil(t, b.Enqueue([]byte("abcde")))
	require.Nil(t, b.Flush(4))
	require.Nil(t, b.Enqueue([]byte("fghij")))

	out := make([]byte, 6)
	require.Nil(t, b.Dequeue(out))
	assert.Equal(t, "efghij", string(out))
}

func TestPeek(t *testing.T) {
	b := buffer.New(8)
	dst := make([]byte, 8)

	_, err := b.Peek(dst)
	assert.Equal(t, buffer.ErrEmpty, err)

	require.Nil(t, b.Enqueue([]byte("abc")))
	n, err := b.Peek(dst)
	require.Nil(t, err)
	assert.Equal(t, "abc", string(dst[:n]))
	// peek does not consume
	assert.Equal(t, 3, b.Size())

	_, err = b.Peek(make([]byte, 2))
	assert.Equal(t, buffer.ErrShort, err)
}

func TestPeekWrapped(t *testing.T) {
	b := buffer.New(8)
	require.Nil(t, b.Enqueue([]byte("abcdef")))
	require.Nil(t, b.Flush(5))
	require.Nil(t, b.Enqueue([]byte("ghijk")))

	dst := make([]byte, 8)
	n, err := b.Peek(dst)
	require.Nil(t, err)
	assert.Equal(t, "fghijk", string(dst[:n]))
}

func TestDequeueShort(t *testing.T) {
	b := buffer.New(8)
	require.Nil(t, b.Enqueue([]byte("ab")))
	assert.Equal(t, buffer.ErrShort, b.Dequeue(make([]byte, 3)))
	assert.Equal(t, 2, b.Size())
}

func TestFlush(t *testing.T) {
	b := buffer.New(8)
	require.Nil(t, b.Enqueue([]byte("abcd")))
	assert.Equal(t, buffer.ErrShort, b.Flush(5))
	require.Nil(t, b.Flush(2))
	out := make([]byte, 2)
	require.Nil(t, b.Dequeue(out))
	assert.Equal(t, "cd", string(out))
}

func TestReset(t *testing.T) {
	b := buffer.New(8)
	require.Nil(t, b.Enqueue([]byte("abcd")))
	b.Reset()
	assert.Equal(t, 0, b.Size())
	require.Nil(t, b.Enqueue([]byte("12345678")))
	out := make([]byte, 8)
	require.Nil(t, b.Dequeue(out))
	assert.Equal(t, "12345678", string(out))
}

func TestRoundTrip(t *testing.T) {
	// bytes come out in the order they went in, across many wraps.
	b := buffer.New(7)
	var in, out []byte
	chunk := []byte("0123456789")
	for i := 0; i < 100; i++ {
		c := chunk[:1+i%5]
		require.Nil(t, b.Enqueue(c))
		in = append(in, c...)
		d := make([]byte, b.Size())
		require.Nil(t, b.Dequeue(d))
		out = append(out, d...)
	}
	assert.Equal(t, in, out)
}

func TestConcurrentFeed(t *testing.T) {
	// the host reader may enqueue while the run loop peeks and flushes.
	b := buffer.New(500)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			b.Enqueue([]byte("AT\r\n"))
		}
	}()
	dst := make([]byte, 500)
	for i := 0; i < 1000; i++ {
		if n, err := b.Peek(dst); err == nil {
			b.Flush(n)
		}
	}
	wg.Wait()
}
