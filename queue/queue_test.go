package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"pipelined.dev/livehost/queue"
)

const wait = 50 * time.Millisecond

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestFIFO(t *testing.T) {
	q := queue.New(4)
	assert.Equal(t, 4, q.Cap())
	for _, s := range []float32{0.1, 0.2, 0.3, 0.4} {
		assert.Nil(t, q.Push(context.Background(), s))
	}
	assert.Equal(t, 4, q.Len())
	for _, expected := range []float32{0.1, 0.2, 0.3, 0.4} {
		s, ok := q.Pop()
		assert.True(t, ok)
		assert.Equal(t, expected, s)
	}
	assert.Equal(t, 0, q.Len())
}

func TestPushBlocksWhenFull(t *testing.T) {
	q := queue.New(2)
	ctx := context.Background()
	assert.Nil(t, q.Push(ctx, 1))
	assert.Nil(t, q.Push(ctx, 2))

	pushed := make(chan error)
	go func() {
		pushed <- q.Push(ctx, 3)
	}()
	select {
	case <-pushed:
		t.Fatal("push returned on full queue")
	case <-time.After(wait):
	}

	s, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, float32(1), s)
	assert.Nil(t, <-pushed)
	assert.Equal(t, 2, q.Len())
}

func TestPopBlocksWhenEmpty(t *testing.T) {
	q := queue.New(2)
	popped := make(chan float32)
	go func() {
		s, _ := q.Pop()
		popped <- s
	}()
	select {
	case <-popped:
		t.Fatal("pop returned on empty queue")
	case <-time.After(wait):
	}

	assert.Nil(t, q.Push(context.Background(), 0.5))
	assert.Equal(t, float32(0.5), <-popped)
}

func TestPushCancel(t *testing.T) {
	q := queue.New(1)
	ctx, cancel := context.WithCancel(context.Background())
	assert.Nil(t, q.Push(ctx, 1))

	pushed := make(chan error)
	go func() {
		pushed <- q.Push(ctx, 2)
	}()
	cancel()
	assert.Equal(t, context.Canceled, <-pushed)
	assert.Equal(t, 1, q.Len())
}

func TestTryPop(t *testing.T) {
	q := queue.New(1)
	_, ok := q.TryPop()
	assert.False(t, ok)

	assert.Nil(t, q.Push(context.Background(), 0.25))
	s, ok := q.TryPop()
	assert.True(t, ok)
	assert.Equal(t, float32(0.25), s)
}

func TestClose(t *testing.T) {
	q := queue.New(2)
	popped := make(chan bool)
	go func() {
		_, ok := q.Pop()
		popped <- ok
	}()
	q.Close()
	assert.False(t, <-popped)
	assert.True(t, q.Closed())
	// second close is noop
	q.Close()

	q = queue.New(2)
	assert.Nil(t, q.Push(context.Background(), 0.75))
	q.Close()
	// pending samples are still delivered
	s, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, float32(0.75), s)
	_, ok = q.Pop()
	assert.False(t, ok)
	_, ok = q.TryPop()
	assert.False(t, ok)
}

func TestCapacity(t *testing.T) {
	assert.Equal(t, 1, queue.New(0).Cap())
	assert.Equal(t, 512, queue.New(512).Cap())
}
