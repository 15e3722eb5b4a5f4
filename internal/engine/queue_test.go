package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJob(actor string) *job {
	return &job{req: Request{Actor: actor}, done: make(chan result, 1)}
}

func TestJobQueue_FIFO(t *testing.T) {
	q := newJobQueue()

	for _, actor := range []string{"A", "B", "C"} {
		require.True(t, q.Enqueue(testJob(actor)))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"A", "B", "C"} {
		j, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, j.req.Actor)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestJobQueue_CloseReturnsPending(t *testing.T) {
	q := newJobQueue()
	q.Enqueue(testJob("A"))
	q.Enqueue(testJob("B"))

	pending := q.Close()
	assert.Len(t, pending, 2)
	assert.True(t, q.Closed())
	assert.Equal(t, 0, q.Len())

	assert.False(t, q.Enqueue(testJob("C")), "enqueue after close should return false")
	assert.Nil(t, q.Close(), "second close returns nothing")
}

func TestJobQueue_WaitClosesWithQueue(t *testing.T) {
	q := newJobQueue()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Close()
	}()

	select {
	case _, ok := <-q.Wait():
		assert.False(t, ok, "wait channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("wait did not unblock after close")
	}
}

func TestJobQueue_ThreadSafe(t *testing.T) {
	q := newJobQueue()

	const producers = 10
	const jobsPerProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < jobsPerProducer; i++ {
				q.Enqueue(testJob("x"))
			}
		}()
	}
	wg.Wait()

	received := 0
	for {
		if _, ok := q.TryDequeue(); !ok {
			break
		}
		received++
	}
	assert.Equal(t, producers*jobsPerProducer, received)
}
