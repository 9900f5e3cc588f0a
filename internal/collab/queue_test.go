package collab

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cowork-labs/coedit/internal/ot"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()

	require.True(t, q.Enqueue(Event{Type: EventCommit, Revision: 1}))
	require.True(t, q.Enqueue(Event{Type: EventCommit, Revision: 2}))
	assert.Equal(t, 2, q.Len())

	e, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, 1, e.Revision)

	e, ok = q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, 2, e.Revision)

	_, ok = q.TryDequeue()
	assert.False(t, ok, "empty queue yields nothing")
}

func TestQueue_CloseWakesWaiters(t *testing.T) {
	q := NewQueue()

	done := make(chan struct{})
	go func() {
		<-q.Wait()
		close(done)
	}()

	q.Close()
	<-done

	assert.False(t, q.Enqueue(Event{Type: EventAck}), "enqueue after close is rejected")
	assert.True(t, q.Closed())
}

func TestQueue_DrainAfterClose(t *testing.T) {
	q := NewQueue()
	q.Enqueue(Event{Type: EventCommit, Revision: 7, Op: ot.NewInsert("a", 1, 0, 0, "x")})
	q.Close()

	e, ok := q.TryDequeue()
	require.True(t, ok, "queued events survive close")
	assert.Equal(t, 7, e.Revision)
}

func TestQueue_ConcurrentEnqueue(t *testing.T) {
	q := NewQueue()
	const producers = 8
	const perProducer = 100

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				q.Enqueue(Event{Type: EventCommit})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, q.Len())
}
