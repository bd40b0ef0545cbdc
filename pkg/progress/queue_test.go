package progress

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altamira-dev/webpilot/pkg/types"
)

func TestPublishAndDrainPreservesOrder(t *testing.T) {
	q := NewQueue(10)

	q.Publish(types.NewTypingEvent())
	q.Publish(types.NewToolExecutingEvent("navigate", nil))
	q.Publish(types.NewTaskCompletedEvent("done", 3))

	drained := q.Drain()
	require.Len(t, drained, 3)
	assert.Equal(t, types.EventTypeTyping, drained[0].Type)
	assert.Equal(t, types.EventTypeToolExecuting, drained[1].Type)
	assert.Equal(t, types.EventTypeTaskCompleted, drained[2].Type)

	// Drain clears the buffer.
	assert.Nil(t, q.Drain())
	assert.Equal(t, 0, q.Len())
}

func TestPublishDropsOldestOnOverflow(t *testing.T) {
	q := NewQueue(3)

	for i := 0; i < 5; i++ {
		q.Publish(types.NewSystemMessageEvent(fmt.Sprintf("msg-%d", i)))
	}

	drained := q.Drain()
	require.Len(t, drained, 3)
	assert.Equal(t, "msg-2", drained[0].Message)
	assert.Equal(t, "msg-4", drained[2].Message)
	assert.Equal(t, uint64(2), q.Dropped())
}

func TestPublishNeverBlocks(t *testing.T) {
	q := NewQueue(2)

	// A subscriber that never reads must not stall the producer.
	_, cancel := q.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			q.Publish(types.NewTypingEvent())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked")
	}
}

func TestSubscribeReceivesLiveEvents(t *testing.T) {
	q := NewQueue(10)

	ch, cancel := q.Subscribe()
	defer cancel()

	event := types.NewAssistantMessageEvent("hello")
	q.Publish(event)

	received := <-ch
	assert.Equal(t, event.ID, received.ID)

	// Buffer still holds the event for polling clients.
	assert.Equal(t, 1, q.Len())
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	q := NewQueue(10)

	ch, cancel := q.Subscribe()
	cancel()
	cancel() // idempotent

	_, open := <-ch
	assert.False(t, open)

	// Publishing after cancel must not panic.
	q.Publish(types.NewTypingEvent())
}

func TestCloseShutsDownSubscribers(t *testing.T) {
	q := NewQueue(10)

	ch, cancel := q.Subscribe()
	defer cancel()

	q.Close()
	q.Close() // idempotent

	_, open := <-ch
	assert.False(t, open)

	q.Publish(types.NewTypingEvent())
	assert.Equal(t, 0, q.Len())
}

func TestSubscribeAfterClose(t *testing.T) {
	q := NewQueue(10)
	q.Close()

	ch, cancel := q.Subscribe()
	defer cancel()

	_, open := <-ch
	assert.False(t, open)
}

func TestConcurrentPublishers(t *testing.T) {
	q := NewQueue(1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				q.Publish(types.NewTypingEvent())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 500, q.Len())
	assert.Equal(t, uint64(0), q.Dropped())
}
