package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastAndSendTo(t *testing.T) {
	hub := NewHub(8, quietLogger())
	a := hub.Subscribe("a")
	b := hub.Subscribe("b")

	hub.Broadcast(Event{Name: EventKniffelState, Data: 1})
	hub.SendTo("b", Event{Name: EventKniffelError, Data: ErrorPayload{Message: "nope"}})
	hub.SendTo("ghost", Event{Name: EventKniffelError})

	assert.Equal(t, []string{EventKniffelState}, eventNames(drain(a)))
	assert.Equal(t, []string{EventKniffelState, EventKniffelError}, eventNames(drain(b)))
	assert.Equal(t, 2, hub.Count())
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(2, quietLogger())
	slow := hub.Subscribe("slow")
	fast := hub.Subscribe("fast")

	for i := 0; i < 3; i++ {
		hub.Broadcast(Event{Name: EventOlympiadeStatus, Data: i})
		if i < 2 {
			drain(fast)
		}
	}

	got := drain(slow)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Data)
	assert.Equal(t, 1, got[1].Data)
	assert.Len(t, drain(fast), 1)
}

func TestHubUnsubscribeClosesStream(t *testing.T) {
	hub := NewHub(4, quietLogger())
	sub := hub.Subscribe("a")
	hub.Unsubscribe("a")
	hub.Unsubscribe("a")

	_, open := <-sub.C
	assert.False(t, open)
	assert.Zero(t, hub.Count())
	hub.Broadcast(Event{Name: EventKniffelState})
}

func TestHubResubscribeReplacesStream(t *testing.T) {
	hub := NewHub(4, quietLogger())
	old := hub.Subscribe("a")
	fresh := hub.Subscribe("a")

	_, open := <-old.C
	assert.False(t, open)
	hub.SendTo("a", Event{Name: EventConnected})
	assert.Len(t, drain(fresh), 1)
	assert.Equal(t, 1, hub.Count())
}

func TestHubHeartbeat(t *testing.T) {
	hub := NewHub(4, quietLogger())
	sub := hub.Subscribe("a")
	hub.Heartbeat()
	got := drain(sub)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsKeepalive())
}

func TestHubConcurrentUse(t *testing.T) {
	hub := NewHub(1024, quietLogger())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			sub := hub.Subscribe(id)
			for j := 0; j < 50; j++ {
				hub.Broadcast(Event{Name: EventKniffelState, Data: j})
			}
			drain(sub)
			hub.Unsubscribe(id)
		}(i)
	}
	wg.Wait()
	assert.Zero(t, hub.Count())
}
