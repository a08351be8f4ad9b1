package services

import (
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type sentEvent struct {
	To    string // empty for broadcasts
	Event Event
}

type mockBroadcaster struct {
	mu     sync.Mutex
	events []sentEvent
}

func (m *mockBroadcaster) Broadcast(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, sentEvent{Event: ev})
}

func (m *mockBroadcaster) SendTo(connectionID string, ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, sentEvent{To: connectionID, Event: ev})
}

func (m *mockBroadcaster) named(name string) []sentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentEvent
	for _, e := range m.events {
		if e.Event.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func (m *mockBroadcaster) last() sentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return sentEvent{}
	}
	return m.events[len(m.events)-1]
}

func (m *mockBroadcaster) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

// scriptedRoller returns the queued die faces in order, then ones.
type scriptedRoller struct {
	faces []int
}

func (r *scriptedRoller) IntN(n int) int {
	if len(r.faces) == 0 {
		return 0
	}
	f := r.faces[0]
	r.faces = r.faces[1:]
	return (f - 1) % n
}

func (r *scriptedRoller) queue(faces ...int) { r.faces = append(r.faces, faces...) }

// manualDeferrer holds deferred functions until the test fires them.
type manualDeferrer struct {
	mu      sync.Mutex
	pending []func()
	delays  []time.Duration
	err     error
}

func (d *manualDeferrer) After(delay time.Duration, fn func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.pending = append(d.pending, fn)
	d.delays = append(d.delays, delay)
	return nil
}

func (d *manualDeferrer) fireAll() {
	d.mu.Lock()
	fns := d.pending
	d.pending = nil
	d.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
