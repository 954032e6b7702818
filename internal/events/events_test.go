package events

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-timeout:
			t.Fatal("channel not closed")
		}
	}
}

func types(evts []Event) []Type {
	out := make([]Type, len(evts))
	for i, e := range evts {
		out[i] = e.Type
	}
	return out
}

func TestBus_LiveAndTerminal(t *testing.T) {
	b := NewBus(0, 0)
	ch, cancel := b.Subscribe("r1")
	defer cancel()

	b.Publish(Event{RunID: "r1", Type: RunStarted})
	b.Publish(Event{RunID: "r2", Type: RunStarted})
	b.Publish(Event{RunID: "r1", Type: TaskStarted, Task: "company_finder_task"})
	b.Publish(Event{RunID: "r1", Type: RunCompleted})

	got := collect(t, ch)
	assert.Equal(t, []Type{RunStarted, TaskStarted, RunCompleted}, types(got))
	assert.False(t, got[0].Time.IsZero(), "publish stamps time")
}

func TestBus_LateSubscriberReplay(t *testing.T) {
	b := NewBus(0, 0)
	b.Publish(Event{RunID: "r1", Type: RunStarted})
	b.Publish(Event{RunID: "r1", Type: ToolCalled, Tool: "serper_search"})

	ch, cancel := b.Subscribe("r1")
	defer cancel()
	b.Publish(Event{RunID: "r1", Type: RunFailed, Message: "boom"})

	got := collect(t, ch)
	assert.Equal(t, []Type{RunStarted, ToolCalled, RunFailed}, types(got))

	// After the run finished, a new subscriber gets history and a closed channel.
	again, _ := b.Subscribe("r1")
	assert.Len(t, collect(t, again), 3)

	b.Publish(Event{RunID: "r1", Type: TaskStarted})
	assert.Len(t, b.History("r1"), 3, "events after terminal are ignored")
}

func TestBus_SlowSubscriberDrops(t *testing.T) {
	b := NewBus(2, 0)
	_, cancel := b.Subscribe("r1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(Event{RunID: "r1", Type: ToolCalled})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on slow subscriber")
	}
	assert.EqualValues(t, 8, b.Dropped())
	assert.Len(t, b.History("r1"), 10)
}

func TestBus_Cancel(t *testing.T) {
	b := NewBus(0, 0)
	ch, cancel := b.Subscribe("r1")
	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	b.Publish(Event{RunID: "r1", Type: RunStarted})
}

func TestBus_EvictsFinishedRuns(t *testing.T) {
	b := NewBus(0, 2)
	b.Publish(Event{RunID: "a", Type: RunCompleted})
	b.Publish(Event{RunID: "b", Type: RunStarted})
	b.Publish(Event{RunID: "c", Type: RunStarted})

	assert.Nil(t, b.History("a"))
	assert.Len(t, b.History("b"), 1, "running runs are kept")
	assert.Len(t, b.History("c"), 1)
}

type fakeConn struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
	drained  bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return f.err
}

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func TestNATSSink(t *testing.T) {
	conn := &fakeConn{}
	sink := newNATSSink(conn, "")
	b := NewBus(0, 0)
	b.AddSink(sink)

	b.Publish(Event{RunID: "run-1", Type: TaskStarted, Task: "linkedin_task", Agent: "linkedin_prospector"})

	require.Len(t, conn.subjects, 1)
	assert.Equal(t, "leadsynapse.runs.run-1", conn.subjects[0])
	var e Event
	require.NoError(t, json.Unmarshal(conn.payloads[0], &e))
	assert.Equal(t, TaskStarted, e.Type)
	assert.Equal(t, "linkedin_prospector", e.Agent)

	require.NoError(t, b.Close())
	assert.True(t, conn.drained)
}

func TestNATSSink_ErrorDoesNotBlockBus(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	b := NewBus(0, 0)
	b.AddSink(newNATSSink(conn, "custom"))

	b.Publish(Event{RunID: "r", Type: RunStarted})
	assert.Len(t, b.History("r"), 1)
	assert.Equal(t, "custom.r", conn.subjects[0])
}
