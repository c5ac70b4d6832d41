package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishSubscribe(t *testing.T) {
	hub := NewHub()
	a, cancelA := hub.Subscribe(4)
	b, cancelB := hub.Subscribe(4)
	assert.Equal(t, 2, hub.Subscribers())

	hub.Publish(Event{Type: EventUpdate, WorkOrderID: "wo-1", Status: "completed"})

	for _, ch := range []<-chan Event{a, b} {
		e := <-ch
		assert.Equal(t, "wo-1", e.WorkOrderID)
		assert.False(t, e.At.IsZero())
	}

	cancelA()
	cancelA()
	assert.Equal(t, 1, hub.Subscribers())
	_, open := <-a
	assert.False(t, open)

	hub.Close()
	_, open = <-b
	assert.False(t, open)
	cancelB()

	// publishing after close is a no-op
	hub.Publish(Event{Type: EventDelete, WorkOrderID: "wo-1"})
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Publish(Event{Type: EventInsert, WorkOrderID: "wo"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingPublisher) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestHub_Bridges(t *testing.T) {
	hub := NewHub()
	rec := &recordingPublisher{}
	hub.AddBridge(rec)

	hub.Publish(Event{Type: EventInsert, WorkOrderID: "wo-9"})

	require.Len(t, rec.events, 1)
	assert.Equal(t, "wo-9", rec.events[0].WorkOrderID)
}

func TestHub_ServeHTTP(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Publish(Event{Type: EventUpdate, WorkOrderID: "wo-2", Status: "on-hold"})

	var data string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			break
		}
	}
	var e Event
	require.NoError(t, json.Unmarshal([]byte(data), &e))
	assert.Equal(t, "wo-2", e.WorkOrderID)
	assert.Equal(t, "on-hold", e.Status)
}

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type fakeMQTT struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
}

func (f *fakeMQTT) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload.([]byte))
	return &fakeToken{}
}

func (f *fakeMQTT) IsConnected() bool { return true }
func (f *fakeMQTT) Disconnect(uint)   {}

func TestMQTTBridge_Publish(t *testing.T) {
	client := &fakeMQTT{}
	bridge := newMQTTBridge(client, "shop/")

	bridge.Publish(Event{Type: EventDelete, WorkOrderID: "wo-3"})

	require.Len(t, client.topics, 1)
	assert.Equal(t, "shop/work_orders/delete", client.topics[0])
	var e Event
	require.NoError(t, json.Unmarshal(client.payloads[0], &e))
	assert.Equal(t, "wo-3", e.WorkOrderID)
	assert.True(t, bridge.Connected())
}
