package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// collector records every event it is handed.
type collector struct {
	mu  sync.Mutex
	got []BookingEvent
}

func (c *collector) Handle(_ context.Context, ev BookingEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, ev)
	return nil
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func TestDispatcher_DeliversAndDrainsOnClose(t *testing.T) {
	c := &collector{}
	d := NewDispatcher(c, zap.NewNop(), 16, 2, time.Second)

	for i := 0; i < 10; i++ {
		require.True(t, d.Dispatch(NewEvent(KindReservationCreated, uint64(i), "created")))
	}
	d.Close()

	assert.Equal(t, 10, c.len())
	assert.False(t, d.Dispatch(NewEvent(KindReservationCreated, 1, "late")), "closed dispatcher drops")
	d.Close() // second close is a no-op
}

func TestDispatcher_FullBufferDropsWithoutBlocking(t *testing.T) {
	release := make(chan struct{})
	blocked := HandlerFunc(func(ctx context.Context, ev BookingEvent) error {
		<-release
		return nil
	})
	d := NewDispatcher(blocked, zap.NewNop(), 1, 1, time.Second)
	defer func() {
		close(release)
		d.Close()
	}()

	// one event occupies the worker, one fills the buffer
	require.True(t, d.Dispatch(NewEvent(KindItineraryRequested, 1, "")))
	require.Eventually(t, func() bool { return d.Dispatch(NewEvent(KindItineraryRequested, 1, "")) },
		time.Second, 5*time.Millisecond)

	done := make(chan bool)
	go func() { done <- d.Dispatch(NewEvent(KindItineraryRequested, 1, "")) }()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a full buffer")
	}
}

func TestFanout_IsolatesFailures(t *testing.T) {
	c := &collector{}
	f := Fanout{
		HandlerFunc(func(context.Context, BookingEvent) error { return errors.New("smtp down") }),
		HandlerFunc(func(context.Context, BookingEvent) error { panic("boom") }),
		c,
	}

	err := f.Handle(context.Background(), NewEvent(KindReservationCancelled, 1, "cancelled"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Contains(t, err.Error(), "handler panic")
	assert.Equal(t, 1, c.len(), "later handlers still run")
}

func TestDecode(t *testing.T) {
	ev := NewEvent(KindReservationEdited, 3, "reservation 4 edited")
	ev.ReservationID = 4
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	got, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, uint64(4), got.ReservationID)

	_, err = Decode([]byte(`{"id":"x"}`))
	assert.Error(t, err)
	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

// acker records how a delivery was settled.
type acker struct {
	acked, nacked, requeue bool
}

func (a *acker) Ack(uint64, bool) error { a.acked = true; return nil }
func (a *acker) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}
func (a *acker) Reject(_ uint64, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}

func TestConsumerDeliver(t *testing.T) {
	good, err := json.Marshal(NewEvent(KindUserActivated, 2, "account activated"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		body    []byte
		handler Handler
		wantAck bool
	}{
		{"handled", good, HandlerFunc(func(context.Context, BookingEvent) error { return nil }), true},
		{"handler fails", good, HandlerFunc(func(context.Context, BookingEvent) error { return errors.New("db down") }), false},
		{"bad body", []byte(`{}`), HandlerFunc(func(context.Context, BookingEvent) error { return nil }), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := &acker{}
			c := NewConsumer("amqp://unused", "events", tc.handler, zap.NewNop())
			c.deliver(context.Background(), amqp.Delivery{Acknowledger: a, Body: tc.body})
			assert.Equal(t, tc.wantAck, a.acked)
			assert.Equal(t, !tc.wantAck, a.nacked)
			assert.False(t, a.requeue)
		})
	}
}
