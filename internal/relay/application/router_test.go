package application

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/casavia/payments-gateway/internal/relay/domain"
)

func newTestRouter() (*Router, *Registry, *PendingBuffer) {
	log := testLogger()
	registry := NewRegistry(log)
	buffer := NewPendingBuffer(log, 0, 0)
	return NewRouter(log, registry, buffer), registry, buffer
}

func TestRouter_Routes_To_Buffer_When_Room_Is_Empty(t *testing.T) {
	req := require.New(t)
	router, _, buffer := newTestRouter()

	// Given no connections for abc123
	// When events are routed
	for i := 0; i < 3; i++ {
		router.Route("abc123", domain.NewSessionError("abc123", fmt.Sprintf("attempt %d", i)))
	}

	// Then all of them are buffered
	req.Equal(3, buffer.Len("abc123"))
}

func TestRouter_Connect_Flushes_Pending_In_Original_Order(t *testing.T) {
	req := require.New(t)
	router, _, buffer := newTestRouter()

	router.Route("abc123", domain.NewSessionCreated("abc123", "https://pay/x"))
	router.Route("abc123", domain.NewPaymentSuccess("abc123", "ch_1", "https://r"))

	sink := newFakeSink()
	router.Connect("abc123", sink)

	events := sink.received()
	req.Len(events, 2)
	req.Equal(domain.KindSessionCreated, events[0].Kind)
	req.Equal(domain.KindPaymentSuccess, events[1].Kind)
	req.Zero(buffer.Len("abc123"))
}

func TestRouter_Broadcasts_When_Room_Is_Live_And_Buffers_Nothing(t *testing.T) {
	req := require.New(t)
	router, _, buffer := newTestRouter()
	sink1 := newFakeSink()
	sink2 := newFakeSink()

	// Given two live connections (the scenario from the checkout flow:
	// two tabs watching the same order)
	router.Connect("abc123", sink1)
	router.Connect("abc123", sink2)

	router.Route("abc123", domain.NewPaymentSuccess("abc123", "ch_1", "https://r"))

	// Then both receive it and the buffer stays empty
	req.Len(sink1.received(), 1)
	req.Len(sink2.received(), 1)
	req.Zero(buffer.Len("abc123"))
}

func TestRouter_Does_Not_Buffer_When_Room_Is_Occupied_But_Sends_Fail(t *testing.T) {
	req := require.New(t)
	router, _, buffer := newTestRouter()
	slow := newFakeSink()
	slow.fail = true

	// Given one live connection whose sends all fail (a slow client with a
	// full buffer)
	router.Connect("abc123", slow)
	router.Route("abc123", domain.NewPaymentSuccess("abc123", "ch_1", "https://r"))

	// Then the frame is dropped for that client only: nothing is buffered,
	// and a later joiner does not see it resurface out of order
	req.Equal(1, router.Connections("abc123"))
	req.Zero(buffer.Len("abc123"))

	late := newFakeSink()
	router.Connect("abc123", late)
	req.Empty(late.received())
}

func TestRouter_Pending_Buffer_Is_Delivered_Exactly_Once(t *testing.T) {
	req := require.New(t)
	router, _, _ := newTestRouter()

	router.Route("abc123", domain.NewSessionCreated("abc123", "https://pay/x"))

	first := newFakeSink()
	second := newFakeSink()
	router.Connect("abc123", first)
	router.Connect("abc123", second)

	// The buffered event went to the first joiner only, once; events after
	// both joined reach both.
	req.Len(first.received(), 1)
	req.Empty(second.received())

	router.Route("abc123", domain.NewPaymentSuccess("abc123", "ch_1", "https://r"))
	req.Len(first.received(), 2)
	req.Len(second.received(), 1)
}

func TestRouter_Event_After_Last_Disconnect_Is_Buffered_Not_Lost(t *testing.T) {
	req := require.New(t)
	router, _, buffer := newTestRouter()
	sink := newFakeSink()

	router.Connect("abc123", sink)
	router.Disconnect("abc123", sink.ID())

	router.Route("abc123", domain.NewSessionExpired("abc123"))

	// Buffered for the next client, never delivered to the departed one
	req.Equal(1, buffer.Len("abc123"))
	req.Empty(sink.received())
}

func TestRouter_Reconnect_After_Disconnect_Receives_Buffered_Events(t *testing.T) {
	req := require.New(t)
	router, _, buffer := newTestRouter()

	first := newFakeSink()
	router.Connect("abc123", first)
	router.Disconnect("abc123", first.ID())

	router.Route("abc123", domain.NewSessionCreated("abc123", "https://pay/x"))

	second := newFakeSink()
	router.Connect("abc123", second)

	events := second.received()
	req.Len(events, 1)
	req.Equal(domain.KindSessionCreated, events[0].Kind)
	req.Zero(buffer.Len("abc123"))
}

func TestRouter_Concurrent_Routing_And_Joining_Loses_Nothing(t *testing.T) {
	req := require.New(t)

	const events = 200

	// The buffer must hold every event routed before the joins land, so its
	// cap sits above the routed count.
	log := testLogger()
	buffer := NewPendingBuffer(log, 2*events, 0)
	router := NewRouter(log, NewRegistry(log), buffer)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < events; i++ {
			router.Route("abc123", domain.NewSessionError("abc123", fmt.Sprintf("e%d", i)))
		}
	}()

	sink1 := newFakeSink()
	sink2 := newFakeSink()
	wg.Add(2)
	go func() {
		defer wg.Done()
		router.Connect("abc123", sink1)
	}()
	go func() {
		defer wg.Done()
		router.Connect("abc123", sink2)
	}()

	wg.Wait()

	// Every event was either buffered before anyone joined (and then
	// flushed exactly once) or broadcast live to every member. Nothing is
	// lost, nothing left behind, nothing delivered twice to one sink.
	req.Zero(buffer.Len("abc123"))
	got1 := sink1.received()
	got2 := sink2.received()

	seen1 := map[string]int{}
	for _, ev := range got1 {
		seen1[string(ev.Data)]++
	}
	seen2 := map[string]int{}
	for _, ev := range got2 {
		seen2[string(ev.Data)]++
	}
	for payload, n := range seen1 {
		req.Equal(1, n, "sink1 saw %s twice", payload)
	}
	for payload, n := range seen2 {
		req.Equal(1, n, "sink2 saw %s twice", payload)
	}

	// Each event reached at least one sink.
	union := map[string]struct{}{}
	for payload := range seen1 {
		union[payload] = struct{}{}
	}
	for payload := range seen2 {
		union[payload] = struct{}{}
	}
	req.Len(union, events)
}
