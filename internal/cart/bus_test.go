package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBusDeliversOnlyToMatchingCart(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	a, cancelA := bus.Subscribe("a", 1)
	defer cancelA()
	b, cancelB := bus.Subscribe("b", 1)
	defer cancelB()

	bus.Publish(context.Background(), Event{CartID: "a", Snapshot: &Snapshot{Qty: 2}})

	ev := <-a
	require.Equal(t, 2, ev.Snapshot.Qty)
	select {
	case ev := <-b:
		t.Fatalf("cart b received %+v", ev)
	default:
	}
}

func TestBusForwardSkipsRemoteEvents(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	var forwarded []Event
	bus.Forward(func(_ context.Context, ev Event) { forwarded = append(forwarded, ev) })

	ch, cancel := bus.Subscribe("a", 2)
	defer cancel()

	bus.Publish(context.Background(), Event{CartID: "a", Origin: "tab-1", Snapshot: &Snapshot{}})
	bus.Deliver(Event{CartID: "a", Snapshot: &Snapshot{Qty: 9}})

	require.Len(t, forwarded, 1)
	require.Equal(t, "tab-1", forwarded[0].Origin)

	<-ch
	remote := <-ch
	require.True(t, remote.Remote)
	require.Nil(t, remote.Snapshot)
}

func TestBusCancelClosesChannel(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	ch, cancel := bus.Subscribe("a", 0)
	require.Equal(t, 1, bus.Subscribers())

	cancel()
	cancel()
	_, ok := <-ch
	require.False(t, ok)
	require.Zero(t, bus.Subscribers())

	bus.Publish(context.Background(), Event{CartID: "a"})
}

func TestBusDropsWhenSubscriberIsSlow(t *testing.T) {
	t.Parallel()

	bus := NewBus(nil)
	ch, cancel := bus.Subscribe("a", 1)
	defer cancel()

	for i := 0; i < 5; i++ {
		bus.Publish(context.Background(), Event{CartID: "a"})
	}
	require.Len(t, ch, 1)
}
