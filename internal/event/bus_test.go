package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryBus(t *testing.T) {
	t.Run("delivers to every subscriber and stamps the event", func(t *testing.T) {
		bus := NewBus()
		first, unsubFirst := bus.Subscribe()
		second, unsubSecond := bus.Subscribe()
		defer unsubFirst()
		defer unsubSecond()

		bus.Publish(Event{Type: TypeTicketCreated, TicketID: 42})

		for _, ch := range []<-chan Event{first, second} {
			select {
			case e := <-ch:
				require.Equal(t, TypeTicketCreated, e.Type)
				require.Equal(t, int64(42), e.TicketID)
				require.NotEmpty(t, e.ID)
				require.False(t, e.Timestamp.IsZero())
			case <-time.After(time.Second):
				t.Fatal("event not delivered")
			}
		}
	})

	t.Run("full subscriber does not block the publisher", func(t *testing.T) {
		bus := NewBus()
		_, unsubscribe := bus.Subscribe()
		defer unsubscribe()

		done := make(chan struct{})
		go func() {
			for i := 0; i < subscriberBuffer+10; i++ {
				bus.Publish(Event{Type: TypeTicketMessage})
			}
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("publish blocked on a full subscriber")
		}
	})

	t.Run("unsubscribe closes the channel once", func(t *testing.T) {
		bus := NewBus()
		ch, unsubscribe := bus.Subscribe()
		unsubscribe()
		unsubscribe()

		_, open := <-ch
		require.False(t, open)
	})
}
