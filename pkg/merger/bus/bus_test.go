package bus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicestream/merger/pkg/merger/bus"
)

func TestPublishReceive(t *testing.T) {
	b := bus.NewChannelBus(bus.DefaultConfig)
	defer b.Close()

	sub := b.Subscribe("Client")
	require.NotNil(t, sub)

	msg := bus.Message{Topic: "Client", Key: "1", Value: []byte(`{"id":1}`)}
	require.NoError(t, b.Publish(context.Background(), msg))

	got, err := sub.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestSubscribeMultipleTopics(t *testing.T) {
	b := bus.NewChannelBus(bus.DefaultConfig)
	defer b.Close()

	sub := b.Subscribe("Client", "Command", "Product")
	assert.ElementsMatch(t, []string{"Client", "Command", "Product"}, sub.Topics())

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, bus.Message{Topic: "Command", Key: "10"}))
	require.NoError(t, b.Publish(ctx, bus.Message{Topic: "Product", Key: "100"}))

	first, err := sub.Receive(ctx)
	require.NoError(t, err)
	second, err := sub.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Command", first.Topic)
	assert.Equal(t, "Product", second.Topic)
}

func TestTopicIsolation(t *testing.T) {
	b := bus.NewChannelBus(bus.DefaultConfig)
	defer b.Close()

	clients := b.Subscribe("Client")
	require.NoError(t, b.Publish(context.Background(), bus.Message{Topic: "Command", Key: "10"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := clients.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFanOut(t *testing.T) {
	b := bus.NewChannelBus(bus.DefaultConfig)
	defer b.Close()

	sub1 := b.Subscribe("Invoice")
	sub2 := b.Subscribe("Invoice")

	require.NoError(t, b.Publish(context.Background(), bus.Message{Topic: "Invoice", Key: "10"}))

	for _, sub := range []*bus.Subscription{sub1, sub2} {
		got, err := sub.Receive(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "10", got.Key)
	}
}

func TestCloseDrainsBufferedMessages(t *testing.T) {
	b := bus.NewChannelBus(bus.DefaultConfig)
	sub := b.Subscribe("Client")

	require.NoError(t, b.Publish(context.Background(), bus.Message{Topic: "Client", Key: "1"}))
	require.NoError(t, b.Close())

	// Buffered message is still delivered after close.
	got, err := sub.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", got.Key)

	// Then the close surfaces.
	_, err = sub.Receive(context.Background())
	assert.ErrorIs(t, err, bus.ErrClosed)
}

func TestPublishAfterClose(t *testing.T) {
	b := bus.NewChannelBus(bus.DefaultConfig)
	require.NoError(t, b.Close())

	err := b.Publish(context.Background(), bus.Message{Topic: "Client"})
	assert.ErrorIs(t, err, bus.ErrClosed)
	assert.Nil(t, b.Subscribe("Client"))

	// Closing twice is fine.
	assert.NoError(t, b.Close())
}

func TestNonBlockingDropsWhenBufferFull(t *testing.T) {
	var mu sync.Mutex
	var dropped []bus.Message

	b := bus.NewChannelBus(bus.Config{
		BufferSize:  1,
		NonBlocking: true,
		OnDrop: func(msg bus.Message) {
			mu.Lock()
			defer mu.Unlock()
			dropped = append(dropped, msg)
		},
	})
	defer b.Close()

	_ = b.Subscribe("Product")
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, bus.Message{Topic: "Product", Key: "1"}))
	require.NoError(t, b.Publish(ctx, bus.Message{Topic: "Product", Key: "2"}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, dropped, 1)
	assert.Equal(t, "2", dropped[0].Key)
}

func TestReceiveHonoursContextCancel(t *testing.T) {
	b := bus.NewChannelBus(bus.DefaultConfig)
	defer b.Close()

	sub := b.Subscribe("Client")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := sub.Receive(ctx)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Receive did not return after cancel")
	}
}

func TestConcurrentPublishers(t *testing.T) {
	b := bus.NewChannelBus(bus.Config{BufferSize: 512})
	defer b.Close()

	sub := b.Subscribe("Product")
	ctx := context.Background()

	const publishers = 8
	const perPublisher = 50

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				_ = b.Publish(ctx, bus.Message{Topic: "Product", Key: "k"})
			}
		}()
	}
	wg.Wait()

	for i := 0; i < publishers*perPublisher; i++ {
		_, err := sub.Receive(ctx)
		require.NoError(t, err)
	}
}
