// Package bus defines the message-bus boundary the engine consumes and
// publishes through, plus an in-process implementation for tests,
// examples, and single-instance deployments.
//
// A broker-backed client (Kafka consumer groups, offset management) is an
// external collaborator that satisfies the same two interfaces.
package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Message is one record on a stream, keyed for partitioning.
type Message struct {
	Topic string
	Key   string
	Value []byte
}

// Publisher writes messages to output streams.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Consumer reads the next message from the subscribed input streams.
// Receive blocks until a message arrives, the context is cancelled, or
// the underlying bus closes (ErrClosed).
type Consumer interface {
	Receive(ctx context.Context) (Message, error)
}

// ErrClosed is returned once a bus or subscription has shut down.
var ErrClosed = errors.New("bus closed")

// Config configures the in-process bus.
type Config struct {
	// BufferSize is the channel buffer size per subscription.
	// Default: 256
	BufferSize int

	// NonBlocking makes Publish drop messages when a subscriber's buffer
	// is full instead of blocking.
	// Default: false (blocking)
	NonBlocking bool

	// OnDrop is called when a message is dropped (non-blocking mode).
	OnDrop func(msg Message)
}

// DefaultConfig provides reasonable defaults.
var DefaultConfig = Config{
	BufferSize: 256,
}

// ChannelBus is an in-process bus built on buffered channels.
type ChannelBus struct {
	config Config

	mu      sync.RWMutex
	byTopic map[string][]*Subscription

	closed  atomic.Bool
	closeCh chan struct{}
}

// NewChannelBus creates a new in-process bus.
func NewChannelBus(config Config) *ChannelBus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig.BufferSize
	}
	return &ChannelBus{
		config:  config,
		byTopic: make(map[string][]*Subscription),
		closeCh: make(chan struct{}),
	}
}

// Subscription is a single consumer of one or more topics.
type Subscription struct {
	topics   []string
	messages chan Message
	bus      *ChannelBus
}

// Subscribe creates a subscription receiving every message published to
// any of the given topics. Returns nil if the bus is closed.
func (b *ChannelBus) Subscribe(topics ...string) *Subscription {
	if b.closed.Load() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		topics:   topics,
		messages: make(chan Message, b.config.BufferSize),
		bus:      b,
	}
	for _, t := range topics {
		b.byTopic[t] = append(b.byTopic[t], sub)
	}
	return sub
}

// Publish delivers a message to every subscription of its topic.
func (b *ChannelBus) Publish(ctx context.Context, msg Message) error {
	if b.closed.Load() {
		return ErrClosed
	}

	b.mu.RLock()
	subs := b.byTopic[msg.Topic]
	b.mu.RUnlock()

	for _, sub := range subs {
		if b.config.NonBlocking {
			select {
			case sub.messages <- msg:
			default:
				// Buffer full - drop message
				if b.config.OnDrop != nil {
					b.config.OnDrop(msg)
				}
			}
		} else {
			select {
			case sub.messages <- msg:
			case <-ctx.Done():
				return ctx.Err()
			case <-b.closeCh:
				return ErrClosed
			}
		}
	}
	return nil
}

// Close shuts down the bus. Subscribers drain their buffers and then
// receive ErrClosed.
func (b *ChannelBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil // Already closed
	}
	close(b.closeCh)
	return nil
}

// Receive implements Consumer. Buffered messages are drained before the
// close is surfaced.
func (s *Subscription) Receive(ctx context.Context) (Message, error) {
	// Drain pending messages even after close
	select {
	case msg := <-s.messages:
		return msg, nil
	default:
	}

	select {
	case msg := <-s.messages:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-s.bus.closeCh:
		// One more drain pass; close may have raced a publish
		select {
		case msg := <-s.messages:
			return msg, nil
		default:
			return Message{}, ErrClosed
		}
	}
}

// Topics returns the topics this subscription receives.
func (s *Subscription) Topics() []string {
	return append([]string(nil), s.topics...)
}
