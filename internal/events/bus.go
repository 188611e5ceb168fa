// Package events fans adherence events out to in-process consumers.
package events

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	ferrors "git.home.luguber.info/inful/bedshift/internal/foundation/errors"
	"git.home.luguber.info/inful/bedshift/internal/logfields"
)

// Bus is a typed, in-process event bus. It is not durable; the journal is.
//
// Subscriptions are typed with generics. An interface type parameter receives
// every published event implementing it. Publish blocks until each matching
// subscriber accepted the event or ctx is done.
type Bus struct {
	mu     sync.RWMutex
	subs   map[reflect.Type]map[uint64]*subscriber
	nextID atomic.Uint64
	closed atomic.Bool
	once   sync.Once
}

type subscriber struct {
	deliver func(ctx context.Context, evt any) error
	close   func()
}

// NewBus returns an open bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[reflect.Type]map[uint64]*subscriber)}
}

// Subscribe registers a subscription for events of type T with the given
// channel buffer. The returned func unsubscribes and closes the channel.
func Subscribe[T any](b *Bus, buffer int) (<-chan T, func()) {
	typ := reflect.TypeFor[T]()
	ch := make(chan T, buffer)

	// done aborts in-flight deliveries so the channel can be closed without
	// racing a send.
	var (
		sendMu    sync.RWMutex
		done      = make(chan struct{})
		closeOnce sync.Once
	)
	closeCh := func() {
		closeOnce.Do(func() {
			close(done)
			sendMu.Lock()
			close(ch)
			sendMu.Unlock()
		})
	}

	if b.closed.Load() {
		closeCh()
		return ch, func() {}
	}

	id := b.nextID.Add(1)
	sub := &subscriber{
		deliver: func(ctx context.Context, evt any) error {
			v, ok := evt.(T)
			if !ok {
				return ferrors.InternalError("event type mismatch").
					WithContext("expected", typ.String()).
					WithContext("actual", reflect.TypeOf(evt).String()).
					Build()
			}
			sendMu.RLock()
			defer sendMu.RUnlock()
			select {
			case <-done:
				return nil
			default:
			}
			select {
			case ch <- v:
				return nil
			case <-done:
				return nil
			case <-ctx.Done():
				return ferrors.WrapError(ctx.Err(), ferrors.CategoryRuntime, "event publish canceled").
					WithContext("event_type", typ.String()).
					Build()
			}
		},
		close: closeCh,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		closeCh()
		return ch, func() {}
	}
	if b.subs[typ] == nil {
		b.subs[typ] = make(map[uint64]*subscriber)
	}
	b.subs[typ][id] = sub

	var unsubOnce sync.Once
	return ch, func() {
		unsubOnce.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if typed, ok := b.subs[typ]; ok {
				delete(typed, id)
				if len(typed) == 0 {
					delete(b.subs, typ)
				}
			}
			closeCh()
		})
	}
}

// Consume subscribes fn to events of type T and runs it on its own goroutine
// until ctx is done or the bus closes. The returned channel is closed when the
// consumer exits.
func Consume[T any](ctx context.Context, b *Bus, buffer int, name string, fn func(context.Context, T)) <-chan struct{} {
	ch, unsubscribe := Subscribe[T](b, buffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				fn(ctx, evt)
			}
		}
	}()
	slog.Debug("Event consumer started", slog.String("consumer", name), slog.String("event_type", reflect.TypeFor[T]().String()))
	return done
}

// SubscriberCount returns the number of active subscribers for events of type T.
func SubscriberCount[T any](b *Bus) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[reflect.TypeFor[T]()])
}

// Publish delivers evt to every matching subscriber.
func (b *Bus) Publish(ctx context.Context, evt any) error {
	if evt == nil {
		return ferrors.ValidationError("event cannot be nil").Build()
	}
	if b.closed.Load() {
		return ferrors.DaemonError("event bus is closed").Build()
	}

	evtType := reflect.TypeOf(evt)

	b.mu.RLock()
	var targets []*subscriber
	for subType, typed := range b.subs {
		if subType != evtType && (subType.Kind() != reflect.Interface || !evtType.Implements(subType)) {
			continue
		}
		for _, s := range typed {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if err := s.deliver(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the bus and every subscription channel.
func (b *Bus) Close() {
	b.once.Do(func() {
		b.closed.Store(true)

		b.mu.Lock()
		var toClose []*subscriber
		for _, typed := range b.subs {
			for _, s := range typed {
				toClose = append(toClose, s)
			}
		}
		b.subs = make(map[reflect.Type]map[uint64]*subscriber)
		b.mu.Unlock()

		for _, s := range toClose {
			s.close()
		}
	})
}

// DefaultPublishTimeout bounds how long Sink waits for slow subscribers.
const DefaultPublishTimeout = 2 * time.Second

// Sink publishes adherence events on a bus with a bounded wait, so a slow
// consumer cannot stall the state machine. Drops are logged.
type Sink[T any] struct {
	Bus     *Bus
	Timeout time.Duration
}

// Emit publishes evt.
func (s Sink[T]) Emit(ctx context.Context, evt T) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := s.Bus.Publish(ctx, evt); err != nil {
		slog.Warn("Dropped event", slog.String("event_type", reflect.TypeFor[T]().String()), logfields.Error(err))
	}
}
