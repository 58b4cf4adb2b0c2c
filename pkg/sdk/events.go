package sdk

import "sync"

// EventType identifies a session event emitted by the Client.
type EventType int

const (
	// EventTokenSet is emitted after SetToken persisted a new token.
	EventTokenSet EventType = iota + 1
	// EventTokenCleared is emitted after ClearToken.
	EventTokenCleared
	// EventSessionInvalidated is emitted after a 401 cleared the persisted session.
	EventSessionInvalidated
)

func (t EventType) String() string {
	switch t {
	case EventTokenSet:
		return "token_set"
	case EventTokenCleared:
		return "token_cleared"
	case EventSessionInvalidated:
		return "session_invalidated"
	}
	return "unknown"
}

// Event describes a change to the session credentials.
type Event struct {
	Type EventType
	// Path is the request path that triggered a SessionInvalidated event.
	Path string
}

// broadcaster delivers values synchronously to every subscriber.
type broadcaster[T any] struct {
	mu   sync.Mutex
	next int
	subs map[int]func(T)
}

func (b *broadcaster[T]) subscribe(fn func(T)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]func(T))
	}
	id := b.next
	b.next++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *broadcaster[T]) publish(v T) {
	b.mu.Lock()
	fns := make([]func(T), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	// Called outside the lock so subscribers may unsubscribe or publish.
	for _, fn := range fns {
		fn(v)
	}
}
