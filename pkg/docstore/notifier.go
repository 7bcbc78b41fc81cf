package docstore

import "sync"

// Notifier fans document change events out to query-scoped listeners.
// Store implementations publish every committed write through one
// Notifier and get Listen semantics for free.
type Notifier struct {
	mu        sync.Mutex
	next      int
	listeners map[int]*NotifierSub
}

// NewNotifier builds an empty Notifier.
func NewNotifier() *Notifier {
	return &Notifier{listeners: map[int]*NotifierSub{}}
}

// Subscribe registers a listener for one collection and query. The
// caller is responsible for delivering any initial state.
func (n *Notifier) Subscribe(collection string, q Query) *NotifierSub {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++

	sub := &NotifierSub{
		notifier:   n,
		id:         id,
		collection: collection,
		query:      q,
		events:     make(chan Event, 64),
	}
	n.listeners[id] = sub
	return sub
}

// Publish delivers the event to every listener whose query matches the
// snapshot. Removed events are matched against the last known snapshot.
func (n *Notifier) Publish(collection string, evType EventType, snap Snapshot) {
	n.mu.Lock()
	subs := make([]*NotifierSub, 0, len(n.listeners))
	for _, sub := range n.listeners {
		if sub.collection == collection {
			subs = append(subs, sub)
		}
	}
	n.mu.Unlock()

	for _, sub := range subs {
		ok, err := Matches(snap, sub.query.Filters)
		if err != nil || !ok {
			continue
		}
		sub.Deliver(Event{Type: evType, Snapshot: snap})
	}
}

// NotifierSub is a live subscription handed out by a Notifier.
type NotifierSub struct {
	notifier   *Notifier
	id         int
	collection string
	query      Query

	closeOnce sync.Once
	sendMu    sync.Mutex
	closed    bool
	events    chan Event
}

// Events returns the delivery channel. It closes after Close.
func (s *NotifierSub) Events() <-chan Event {
	return s.events
}

// Close detaches the subscription and closes the event channel.
func (s *NotifierSub) Close() {
	s.closeOnce.Do(func() {
		s.notifier.mu.Lock()
		delete(s.notifier.listeners, s.id)
		s.notifier.mu.Unlock()

		s.sendMu.Lock()
		s.closed = true
		close(s.events)
		s.sendMu.Unlock()
	})
}

// Deliver enqueues one event. Slow consumers drop events rather than
// block writers.
func (s *NotifierSub) Deliver(ev Event) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
	}
}
