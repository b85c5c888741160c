package event

import (
	"sync"

	"github.com/google/uuid"
)

// State is the lifecycle position of a stream.
type State int

const (
	StateActive State = iota
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Observer receives stream notifications. After OnError or OnComplete no
// further calls are made.
type Observer interface {
	OnNext(e Event)
	OnError(err error)
	OnComplete()
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Next     func(Event)
	Error    func(error)
	Complete func()
}

func (o ObserverFuncs) OnNext(e Event) {
	if o.Next != nil {
		o.Next(e)
	}
}

func (o ObserverFuncs) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}

func (o ObserverFuncs) OnComplete() {
	if o.Complete != nil {
		o.Complete()
	}
}

// Stream is the read-only side of a multicast event stream. Observers only
// see events pushed after they subscribed.
type Stream interface {
	// Observe delivers notifications synchronously to o until the returned
	// cancel function is called or the stream terminates.
	Observe(o Observer) (cancel func())

	// Subscribe delivers notifications over a channel.
	Subscribe() *Subscription

	State() State

	// Err returns the terminal error of a failed stream.
	Err() error
}

type notification struct {
	event    Event
	err      error
	terminal bool
}

func (n notification) deliver(o Observer) {
	switch {
	case !n.terminal:
		o.OnNext(n.event)
	case n.err != nil:
		o.OnError(n.err)
	default:
		o.OnComplete()
	}
}

type observerEntry struct {
	id string
	o  Observer
}

// Subject is the writable side of a stream. It is safe for concurrent use;
// notifications are delivered one at a time in the order they were pushed,
// including pushes made from inside an observer.
type Subject struct {
	mu        sync.Mutex
	state     State
	err       error
	observers []observerEntry
	queue     []notification
	draining  bool
}

var _ Stream = (*Subject)(nil)

func NewSubject() *Subject {
	return &Subject{}
}

// Next pushes e to every current observer. It is a no-op once the subject
// has terminated.
func (s *Subject) Next(e Event) {
	s.push(notification{event: e})
}

// Error moves the subject to the failed state.
func (s *Subject) Error(err error) {
	s.push(notification{err: err, terminal: true})
}

// Complete moves the subject to the completed state.
func (s *Subject) Complete() {
	s.push(notification{terminal: true})
}

func (s *Subject) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Subject) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subject) Observe(o Observer) func() {
	s.mu.Lock()
	if s.state != StateActive {
		n := notification{err: s.err, terminal: true}
		s.mu.Unlock()
		n.deliver(o)
		return func() {}
	}

	id := uuid.NewString()
	s.observers = append(s.observers, observerEntry{id: id, o: o})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.remove(id)
		})
	}
}

func (s *Subject) Subscribe() *Subscription {
	sub := newSubscription()
	cancel := s.Observe(sub.box)
	sub.setCancel(cancel)
	return sub
}

func (s *Subject) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, entry := range s.observers {
		if entry.id == id {
			s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
			return
		}
	}
}

func (s *Subject) push(n notification) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	if n.terminal {
		if n.err != nil {
			s.state = StateFailed
			s.err = n.err
		} else {
			s.state = StateCompleted
		}
	}
	s.queue = append(s.queue, n)

	// Whoever is already draining delivers this notification in order.
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()

	s.drain()
}

func (s *Subject) drain() {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.draining = false
			s.mu.Unlock()
			panic(r)
		}
	}()

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}

		n := s.queue[0]
		s.queue[0] = notification{}
		s.queue = s.queue[1:]

		targets := make([]Observer, len(s.observers))
		for i, entry := range s.observers {
			targets[i] = entry.o
		}
		if n.terminal {
			s.observers = nil
		}
		s.mu.Unlock()

		for _, o := range targets {
			n.deliver(o)
		}
	}
}
