package event

import "sync"

// Subscription receives a stream over a channel. Events are queued per
// subscriber without bound, so a slow reader never stalls the engine and
// never loses events.
//
// C is closed after the stream terminates and every queued event has been
// read, or as soon as Unsubscribe is called.
type Subscription struct {
	C <-chan Event

	ch   chan Event
	box  *mailbox
	done chan struct{}

	mu     sync.Mutex
	cancel func()
	once   sync.Once
}

type mailbox struct {
	mu         sync.Mutex
	pending    []Event
	terminated bool
	err        error
	notify     chan struct{}
	quit       chan struct{}
}

func newSubscription() *Subscription {
	ch := make(chan Event)
	sub := &Subscription{
		C:    ch,
		ch:   ch,
		done: make(chan struct{}),
		box: &mailbox{
			notify: make(chan struct{}, 1),
			quit:   make(chan struct{}),
		},
	}
	go sub.run()
	return sub
}

// Unsubscribe stops delivery and closes C. Pending events are discarded.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.box.quit)

		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	})
}

// Done is closed together with C.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the stream's terminal error. It is nil while the stream is
// active and for a completed stream.
func (s *Subscription) Err() error {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	return s.box.err
}

func (s *Subscription) setCancel(cancel func()) {
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	select {
	case <-s.box.quit:
		cancel()
	default:
	}
}

func (s *Subscription) run() {
	defer close(s.done)
	defer close(s.ch)

	b := s.box
	for {
		b.mu.Lock()
		for len(b.pending) == 0 && !b.terminated {
			b.mu.Unlock()
			select {
			case <-b.notify:
			case <-b.quit:
				return
			}
			b.mu.Lock()
		}
		if len(b.pending) == 0 {
			b.mu.Unlock()
			return
		}
		e := b.pending[0]
		b.pending[0] = nil
		b.pending = b.pending[1:]
		b.mu.Unlock()

		select {
		case s.ch <- e:
		case <-b.quit:
			return
		}
	}
}

func (b *mailbox) OnNext(e Event) {
	b.mu.Lock()
	b.pending = append(b.pending, e)
	b.mu.Unlock()
	b.wake()
}

func (b *mailbox) OnError(err error) {
	b.mu.Lock()
	b.terminated = true
	b.err = err
	b.mu.Unlock()
	b.wake()
}

func (b *mailbox) OnComplete() {
	b.mu.Lock()
	b.terminated = true
	b.mu.Unlock()
	b.wake()
}

func (b *mailbox) wake() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}
