package event

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu        sync.Mutex
	events    []Event
	err       error
	completed int
	failed    int
}

func (r *recorder) OnNext(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	r.failed++
}

func (r *recorder) OnComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
}

func (r *recorder) types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type()
	}
	return out
}

func collect(t *testing.T, sub *Subscription) []Type {
	t.Helper()
	var out []Type
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-sub.C:
			if !ok {
				return out
			}
			out = append(out, e.Type())
		case <-timeout:
			t.Fatal("subscription channel was not closed")
			return nil
		}
	}
}

func TestSubject_MulticastInOrder(t *testing.T) {
	s := NewSubject()
	a, b := &recorder{}, &recorder{}
	s.Observe(a)
	s.Observe(b)

	s.Next(NewUploadStart())
	s.Next(NewProgress())
	s.Complete()

	want := []Type{TypeUploadStart, TypeProgress}
	assert.Equal(t, want, a.types())
	assert.Equal(t, want, b.types())
	assert.Equal(t, 1, a.completed)
	assert.Equal(t, 1, b.completed)
	assert.Equal(t, StateCompleted, s.State())
}

func TestSubject_LateObserverMissesEarlierEvents(t *testing.T) {
	s := NewSubject()
	early, late := &recorder{}, &recorder{}
	s.Observe(early)

	s.Next(NewUploadStart())
	s.Observe(late)
	s.Next(NewProgress())

	assert.Equal(t, []Type{TypeUploadStart, TypeProgress}, early.types())
	assert.Equal(t, []Type{TypeProgress}, late.types())
}

func TestSubject_Terminal(t *testing.T) {
	t.Run("error fails the stream once", func(t *testing.T) {
		s := NewSubject()
		r := &recorder{}
		s.Observe(r)
		boom := errors.New("boom")

		s.Error(boom)
		s.Error(errors.New("second"))
		s.Complete()
		s.Next(NewProgress())

		assert.Equal(t, StateFailed, s.State())
		assert.Equal(t, boom, s.Err())
		assert.Equal(t, boom, r.err)
		assert.Equal(t, 1, r.failed)
		assert.Zero(t, r.completed)
		assert.Empty(t, r.events)
	})

	t.Run("complete after complete is ignored", func(t *testing.T) {
		s := NewSubject()
		r := &recorder{}
		s.Observe(r)

		s.Complete()
		s.Complete()
		s.Error(errors.New("late"))

		assert.Equal(t, StateCompleted, s.State())
		assert.NoError(t, s.Err())
		assert.Equal(t, 1, r.completed)
		assert.Zero(t, r.failed)
	})

	t.Run("observing a terminated stream gets the terminal notification", func(t *testing.T) {
		s := NewSubject()
		boom := errors.New("boom")
		s.Error(boom)

		r := &recorder{}
		cancel := s.Observe(r)
		cancel()

		assert.Equal(t, boom, r.err)
		assert.Equal(t, 1, r.failed)
	})
}

func TestSubject_Cancel(t *testing.T) {
	s := NewSubject()
	r := &recorder{}
	cancel := s.Observe(r)

	s.Next(NewUploadStart())
	cancel()
	cancel()
	s.Next(NewProgress())
	s.Complete()

	assert.Equal(t, []Type{TypeUploadStart}, r.types())
	assert.Zero(t, r.completed)
}

func TestSubject_ReentrantPushKeepsOrder(t *testing.T) {
	s := NewSubject()
	first, second := &recorder{}, &recorder{}

	s.Observe(ObserverFuncs{
		Next: func(e Event) {
			first.OnNext(e)
			if e.Type() == TypeUploadStart {
				s.Next(NewProgress())
			}
		},
	})
	s.Observe(second)

	s.Next(NewUploadStart())

	// The nested push is delivered only after every observer saw the outer one.
	want := []Type{TypeUploadStart, TypeProgress}
	assert.Equal(t, want, first.types())
	assert.Equal(t, want, second.types())
}

func TestSubject_ConcurrentPushes(t *testing.T) {
	s := NewSubject()
	r := &recorder{}
	s.Observe(r)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Next(NewProgress())
			}
		}()
	}
	wg.Wait()

	assert.Len(t, r.types(), 800)
}

func TestSubscription(t *testing.T) {
	t.Run("delivers queued events then closes on complete", func(t *testing.T) {
		s := NewSubject()
		sub := s.Subscribe()

		s.Next(NewUploadStart())
		s.Next(NewProgress())
		s.Next(NewComplete())
		s.Complete()

		assert.Equal(t, []Type{TypeUploadStart, TypeProgress, TypeComplete}, collect(t, sub))
		<-sub.Done()
		assert.NoError(t, sub.Err())
	})

	t.Run("reports the terminal error", func(t *testing.T) {
		s := NewSubject()
		sub := s.Subscribe()
		boom := errors.New("boom")

		s.Next(NewUploadStart())
		s.Error(boom)

		assert.Equal(t, []Type{TypeUploadStart}, collect(t, sub))
		assert.Equal(t, boom, sub.Err())
	})

	t.Run("slow reader does not block the producer", func(t *testing.T) {
		s := NewSubject()
		sub := s.Subscribe()

		done := make(chan struct{})
		go func() {
			for i := 0; i < 1000; i++ {
				s.Next(NewProgress())
			}
			s.Complete()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("producer blocked on an unread subscription")
		}
		assert.Len(t, collect(t, sub), 1000)
	})

	t.Run("unsubscribe closes the channel", func(t *testing.T) {
		s := NewSubject()
		sub := s.Subscribe()

		sub.Unsubscribe()
		sub.Unsubscribe()
		s.Next(NewProgress())

		select {
		case <-sub.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("subscription did not stop")
		}
		s.mu.Lock()
		require.Empty(t, s.observers)
		s.mu.Unlock()
	})

	t.Run("subscribing to a completed stream closes immediately", func(t *testing.T) {
		s := NewSubject()
		s.Complete()

		sub := s.Subscribe()
		assert.Empty(t, collect(t, sub))
	})
}
