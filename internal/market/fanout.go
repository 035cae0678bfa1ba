package market

import (
	"context"
	"reflect"
	"sync"
)

// Fanout delivers events to every live subscriber. Publishers never block:
// each subscriber keeps at most one pending event per kind, and a newer
// snapshot replaces an undelivered older one of the same kind.
type Fanout struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	mu      sync.Mutex
	pending []Event
	wake    chan struct{}
	out     chan Event
}

func NewFanout() *Fanout {
	return &Fanout{subs: make(map[*subscriber]struct{})}
}

// Subscribe registers a subscriber primed with the given initial events. The
// returned channel is closed once ctx is done.
func (f *Fanout) Subscribe(ctx context.Context, initial ...Event) <-chan Event {
	s := &subscriber{
		wake: make(chan struct{}, 1),
		out:  make(chan Event),
	}
	for _, ev := range initial {
		s.offer(ev)
	}

	f.mu.Lock()
	f.subs[s] = struct{}{}
	f.mu.Unlock()

	go func() {
		defer func() {
			f.mu.Lock()
			delete(f.subs, s)
			f.mu.Unlock()
			close(s.out)
		}()
		s.pump(ctx)
	}()
	return s.out
}

// Publish offers ev to all subscribers.
func (f *Fanout) Publish(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for s := range f.subs {
		s.offer(ev)
	}
}

// Len reports the number of live subscribers.
func (f *Fanout) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (s *subscriber) offer(ev Event) {
	s.mu.Lock()
	kind := reflect.TypeOf(ev)
	for i, p := range s.pending {
		if reflect.TypeOf(p) == kind {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	s.pending = append(s.pending, ev)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) next() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil, false
	}
	ev := s.pending[0]
	s.pending = s.pending[1:]
	return ev, true
}

func (s *subscriber) pump(ctx context.Context) {
	for {
		ev, ok := s.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}
		select {
		case <-ctx.Done():
			return
		case s.out <- ev:
		}
	}
}
