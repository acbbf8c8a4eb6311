package sampler

import "sync"

// subscriber holds at most one pending sample; a slow consumer only ever
// sees the newest one.
type subscriber struct {
	mu     sync.Mutex
	ch     chan Sample
	closed bool
}

func newSubscriber() *subscriber {
	return &subscriber{ch: make(chan Sample, 1)}
}

func (s *subscriber) channel() <-chan Sample {
	return s.ch
}

func (s *subscriber) send(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- sample:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.ch)
		s.closed = true
	}
}
