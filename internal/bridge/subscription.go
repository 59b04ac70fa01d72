package bridge

import (
	"sync"

	"github.com/anstrom/ragescanner/internal/scanning"
)

// Subscription is one reader's view of the event broadcast. Events are held
// in an unbounded FIFO so a slow reader never causes an event to be dropped
// or another reader to stall.
type Subscription struct {
	id string

	mu        sync.Mutex
	buf       []scanning.Event
	finishing bool

	out       chan scanning.Event
	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	onClose   func(id string)
}

func newSubscription(id string, onClose func(id string)) *Subscription {
	s := &Subscription{
		id:      id,
		out:     make(chan scanning.Event),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		onClose: onClose,
	}
	go s.pump()
	return s
}

// ID returns the subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// C returns the event channel. It is closed when the subscription is closed
// or, after delivering everything queued, when the bridge shuts down.
func (s *Subscription) C() <-chan scanning.Event {
	return s.out
}

// Pending returns the number of queued, undelivered events.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Close detaches the subscription and discards anything still queued.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.onClose != nil {
			s.onClose(s.id)
		}
	})
}

func (s *Subscription) push(ev scanning.Event) {
	s.mu.Lock()
	if s.finishing {
		s.mu.Unlock()
		return
	}
	s.buf = append(s.buf, ev)
	s.mu.Unlock()
	s.wake()
}

// finish stops accepting events; the channel closes once the queue drains.
func (s *Subscription) finish() {
	s.mu.Lock()
	s.finishing = true
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.out)

	for {
		s.mu.Lock()
		if len(s.buf) == 0 {
			finishing := s.finishing
			s.mu.Unlock()
			if finishing {
				return
			}
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}

		ev := s.buf[0]
		s.buf[0] = scanning.Event{}
		s.buf = s.buf[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}
